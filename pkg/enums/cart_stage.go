package enums

import "fmt"

// CartStage identifies how far a shopper has progressed through the funnel.
type CartStage string

const (
	CartStageContact CartStage = "contact"
	CartStageAddress CartStage = "address"
	CartStagePayment CartStage = "payment"
)

var cartStageLevels = map[CartStage]int{
	CartStageContact: 1,
	CartStageAddress: 2,
	CartStagePayment: 3,
}

// String implements fmt.Stringer.
func (s CartStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CartStage.
func (s CartStage) IsValid() bool {
	_, ok := cartStageLevels[s]
	return ok
}

// Level returns the stage's position in the funnel ordering (contact=1 .. payment=3).
func (s CartStage) Level() int {
	return cartStageLevels[s]
}

// ParseCartStage converts raw input into a CartStage.
func ParseCartStage(value string) (CartStage, error) {
	stage := CartStage(value)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid cart stage %q", value)
	}
	return stage, nil
}
