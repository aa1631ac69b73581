package types

import "strings"

// Customer is the shopper snapshot captured by the funnel forms.
type Customer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// IsEmpty reports whether no customer field carries a value.
func (c *Customer) IsEmpty() bool {
	if c == nil {
		return true
	}
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.Document) == ""
}
