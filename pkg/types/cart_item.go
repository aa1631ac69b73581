package types

// CartItem is one line of the cart snapshot.
type CartItem struct {
	ProductID      string `json:"product_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Quantity       int    `json:"quantity,omitempty"`
	UnitPriceCents int    `json:"unit_price_cents,omitempty"`
	TotalCents     int    `json:"total_cents,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// Shipping is the selected shipping option snapshot.
type Shipping struct {
	Method     string `json:"method,omitempty"`
	Carrier    string `json:"carrier,omitempty"`
	PriceCents int    `json:"price_cents,omitempty"`
	EtaDays    int    `json:"eta_days,omitempty"`
}

// Summary is the totals snapshot computed by the storefront.
type Summary struct {
	SubtotalCents int `json:"subtotal_cents,omitempty"`
	ShippingCents int `json:"shipping_cents,omitempty"`
	DiscountCents int `json:"discount_cents,omitempty"`
	TotalCents    int `json:"total_cents,omitempty"`
}
