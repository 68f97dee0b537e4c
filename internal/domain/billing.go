package domain

// Plan is a subscription tier sold through hosted checkout.
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceMinor  int64    `json:"price_minor"` // smallest currency unit (paise, cents)
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	Tier        string   `json:"tier"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

// CheckoutRequest is what a payment gateway needs to open a subscription
// checkout for one customer.
type CheckoutRequest struct {
	CustomerID string
	UserID     string
	Plan       Plan
}
