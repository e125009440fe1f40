package webcollect

import "fmt"

const (
	// CurrencyPHP is the only currency sessions are created in.
	CurrencyPHP = "php"
	// ModePayment is the one-off payment session mode.
	ModePayment = "payment"
	// MinimumAmount is the smallest accepted line item amount in centavos (₱1.00).
	MinimumAmount int64 = 100
)

// LineItem is one priced row of a checkout session. Amount is in centavos.
type LineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Quantity int    `json:"quantity"`
}

// SessionRequest is the body of POST /v2/sessions.
type SessionRequest struct {
	Currency              string         `json:"currency"`
	PaymentMethodTypes    []string       `json:"payment_method_types"`
	LineItems             []LineItem     `json:"line_items"`
	PhoneNumberCollection bool           `json:"phone_number_collection"`
	Mode                  string         `json:"mode"`
	SuccessURL            string         `json:"success_url"`
	CancelURL             string         `json:"cancel_url"`
	ClientReferenceID     string         `json:"client_reference_id"`
	Customer              string         `json:"customer,omitempty"`
	Metadata              map[string]any `json:"metadata"`
}

// SessionResult is the part of the processor's session object callers need.
type SessionResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Validate reports the first rule the request breaks. It does not modify r.
func (r SessionRequest) Validate() error {
	switch {
	case r.Currency == "":
		return missingField("currency")
	case len(r.PaymentMethodTypes) == 0:
		return missingField("payment_method_types")
	case len(r.LineItems) == 0:
		return missingField("line_items")
	case r.Mode == "":
		return missingField("mode")
	}
	if r.Currency != CurrencyPHP {
		return &ValidationError{Message: "invalid currency: must be 'php'"}
	}
	for i, item := range r.LineItems {
		if item.Amount < MinimumAmount {
			return &ValidationError{Message: fmt.Sprintf("line_items[%d]: invalid amount %d, minimum amount per item is ₱1.00", i, item.Amount)}
		}
		if item.Quantity < 1 {
			return &ValidationError{Message: fmt.Sprintf("line_items[%d]: quantity must be at least 1", i)}
		}
	}
	return nil
}

func missingField(name string) error {
	return &ValidationError{Message: "missing field: " + name}
}

// CustomerRequest is the body of POST /v2/customers.
type CustomerRequest struct {
	Email       string            `json:"email"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}
