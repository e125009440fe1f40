package models

import "time"

// Payment records one hosted checkout session created for an order. An order
// can accumulate several when the shopper retries checkout.
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     uint       `gorm:"not null;index" json:"order_id"`
	SessionID   string     `gorm:"size:255;uniqueIndex" json:"session_id"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Currency    string     `gorm:"size:3;default:'php'" json:"currency"`
	Mode        string     `gorm:"size:10;not null" json:"mode"`         // test, live
	Status      string     `gorm:"size:20;not null;index" json:"status"` // open, completed
	CustomerID  string     `gorm:"size:255" json:"customer_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
