package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is owned by the storefront; this service reads it and marks it paid.
type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           *uint           `gorm:"index" json:"user_id"` // nil for guest checkout
	Status           string          `gorm:"size:20;not null;index;default:'pending'" json:"status"`
	BillingFirstName string          `gorm:"size:100" json:"billing_first_name"`
	BillingLastName  string          `gorm:"size:100" json:"billing_last_name"`
	BillingEmail     string          `gorm:"size:255" json:"billing_email"`
	ShippingTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_total"`
	PaidAt           *time.Time      `json:"paid_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Notes []OrderNote `gorm:"foreignKey:OrderID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// BillingFullName is "first last", trimmed when either part is missing.
func (o *Order) BillingFullName() string {
	return strings.TrimSpace(o.BillingFirstName + " " + o.BillingLastName)
}

// ReturnURL is where the shopper lands after paying.
func (o *Order) ReturnURL(storeBase string) string {
	return fmt.Sprintf("%s/checkout/order-received/%d", strings.TrimRight(storeBase, "/"), o.ID)
}

// CancelURL is where the shopper lands after abandoning the hosted checkout.
func (o *Order) CancelURL(storeBase string) string {
	return fmt.Sprintf("%s/cart?cancel_order=true&order_id=%d", strings.TrimRight(storeBase, "/"), o.ID)
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

type OrderNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderNote) TableName() string {
	return "order_notes"
}
