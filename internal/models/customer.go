package models

import "time"

// Customer maps a storefront user to their WebCollect customer id. A row is
// written once and never updated.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	RemoteID  string    `gorm:"size:255;not null" json:"remote_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Customer) TableName() string {
	return "securitybank_customers"
}
