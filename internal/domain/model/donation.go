package model

import (
	"time"
)

// Donation wraps a recurring payment with reward semantics. Expires
// only ever moves forward; dormant donations stay in place as history.
type Donation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Reward    int       `gorm:"default:0" json:"reward"`
	Active    bool      `gorm:"default:true;index" json:"active"`
	Expires   time.Time `gorm:"not null" json:"expires"`
	PaymentID int64     `gorm:"not null" json:"payment_id"`
	LinkURL   string    `gorm:"size:300" json:"link_url,omitempty"`
	LinkText  string    `gorm:"size:200" json:"link_text,omitempty"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Donation) TableName() string {
	return "donations"
}

// Expired reports whether the covered period has passed. It does not
// clear Active, expiry alone never deactivates a donation.
func (d *Donation) Expired(now time.Time) bool {
	return d.Expires.Before(now)
}
