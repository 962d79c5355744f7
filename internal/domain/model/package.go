package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package is a named, priced support offering used to size payments
// created through the hosted API. Immutable reference data.
type Package struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Verbose   string          `gorm:"size:200;not null" json:"verbose"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CreatedAt time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Package) TableName() string {
	return "packages"
}
