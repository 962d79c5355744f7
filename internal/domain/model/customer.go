package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Czech VAT rate applied when the billing country requires VAT.
var vatMultiplier = decimal.RequireFromString("1.21")

// sellerCountry is where the seller is registered for VAT.
const sellerCountry = "CZ"

// euCountries lists EU member states subject to VAT handling.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "CY": true, "CZ": true,
	"DE": true, "DK": true, "EE": true, "ES": true, "FI": true,
	"FR": true, "GR": true, "HR": true, "HU": true, "IE": true,
	"IT": true, "LT": true, "LU": true, "LV": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SE": true,
	"SI": true, "SK": true,
}

// Customer holds the billing profile for a user within one origin.
// Customers are never deleted, historical payments reference them.
type Customer struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_customer_user_origin" json:"user_id"`
	Origin    string    `gorm:"size:200;not null;uniqueIndex:idx_customer_user_origin" json:"origin"`
	Email     string    `gorm:"size:190;not null" json:"email"`
	Name      string    `gorm:"size:200" json:"name"`
	Address   string    `gorm:"size:200" json:"address"`
	City      string    `gorm:"size:200" json:"city"`
	Country   string    `gorm:"size:2" json:"country"`
	VAT       string    `gorm:"size:50" json:"vat"`
	VATValid  bool      `gorm:"default:false" json:"vat_valid"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// Complete reports whether all billing fields needed to issue a payment
// are filled in.
func (c *Customer) Complete() bool {
	return c.Name != "" && c.Address != "" && c.City != "" && c.Country != ""
}

// HasVAT reports whether the customer supplied a VAT ID.
func (c *Customer) HasVAT() bool {
	return strings.TrimSpace(c.VAT) != ""
}

// VATCountry returns the country prefix of the VAT ID.
func (c *Customer) VATCountry() string {
	if len(c.VAT) < 2 {
		return ""
	}
	return strings.ToUpper(c.VAT[:2])
}

// VATNumber returns the numeric part of the VAT ID.
func (c *Customer) VATNumber() string {
	if len(c.VAT) < 2 {
		return ""
	}
	return c.VAT[2:]
}

// NeedsVAT reports whether VAT has to be charged on top of the amount.
// Domestic customers always pay VAT; other EU customers only when they
// cannot reverse charge through a valid VAT ID.
func (c *Customer) NeedsVAT() bool {
	country := strings.ToUpper(c.Country)
	if country == sellerCountry {
		return true
	}
	if euCountries[country] {
		return !c.HasVAT() || !c.VATValid
	}
	return false
}
