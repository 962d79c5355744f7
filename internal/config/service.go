package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// PublicURL is the externally reachable base of this service, used
	// to build gateway return URLs.
	PublicURL string        `yaml:"public_url"`
	Payment   PaymentConfig `yaml:"payment"`
	VAT       VATConfig     `yaml:"vat"`
	Auth      AuthConfig    `yaml:"auth"`
}

type PaymentConfig struct {
	// Secret signs hosted API payloads and origin notifications.
	Secret string `yaml:"secret"`
	// Debug registers the manual test backend; must stay off in
	// production.
	Debug bool `yaml:"debug"`
	// DonationOrigin tags payments created by the donation flow.
	DonationOrigin string `yaml:"donation_origin"`
	// ThankYouURL receives donors without a reward after completion.
	ThankYouURL string `yaml:"thank_you_url"`
	// DonationEditURL receives donors with a reward, formatted with the
	// donation id.
	DonationEditURL string `yaml:"donation_edit_url"`
	// NotifyURL is the hosted-service webhook for payment outcomes.
	NotifyURL string `yaml:"notify_url"`
	// HostedOrigin tags payments created through the hosted API;
	// defaults to NotifyURL.
	HostedOrigin string `yaml:"hosted_origin"`
	// RenewalLookahead bounds how early the renewal job creates the
	// next payment.
	RenewalLookahead time.Duration `yaml:"renewal_lookahead"`

	ThePay ThePayConfig  `yaml:"thepay"`
	Bank   FioBankConfig `yaml:"bank"`
}

type ThePayConfig struct {
	GateURL    string `yaml:"gate_url"`
	MerchantID string `yaml:"merchant_id"`
	AccountID  string `yaml:"account_id"`
	Password   string `yaml:"password"`
	Demo       bool   `yaml:"demo"`
}

type FioBankConfig struct {
	Account string `yaml:"account"`
	IBAN    string `yaml:"iban"`
	BIC     string `yaml:"bic"`
}

type VATConfig struct {
	// URL is the VIES REST endpoint base.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}
