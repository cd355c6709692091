package models

import "github.com/shopspring/decimal"

func init() {
	// The store and vault APIs expect amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Payment method keys.
const (
	MethodCard        = "card"
	MethodIDeal       = "ideal"
	MethodBancontact  = "bancontact"
	MethodKlarna      = "klarna"
	MethodPaysafecard = "paysafecard"
	MethodPayPal      = "paypal"
	MethodGoogle      = "google"
	MethodApple       = "apple"
	MethodAmazon      = "amazon"
)

// Gateway keys.
const (
	GatewayStripe      = "stripe"
	GatewayBraintree   = "braintree"
	GatewayQuickpay    = "quickpay"
	GatewayPaysafecard = "paysafecard"
	GatewayKlarna      = "klarna"
	GatewayPayPal      = "paypal"
	GatewayAmazon      = "amazon"
)

// MethodSettings is the store configuration for one payment method.
type MethodSettings struct {
	Gateway        string `json:"gateway,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`
	Mode           string `json:"mode,omitempty"`
	PublishableKey string `json:"publishable_key,omitempty"`
	MerchantID     string `json:"merchant_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	PublicKeyID    string `json:"public_key_id,omitempty"`
}

// IsLive reports whether the method runs against the provider's live environment.
func (s *MethodSettings) IsLive() bool {
	return s != nil && s.Mode == "live"
}

// PaymentMethods maps method keys to their settings. A missing key means
// the method is disabled.
type PaymentMethods map[string]*MethodSettings

// StoreSettings is the store-level configuration embedded in carts and
// returned by the settings endpoint.
type StoreSettings struct {
	Name     string `json:"name,omitempty"`
	Country  string `json:"country,omitempty"`
	Currency string `json:"currency,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// Settings is the response of the store settings endpoint.
type Settings struct {
	Store *StoreSettings `json:"store,omitempty"`
}
