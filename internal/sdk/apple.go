package sdk

import "context"

// ApplePaySession completion statuses.
const (
	ApplePayStatusSuccess = 0
	ApplePayStatusFailure = 1
)

// ApplePay is the ApplePaySession global provided by Safari.
type ApplePay interface {
	CanMakePayments() bool
	NewSession(version int, req *ApplePayPaymentRequest) (ApplePaySession, error)
}

// ApplePayLineItem is the total line of a payment request.
type ApplePayLineItem struct {
	Label  string `json:"label"`
	Type   string `json:"type,omitempty"`
	Amount string `json:"amount"`
}

// ApplePayPaymentRequest describes the Apple Pay sheet.
type ApplePayPaymentRequest struct {
	Total                         ApplePayLineItem `json:"total"`
	CurrencyCode                  string           `json:"currencyCode"`
	CountryCode                   string           `json:"countryCode,omitempty"`
	MerchantCapabilities          []string         `json:"merchantCapabilities"`
	RequiredShippingContactFields []string         `json:"requiredShippingContactFields"`
	RequiredBillingContactFields  []string         `json:"requiredBillingContactFields"`
}

// ApplePayContact is a shipping or billing contact.
type ApplePayContact struct {
	GivenName          string   `json:"givenName,omitempty"`
	FamilyName         string   `json:"familyName,omitempty"`
	EmailAddress       string   `json:"emailAddress,omitempty"`
	PhoneNumber        string   `json:"phoneNumber,omitempty"`
	AddressLines       []string `json:"addressLines,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	CountryCode        string   `json:"countryCode,omitempty"`
}

// ApplePayPayment is the authorized payment.
type ApplePayPayment struct {
	Token           any              `json:"token"`
	ShippingContact *ApplePayContact `json:"shippingContact,omitempty"`
	BillingContact  *ApplePayContact `json:"billingContact,omitempty"`
}

// ApplePaySession drives one Apple Pay sheet.
type ApplePaySession interface {
	OnValidateMerchant(handler func(ctx context.Context, validationURL string))
	OnPaymentAuthorized(handler func(ctx context.Context, payment *ApplePayPayment))
	CompleteMerchantValidation(merchantSession any)
	CompletePayment(status int)
	Abort()
	Begin(ctx context.Context)
}
