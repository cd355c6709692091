package sdk

import (
	"context"

	"checkout-service/internal/host"
)

// Google Pay environments.
const (
	GoogleEnvironmentTest       = "TEST"
	GoogleEnvironmentProduction = "PRODUCTION"
)

// Google is the google global exposing the Google Pay API.
type Google interface {
	NewPaymentsClient(environment string) (GooglePaymentsClient, error)
}

// GooglePaymentsClient is google.payments.api.PaymentsClient.
type GooglePaymentsClient interface {
	IsReadyToPay(ctx context.Context, req *GoogleIsReadyToPayRequest) (bool, error)
	CreateButton(opts *GoogleButtonOptions) *host.Node
	LoadPaymentData(ctx context.Context, req *GooglePaymentDataRequest) (*GooglePaymentData, error)
}

// GoogleBillingAddressParameters controls the billing address requested.
type GoogleBillingAddressParameters struct {
	Format              string `json:"format"`
	PhoneNumberRequired bool   `json:"phoneNumberRequired"`
}

// GoogleCardParameters restricts the accepted cards.
type GoogleCardParameters struct {
	AllowedAuthMethods       []string                        `json:"allowedAuthMethods"`
	AllowedCardNetworks      []string                        `json:"allowedCardNetworks"`
	BillingAddressRequired   bool                            `json:"billingAddressRequired"`
	BillingAddressParameters *GoogleBillingAddressParameters `json:"billingAddressParameters,omitempty"`
}

// GoogleTokenizationSpecification names the gateway that receives the token.
type GoogleTokenizationSpecification struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

// GooglePaymentMethod is an allowed payment method.
type GooglePaymentMethod struct {
	Type                      string                           `json:"type"`
	Parameters                GoogleCardParameters             `json:"parameters"`
	TokenizationSpecification *GoogleTokenizationSpecification `json:"tokenizationSpecification,omitempty"`
}

// GoogleIsReadyToPayRequest asks whether the device can pay.
type GoogleIsReadyToPayRequest struct {
	APIVersion                    int                   `json:"apiVersion"`
	APIVersionMinor               int                   `json:"apiVersionMinor"`
	AllowedPaymentMethods         []GooglePaymentMethod `json:"allowedPaymentMethods"`
	ExistingPaymentMethodRequired bool                  `json:"existingPaymentMethodRequired"`
}

// GoogleTransactionInfo is the amount shown on the sheet.
type GoogleTransactionInfo struct {
	CurrencyCode     string `json:"currencyCode"`
	TotalPrice       string `json:"totalPrice"`
	TotalPriceStatus string `json:"totalPriceStatus"`
}

// GoogleShippingAddressParameters controls the shipping address requested.
type GoogleShippingAddressParameters struct {
	PhoneNumberRequired bool `json:"phoneNumberRequired"`
}

// GoogleMerchantInfo identifies the merchant on the sheet.
type GoogleMerchantInfo struct {
	MerchantName string `json:"merchantName,omitempty"`
	MerchantID   string `json:"merchantId"`
}

// GooglePaymentDataRequest opens the payment sheet.
type GooglePaymentDataRequest struct {
	APIVersion                int                             `json:"apiVersion"`
	APIVersionMinor           int                             `json:"apiVersionMinor"`
	TransactionInfo           GoogleTransactionInfo           `json:"transactionInfo"`
	AllowedPaymentMethods     []GooglePaymentMethod           `json:"allowedPaymentMethods"`
	EmailRequired             bool                            `json:"emailRequired"`
	ShippingAddressRequired   bool                            `json:"shippingAddressRequired"`
	ShippingAddressParameters GoogleShippingAddressParameters `json:"shippingAddressParameters"`
	MerchantInfo              GoogleMerchantInfo              `json:"merchantInfo"`
}

// GoogleAddress is an address returned by Google Pay.
type GoogleAddress struct {
	Name               string `json:"name,omitempty"`
	Address1           string `json:"address1,omitempty"`
	Address2           string `json:"address2,omitempty"`
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrativeArea,omitempty"`
	PostalCode         string `json:"postalCode,omitempty"`
	CountryCode        string `json:"countryCode,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
}

// GooglePaymentMethodData is the tokenized card in a payment response.
type GooglePaymentMethodData struct {
	Info struct {
		BillingAddress *GoogleAddress `json:"billingAddress,omitempty"`
	} `json:"info"`
	TokenizationData struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"tokenizationData"`
}

// GooglePaymentData is the payment sheet result.
type GooglePaymentData struct {
	Email             string                  `json:"email,omitempty"`
	ShippingAddress   *GoogleAddress          `json:"shippingAddress,omitempty"`
	PaymentMethodData GooglePaymentMethodData `json:"paymentMethodData"`
}

// GoogleButtonOptions configures a Google Pay button.
type GoogleButtonOptions struct {
	ButtonColor    string
	ButtonType     string
	ButtonSizeMode string
	ButtonLocale   string
	OnClick        func(ctx context.Context)
}
