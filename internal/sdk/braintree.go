package sdk

import "context"

// Braintree is the braintree web client core.
type Braintree interface {
	CreateClient(ctx context.Context, authorization string) (BraintreeClient, error)
}

// BraintreeClient is an authorized braintree.client instance.
type BraintreeClient interface {
	Authorization() string
}

// BraintreeNonce is a tokenized payment.
type BraintreeNonce struct {
	Nonce   string         `json:"nonce"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// BraintreePayPalCheckout is braintree.paypalCheckout.
type BraintreePayPalCheckout interface {
	Create(ctx context.Context, client BraintreeClient) (PayPalCheckoutInstance, error)
}

// PayPalCheckoutPayment starts a vaulted PayPal payment.
type PayPalCheckoutPayment struct {
	Flow     string `json:"flow"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// PayPalCheckoutInstance links a PayPal approval to Braintree.
type PayPalCheckoutInstance interface {
	CreatePayment(ctx context.Context, payment *PayPalCheckoutPayment) (string, error)
	TokenizePayment(ctx context.Context, data *PayPalApproveData) (*BraintreeNonce, error)
}

// GooglePaymentCreateOptions creates a braintree.googlePayment instance.
type GooglePaymentCreateOptions struct {
	Client           BraintreeClient
	GoogleMerchantID string
	GooglePayVersion int
}

// BraintreeGooglePayment is braintree.googlePayment.
type BraintreeGooglePayment interface {
	Create(ctx context.Context, opts *GooglePaymentCreateOptions) (GooglePaymentInstance, error)
}

// GooglePaymentInstance bridges the Google Pay sheet and Braintree.
type GooglePaymentInstance interface {
	CreatePaymentDataRequest(req *GooglePaymentDataRequest) *GooglePaymentDataRequest
	ParseResponse(ctx context.Context, data *GooglePaymentData) (*BraintreeNonce, error)
}

// BraintreeApplePay is braintree.applePay.
type BraintreeApplePay interface {
	Create(ctx context.Context, client BraintreeClient) (ApplePayInstance, error)
}

// ApplePayValidation asks Braintree to validate the merchant.
type ApplePayValidation struct {
	ValidationURL string `json:"validationURL"`
	DisplayName   string `json:"displayName"`
}

// ApplePayInstance bridges an Apple Pay session and Braintree.
type ApplePayInstance interface {
	CreatePaymentRequest(req *ApplePayPaymentRequest) *ApplePayPaymentRequest
	PerformValidation(ctx context.Context, req *ApplePayValidation) (any, error)
	Tokenize(ctx context.Context, token any) (*BraintreeNonce, error)
}
