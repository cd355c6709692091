package scripts

import (
	"checkout-service/internal/host"
	"checkout-service/internal/sdk"
)

// Libraries resolves typed provider handles from page globals.
type Libraries struct {
	page host.Page
}

// NewLibraries returns a resolver over page.
func NewLibraries(page host.Page) *Libraries {
	return &Libraries{page: page}
}

func lookup[T any](page host.Page, global, library string) (T, error) {
	var zero T
	v, ok := page.Global(global)
	if !ok || v == nil {
		return zero, &LibraryNotLoadedError{Library: library}
	}
	handle, ok := v.(T)
	if !ok {
		return zero, &LibraryNotLoadedError{Library: library}
	}
	return handle, nil
}

func (l *Libraries) Stripe() (sdk.StripeFactory, error) {
	return lookup[sdk.StripeFactory](l.page, GlobalStripe, "Stripe")
}

func (l *Libraries) PayPal() (sdk.PayPal, error) {
	return lookup[sdk.PayPal](l.page, GlobalPayPal, "PayPal")
}

func (l *Libraries) Google() (sdk.Google, error) {
	return lookup[sdk.Google](l.page, GlobalGoogle, "Google")
}

func (l *Libraries) Braintree() (sdk.Braintree, error) {
	return lookup[sdk.Braintree](l.page, GlobalBraintree, "Braintree")
}

func (l *Libraries) BraintreePayPalCheckout() (sdk.BraintreePayPalCheckout, error) {
	return lookup[sdk.BraintreePayPalCheckout](l.page, GlobalBraintreePayPalCheckout, "Braintree PayPal Checkout")
}

func (l *Libraries) BraintreeGooglePayment() (sdk.BraintreeGooglePayment, error) {
	return lookup[sdk.BraintreeGooglePayment](l.page, GlobalBraintreeGooglePayment, "Braintree Google Payment")
}

func (l *Libraries) BraintreeApplePay() (sdk.BraintreeApplePay, error) {
	return lookup[sdk.BraintreeApplePay](l.page, GlobalBraintreeApplePay, "Braintree Apple Payment")
}

func (l *Libraries) ApplePay() (sdk.ApplePay, error) {
	return lookup[sdk.ApplePay](l.page, GlobalApplePaySession, "Apple")
}

func (l *Libraries) Amazon() (sdk.AmazonPay, error) {
	return lookup[sdk.AmazonPay](l.page, GlobalAmazon, "Amazon")
}
