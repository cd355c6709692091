package scripts

import (
	"net/url"
)

// Script IDs understood by the loader.
const (
	StripeJS                   = "stripe-js"
	PayPalSDK                  = "paypal-sdk"
	GooglePay                  = "google-pay"
	BraintreeWeb               = "braintree-web"
	BraintreePayPalSDK         = "braintree-paypal-sdk"
	BraintreeWebPayPalCheckout = "braintree-web-paypal-checkout"
	BraintreeGooglePayment     = "braintree-google-payment"
	BraintreeApplePayment      = "braintree-apple-payment"
	AmazonCheckout             = "amazon-checkout"
)

// Globals installed by provider scripts.
const (
	GlobalStripe                  = "Stripe"
	GlobalPayPal                  = "paypal"
	GlobalGoogle                  = "google"
	GlobalBraintree               = "braintree"
	GlobalBraintreePayPalCheckout = "braintree.paypalCheckout"
	GlobalBraintreeGooglePayment  = "braintree.googlePayment"
	GlobalBraintreeApplePay       = "braintree.applePay"
	GlobalAmazon                  = "amazon"
	GlobalApplePaySession         = "ApplePaySession"
)

const (
	braintreeWebBase       = "https://js.braintreegateway.com/web/3.73.1/js/"
	paypalPartnerAttribute = "SwellCommerce_SP"
)

// Script is a script request: an ID plus parameters for its URL.
type Script struct {
	ID     string
	Params map[string]string
}

// ID returns a parameterless script request.
func ID(id string) Script {
	return Script{ID: id}
}

type handler struct {
	global  string
	library string
	src     func(params map[string]string) string
	attrs   func(params map[string]string) map[string]string
	// requires names a script whose global must exist before this one is
	// injected. Braintree components attach to the braintree global.
	requires string
}

func static(src string) func(map[string]string) string {
	return func(map[string]string) string { return src }
}

func paypalSrc(extra url.Values) func(map[string]string) string {
	return func(params map[string]string) string {
		q := url.Values{}
		q.Set("client-id", params["client_id"])
		if merchantID := params["merchant_id"]; merchantID != "" {
			q.Set("merchant-id", merchantID)
		}
		for k, v := range extra {
			q[k] = v
		}
		return "https://www.paypal.com/sdk/js?" + q.Encode()
	}
}

func paypalAttrs(map[string]string) map[string]string {
	return map[string]string{"data-partner-attribution-id": paypalPartnerAttribute}
}

var handlers = map[string]handler{
	StripeJS: {
		global:  GlobalStripe,
		library: "Stripe",
		src:     static("https://js.stripe.com/v3/"),
	},
	PayPalSDK: {
		global:  GlobalPayPal,
		library: "PayPal",
		src:     paypalSrc(url.Values{"intent": {"authorize"}, "commit": {"false"}}),
		attrs:   paypalAttrs,
	},
	BraintreePayPalSDK: {
		global:  GlobalPayPal,
		library: "PayPal",
		src:     paypalSrc(url.Values{"vault": {"true"}}),
		attrs:   paypalAttrs,
	},
	GooglePay: {
		global:  GlobalGoogle,
		library: "Google",
		src:     static("https://pay.google.com/gp/p/js/pay.js"),
	},
	BraintreeWeb: {
		global:  GlobalBraintree,
		library: "Braintree",
		src:     static(braintreeWebBase + "client.min.js"),
	},
	BraintreeWebPayPalCheckout: {
		global:   GlobalBraintreePayPalCheckout,
		library:  "Braintree PayPal Checkout",
		src:      static(braintreeWebBase + "paypal-checkout.min.js"),
		requires: BraintreeWeb,
	},
	BraintreeGooglePayment: {
		global:   GlobalBraintreeGooglePayment,
		library:  "Braintree Google Payment",
		src:      static(braintreeWebBase + "google-payment.min.js"),
		requires: BraintreeWeb,
	},
	BraintreeApplePayment: {
		global:   GlobalBraintreeApplePay,
		library:  "Braintree Apple Payment",
		src:      static(braintreeWebBase + "apple-pay.min.js"),
		requires: BraintreeWeb,
	},
	AmazonCheckout: {
		global:  GlobalAmazon,
		library: "Amazon",
		src:     static("https://static-na.payments-amazon.com/checkout.js"),
	},
}

// Known reports whether id has a handler.
func Known(id string) bool {
	_, ok := handlers[id]
	return ok
}
