// Package sdk describes the provider SDK handles payment strategies drive.
// Handles are resolved from the page once their scripts are loaded.
package sdk

import (
	"context"

	"github.com/stripe/stripe-go/v76"
)

// StripeFactory is the Stripe global: it builds a client for a publishable key.
type StripeFactory func(publishableKey string) (Stripe, error)

// Stripe is a Stripe.js client bound to one publishable key.
type Stripe interface {
	Elements(options map[string]any) StripeElements
	CreatePaymentMethod(ctx context.Context, req *PaymentMethodRequest) (*stripe.PaymentMethod, error)
	CreateSource(ctx context.Context, req *SourceRequest) (*stripe.Source, error)
	ConfirmCardPayment(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error)
	HandleCardAction(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error)
	PaymentRequest(opts *PaymentRequestOptions) (PaymentRequest, error)
}

// StripeElements creates UI elements sharing one configuration.
type StripeElements interface {
	Create(elementType string, options map[string]any) (StripeElement, error)
}

// StripeElement is a mountable Stripe UI element.
type StripeElement interface {
	Type() string
	On(event string, handler func(ElementEvent))
	Mount(selector string) error
}

// Element event names.
const (
	EventChange = "change"
	EventReady  = "ready"
	EventFocus  = "focus"
	EventBlur   = "blur"
	EventEscape = "escape"
	EventClick  = "click"
)

// ElementEvent is delivered to element event handlers.
type ElementEvent struct {
	ElementType string         `json:"elementType"`
	Complete    bool           `json:"complete"`
	Empty       bool           `json:"empty"`
	Error       string         `json:"error,omitempty"`
	Value       map[string]any `json:"value,omitempty"`
}

// StripeAddress is the Stripe address shape.
type StripeAddress struct {
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      string `json:"state,omitempty"`
}

// BillingDetails is attached to created payment methods.
type BillingDetails struct {
	Name    string         `json:"name,omitempty"`
	Email   string         `json:"email,omitempty"`
	Phone   string         `json:"phone,omitempty"`
	Address *StripeAddress `json:"address,omitempty"`
}

// PaymentMethodRequest creates a payment method from a mounted element.
type PaymentMethodRequest struct {
	Type           string
	Element        StripeElement
	BillingDetails *BillingDetails
}

// SourceItem is one line of a source order.
type SourceItem struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Quantity    int64  `json:"quantity,omitempty"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
}

// SourceOwner is the owner block of a source.
type SourceOwner struct {
	Email   string         `json:"email,omitempty"`
	Name    string         `json:"name,omitempty"`
	Phone   string         `json:"phone,omitempty"`
	Address *StripeAddress `json:"address,omitempty"`
}

// SourceShipping is the shipping block of a source order.
type SourceShipping struct {
	Phone   string         `json:"phone,omitempty"`
	Address *StripeAddress `json:"address,omitempty"`
}

// KlarnaSourceOptions is the klarna block of a Klarna source.
type KlarnaSourceOptions struct {
	Product           string `json:"product"`
	PurchaseCountry   string `json:"purchase_country"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	ShippingFirstName string `json:"shipping_first_name,omitempty"`
	ShippingLastName  string `json:"shipping_last_name,omitempty"`
}

// SourceRequest creates a redirect-flow source.
type SourceRequest struct {
	Type      string
	Flow      string
	Amount    int64
	Currency  string
	ReturnURL string
	Owner     *SourceOwner
	Klarna    *KlarnaSourceOptions
	Items     []SourceItem
	Shipping  *SourceShipping
}

// PaymentRequestItem is a total or display line of a payment request.
type PaymentRequestItem struct {
	Label   string `json:"label"`
	Amount  int64  `json:"amount"`
	Pending bool   `json:"pending,omitempty"`
}

// ShippingOption is a selectable shipping service in a payment sheet.
type ShippingOption struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Amount int64  `json:"amount"`
}

// PaymentRequestData is the cart-derived part of a payment request.
type PaymentRequestData struct {
	Country         string               `json:"country,omitempty"`
	Currency        string               `json:"currency"`
	Total           PaymentRequestItem   `json:"total"`
	DisplayItems    []PaymentRequestItem `json:"displayItems,omitempty"`
	ShippingOptions []ShippingOption     `json:"shippingOptions,omitempty"`
}

// PaymentRequestOptions creates a payment request.
type PaymentRequestOptions struct {
	PaymentRequestData
	RequestPayerName  bool     `json:"requestPayerName"`
	RequestPayerEmail bool     `json:"requestPayerEmail"`
	RequestPayerPhone bool     `json:"requestPayerPhone"`
	RequestShipping   bool     `json:"requestShipping"`
	DisableWallets    []string `json:"disableWallets,omitempty"`
}

// PaymentRequestUpdate answers a shipping change event.
type PaymentRequestUpdate struct {
	Status string              `json:"status"`
	Data   *PaymentRequestData `json:"data,omitempty"`
}

// PaymentRequestAddress is the shipping address reported by a wallet.
type PaymentRequestAddress struct {
	Recipient   string   `json:"recipient,omitempty"`
	AddressLine []string `json:"addressLine,omitempty"`
	City        string   `json:"city,omitempty"`
	Region      string   `json:"region,omitempty"`
	PostalCode  string   `json:"postalCode,omitempty"`
	Country     string   `json:"country,omitempty"`
	Phone       string   `json:"phone,omitempty"`
}

// ShippingAddressChangeEvent fires when the shopper picks a new address.
type ShippingAddressChangeEvent struct {
	ShippingAddress *PaymentRequestAddress
	UpdateWith      func(PaymentRequestUpdate)
}

// ShippingOptionChangeEvent fires when the shopper picks a shipping option.
type ShippingOptionChangeEvent struct {
	ShippingOption *ShippingOption
	UpdateWith     func(PaymentRequestUpdate)
}

// PaymentMethodEvent fires when the wallet produced a payment method.
type PaymentMethodEvent struct {
	PayerName       string
	PayerEmail      string
	PaymentMethod   *stripe.PaymentMethod
	ShippingAddress *PaymentRequestAddress
	ShippingOption  *ShippingOption
	Complete        func(status string)
}

// CanMakePaymentResult lists the wallets available on the device.
type CanMakePaymentResult struct {
	ApplePay  bool `json:"applePay"`
	GooglePay bool `json:"googlePay"`
}

// PaymentRequest is a wallet payment sheet.
type PaymentRequest interface {
	CanMakePayment(ctx context.Context) (*CanMakePaymentResult, error)
	OnShippingAddressChange(handler func(ctx context.Context, event *ShippingAddressChangeEvent))
	OnShippingOptionChange(handler func(ctx context.Context, event *ShippingOptionChangeEvent))
	OnPaymentMethod(handler func(ctx context.Context, event *PaymentMethodEvent))
}
