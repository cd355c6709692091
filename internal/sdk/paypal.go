package sdk

import "context"

// PayPal is the PayPal JS SDK global.
type PayPal interface {
	Buttons(opts *PayPalButtonsOptions) (PayPalButton, error)
}

// PayPalButton is a rendered PayPal smart button.
type PayPalButton interface {
	Render(selector string) error
}

// PayPalApproveData is delivered when the buyer approves the payment.
type PayPalApproveData struct {
	OrderID      string `json:"orderID,omitempty"`
	PayerID      string `json:"payerID,omitempty"`
	PaymentID    string `json:"paymentID,omitempty"`
	BillingToken string `json:"billingToken,omitempty"`
}

// PayPalAmount is an order amount.
type PayPalAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

// PayPalPurchaseUnit is one unit of an order request.
type PayPalPurchaseUnit struct {
	Amount PayPalAmount `json:"amount"`
}

// PayPalOrderRequest creates an order.
type PayPalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []PayPalPurchaseUnit `json:"purchase_units"`
}

// PayPalAddress is an order shipping address.
type PayPalAddress struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// PayPalShipping is the shipping block of an approved purchase unit.
type PayPalShipping struct {
	Name struct {
		FullName string `json:"full_name,omitempty"`
	} `json:"name"`
	Address PayPalAddress `json:"address"`
}

// PayPalOrder is an approved order.
type PayPalOrder struct {
	ID    string `json:"id"`
	Payer struct {
		EmailAddress string `json:"email_address,omitempty"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Shipping *PayPalShipping `json:"shipping,omitempty"`
	} `json:"purchase_units"`
}

// Shipping returns the shipping of the first purchase unit, if any.
func (o *PayPalOrder) Shipping() *PayPalShipping {
	if o == nil || len(o.PurchaseUnits) == 0 {
		return nil
	}
	return o.PurchaseUnits[0].Shipping
}

// PayPalActions are the order actions handed to button callbacks.
type PayPalActions interface {
	CreateOrder(ctx context.Context, req *PayPalOrderRequest) (string, error)
	GetOrder(ctx context.Context) (*PayPalOrder, error)
}

// PayPalButtonsOptions configures smart buttons. Exactly one of CreateOrder
// and CreateBillingAgreement is set.
type PayPalButtonsOptions struct {
	Locale                 string
	Style                  map[string]any
	CreateOrder            func(ctx context.Context, actions PayPalActions) (string, error)
	CreateBillingAgreement func(ctx context.Context) (string, error)
	OnApprove              func(ctx context.Context, data *PayPalApproveData, actions PayPalActions) error
	OnCancel               func()
	OnError                func(err error)
}
