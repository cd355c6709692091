package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// JSONNull clears a field in a partial cart update.
var JSONNull = json.RawMessage("null")

// JSONString encodes s as a raw JSON value for partial cart updates.
func JSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// Address is the address shape shared by cart billing, shipping and account records.
type Address struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// IsZero reports whether no address field is set.
func (a *Address) IsZero() bool {
	return a == nil || *a == Address{}
}

// Merge overlays the non-empty fields of other onto a copy of a.
func (a Address) Merge(other *Address) Address {
	if other == nil {
		return a
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.Name, other.Name)
	set(&a.FirstName, other.FirstName)
	set(&a.LastName, other.LastName)
	set(&a.Address1, other.Address1)
	set(&a.Address2, other.Address2)
	set(&a.City, other.City)
	set(&a.State, other.State)
	set(&a.Zip, other.Zip)
	set(&a.Country, other.Country)
	set(&a.Phone, other.Phone)
	return a
}

// Product is the product summary embedded in a cart item.
type Product struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Sku  string `json:"sku,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// CartItem is a single cart line.
type CartItem struct {
	ID            string          `json:"id,omitempty"`
	ProductID     string          `json:"product_id,omitempty"`
	Product       *Product        `json:"product,omitempty"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	PriceTotal    decimal.Decimal `json:"price_total"`
	DiscountEach  decimal.Decimal `json:"discount_each"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
}

// ProductName returns the item's product name, or empty when unknown.
func (i *CartItem) ProductName() string {
	if i.Product == nil {
		return ""
	}
	return i.Product.Name
}

// Shipping is the cart shipping block.
type Shipping struct {
	Address
	Price       *decimal.Decimal `json:"price,omitempty"`
	Service     string           `json:"service,omitempty"`
	ServiceName string           `json:"service_name,omitempty"`
}

// HasPrice reports whether a non-zero shipping price is set.
func (s *Shipping) HasPrice() bool {
	return s != nil && s.Price != nil && !s.Price.IsZero()
}

// ShipmentService is one rated shipping option.
type ShipmentService struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// ShipmentRating lists the shipping options rated for a cart.
type ShipmentRating struct {
	Services []ShipmentService `json:"services,omitempty"`
}

// Card is the tokenized card stored on the cart.
type Card struct {
	Token        string `json:"token,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Last4        string `json:"last4,omitempty"`
	ExpMonth     int64  `json:"exp_month,omitempty"`
	ExpYear      int64  `json:"exp_year,omitempty"`
	AddressCheck string `json:"address_check,omitempty"`
	CVCCheck     string `json:"cvc_check,omitempty"`
	ZipCheck     string `json:"zip_check,omitempty"`
	Gateway      string `json:"gateway,omitempty"`
}

// IntentRef correlates an in-flight gateway intent with the cart.
type IntentRef struct {
	ID         string           `json:"id,omitempty"`
	AuthAmount *decimal.Decimal `json:"auth_amount,omitempty"`
}

// BillingIntent holds per-gateway intent references.
type BillingIntent struct {
	Stripe      *IntentRef `json:"stripe,omitempty"`
	Quickpay    *IntentRef `json:"quickpay,omitempty"`
	Paysafecard *IntentRef `json:"paysafecard,omitempty"`
}

// TokenRef stores a provider token on the billing record.
type TokenRef struct {
	Token string `json:"token,omitempty"`
}

// PayPalBilling stores a PayPal approval on the billing record.
type PayPalBilling struct {
	Nonce   string `json:"nonce,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// WalletBilling stores a wallet nonce on the billing record.
type WalletBilling struct {
	Nonce   string `json:"nonce,omitempty"`
	Gateway string `json:"gateway,omitempty"`
}

// AmazonBilling stores the Amazon Pay checkout session.
type AmazonBilling struct {
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
}

// Billing is the cart billing block. All fields are optional so the same
// type doubles as a partial update.
type Billing struct {
	Address
	Method string         `json:"method,omitempty"`
	Card   *Card          `json:"card,omitempty"`
	Intent *BillingIntent `json:"intent,omitempty"`
	Ideal  *TokenRef      `json:"ideal,omitempty"`
	Klarna *TokenRef      `json:"klarna,omitempty"`
	PayPal *PayPalBilling `json:"paypal,omitempty"`
	Google *WalletBilling `json:"google,omitempty"`
	Apple  *WalletBilling `json:"apple,omitempty"`
	Amazon *AmazonBilling `json:"amazon,omitempty"`
}

// Account is the customer account attached to the cart.
type Account struct {
	ID             string   `json:"id,omitempty"`
	Email          string   `json:"email,omitempty"`
	Name           string   `json:"name,omitempty"`
	FirstName      string   `json:"first_name,omitempty"`
	LastName       string   `json:"last_name,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	StripeCustomer string   `json:"stripe_customer,omitempty"`
	Shipping       *Address `json:"shipping,omitempty"`
	Billing        *Address `json:"billing,omitempty"`
}

// Cart is the remote cart as seen by payment strategies.
type Cart struct {
	ID                   string          `json:"id,omitempty"`
	Currency             string          `json:"currency,omitempty"`
	DisplayLocale        string          `json:"display_locale,omitempty"`
	CaptureTotal         decimal.Decimal `json:"capture_total"`
	AuthTotal            decimal.Decimal `json:"auth_total"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
	SubTotal             decimal.Decimal `json:"sub_total"`
	TaxIncludedTotal     decimal.Decimal `json:"tax_included_total"`
	ShipmentTotal        decimal.Decimal `json:"shipment_total"`
	Items                []CartItem      `json:"items,omitempty"`
	Shipping             *Shipping       `json:"shipping,omitempty"`
	ShipmentRating       *ShipmentRating `json:"shipment_rating,omitempty"`
	Billing              *Billing        `json:"billing,omitempty"`
	Account              *Account        `json:"account,omitempty"`
	Settings             *StoreSettings  `json:"settings,omitempty"`
	SubscriptionDelivery bool            `json:"subscription_delivery,omitempty"`
}

// AccountEmail returns the account email, or empty when there is no account.
func (c *Cart) AccountEmail() string {
	if c.Account == nil {
		return ""
	}
	return c.Account.Email
}

// BillingAddress returns the billing address, or nil.
func (c *Cart) BillingAddress() *Address {
	if c.Billing == nil {
		return nil
	}
	return &c.Billing.Address
}

// ShippingAddress returns the shipping address, or nil.
func (c *Cart) ShippingAddress() *Address {
	if c.Shipping == nil {
		return nil
	}
	return &c.Shipping.Address
}

// StoreName returns the store name from embedded settings.
func (c *Cart) StoreName() string {
	if c.Settings == nil {
		return ""
	}
	return c.Settings.Name
}

// StoreCountry returns the store country from embedded settings.
func (c *Cart) StoreCountry() string {
	if c.Settings == nil {
		return ""
	}
	return c.Settings.Country
}

// IntentID returns the in-flight intent ID recorded for gateway.
func (c *Cart) IntentID(gateway string) string {
	if c.Billing == nil || c.Billing.Intent == nil {
		return ""
	}
	var ref *IntentRef
	switch gateway {
	case "stripe":
		ref = c.Billing.Intent.Stripe
	case "quickpay":
		ref = c.Billing.Intent.Quickpay
	case "paysafecard":
		ref = c.Billing.Intent.Paysafecard
	}
	if ref == nil {
		return ""
	}
	return ref.ID
}

// ShippingUpdate is a partial shipping update. Service is raw so it can be
// cleared with JSONNull.
type ShippingUpdate struct {
	Address
	Service json.RawMessage `json:"service,omitempty"`
}

// CartUpdate is a partial cart update merged by the store API.
type CartUpdate struct {
	Account        *Account        `json:"account,omitempty"`
	Billing        *Billing        `json:"billing,omitempty"`
	Shipping       *ShippingUpdate `json:"shipping,omitempty"`
	ShipmentRating json.RawMessage `json:"shipment_rating,omitempty"`
}
