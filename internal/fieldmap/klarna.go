package fieldmap

import (
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/money"
)

// KlarnaAddress is a Klarna Payments address.
type KlarnaAddress struct {
	GivenName      string `json:"given_name,omitempty"`
	FamilyName     string `json:"family_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	StreetAddress  string `json:"street_address,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	City           string `json:"city,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	Region         string `json:"region,omitempty"`
	Country        string `json:"country,omitempty"`
}

// OrderLine is a Klarna Payments order line. Amounts are in minor units.
type OrderLine struct {
	Type           string `json:"type"`
	Name           string `json:"name"`
	Reference      string `json:"reference,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	TotalAmount    int64  `json:"total_amount"`
	TaxRate        int64  `json:"tax_rate"`
	TotalTaxAmount int64  `json:"total_tax_amount"`
}

// MerchantURLs are the Klarna return targets.
type MerchantURLs struct {
	Success string `json:"success"`
	Back    string `json:"back"`
	Cancel  string `json:"cancel"`
	Error   string `json:"error"`
	Failure string `json:"failure"`
}

// KlarnaSession is the intent payload that opens a Klarna Payments session.
type KlarnaSession struct {
	Locale           string         `json:"locale"`
	PurchaseCountry  string         `json:"purchase_country,omitempty"`
	PurchaseCurrency string         `json:"purchase_currency,omitempty"`
	BillingAddress   *KlarnaAddress `json:"billing_address"`
	ShippingAddress  *KlarnaAddress `json:"shipping_address"`
	OrderAmount      int64          `json:"order_amount"`
	OrderLines       string         `json:"order_lines"`
	MerchantURLs     MerchantURLs   `json:"merchant_urls"`
}

// KlarnaSessionAddress maps a cart address; the account email is always added.
func KlarnaSessionAddress(a *models.Address, email string) *KlarnaAddress {
	out := &KlarnaAddress{Email: email}
	if a == nil {
		return out
	}
	out.GivenName = a.FirstName
	out.FamilyName = a.LastName
	out.City = a.City
	out.Country = a.Country
	out.Phone = a.Phone
	out.PostalCode = a.Zip
	out.StreetAddress = a.Address1
	out.StreetAddress2 = a.Address2
	out.Region = a.State
	return out
}

// KlarnaOrderLines builds physical item lines followed by tax and shipping lines.
func KlarnaOrderLines(cart *models.Cart) []OrderLine {
	lines := make([]OrderLine, 0, len(cart.Items)+2)
	for _, item := range cart.Items {
		line := OrderLine{
			Type:        "physical",
			Name:        item.ProductName(),
			Quantity:    item.Quantity,
			UnitPrice:   money.Cents(item.Price.Sub(item.DiscountEach)),
			TotalAmount: money.Cents(item.PriceTotal.Sub(item.DiscountTotal)),
		}
		if item.Product != nil {
			line.Reference = item.Product.Sku
			if line.Reference == "" {
				line.Reference = item.Product.Slug
			}
		}
		lines = append(lines, line)
	}

	if !cart.TaxIncludedTotal.IsZero() {
		amount := money.Cents(cart.TaxIncludedTotal)
		lines = append(lines, OrderLine{
			Type:        "sales_tax",
			Name:        "Taxes",
			Quantity:    1,
			UnitPrice:   amount,
			TotalAmount: amount,
		})
	}

	if cart.Shipping.HasPrice() {
		amount := money.Cents(cart.ShipmentTotal)
		lines = append(lines, OrderLine{
			Type:        "shipping_fee",
			Name:        cart.Shipping.ServiceName,
			Quantity:    1,
			UnitPrice:   amount,
			TotalAmount: amount,
		})
	}

	return lines
}

// KlarnaSessionData builds the session payload. baseURL is the page origin
// and path the shopper returns to.
func KlarnaSessionData(cart *models.Cart, baseURL string) (*KlarnaSession, error) {
	lines, err := json.Marshal(KlarnaOrderLines(cart))
	if err != nil {
		return nil, fmt.Errorf("failed to encode order lines: %w", err)
	}

	locale := cart.DisplayLocale
	if locale == "" && cart.Settings != nil {
		locale = cart.Settings.Locale
	}
	if locale == "" {
		locale = "en-US"
	}

	var country string
	if b := cart.BillingAddress(); b != nil {
		country = b.Country
	}
	if country == "" {
		if s := cart.ShippingAddress(); s != nil {
			country = s.Country
		}
	}

	returnURL := baseURL + "?gateway=klarna_direct&sid={{session_id}}"
	email := cart.AccountEmail()

	return &KlarnaSession{
		Locale:           locale,
		PurchaseCountry:  country,
		PurchaseCurrency: cart.Currency,
		BillingAddress:   KlarnaSessionAddress(cart.BillingAddress(), email),
		ShippingAddress:  KlarnaSessionAddress(cart.ShippingAddress(), email),
		OrderAmount:      money.Cents(cart.CaptureTotal),
		OrderLines:       string(lines),
		MerchantURLs: MerchantURLs{
			Success: returnURL + "&authorization_token={{authorization_token}}",
			Back:    returnURL,
			Cancel:  returnURL,
			Error:   returnURL,
			Failure: returnURL,
		},
	}, nil
}
