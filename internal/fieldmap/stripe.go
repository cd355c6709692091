// Package fieldmap projects cart data onto the shapes providers expect.
// Empty source values are never copied.
package fieldmap

import (
	"strings"

	"github.com/shopspring/decimal"

	"checkout-service/internal/models"
	"checkout-service/internal/money"
	"checkout-service/internal/sdk"
)

// StripeAddress maps a cart address to Stripe's address shape. It returns
// nil when no field is set.
func StripeAddress(a *models.Address) *sdk.StripeAddress {
	if a == nil {
		return nil
	}
	out := &sdk.StripeAddress{
		City:       a.City,
		Country:    a.Country,
		Line1:      a.Address1,
		Line2:      a.Address2,
		PostalCode: a.Zip,
		State:      a.State,
	}
	if *out == (sdk.StripeAddress{}) {
		return nil
	}
	return out
}

// StripeBillingDetails builds payment method billing details from the cart
// billing and account email.
func StripeBillingDetails(cart *models.Cart) *sdk.BillingDetails {
	details := &sdk.BillingDetails{Email: cart.AccountEmail()}
	if b := cart.BillingAddress(); b != nil {
		details.Name = b.Name
		details.Phone = b.Phone
		details.Address = StripeAddress(b)
	}
	return details
}

func lowerCurrency(cart *models.Cart, fallback string) string {
	if cart.Currency == "" {
		return strings.ToLower(fallback)
	}
	return strings.ToLower(cart.Currency)
}

// KlarnaSourceItems builds the source order lines of a Klarna source: one
// sku line per item, then tax and shipping lines when present.
func KlarnaSourceItems(cart *models.Cart) []sdk.SourceItem {
	currency := lowerCurrency(cart, "eur")
	items := make([]sdk.SourceItem, 0, len(cart.Items)+2)

	for _, item := range cart.Items {
		items = append(items, sdk.SourceItem{
			Type:        "sku",
			Description: item.ProductName(),
			Quantity:    item.Quantity,
			Currency:    currency,
			Amount:      money.Cents(item.PriceTotal.Sub(item.DiscountTotal)),
		})
	}

	if !cart.TaxIncludedTotal.IsZero() {
		items = append(items, sdk.SourceItem{
			Type:        "tax",
			Description: "Taxes",
			Currency:    currency,
			Amount:      money.Cents(cart.TaxIncludedTotal),
		})
	}

	if cart.Shipping.HasPrice() {
		items = append(items, sdk.SourceItem{
			Type:        "shipping",
			Description: cart.Shipping.ServiceName,
			Currency:    currency,
			Amount:      money.Cents(cart.ShipmentTotal),
		})
	}

	return items
}

// klarnaBillingSource picks billing, then account billing, then shipping.
func klarnaBillingSource(cart *models.Cart) *models.Address {
	if b := cart.BillingAddress(); !b.IsZero() {
		return b
	}
	if cart.Account != nil && !cart.Account.Billing.IsZero() {
		return cart.Account.Billing
	}
	return cart.ShippingAddress()
}

// KlarnaSourceRequest builds a redirect-flow Klarna source for cart.
func KlarnaSourceRequest(cart *models.Cart, returnURL string) *sdk.SourceRequest {
	country := cart.StoreCountry()
	if country == "" {
		country = "DE"
	}
	klarna := &sdk.KlarnaSourceOptions{
		Product:         "payment",
		PurchaseCountry: country,
	}

	req := &sdk.SourceRequest{
		Type:      "klarna",
		Flow:      "redirect",
		Amount:    money.Cents(cart.GrandTotal),
		Currency:  lowerCurrency(cart, "eur"),
		ReturnURL: returnURL,
		Klarna:    klarna,
		Items:     KlarnaSourceItems(cart),
	}

	if shipping := cart.ShippingAddress(); shipping != nil {
		klarna.ShippingFirstName = shipping.FirstName
		klarna.ShippingLastName = shipping.LastName
		s := &sdk.SourceShipping{Phone: shipping.Phone, Address: StripeAddress(shipping)}
		if s.Phone != "" || s.Address != nil {
			req.Shipping = s
		}
	}

	if billing := klarnaBillingSource(cart); billing != nil {
		klarna.FirstName = billing.FirstName
		klarna.LastName = billing.LastName
		owner := &sdk.SourceOwner{Email: cart.AccountEmail(), Address: StripeAddress(billing)}
		if owner.Email != "" || owner.Address != nil {
			req.Owner = owner
		}
	} else if email := cart.AccountEmail(); email != "" {
		req.Owner = &sdk.SourceOwner{Email: email}
	}

	return req
}

// BancontactOwner merges account shipping, account billing, shipping and
// billing, in that order, into the source owner.
func BancontactOwner(cart *models.Cart) *sdk.SourceOwner {
	var merged models.Address
	account := cart.Account
	if account == nil {
		account = &models.Account{}
	}
	merged = merged.Merge(account.Shipping)
	merged = merged.Merge(account.Billing)
	merged = merged.Merge(cart.ShippingAddress())
	merged = merged.Merge(cart.BillingAddress())

	owner := &sdk.SourceOwner{
		Email:   account.Email,
		Name:    merged.Name,
		Phone:   merged.Phone,
		Address: StripeAddress(&merged),
	}
	if owner.Name == "" {
		owner.Name = account.Name
	}
	if owner.Phone == "" {
		owner.Phone = account.Phone
	}
	return owner
}

// BancontactSourceRequest builds a Bancontact redirect source for cart.
func BancontactSourceRequest(cart *models.Cart, returnURL string) *sdk.SourceRequest {
	return &sdk.SourceRequest{
		Type:      "bancontact",
		Amount:    money.Cents(cart.GrandTotal),
		Currency:  lowerCurrency(cart, "eur"),
		ReturnURL: returnURL,
		Owner:     BancontactOwner(cart),
	}
}

// StripePaymentRequestData builds the wallet sheet contents for cart.
func StripePaymentRequestData(cart *models.Cart) *sdk.PaymentRequestData {
	currency := cart.Currency
	items := make([]sdk.PaymentRequestItem, 0, len(cart.Items)+2)
	for _, item := range cart.Items {
		items = append(items, sdk.PaymentRequestItem{
			Label:  item.ProductName(),
			Amount: money.ToMinorUnits(currency, item.PriceTotal.Sub(item.DiscountTotal)),
		})
	}
	if !cart.TaxIncludedTotal.IsZero() {
		items = append(items, sdk.PaymentRequestItem{
			Label:  "Taxes",
			Amount: money.ToMinorUnits(currency, cart.TaxIncludedTotal),
		})
	}
	if cart.Shipping.HasPrice() && !cart.ShipmentTotal.IsZero() {
		items = append(items, sdk.PaymentRequestItem{
			Label:  cart.Shipping.ServiceName,
			Amount: money.ToMinorUnits(currency, cart.ShipmentTotal),
		})
	}

	var options []sdk.ShippingOption
	if cart.ShipmentRating != nil {
		for _, service := range cart.ShipmentRating.Services {
			options = append(options, sdk.ShippingOption{
				ID:     service.ID,
				Label:  service.Name,
				Detail: service.Description,
				Amount: money.ToMinorUnits(currency, service.Price),
			})
		}
	}

	return &sdk.PaymentRequestData{
		Country:  cart.StoreCountry(),
		Currency: strings.ToLower(currency),
		Total: sdk.PaymentRequestItem{
			Label:   cart.StoreName(),
			Amount:  money.ToMinorUnits(currency, cart.CaptureTotal),
			Pending: true,
		},
		DisplayItems:    items,
		ShippingOptions: options,
	}
}

// FormatAmount renders amount with two decimals for providers that take
// string amounts.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
