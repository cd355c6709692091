package fieldmap

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/models"
	"checkout-service/internal/sdk"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleCart() *models.Cart {
	price := d("4.99")
	return &models.Cart{
		Currency:         "EUR",
		CaptureTotal:     d("30.50"),
		GrandTotal:       d("30.50"),
		TaxIncludedTotal: d("3.00"),
		ShipmentTotal:    d("4.99"),
		Items: []models.CartItem{
			{
				Product:       &models.Product{Name: "Mug", Slug: "mug"},
				Quantity:      2,
				Price:         d("12.00"),
				PriceTotal:    d("24.00"),
				DiscountEach:  d("1.00"),
				DiscountTotal: d("2.00"),
			},
		},
		Shipping: &models.Shipping{
			Address:     models.Address{FirstName: "Ada", LastName: "L", Address1: "1 Road", City: "Ghent", Zip: "9000", Country: "BE"},
			Price:       &price,
			ServiceName: "Express",
		},
		Billing: &models.Billing{
			Address: models.Address{Name: "Ada Lovelace", Phone: "+32", Address1: "2 Street", City: "Brussels", Zip: "1000", Country: "BE"},
		},
		Account:  &models.Account{Email: "ada@example.com", Name: "Ada"},
		Settings: &models.StoreSettings{Name: "Shop", Country: "BE", Locale: "nl-BE"},
	}
}

func TestStripeBillingDetails(t *testing.T) {
	details := StripeBillingDetails(sampleCart())

	assert.Equal(t, "Ada Lovelace", details.Name)
	assert.Equal(t, "+32", details.Phone)
	assert.Equal(t, "ada@example.com", details.Email)
	assert.Equal(t, &sdk.StripeAddress{City: "Brussels", Country: "BE", Line1: "2 Street", PostalCode: "1000"}, details.Address)
}

func TestStripeBillingDetails_OmitsEmptyAddress(t *testing.T) {
	details := StripeBillingDetails(&models.Cart{Billing: &models.Billing{Address: models.Address{Name: "X"}}})
	assert.Nil(t, details.Address)
	assert.Empty(t, details.Email)
}

func TestKlarnaSourceItems(t *testing.T) {
	items := KlarnaSourceItems(sampleCart())

	require.Len(t, items, 3)
	assert.Equal(t, sdk.SourceItem{Type: "sku", Description: "Mug", Quantity: 2, Currency: "eur", Amount: 2200}, items[0])
	assert.Equal(t, sdk.SourceItem{Type: "tax", Description: "Taxes", Currency: "eur", Amount: 300}, items[1])
	assert.Equal(t, sdk.SourceItem{Type: "shipping", Description: "Express", Currency: "eur", Amount: 499}, items[2])
}

func TestKlarnaSourceItems_NoShippingPrice(t *testing.T) {
	cart := sampleCart()
	cart.Shipping.Price = nil
	cart.TaxIncludedTotal = decimal.Zero

	items := KlarnaSourceItems(cart)
	require.Len(t, items, 1)
	assert.Equal(t, "sku", items[0].Type)
}

func TestKlarnaSourceRequest(t *testing.T) {
	req := KlarnaSourceRequest(sampleCart(), "https://shop.example/checkout")

	assert.Equal(t, "klarna", req.Type)
	assert.Equal(t, "redirect", req.Flow)
	assert.Equal(t, int64(3050), req.Amount)
	assert.Equal(t, "BE", req.Klarna.PurchaseCountry)
	assert.Equal(t, "Ada", req.Klarna.ShippingFirstName)
	assert.Equal(t, "ada@example.com", req.Owner.Email)
	assert.Equal(t, "Brussels", req.Owner.Address.City)
	assert.Equal(t, "Ghent", req.Shipping.Address.City)
}

func TestBancontactOwner_MergeOrder(t *testing.T) {
	cart := &models.Cart{
		Account: &models.Account{
			Email:    "a@example.com",
			Name:     "Account Name",
			Phone:    "111",
			Shipping: &models.Address{City: "AccountShipCity", Zip: "1"},
			Billing:  &models.Address{City: "AccountBillCity"},
		},
		Shipping: &models.Shipping{Address: models.Address{Country: "BE"}},
		Billing:  &models.Billing{Address: models.Address{Name: "Billing Name"}},
	}

	owner := BancontactOwner(cart)

	assert.Equal(t, "a@example.com", owner.Email)
	assert.Equal(t, "Billing Name", owner.Name)
	assert.Equal(t, "111", owner.Phone)
	assert.Equal(t, &sdk.StripeAddress{City: "AccountBillCity", Country: "BE", PostalCode: "1"}, owner.Address)
}

func TestBancontactOwner_FallsBackToAccountName(t *testing.T) {
	owner := BancontactOwner(&models.Cart{Account: &models.Account{Name: "Only Account"}})
	assert.Equal(t, "Only Account", owner.Name)
	assert.Nil(t, owner.Address)
}

func TestKlarnaOrderLines(t *testing.T) {
	lines := KlarnaOrderLines(sampleCart())

	require.Len(t, lines, 3)
	assert.Equal(t, OrderLine{Type: "physical", Name: "Mug", Reference: "mug", Quantity: 2, UnitPrice: 1100, TotalAmount: 2200}, lines[0])
	assert.Equal(t, "sales_tax", lines[1].Type)
	assert.Equal(t, int64(300), lines[1].TotalAmount)
	assert.Equal(t, "shipping_fee", lines[2].Type)
	assert.Equal(t, "Express", lines[2].Name)
}

func TestKlarnaSessionData(t *testing.T) {
	session, err := KlarnaSessionData(sampleCart(), "https://shop.example/checkout")
	require.NoError(t, err)

	assert.Equal(t, "nl-BE", session.Locale)
	assert.Equal(t, "BE", session.PurchaseCountry)
	assert.Equal(t, int64(3050), session.OrderAmount)
	assert.Equal(t, "Brussels", session.BillingAddress.City)
	assert.Equal(t, "2 Street", session.BillingAddress.StreetAddress)
	assert.Equal(t, "ada@example.com", session.ShippingAddress.Email)
	assert.Equal(t, "Ada", session.ShippingAddress.GivenName)
	assert.Equal(t, "https://shop.example/checkout?gateway=klarna_direct&sid={{session_id}}", session.MerchantURLs.Back)
	assert.Equal(t, "https://shop.example/checkout?gateway=klarna_direct&sid={{session_id}}&authorization_token={{authorization_token}}", session.MerchantURLs.Success)

	var lines []OrderLine
	require.NoError(t, json.Unmarshal([]byte(session.OrderLines), &lines))
	assert.Len(t, lines, 3)
}

func TestKlarnaSessionData_LocaleDefault(t *testing.T) {
	session, err := KlarnaSessionData(&models.Cart{}, "https://shop.example/")
	require.NoError(t, err)
	assert.Equal(t, "en-US", session.Locale)
	assert.Equal(t, "[]", session.OrderLines)
}

func TestStripePaymentRequestData(t *testing.T) {
	cart := sampleCart()
	cart.ShipmentRating = &models.ShipmentRating{Services: []models.ShipmentService{
		{ID: "express", Name: "Express", Description: "1 day", Price: d("4.99")},
	}}

	data := StripePaymentRequestData(cart)

	assert.Equal(t, "eur", data.Currency)
	assert.Equal(t, "BE", data.Country)
	assert.Equal(t, sdk.PaymentRequestItem{Label: "Shop", Amount: 3050, Pending: true}, data.Total)
	require.Len(t, data.DisplayItems, 3)
	assert.Equal(t, []sdk.ShippingOption{{ID: "express", Label: "Express", Detail: "1 day", Amount: 499}}, data.ShippingOptions)
}

func TestWalletAddressMappings(t *testing.T) {
	g := GoogleAddress(&sdk.GoogleAddress{Name: "G", Address1: "a1", Locality: "City", AdministrativeArea: "ST", PostalCode: "Z", CountryCode: "US", PhoneNumber: "1"})
	assert.Equal(t, models.Address{Name: "G", Address1: "a1", City: "City", State: "ST", Zip: "Z", Country: "US", Phone: "1"}, g)

	a := ApplePayContact(&sdk.ApplePayContact{GivenName: "A", FamilyName: "B", AddressLines: []string{"l1"}, Locality: "C"})
	assert.Equal(t, models.Address{FirstName: "A", LastName: "B", Address1: "l1", City: "C"}, a)

	s := PaymentRequestShipping(&sdk.PaymentRequestAddress{Recipient: "R", AddressLine: []string{"x", "y"}, Region: "R1"})
	assert.Equal(t, models.Address{Name: "R", Address1: "x", Address2: "y", State: "R1"}, s)

	assert.Nil(t, PayPalShipping(nil))
}
