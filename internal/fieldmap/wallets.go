package fieldmap

import (
	"github.com/stripe/stripe-go/v76"

	"checkout-service/internal/models"
	"checkout-service/internal/sdk"
)

// GoogleAddress maps a Google Pay address to a cart address.
func GoogleAddress(a *sdk.GoogleAddress) models.Address {
	if a == nil {
		return models.Address{}
	}
	return models.Address{
		Name:     a.Name,
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.Locality,
		State:    a.AdministrativeArea,
		Zip:      a.PostalCode,
		Country:  a.CountryCode,
		Phone:    a.PhoneNumber,
	}
}

// ApplePayContact maps an Apple Pay contact to a cart address.
func ApplePayContact(c *sdk.ApplePayContact) models.Address {
	if c == nil {
		return models.Address{}
	}
	return models.Address{
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		Address1:  line(c.AddressLines, 0),
		Address2:  line(c.AddressLines, 1),
		City:      c.Locality,
		State:     c.AdministrativeArea,
		Zip:       c.PostalCode,
		Country:   c.CountryCode,
		Phone:     c.PhoneNumber,
	}
}

// PaymentRequestShipping maps a wallet shipping address to a cart address.
func PaymentRequestShipping(a *sdk.PaymentRequestAddress) models.Address {
	if a == nil {
		return models.Address{}
	}
	return models.Address{
		Name:     a.Recipient,
		Address1: line(a.AddressLine, 0),
		Address2: line(a.AddressLine, 1),
		City:     a.City,
		State:    a.Region,
		Zip:      a.PostalCode,
		Country:  a.Country,
		Phone:    a.Phone,
	}
}

// PaymentMethodBilling maps Stripe payment method billing details to a cart address.
func PaymentMethodBilling(details *stripe.PaymentMethodBillingDetails) models.Address {
	if details == nil {
		return models.Address{}
	}
	out := models.Address{Name: details.Name, Phone: details.Phone}
	if a := details.Address; a != nil {
		out.Address1 = a.Line1
		out.Address2 = a.Line2
		out.City = a.City
		out.State = a.State
		out.Zip = a.PostalCode
		out.Country = a.Country
	}
	return out
}

// PaymentMethodCard maps a Stripe card payment method to the cart card record.
func PaymentMethodCard(pm *stripe.PaymentMethod) *models.Card {
	card := &models.Card{Token: pm.ID}
	if c := pm.Card; c != nil {
		card.Brand = string(c.Brand)
		card.Last4 = c.Last4
		card.ExpMonth = int64(c.ExpMonth)
		card.ExpYear = int64(c.ExpYear)
		if checks := c.Checks; checks != nil {
			card.AddressCheck = string(checks.AddressLine1Check)
			card.CVCCheck = string(checks.CVCCheck)
			card.ZipCheck = string(checks.AddressPostalCodeCheck)
		}
	}
	return card
}

// PayPalShipping maps an approved PayPal order's shipping to a cart address.
func PayPalShipping(s *sdk.PayPalShipping) *models.Address {
	if s == nil {
		return nil
	}
	return &models.Address{
		Name:     s.Name.FullName,
		Address1: s.Address.AddressLine1,
		Address2: s.Address.AddressLine2,
		State:    s.Address.AdminArea1,
		City:     s.Address.AdminArea2,
		Zip:      s.Address.PostalCode,
		Country:  s.Address.CountryCode,
	}
}

func line(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
