package gateway

import (
	"context"

	"checkout-service/internal/fieldmap"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/sdk"
)

const (
	googleAPIVersion      = 2
	googleAPIVersionMinor = 0
	googleButtonID        = "googlepay-button"
)

var (
	googleAuthMethods  = []string{"PAN_ONLY", "CRYPTOGRAM_3DS"}
	googleCardNetworks = []string{"AMEX", "DISCOVER", "INTERAC", "JCB", "MASTERCARD", "VISA"}
)

// googleBase holds the Google Pay flow shared by the Stripe and Braintree
// strategies. They differ in tokenization and in the cart billing they write.
type googleBase struct {
	Base
	tokenization *sdk.GoogleTokenizationSpecification
}

func (g *googleBase) environment() string {
	if g.settings.IsLive() {
		return sdk.GoogleEnvironmentProduction
	}
	return sdk.GoogleEnvironmentTest
}

func (g *googleBase) client() (sdk.GooglePaymentsClient, error) {
	return g.deps.Clients.Google(g.deps.Libraries, g.environment())
}

func (g *googleBase) allowedPaymentMethods() []sdk.GooglePaymentMethod {
	return []sdk.GooglePaymentMethod{{
		Type: "CARD",
		Parameters: sdk.GoogleCardParameters{
			AllowedAuthMethods:     googleAuthMethods,
			AllowedCardNetworks:    googleCardNetworks,
			BillingAddressRequired: true,
			BillingAddressParameters: &sdk.GoogleBillingAddressParameters{
				Format:              "FULL",
				PhoneNumberRequired: true,
			},
		},
		TokenizationSpecification: g.tokenization,
	}}
}

// render checks device readiness and appends the Google Pay button. A click
// runs pay; its failure goes to OnError.
func (g *googleBase) render(ctx context.Context, pay func(ctx context.Context) error) error {
	if g.settings.MerchantID == "" {
		return NewGatewayError(g.gateway, codeInvalidConfig, "Google merchant ID is not defined")
	}

	client, err := g.client()
	if err != nil {
		return err
	}
	ready, err := client.IsReadyToPay(ctx, &sdk.GoogleIsReadyToPayRequest{
		APIVersion:                    googleAPIVersion,
		APIVersionMinor:               googleAPIVersionMinor,
		AllowedPaymentMethods:         g.allowedPaymentMethods(),
		ExistingPaymentMethodRequired: true,
	})
	if err != nil {
		return err
	}
	if !ready {
		return NewGatewayError(g.gateway, codeDeviceUnsupported, "This device is not capable of making Google Pay payments")
	}

	container, err := g.container(g.params.ElementIDOr(googleButtonID))
	if err != nil {
		return err
	}
	if class := g.params.BaseClass(); class != "" {
		container.AddClass(class)
	}

	locale := g.params.Locale
	if locale == "" {
		locale = "en"
	}
	button := client.CreateButton(&sdk.GoogleButtonOptions{
		ButtonColor:    g.params.StyleString("color", "black"),
		ButtonType:     g.params.StyleString("type", "buy"),
		ButtonSizeMode: g.params.StyleString("sizeMode", "fill"),
		ButtonLocale:   locale,
		OnClick: func(ctx context.Context) {
			if err := pay(ctx); err != nil {
				g.OnError(err)
			}
		},
	})
	if button == nil {
		button = &host.Node{Kind: "google-pay-button"}
	}
	container.Append(button)
	return nil
}

func (g *googleBase) paymentDataRequest(cart *models.Cart) *sdk.GooglePaymentDataRequest {
	return &sdk.GooglePaymentDataRequest{
		APIVersion:      googleAPIVersion,
		APIVersionMinor: googleAPIVersionMinor,
		TransactionInfo: sdk.GoogleTransactionInfo{
			CurrencyCode:     cart.Currency,
			TotalPrice:       cart.CaptureTotal.String(),
			TotalPriceStatus: "ESTIMATED",
		},
		AllowedPaymentMethods:   g.allowedPaymentMethods(),
		EmailRequired:           g.params.Require.Email,
		ShippingAddressRequired: g.params.Require.Shipping,
		ShippingAddressParameters: sdk.GoogleShippingAddressParameters{
			PhoneNumberRequired: g.params.Require.Phone,
		},
		MerchantInfo: sdk.GoogleMerchantInfo{
			MerchantName: cart.StoreName(),
			MerchantID:   g.settings.MerchantID,
		},
	}
}

// cartUpdate builds the update written after the sheet completes: billing
// with the payer's billing address, the account when the cart has none, and
// shipping when it was requested.
func (g *googleBase) cartUpdate(cart *models.Cart, data *sdk.GooglePaymentData, billing *models.Billing) *models.CartUpdate {
	billingAddress := data.PaymentMethodData.Info.BillingAddress
	billing.Address = fieldmap.GoogleAddress(billingAddress)

	update := &models.CartUpdate{Billing: billing}
	if needsAccount(cart) {
		name := ""
		if data.ShippingAddress != nil {
			name = data.ShippingAddress.Name
		} else if billingAddress != nil {
			name = billingAddress.Name
		}
		update.Account = &models.Account{Email: data.Email, Name: name}
	}
	if g.params.Require.Shipping {
		update.Shipping = &models.ShippingUpdate{Address: fieldmap.GoogleAddress(data.ShippingAddress)}
	}
	return update
}
