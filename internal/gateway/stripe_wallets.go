package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"

	"checkout-service/internal/fieldmap"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

const (
	stripeGoogleVersion = "2018-10-31"
	applePayButtonID    = "applepay-button"
)

// StripeGoogle pays with Google Pay, tokenized by Stripe.
type StripeGoogle struct {
	googleBase
}

func NewStripeGoogle(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings, err := requireCard(models.MethodGoogle, methods)
	if err != nil {
		return nil, err
	}
	if settings.PublishableKey == "" {
		return nil, NewGatewayError(models.GatewayStripe, codeInvalidConfig, "Stripe publishable key is not defined")
	}
	return &StripeGoogle{
		googleBase: googleBase{
			Base: newBase(models.MethodGoogle, models.GatewayStripe, deps, params, settings),
			tokenization: &sdk.GoogleTokenizationSpecification{
				Type: "PAYMENT_GATEWAY",
				Parameters: map[string]string{
					"gateway":               "stripe",
					"stripe:version":        stripeGoogleVersion,
					"stripe:publishableKey": settings.PublishableKey,
				},
			},
		},
	}, nil
}

func (s *StripeGoogle) Scripts() []scripts.Script {
	return []scripts.Script{scripts.ID(scripts.GooglePay)}
}

func (s *StripeGoogle) CreateElements(ctx context.Context) error {
	return s.render(ctx, s.pay)
}

func (s *StripeGoogle) pay(ctx context.Context) error {
	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	data, err := client.LoadPaymentData(ctx, s.paymentDataRequest(cart))
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var token stripe.Token
	if err := json.Unmarshal([]byte(data.PaymentMethodData.TokenizationData.Token), &token); err != nil {
		return fmt.Errorf("failed to parse Google Pay token: %w", err)
	}
	card := &models.Card{Token: token.ID, Gateway: models.GatewayStripe}
	if token.Card != nil {
		card.Brand = string(token.Card.Brand)
		card.Last4 = token.Card.Last4
		card.ExpMonth = token.Card.ExpMonth
		card.ExpYear = token.Card.ExpYear
	}

	update := s.cartUpdate(cart, data, &models.Billing{Method: models.MethodCard, Card: card})
	if _, err := s.updateCart(ctx, update); err != nil {
		return err
	}
	s.OnSuccess(nil)
	return nil
}

// StripeApple pays with Apple Pay through a Stripe payment request button.
type StripeApple struct {
	stripeBase
}

func NewStripeApple(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings, err := requireCard(models.MethodApple, methods)
	if err != nil {
		return nil, err
	}
	return &StripeApple{
		stripeBase: stripeBase{newBase(models.MethodApple, models.GatewayStripe, deps, params, settings)},
	}, nil
}

func (s *StripeApple) CreateElements(ctx context.Context) error {
	container, err := s.container(s.params.ElementIDOr(applePayButtonID))
	if err != nil {
		return err
	}

	domain := s.deps.Page.Location().Hostname()
	ok, err := s.authorizeGateway(ctx, map[string]string{"applepay_domain": domain}, nil)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(s.gateway, codeInvalidConfig, fmt.Sprintf("%s domain is not verified", domain))
	}

	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := s.stripe()
	if err != nil {
		return err
	}

	request, err := client.PaymentRequest(&sdk.PaymentRequestOptions{
		PaymentRequestData: *fieldmap.StripePaymentRequestData(cart),
		RequestPayerName:   s.params.Require.Name,
		RequestPayerEmail:  s.params.Require.Email,
		RequestPayerPhone:  s.params.Require.Phone,
		RequestShipping:    s.params.Require.Shipping,
		DisableWallets:     []string{"googlePay", "browserCard", "link"},
	})
	if err != nil {
		return err
	}

	available, err := request.CanMakePayment(ctx)
	if err != nil {
		return err
	}
	if available == nil || !available.ApplePay {
		return NewGatewayError(s.gateway, codeDeviceUnsupported, "This device is not capable of making Apple Pay payments")
	}

	request.OnShippingAddressChange(s.shippingAddressChanged)
	request.OnShippingOptionChange(s.shippingOptionChanged)
	request.OnPaymentMethod(func(ctx context.Context, event *sdk.PaymentMethodEvent) {
		if err := s.paymentMethodReceived(ctx, cart, event); err != nil {
			event.Complete("fail")
			s.OnError(err)
			return
		}
		event.Complete("success")
		s.OnSuccess(nil)
	})

	button, err := client.Elements(nil).Create("paymentRequestButton", map[string]any{
		"paymentRequest": request,
		"style": map[string]any{
			"paymentRequestButton": map[string]any{
				"type":   s.params.StyleString("type", "default"),
				"theme":  s.params.StyleString("theme", "dark"),
				"height": s.params.StyleString("height", "40px"),
			},
		},
		"classes": s.params.Classes,
	})
	if err != nil {
		return fmt.Errorf("failed to create payment request button: %w", err)
	}
	return button.Mount("#" + container.ID())
}

func (s *StripeApple) shippingAddressChanged(ctx context.Context, event *sdk.ShippingAddressChangeEvent) {
	cart, err := s.updateCart(ctx, &models.CartUpdate{
		Shipping: &models.ShippingUpdate{
			Address: fieldmap.PaymentRequestShipping(event.ShippingAddress),
			Service: models.JSONNull,
		},
		ShipmentRating: models.JSONNull,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to apply wallet shipping address")
	}
	if cart == nil {
		event.UpdateWith(sdk.PaymentRequestUpdate{Status: "invalid_shipping_address"})
		return
	}
	event.UpdateWith(sdk.PaymentRequestUpdate{Status: "success", Data: fieldmap.StripePaymentRequestData(cart)})
}

func (s *StripeApple) shippingOptionChanged(ctx context.Context, event *sdk.ShippingOptionChangeEvent) {
	var service string
	if event.ShippingOption != nil {
		service = event.ShippingOption.ID
	}
	cart, err := s.updateCart(ctx, &models.CartUpdate{
		Shipping: &models.ShippingUpdate{Service: models.JSONString(service)},
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to apply wallet shipping option")
	}
	if cart == nil {
		event.UpdateWith(sdk.PaymentRequestUpdate{Status: "fail"})
		return
	}
	event.UpdateWith(sdk.PaymentRequestUpdate{Status: "success", Data: fieldmap.StripePaymentRequestData(cart)})
}

func (s *StripeApple) paymentMethodReceived(ctx context.Context, cart *models.Cart, event *sdk.PaymentMethodEvent) error {
	if event.PaymentMethod == nil {
		return NewGatewayError(s.gateway, codeMissingIntent, "Apple Pay payment method is not defined")
	}
	card := fieldmap.PaymentMethodCard(event.PaymentMethod)
	card.Gateway = models.GatewayStripe

	billing := &models.Billing{
		Address: fieldmap.PaymentMethodBilling(event.PaymentMethod.BillingDetails),
		Method:  models.MethodCard,
		Card:    card,
	}

	update := &models.CartUpdate{Billing: billing}
	if needsAccount(cart) {
		update.Account = &models.Account{Name: event.PayerName, Email: event.PayerEmail}
	}
	if s.params.Require.Shipping {
		shipping := &models.ShippingUpdate{Address: fieldmap.PaymentRequestShipping(event.ShippingAddress)}
		if event.ShippingOption != nil {
			shipping.Service = models.JSONString(event.ShippingOption.ID)
		}
		update.Shipping = shipping
	}

	_, err := s.updateCart(ctx, update)
	return err
}
