package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"

	"checkout-service/internal/fieldmap"
	"checkout-service/internal/models"
	"checkout-service/internal/money"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// Stripe element types.
const (
	elementCard       = "card"
	elementCardNumber = "cardNumber"
	elementCardExpiry = "cardExpiry"
	elementCardCvc    = "cardCvc"
	elementIDealBank  = "idealBank"
)

// stripeBase is shared by every strategy that drives Stripe.js.
type stripeBase struct {
	Base
}

func (s *stripeBase) Scripts() []scripts.Script {
	return []scripts.Script{scripts.ID(scripts.StripeJS)}
}

func (s *stripeBase) stripe() (sdk.Stripe, error) {
	return s.deps.Clients.Stripe(s.deps.Libraries, s.settings.PublishableKey)
}

// pageURL is the full current URL, used as the Stripe return URL.
func (s *stripeBase) pageURL() string {
	return s.deps.Page.Location().String()
}

// createElement creates, binds and mounts one Stripe element. Element
// specific params win over the method params.
func createElement(elements sdk.StripeElements, elementType string, params *Params, own *ElementParams) (sdk.StripeElement, error) {
	ep := &params.ElementParams
	if own != nil {
		ep = own
	}

	element, err := elements.Create(elementType, ep.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s element: %w", elementType, err)
	}

	bind := func(event string, handler func(sdk.ElementEvent)) {
		if handler != nil {
			element.On(event, handler)
		}
	}
	bind(sdk.EventChange, ep.OnChange)
	bind(sdk.EventReady, ep.OnReady)
	bind(sdk.EventFocus, ep.OnFocus)
	bind(sdk.EventBlur, ep.OnBlur)
	bind(sdk.EventEscape, ep.OnEscape)
	bind(sdk.EventClick, ep.OnClick)

	selector := ep.ElementID
	if selector == "" {
		selector = "#" + elementType + "-element"
	}
	if err := element.Mount(selector); err != nil {
		return nil, err
	}
	return element, nil
}

func stripeCurrency(currency, fallback string) string {
	if currency == "" {
		currency = fallback
	}
	return strings.ToLower(currency)
}

// StripeCard tokenizes cards with Stripe Elements and authorizes a manual
// capture payment intent through the vault.
type StripeCard struct {
	stripeBase
}

func NewStripeCard(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &StripeCard{
		stripeBase: stripeBase{newBase(models.MethodCard, models.GatewayStripe, deps, params, methods[models.MethodCard])},
	}, nil
}

func (s *StripeCard) CreateElements(ctx context.Context) error {
	client, err := s.stripe()
	if err != nil {
		return err
	}
	elements := client.Elements(s.params.Config)

	if s.params.SeparateElements {
		number, err := createElement(elements, elementCardNumber, s.params, s.params.CardNumber)
		if err != nil {
			return err
		}
		s.deps.Clients.SetElement(ElementCard, number)
		if _, err := createElement(elements, elementCardExpiry, s.params, s.params.CardExpiry); err != nil {
			return err
		}
		if _, err := createElement(elements, elementCardCvc, s.params, s.params.CardCvc); err != nil {
			return err
		}
		return nil
	}

	card, err := createElement(elements, elementCard, s.params, nil)
	if err != nil {
		return err
	}
	s.deps.Clients.SetElement(ElementCard, card)
	return nil
}

func (s *StripeCard) Tokenize(ctx context.Context) error {
	element, err := s.deps.Clients.Element(ElementCard)
	if err != nil {
		return err
	}
	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := s.stripe()
	if err != nil {
		return err
	}

	paymentMethod, err := client.CreatePaymentMethod(ctx, &sdk.PaymentMethodRequest{
		Type:           string(stripe.PaymentMethodTypeCard),
		Element:        element,
		BillingDetails: fieldmap.StripeBillingDetails(cart),
	})
	if err != nil {
		return err
	}
	card := fieldmap.PaymentMethodCard(paymentMethod)

	// Amounts under the currency minimum are stored for later capture.
	if !money.IsChargeable(cart.CaptureTotal, cart.Currency) {
		if err := s.updateBilling(ctx, &models.Billing{Method: models.MethodCard, Card: card}); err != nil {
			return err
		}
		s.OnSuccess(nil)
		return nil
	}

	intent, err := s.createCardIntent(ctx, cart, card)
	if err != nil {
		return err
	}

	ref := &models.IntentRef{ID: intent.ID}
	if !cart.AuthTotal.IsZero() {
		authAmount := cart.AuthTotal
		ref.AuthAmount = &authAmount
	}
	if err := s.updateBilling(ctx, &models.Billing{
		Method: models.MethodCard,
		Card:   card,
		Intent: &models.BillingIntent{Stripe: ref},
	}); err != nil {
		return err
	}

	s.OnSuccess(nil)
	return nil
}

type stripeCardIntent struct {
	Amount           int64                                `json:"amount"`
	Currency         string                               `json:"currency"`
	PaymentMethod    string                               `json:"payment_method"`
	CaptureMethod    stripe.PaymentIntentCaptureMethod    `json:"capture_method"`
	SetupFutureUsage stripe.PaymentIntentSetupFutureUsage `json:"setup_future_usage"`
	Customer         string                               `json:"customer,omitempty"`
}

func (s *StripeCard) createCardIntent(ctx context.Context, cart *models.Cart, card *models.Card) (*stripe.PaymentIntent, error) {
	currency := cart.Currency
	if currency == "" {
		currency = "USD"
	}
	req := &stripeCardIntent{
		Amount:           money.ToMinorUnits(currency, cart.CaptureTotal.Add(cart.AuthTotal)),
		Currency:         stripeCurrency(currency, "USD"),
		PaymentMethod:    card.Token,
		CaptureMethod:    stripe.PaymentIntentCaptureMethodManual,
		SetupFutureUsage: stripe.PaymentIntentSetupFutureUsageOffSession,
	}
	if cart.Account != nil {
		req.Customer = cart.Account.StripeCustomer
	}

	var intent stripe.PaymentIntent
	ok, err := s.createIntent(ctx, req, &intent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewGatewayError(s.gateway, codeMissingIntent, "Stripe payment intent is not defined")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
	case stripe.PaymentIntentStatusRequiresConfirmation:
		if _, err := s.confirmCardPayment(ctx, &intent); err != nil {
			return nil, err
		}
	default:
		return nil, NewGatewayError(s.gateway, codeIntentStatus, fmt.Sprintf("Unsupported intent status: %s", intent.Status))
	}
	return &intent, nil
}

// Authenticate attaches the payment's card to its intent and confirms it.
func (s *StripeCard) Authenticate(ctx context.Context, payment *models.Payment) (*AuthenticationResult, error) {
	token := ""
	if payment.Card != nil {
		token = payment.Card.Token
	}

	var intent stripe.PaymentIntent
	ok, err := s.updateIntent(ctx, map[string]string{
		"id":             payment.TransactionID,
		"payment_method": token,
	}, &intent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewGatewayError(s.gateway, codeMissingIntent, "Stripe payment intent is not defined")
	}
	return s.confirmCardPayment(ctx, &intent)
}

func (s *StripeCard) confirmCardPayment(ctx context.Context, intent *stripe.PaymentIntent) (*AuthenticationResult, error) {
	client, err := s.stripe()
	if err != nil {
		return nil, err
	}
	result, err := client.ConfirmCardPayment(ctx, intent.ClientSecret)
	if err != nil {
		return nil, err
	}
	return &AuthenticationResult{Status: string(result.Status)}, nil
}

// StripeIDeal pays with iDEAL through a confirmed payment intent.
type StripeIDeal struct {
	stripeBase
}

func NewStripeIDeal(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings, err := requireCard(models.MethodIDeal, methods)
	if err != nil {
		return nil, err
	}
	return &StripeIDeal{
		stripeBase: stripeBase{newBase(models.MethodIDeal, models.GatewayStripe, deps, params, settings)},
	}, nil
}

func (s *StripeIDeal) CreateElements(ctx context.Context) error {
	client, err := s.stripe()
	if err != nil {
		return err
	}
	element, err := createElement(client.Elements(s.params.Config), elementIDealBank, s.params, nil)
	if err != nil {
		return err
	}
	s.deps.Clients.SetElement(ElementIDeal, element)
	return nil
}

type stripeIDealIntent struct {
	Amount             int64                                  `json:"amount"`
	Currency           string                                 `json:"currency"`
	PaymentMethod      string                                 `json:"payment_method"`
	PaymentMethodTypes string                                 `json:"payment_method_types"`
	ConfirmationMethod stripe.PaymentIntentConfirmationMethod `json:"confirmation_method"`
	Confirm            bool                                   `json:"confirm"`
	ReturnURL          string                                 `json:"return_url"`
}

func (s *StripeIDeal) Tokenize(ctx context.Context) error {
	element, err := s.deps.Clients.Element(ElementIDeal)
	if err != nil {
		return err
	}
	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := s.stripe()
	if err != nil {
		return err
	}

	paymentMethod, err := client.CreatePaymentMethod(ctx, &sdk.PaymentMethodRequest{
		Type:           string(stripe.PaymentMethodTypeIDEAL),
		Element:        element,
		BillingDetails: fieldmap.StripeBillingDetails(cart),
	})
	if err != nil {
		return err
	}

	currency := cart.Currency
	if currency == "" {
		currency = "EUR"
	}
	var intent stripe.PaymentIntent
	ok, err := s.createIntent(ctx, &stripeIDealIntent{
		Amount:             money.ToMinorUnits(currency, cart.CaptureTotal),
		Currency:           stripeCurrency(currency, "EUR"),
		PaymentMethod:      paymentMethod.ID,
		PaymentMethodTypes: string(stripe.PaymentMethodTypeIDEAL),
		ConfirmationMethod: stripe.PaymentIntentConfirmationMethodManual,
		Confirm:            true,
		ReturnURL:          s.pageURL(),
	}, &intent)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(s.gateway, codeMissingIntent, "Stripe payment intent is not defined")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresAction, "requires_source_action":
	default:
		return NewGatewayError(s.gateway, codeIntentStatus, fmt.Sprintf("Unsupported intent status (%s)", intent.Status))
	}

	if err := s.updateBilling(ctx, &models.Billing{
		Method: models.MethodIDeal,
		Ideal:  &models.TokenRef{Token: paymentMethod.ID},
		Intent: &models.BillingIntent{Stripe: &models.IntentRef{ID: intent.ID}},
	}); err != nil {
		return err
	}

	_, err = client.HandleCardAction(ctx, intent.ClientSecret)
	return err
}

// StripeBancontact pays with a Bancontact redirect source.
type StripeBancontact struct {
	stripeBase
}

func NewStripeBancontact(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings, err := requireCard(models.MethodBancontact, methods)
	if err != nil {
		return nil, err
	}
	return &StripeBancontact{
		stripeBase: stripeBase{newBase(models.MethodBancontact, models.GatewayStripe, deps, params, settings)},
	}, nil
}

func (s *StripeBancontact) Tokenize(ctx context.Context) error {
	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := s.stripe()
	if err != nil {
		return err
	}

	source, err := client.CreateSource(ctx, fieldmap.BancontactSourceRequest(cart, s.pageURL()))
	if err != nil {
		return err
	}
	if err := s.updateBilling(ctx, &models.Billing{Method: models.MethodBancontact}); err != nil {
		return err
	}
	return s.followSource(source)
}

// StripeKlarna pays with a Klarna redirect source.
type StripeKlarna struct {
	stripeBase
}

func NewStripeKlarna(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings, err := requireCard(models.MethodKlarna, methods)
	if err != nil {
		return nil, err
	}
	return &StripeKlarna{
		stripeBase: stripeBase{newBase(models.MethodKlarna, models.GatewayStripe, deps, params, settings)},
	}, nil
}

func (s *StripeKlarna) Tokenize(ctx context.Context) error {
	cart, err := s.getCart(ctx)
	if err != nil {
		return err
	}
	settings, err := s.deps.Cart.GetSettings(ctx)
	if err != nil {
		return err
	}
	cart.Settings = settings

	client, err := s.stripe()
	if err != nil {
		return err
	}
	source, err := client.CreateSource(ctx, fieldmap.KlarnaSourceRequest(cart, s.pageURL()))
	if err != nil {
		return err
	}
	if err := s.updateBilling(ctx, &models.Billing{Method: models.MethodKlarna}); err != nil {
		return err
	}
	return s.followSource(source)
}

func (s *stripeBase) followSource(source *stripe.Source) error {
	if source == nil || source.Redirect == nil || source.Redirect.URL == "" {
		return NewGatewayError(s.gateway, codeProviderError, "Stripe source redirect URL is not defined")
	}
	return s.redirect(source.Redirect.URL)
}
