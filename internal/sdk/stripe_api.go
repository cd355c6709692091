package sdk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"checkout-service/internal/host"
)

// mountRecorder is implemented by pages that track mounted elements.
type mountRecorder interface {
	RecordMount(selector, elementType string) error
}

// NewStripeBackends returns backends pointed at apiURL, or nil for the
// stripe-go defaults.
func NewStripeBackends(apiURL string) *stripe.Backends {
	if apiURL == "" {
		return nil
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(apiURL),
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

// NewStripeFactory returns the Stripe global for a server-side page. Clients
// call the Stripe API with the publishable key and read element input from
// the page.
func NewStripeFactory(page host.Page, backends *stripe.Backends) StripeFactory {
	return func(publishableKey string) (Stripe, error) {
		if publishableKey == "" {
			return nil, errors.New("Stripe publishable key is not defined")
		}
		sc := &client.API{}
		sc.Init(publishableKey, backends)
		return &StripeAPI{sc: sc, page: page}, nil
	}
}

// StripeAPI is a Stripe client backed by stripe-go.
type StripeAPI struct {
	sc   *client.API
	page host.Page
}

func (a *StripeAPI) Elements(options map[string]any) StripeElements {
	return &apiElements{api: a, options: options}
}

func (a *StripeAPI) CreatePaymentMethod(ctx context.Context, req *PaymentMethodRequest) (*stripe.PaymentMethod, error) {
	el, ok := req.Element.(*apiElement)
	if !ok || el.selector == "" {
		return nil, errors.New("Stripe payment element is not mounted")
	}
	input := el.group.input()

	params := &stripe.PaymentMethodParams{Type: stripe.String(req.Type)}
	params.Context = ctx

	switch req.Type {
	case "card":
		card := &stripe.PaymentMethodCardParams{}
		if token := input["token"]; token != "" {
			card.Token = stripe.String(token)
		} else {
			card.Number = stripe.String(input["number"])
			card.CVC = stripe.String(input["cvc"])
			if v, err := strconv.ParseInt(input["exp_month"], 10, 64); err == nil {
				card.ExpMonth = stripe.Int64(v)
			}
			if v, err := strconv.ParseInt(input["exp_year"], 10, 64); err == nil {
				card.ExpYear = stripe.Int64(v)
			}
		}
		params.Card = card
	case "ideal":
		if bank := input["bank"]; bank != "" {
			params.AddExtra("ideal[bank]", bank)
		}
	default:
		return nil, fmt.Errorf("unsupported payment method type: %s", req.Type)
	}

	if bd := req.BillingDetails; bd != nil {
		params.BillingDetails = &stripe.PaymentMethodBillingDetailsParams{
			Name:    optional(bd.Name),
			Email:   optional(bd.Email),
			Phone:   optional(bd.Phone),
			Address: addressParams(bd.Address),
		}
	}

	pm, err := a.sc.PaymentMethods.New(params)
	if err != nil {
		return nil, stripeError(err)
	}
	return pm, nil
}

func (a *StripeAPI) CreateSource(ctx context.Context, req *SourceRequest) (*stripe.Source, error) {
	params := &stripe.SourceParams{
		Type:     stripe.String(req.Type),
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	if req.Flow != "" {
		params.Flow = stripe.String(req.Flow)
	}
	if req.ReturnURL != "" {
		params.AddExtra("redirect[return_url]", req.ReturnURL)
	}
	if o := req.Owner; o != nil {
		addExtra(params, "owner[email]", o.Email)
		addExtra(params, "owner[name]", o.Name)
		addExtra(params, "owner[phone]", o.Phone)
		addAddressExtra(params, "owner[address]", o.Address)
	}
	if k := req.Klarna; k != nil {
		addExtra(params, "klarna[product]", k.Product)
		addExtra(params, "klarna[purchase_country]", k.PurchaseCountry)
		addExtra(params, "klarna[first_name]", k.FirstName)
		addExtra(params, "klarna[last_name]", k.LastName)
		addExtra(params, "klarna[shipping_first_name]", k.ShippingFirstName)
		addExtra(params, "klarna[shipping_last_name]", k.ShippingLastName)
	}
	for i, item := range req.Items {
		prefix := fmt.Sprintf("source_order[items][%d]", i)
		addExtra(params, prefix+"[type]", item.Type)
		addExtra(params, prefix+"[description]", item.Description)
		addExtra(params, prefix+"[currency]", item.Currency)
		params.AddExtra(prefix+"[amount]", strconv.FormatInt(item.Amount, 10))
		if item.Quantity > 0 {
			params.AddExtra(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		}
	}
	if s := req.Shipping; s != nil {
		addExtra(params, "source_order[shipping][phone]", s.Phone)
		addAddressExtra(params, "source_order[shipping][address]", s.Address)
	}

	src, err := a.sc.Sources.New(params)
	if err != nil {
		return nil, stripeError(err)
	}
	return src, nil
}

func (a *StripeAPI) ConfirmCardPayment(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error) {
	id, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := a.sc.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, stripeError(err)
	}
	return pi, a.followNextAction(pi)
}

func (a *StripeAPI) HandleCardAction(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error) {
	id, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := a.sc.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, stripeError(err)
	}
	return pi, a.followNextAction(pi)
}

// followNextAction sends the shopper to the provider when the intent needs
// an off-site step.
func (a *StripeAPI) followNextAction(pi *stripe.PaymentIntent) error {
	if pi.Status != stripe.PaymentIntentStatusRequiresAction || pi.NextAction == nil || pi.NextAction.RedirectToURL == nil {
		return nil
	}
	return a.page.Replace(pi.NextAction.RedirectToURL.URL)
}

func (a *StripeAPI) PaymentRequest(opts *PaymentRequestOptions) (PaymentRequest, error) {
	if opts == nil {
		return nil, errors.New("payment request options are required")
	}
	return &apiPaymentRequest{opts: opts}, nil
}

type apiElements struct {
	mu       sync.Mutex
	api      *StripeAPI
	options  map[string]any
	elements []*apiElement
}

func (e *apiElements) Create(elementType string, options map[string]any) (StripeElement, error) {
	el := &apiElement{
		group:    e,
		typ:      elementType,
		options:  options,
		handlers: make(map[string][]func(ElementEvent)),
	}
	e.mu.Lock()
	e.elements = append(e.elements, el)
	e.mu.Unlock()
	return el, nil
}

// input merges what every mounted element of the group collected. Split card
// fields each contribute their own values.
func (e *apiElements) input() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	merged := make(map[string]string)
	for _, el := range e.elements {
		if el.selector == "" {
			continue
		}
		for k, v := range e.api.page.Input(el.selector) {
			merged[k] = v
		}
	}
	return merged
}

type apiElement struct {
	mu       sync.Mutex
	group    *apiElements
	typ      string
	options  map[string]any
	selector string
	handlers map[string][]func(ElementEvent)
}

func (e *apiElement) Type() string { return e.typ }

func (e *apiElement) On(event string, handler func(ElementEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

func (e *apiElement) Mount(selector string) error {
	page := e.group.api.page
	if rec, ok := page.(mountRecorder); ok {
		if err := rec.RecordMount(selector, e.typ); err != nil {
			return err
		}
	} else if _, ok := page.Element(selector); !ok {
		return fmt.Errorf("DOM element with '%s' ID not found", host.SelectorID(selector))
	}

	e.mu.Lock()
	e.selector = selector
	ready := append([]func(ElementEvent){}, e.handlers[EventReady]...)
	e.mu.Unlock()

	for _, h := range ready {
		h(ElementEvent{ElementType: e.typ, Empty: true})
	}
	return nil
}

type apiPaymentRequest struct {
	opts *PaymentRequestOptions
}

// CanMakePayment reports no wallets: a server-side page has no device wallet.
func (r *apiPaymentRequest) CanMakePayment(context.Context) (*CanMakePaymentResult, error) {
	return &CanMakePaymentResult{}, nil
}

func (r *apiPaymentRequest) OnShippingAddressChange(func(context.Context, *ShippingAddressChangeEvent)) {}

func (r *apiPaymentRequest) OnShippingOptionChange(func(context.Context, *ShippingOptionChangeEvent)) {}

func (r *apiPaymentRequest) OnPaymentMethod(func(context.Context, *PaymentMethodEvent)) {}

func intentIDFromSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", errors.New("invalid payment intent client secret")
	}
	return id, nil
}

// stripeError unwraps API errors to their shopper-facing message.
func stripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return errors.New(stripeErr.Msg)
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}

func addressParams(a *StripeAddress) *stripe.AddressParams {
	if a == nil {
		return nil
	}
	return &stripe.AddressParams{
		City:       optional(a.City),
		Country:    optional(a.Country),
		Line1:      optional(a.Line1),
		Line2:      optional(a.Line2),
		PostalCode: optional(a.PostalCode),
		State:      optional(a.State),
	}
}

type extraParams interface {
	AddExtra(key, value string)
}

func addExtra(p extraParams, key, value string) {
	if value != "" {
		p.AddExtra(key, value)
	}
}

func addAddressExtra(p extraParams, prefix string, a *StripeAddress) {
	if a == nil {
		return
	}
	addExtra(p, prefix+"[city]", a.City)
	addExtra(p, prefix+"[country]", a.Country)
	addExtra(p, prefix+"[line1]", a.Line1)
	addExtra(p, prefix+"[line2]", a.Line2)
	addExtra(p, prefix+"[postal_code]", a.PostalCode)
	addExtra(p, prefix+"[state]", a.State)
}

var _ Stripe = (*StripeAPI)(nil)
