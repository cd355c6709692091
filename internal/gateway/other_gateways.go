package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"

	"checkout-service/internal/fieldmap"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// Redirect query parameters.
const (
	queryGateway        = "gateway"
	queryRedirectStatus = "redirect_status"

	redirectSucceeded = "succeeded"
	redirectCanceled  = "canceled"
)

func unknownRedirectStatus(gateway, status string) error {
	return NewGatewayError(gateway, codeRedirectStatus, fmt.Sprintf("Unknown redirect status: %s", status))
}

// gatewayReturnURL is the page URL tagged with the gateway that resumes it.
func (b *Base) gatewayReturnURL(gateway string) string {
	return b.returnURL() + "?" + queryGateway + "=" + url.QueryEscape(gateway)
}

func currencyOr(currency, fallback string) string {
	if currency == "" {
		return fallback
	}
	return currency
}

// ============================================================================
// PayPal
// ============================================================================

var paypalDefaultStyle = map[string]any{
	"layout":  "horizontal",
	"height":  45,
	"color":   "gold",
	"shape":   "rect",
	"label":   "paypal",
	"tagline": false,
}

// PayPalDirect authorizes a PayPal order with smart buttons.
type PayPalDirect struct {
	Base
}

func NewPayPalDirect(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	settings := methods[models.MethodPayPal]
	gateway := models.GatewayPayPal
	if settings != nil && settings.Gateway != "" {
		gateway = settings.Gateway
	}
	return &PayPalDirect{
		Base: newBase(models.MethodPayPal, gateway, deps, params, settings),
	}, nil
}

func (p *PayPalDirect) Scripts() []scripts.Script {
	return []scripts.Script{{
		ID: scripts.PayPalSDK,
		Params: map[string]string{
			"client_id":   p.settings.ClientID,
			"merchant_id": p.settings.MerchantID,
		},
	}}
}

func (p *PayPalDirect) CreateElements(ctx context.Context) error {
	cart, err := p.getCart(ctx)
	if err != nil {
		return err
	}
	if !cart.CaptureTotal.IsPositive() {
		return NewGatewayError(p.gateway, codeInvalidAmount, "Invalid PayPal button amount. Value should be greater than zero.")
	}
	paypal, err := p.deps.Libraries.PayPal()
	if err != nil {
		return err
	}

	locale := p.params.Locale
	if locale == "" {
		locale = "en_US"
	}
	style := p.params.Style
	if style == nil {
		style = paypalDefaultStyle
	}

	button, err := paypal.Buttons(&sdk.PayPalButtonsOptions{
		Locale: locale,
		Style:  style,
		CreateOrder: func(ctx context.Context, actions sdk.PayPalActions) (string, error) {
			return actions.CreateOrder(ctx, &sdk.PayPalOrderRequest{
				Intent: "AUTHORIZE",
				PurchaseUnits: []sdk.PayPalPurchaseUnit{{
					Amount: sdk.PayPalAmount{
						Value:        fieldmap.FormatAmount(cart.CaptureTotal),
						CurrencyCode: cart.Currency,
					},
				}},
			})
		},
		OnApprove: func(ctx context.Context, data *sdk.PayPalApproveData, actions sdk.PayPalActions) error {
			if err := p.approve(ctx, cart, data, actions); err != nil {
				return err
			}
			p.OnSuccess(data)
			return nil
		},
		OnError: p.OnError,
	})
	if err != nil {
		return err
	}
	return button.Render("#" + p.params.ElementIDOr(paypalButtonID))
}

func (p *PayPalDirect) approve(ctx context.Context, cart *models.Cart, data *sdk.PayPalApproveData, actions sdk.PayPalActions) error {
	order, err := actions.GetOrder(ctx)
	if err != nil {
		return err
	}

	update := &models.CartUpdate{
		Billing: &models.Billing{
			Method: models.MethodPayPal,
			PayPal: &models.PayPalBilling{OrderID: data.OrderID},
		},
	}
	if needsAccount(cart) && order != nil {
		update.Account = &models.Account{Email: order.Payer.EmailAddress}
	}
	if shipping := fieldmap.PayPalShipping(order.Shipping()); shipping != nil {
		update.Shipping = &models.ShippingUpdate{Address: *shipping}
	}

	_, err = p.updateCart(ctx, update)
	return err
}

// ============================================================================
// Klarna
// ============================================================================

// KlarnaDirect opens a Klarna hosted payment page and resumes from its
// authorization token.
type KlarnaDirect struct {
	Base
}

func NewKlarnaDirect(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &KlarnaDirect{
		Base: newBase(models.MethodKlarna, models.GatewayKlarna, deps, params, methods[models.MethodKlarna]),
	}, nil
}

func (k *KlarnaDirect) RedirectGateway() string { return "klarna_direct" }

func (k *KlarnaDirect) Tokenize(ctx context.Context) error {
	cart, err := k.getCart(ctx)
	if err != nil {
		return err
	}
	session, err := fieldmap.KlarnaSessionData(cart, k.returnURL())
	if err != nil {
		return err
	}

	var created struct {
		RedirectURL string `json:"redirect_url"`
	}
	ok, err := k.createIntent(ctx, session, &created)
	if err != nil {
		return err
	}
	if !ok || created.RedirectURL == "" {
		return NewGatewayError(k.gateway, codeMissingIntent, "Klarna session is not defined")
	}
	return k.redirect(created.RedirectURL)
}

func (k *KlarnaDirect) HandleRedirect(ctx context.Context, query url.Values) error {
	token := query.Get("authorization_token")
	if token == "" {
		return &UnableAuthenticatePaymentMethodError{}
	}
	if err := k.updateBilling(ctx, &models.Billing{
		Method: models.MethodKlarna,
		Klarna: &models.TokenRef{Token: token},
	}); err != nil {
		return err
	}
	k.OnSuccess(nil)
	return nil
}

// ============================================================================
// Paysafecard
// ============================================================================

// Paysafecard payment statuses reported after the redirect.
const (
	paysafecardSuccess          = "SUCCESS"
	paysafecardAuthorized       = "AUTHORIZED"
	paysafecardCanceledCustomer = "CANCELED_CUSTOMER"
)

// PaysafecardDirect pays with a paysafecard hosted payment page.
type PaysafecardDirect struct {
	Base
}

func NewPaysafecardDirect(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &PaysafecardDirect{
		Base: newBase(models.MethodPaysafecard, models.GatewayPaysafecard, deps, params, methods[models.MethodPaysafecard]),
	}, nil
}

func (p *PaysafecardDirect) RedirectGateway() string { return models.GatewayPaysafecard }

type paysafecardPayment struct {
	Type            string              `json:"type"`
	Amount          decimal.Decimal     `json:"amount"`
	Redirect        paysafecardRedirect `json:"redirect"`
	NotificationURL string              `json:"notification_url"`
	Customer        paysafecardCustomer `json:"customer"`
	Currency        string              `json:"currency"`
}

type paysafecardRedirect struct {
	SuccessURL string `json:"success_url"`
	FailureURL string `json:"failure_url"`
}

type paysafecardCustomer struct {
	ID string `json:"id"`
}

type paysafecardResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Redirect struct {
		AuthURL string `json:"auth_url"`
	} `json:"redirect"`
}

func (p *PaysafecardDirect) Tokenize(ctx context.Context) error {
	cart, err := p.getCart(ctx)
	if err != nil {
		return err
	}

	returnURL := p.gatewayReturnURL(p.RedirectGateway())
	req := &paysafecardPayment{
		Type:   "PAYSAFECARD",
		Amount: cart.CaptureTotal,
		Redirect: paysafecardRedirect{
			SuccessURL: returnURL,
			FailureURL: returnURL,
		},
		NotificationURL: returnURL,
		Currency:        currencyOr(cart.Currency, "USD"),
	}
	if cart.Account != nil {
		req.Customer.ID = cart.Account.ID
	}

	var payment paysafecardResponse
	ok, err := p.createIntent(ctx, req, &payment)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(p.gateway, codeMissingIntent, "Paysafecard payment is not defined")
	}

	if err := p.updateBilling(ctx, &models.Billing{
		Method: models.MethodPaysafecard,
		Intent: &models.BillingIntent{Paysafecard: &models.IntentRef{ID: payment.ID}},
	}); err != nil {
		return err
	}
	return p.redirect(payment.Redirect.AuthURL)
}

func (p *PaysafecardDirect) HandleRedirect(ctx context.Context, _ url.Values) error {
	cart, err := p.getCart(ctx)
	if err != nil {
		return err
	}
	paymentID := cart.IntentID(models.GatewayPaysafecard)
	if paymentID == "" {
		return NewGatewayError(p.gateway, codeMissingIntent, "Paysafecard payment ID is not defined")
	}

	var payment paysafecardResponse
	ok, err := p.updateIntent(ctx, map[string]string{"payment_id": paymentID}, &payment)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(p.gateway, codeMissingIntent, "Paysafecard payment is not defined")
	}

	switch payment.Status {
	case paysafecardSuccess, paysafecardAuthorized:
		p.OnSuccess(nil)
		return nil
	case paysafecardCanceledCustomer:
		return &UnableAuthenticatePaymentMethodError{}
	default:
		return NewGatewayError(p.gateway, codeRedirectStatus, fmt.Sprintf("Unknown redirect status: %s.", payment.Status))
	}
}

// ============================================================================
// Quickpay
// ============================================================================

const quickpayOrderAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// QuickpayCard collects cards on the Quickpay hosted page.
type QuickpayCard struct {
	Base
}

func NewQuickpayCard(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &QuickpayCard{
		Base: newBase(models.MethodCard, models.GatewayQuickpay, deps, params, methods[models.MethodCard]),
	}, nil
}

func (q *QuickpayCard) RedirectGateway() string { return models.GatewayQuickpay }

// decodeIntentID accepts a bare JSON string ID or an object with an id.
func decodeIntentID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var obj struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.ID.String(), nil
}

func (q *QuickpayCard) Tokenize(ctx context.Context) error {
	cart, err := q.getCart(ctx)
	if err != nil {
		return err
	}
	orderID, err := gonanoid.Generate(quickpayOrderAlphabet, 20)
	if err != nil {
		return fmt.Errorf("failed to generate order id: %w", err)
	}

	var raw json.RawMessage
	ok, err := q.createIntent(ctx, map[string]string{
		"order_id": orderID,
		"currency": currencyOr(cart.Currency, "USD"),
	}, &raw)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(q.gateway, codeMissingIntent, "Quickpay payment is not defined")
	}
	paymentID, err := decodeIntentID(raw)
	if err != nil || paymentID == "" {
		return NewGatewayError(q.gateway, codeMissingIntent, "Quickpay payment is not defined")
	}

	if err := q.updateBilling(ctx, &models.Billing{
		Method: models.MethodCard,
		Intent: &models.BillingIntent{Quickpay: &models.IntentRef{ID: paymentID}},
	}); err != nil {
		return err
	}

	returnURL := q.gatewayReturnURL(q.RedirectGateway())
	var link struct {
		URL string `json:"url"`
	}
	ok, err = q.authorizeGateway(ctx, map[string]string{
		"action":      "create",
		"continueurl": returnURL + "&" + queryRedirectStatus + "=" + redirectSucceeded,
		"cancelurl":   returnURL + "&" + queryRedirectStatus + "=" + redirectCanceled,
	}, &link)
	if err != nil {
		return err
	}
	if !ok || link.URL == "" {
		return NewGatewayError(q.gateway, codeMissingIntent, "Quickpay payment link is not defined")
	}
	return q.redirect(link.URL)
}

func (q *QuickpayCard) HandleRedirect(ctx context.Context, query url.Values) error {
	switch status := query.Get(queryRedirectStatus); status {
	case redirectSucceeded:
		var card models.Card
		ok, err := q.authorizeGateway(ctx, map[string]string{
			"action": "get",
			"id":     query.Get("card_id"),
		}, &card)
		if err != nil {
			return err
		}
		if !ok {
			return &UnableAuthenticatePaymentMethodError{}
		}
		if err := q.updateBilling(ctx, &models.Billing{Method: models.MethodCard, Card: &card}); err != nil {
			return err
		}
		q.OnSuccess(nil)
		return nil
	case redirectCanceled:
		return &UnableAuthenticatePaymentMethodError{}
	default:
		return unknownRedirectStatus(q.gateway, status)
	}
}

// ============================================================================
// Amazon Pay
// ============================================================================

const amazonButtonID = "amazonpay-button"

// AmazonDirect renders the Amazon Pay button and completes checkout through
// Amazon's review and result pages.
type AmazonDirect struct {
	Base
}

func NewAmazonDirect(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &AmazonDirect{
		Base: newBase(models.MethodAmazon, models.GatewayAmazon, deps, params, methods[models.MethodAmazon]),
	}, nil
}

// credentials returns the merchant and public key IDs the button needs.
func (a *AmazonDirect) credentials() (merchantID, publicKeyID string, err error) {
	if a.settings.MerchantID == "" {
		return "", "", &MethodPropertyMissingError{Method: "Amazon", Property: "merchant_id"}
	}
	if a.settings.PublicKeyID == "" {
		return "", "", &MethodPropertyMissingError{Method: "Amazon", Property: "public_key_id"}
	}
	return a.settings.MerchantID, a.settings.PublicKeyID, nil
}

func (a *AmazonDirect) Scripts() []scripts.Script {
	return []scripts.Script{scripts.ID(scripts.AmazonCheckout)}
}

func (a *AmazonDirect) RedirectGateway() string { return models.GatewayAmazon }

func (a *AmazonDirect) statusURL(status string, confirm bool) string {
	u := a.gatewayReturnURL(a.RedirectGateway())
	if confirm {
		u += "&confirm=true"
	}
	return u + "&" + queryRedirectStatus + "=" + status
}

func (a *AmazonDirect) CreateElements(ctx context.Context) error {
	cart, err := a.getCart(ctx)
	if err != nil {
		return err
	}

	chargePermission := "OneTime"
	session := map[string]any{
		"webCheckoutDetails": map[string]string{
			"checkoutReviewReturnUrl": a.statusURL(redirectSucceeded, false),
			"checkoutCancelUrl":       a.statusURL(redirectCanceled, false),
		},
	}
	if cart.SubscriptionDelivery {
		chargePermission = "Recurring"
		session["recurringMetadata"] = map[string]any{
			"frequency": map[string]string{"unit": "Variable", "value": "0"},
		}
	}
	session["chargePermissionType"] = chargePermission

	var signed struct {
		Payload   string `json:"payload"`
		Signature string `json:"signature"`
	}
	ok, err := a.authorizeGateway(ctx, session, &signed)
	if err != nil {
		return err
	}
	if !ok {
		return NewGatewayError(a.gateway, codeInvalidConfig, "Amazon Pay checkout session is not signed")
	}

	merchantID, publicKeyID, err := a.credentials()
	if err != nil {
		return err
	}
	container, err := a.container(a.params.ElementIDOr(amazonButtonID))
	if err != nil {
		return err
	}
	amazon, err := a.deps.Libraries.Amazon()
	if err != nil {
		return err
	}

	productType := "PayOnly"
	if a.params.Require.Shipping {
		productType = "PayAndShip"
	}
	locale := a.params.Locale
	if locale == "" {
		locale = "en_US"
	}
	placement := a.params.Placement
	if placement == "" {
		placement = "Checkout"
	}

	if err := amazon.RenderButton("#"+container.ID(), &sdk.AmazonButtonOptions{
		LedgerCurrency:   cart.Currency,
		CheckoutLanguage: locale,
		ProductType:      productType,
		ButtonColor:      a.params.StyleString("color", "Gold"),
		Placement:        placement,
		MerchantID:       merchantID,
		PublicKeyID:      publicKeyID,
		CreateCheckoutSessionConfig: sdk.AmazonCheckoutSessionConfig{
			PayloadJSON: signed.Payload,
			Signature:   signed.Signature,
		},
	}); err != nil {
		return err
	}
	if class := a.params.BaseClass(); class != "" {
		container.AddClass(class)
	}
	return nil
}

func (a *AmazonDirect) Tokenize(ctx context.Context) error {
	cart, err := a.getCart(ctx)
	if err != nil {
		return err
	}
	var checkoutSessionID string
	if cart.Billing != nil && cart.Billing.Amazon != nil {
		checkoutSessionID = cart.Billing.Amazon.CheckoutSessionID
	}
	if checkoutSessionID == "" {
		return NewGatewayError(a.gateway, codeMissingIntent, "Missing Amazon Pay checkout session ID (billing.amazon.checkout_session_id)")
	}

	var session struct {
		RedirectURL string `json:"redirect_url"`
	}
	ok, err := a.createIntent(ctx, map[string]any{
		"checkoutSessionId": checkoutSessionID,
		"webCheckoutDetails": map[string]string{
			"checkoutResultReturnUrl": a.statusURL(redirectSucceeded, true),
			"checkoutCancelUrl":       a.statusURL(redirectCanceled, false),
		},
		"paymentDetails": map[string]any{
			"paymentIntent":                 "Authorize",
			"canHandlePendingAuthorization": true,
			"chargeAmount": map[string]any{
				"amount":       cart.CaptureTotal,
				"currencyCode": cart.Currency,
			},
		},
	}, &session)
	if err != nil {
		return err
	}
	if !ok || session.RedirectURL == "" {
		return NewGatewayError(a.gateway, codeMissingIntent, "Amazon Pay checkout session is not defined")
	}
	return a.redirect(session.RedirectURL)
}

func (a *AmazonDirect) HandleRedirect(ctx context.Context, query url.Values) error {
	switch status := query.Get(queryRedirectStatus); status {
	case redirectSucceeded:
		// The result page returns with confirm=true once the charge is authorized.
		if query.Get("confirm") == "" {
			if err := a.updateBilling(ctx, &models.Billing{
				Method: models.MethodAmazon,
				Amazon: &models.AmazonBilling{CheckoutSessionID: query.Get("amazonCheckoutSessionId")},
			}); err != nil {
				return err
			}
		}
		a.OnSuccess(nil)
		return nil
	case redirectCanceled:
		return &UnableAuthenticatePaymentMethodError{}
	default:
		return unknownRedirectStatus(a.gateway, status)
	}
}
