package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
)

// Base carries the state and helpers every strategy shares. Strategies embed
// it and override the actions they support.
type Base struct {
	name     string
	gateway  string
	deps     Deps
	params   *Params
	settings *models.MethodSettings
	logger   *logrus.Entry
}

func newBase(name, gateway string, deps Deps, params *Params, settings *models.MethodSettings) Base {
	if params == nil {
		params = &Params{}
	}
	if settings == nil {
		settings = &models.MethodSettings{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return Base{
		name:     name,
		gateway:  gateway,
		deps:     deps,
		params:   params,
		settings: settings,
		logger: logger.WithFields(logrus.Fields{
			"method":  name,
			"gateway": gateway,
		}),
	}
}

func (b *Base) Name() string    { return b.name }
func (b *Base) Gateway() string { return b.gateway }

func (b *Base) Scripts() []scripts.Script { return nil }

// CreateElements is a no-op for strategies without provider UI.
func (b *Base) CreateElements(context.Context) error { return nil }

// Tokenize is a no-op for strategies that tokenize from a button callback.
func (b *Base) Tokenize(context.Context) error { return nil }

func (b *Base) OnSuccess(data any) {
	if b.params.OnSuccess != nil {
		b.params.OnSuccess(data)
	}
}

func (b *Base) OnCancel() {
	if b.params.OnCancel != nil {
		b.params.OnCancel()
	}
}

func (b *Base) OnError(err error) {
	if b.params.OnError != nil {
		b.params.OnError(err)
		return
	}
	b.logger.WithError(err).Error("Payment method failed")
}

func (b *Base) getCart(ctx context.Context) (*models.Cart, error) {
	return b.deps.Cart.Get(ctx)
}

func (b *Base) updateCart(ctx context.Context, update *models.CartUpdate) (*models.Cart, error) {
	cart, err := b.deps.Cart.Update(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}
	return cart, nil
}

// updateBilling writes a billing-only update.
func (b *Base) updateBilling(ctx context.Context, billing *models.Billing) error {
	_, err := b.updateCart(ctx, &models.CartUpdate{Billing: billing})
	return err
}

// createIntent creates a vault intent and decodes the payload into out. It
// reports false when the vault returned no intent.
func (b *Base) createIntent(ctx context.Context, intent any, out any) (bool, error) {
	raw, err := b.deps.Vault.CreateIntent(ctx, &models.IntentRequest{Gateway: b.gateway, Intent: intent})
	if err != nil {
		return false, err
	}
	return b.decode(raw, out)
}

func (b *Base) updateIntent(ctx context.Context, intent any, out any) (bool, error) {
	raw, err := b.deps.Vault.UpdateIntent(ctx, &models.IntentRequest{Gateway: b.gateway, Intent: intent})
	if err != nil {
		return false, err
	}
	return b.decode(raw, out)
}

func (b *Base) authorizeGateway(ctx context.Context, params any, out any) (bool, error) {
	raw, err := b.deps.Vault.AuthorizeGateway(ctx, &models.AuthorizationRequest{Gateway: b.gateway, Params: params})
	if err != nil {
		return false, err
	}
	return b.decode(raw, out)
}

func (b *Base) decode(raw json.RawMessage, out any) (bool, error) {
	if err := providerError(b.gateway, raw); err != nil {
		return false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", b.gateway, err)
	}
	return true, nil
}

// container resolves a page element by ID.
func (b *Base) container(id string) (host.Container, error) {
	c, ok := b.deps.Page.Element(id)
	if !ok {
		return nil, &DomElementNotFoundError{ID: id}
	}
	return c, nil
}

// returnURL is the page origin and path without query.
func (b *Base) returnURL() string {
	return host.BaseURL(b.deps.Page.Location())
}

// redirect navigates the page to rawURL.
func (b *Base) redirect(rawURL string) error {
	if err := b.deps.Page.Replace(rawURL); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

// needsAccount reports whether the cart has no account email yet, in which
// case wallets fill the account from the payer details.
func needsAccount(cart *models.Cart) bool {
	return cart.AccountEmail() == ""
}

// requireCard fails when the card method is disabled and returns the
// settings for method with the card publishable key applied.
func requireCard(method string, methods models.PaymentMethods) (*models.MethodSettings, error) {
	card := methods[models.MethodCard]
	if card == nil {
		return nil, &PaymentMethodDisabledError{Method: "Credit cards"}
	}
	settings := models.MethodSettings{}
	if own := methods[method]; own != nil {
		settings = *own
	}
	settings.PublishableKey = card.PublishableKey
	return &settings, nil
}
