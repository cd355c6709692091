package gateway

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/sirupsen/logrus"

	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// Method is a payment strategy for one (method, gateway) pair.
type Method interface {
	// Name returns the payment method key, e.g. "card".
	Name() string
	// Gateway returns the gateway the strategy talks to.
	Gateway() string

	// Scripts lists the provider SDKs that must be loaded before any action.
	Scripts() []scripts.Script

	// CreateElements renders the provider UI into the page.
	CreateElements(ctx context.Context) error

	// Tokenize converts collected payment data into a token or intent and
	// records it on the cart billing.
	Tokenize(ctx context.Context) error

	OnSuccess(data any)
	OnCancel()
	OnError(err error)
}

// RedirectHandler is implemented by strategies that leave the page and
// resume from query parameters on the return URL.
type RedirectHandler interface {
	// RedirectGateway returns the `gateway` query value this strategy
	// writes into its return URLs.
	RedirectGateway() string
	HandleRedirect(ctx context.Context, query url.Values) error
}

// Authenticator is implemented by strategies that can confirm a previously
// recorded payment out of band (3-D Secure, SCA).
type Authenticator interface {
	Authenticate(ctx context.Context, payment *models.Payment) (*AuthenticationResult, error)
}

// AuthenticationResult is the outcome of an out-of-band confirmation.
type AuthenticationResult struct {
	Status string `json:"status"`
}

// CartBridge reads and updates the shopper's cart.
type CartBridge interface {
	Get(ctx context.Context) (*models.Cart, error)
	Update(ctx context.Context, update *models.CartUpdate) (*models.Cart, error)
	GetSettings(ctx context.Context) (*models.StoreSettings, error)
}

// Vault performs privileged gateway calls on behalf of the page.
type Vault interface {
	CreateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error)
	UpdateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error)
	AuthorizeGateway(ctx context.Context, req *models.AuthorizationRequest) (json.RawMessage, error)
}

// Deps are the collaborators a strategy is built with.
type Deps struct {
	Cart      CartBridge
	Vault     Vault
	Page      host.Page
	Libraries *scripts.Libraries
	Clients   *ClientRegistry
	Logger    *logrus.Entry
}

// ElementParams configures one mounted Stripe element.
type ElementParams struct {
	ElementID string         `json:"elementId,omitempty"`
	Options   map[string]any `json:"options,omitempty"`

	OnChange func(sdk.ElementEvent) `json:"-"`
	OnReady  func(sdk.ElementEvent) `json:"-"`
	OnFocus  func(sdk.ElementEvent) `json:"-"`
	OnBlur   func(sdk.ElementEvent) `json:"-"`
	OnEscape func(sdk.ElementEvent) `json:"-"`
	OnClick  func(sdk.ElementEvent) `json:"-"`
}

// Require lists the shopper details a wallet sheet must collect.
type Require struct {
	Name     bool `json:"name,omitempty"`
	Email    bool `json:"email,omitempty"`
	Phone    bool `json:"phone,omitempty"`
	Shipping bool `json:"shipping,omitempty"`
}

// Params are the caller's per-method parameters.
type Params struct {
	ElementParams

	Locale    string            `json:"locale,omitempty"`
	Placement string            `json:"placement,omitempty"`
	Style     map[string]any    `json:"style,omitempty"`
	Classes   map[string]string `json:"classes,omitempty"`
	Require   Require           `json:"require,omitempty"`

	// Config is passed to the Stripe elements group.
	Config           map[string]any `json:"config,omitempty"`
	SeparateElements bool           `json:"separateElements,omitempty"`
	CardNumber       *ElementParams `json:"cardNumber,omitempty"`
	CardExpiry       *ElementParams `json:"cardExpiry,omitempty"`
	CardCvc          *ElementParams `json:"cardCvc,omitempty"`

	OnSuccess func(data any)  `json:"-"`
	OnCancel  func()          `json:"-"`
	OnError   func(err error) `json:"-"`
}

// StyleString returns the string style value for key, or fallback.
func (p *Params) StyleString(key, fallback string) string {
	if p == nil {
		return fallback
	}
	if v, ok := p.Style[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// ElementIDOr returns the configured container ID without a leading '#',
// or fallback.
func (p *Params) ElementIDOr(fallback string) string {
	if p == nil || p.ElementID == "" {
		return fallback
	}
	return host.SelectorID(p.ElementID)
}

// BaseClass returns the `base` class to add to the container.
func (p *Params) BaseClass() string {
	if p == nil {
		return ""
	}
	return p.Classes["base"]
}

// MethodParams maps method keys to their parameters for one dispatch.
type MethodParams map[string]*Params

// Constructor builds a strategy. It fails synchronously when a required
// co-method is disabled or a credential is missing.
type Constructor func(deps Deps, params *Params, methods models.PaymentMethods) (Method, error)
