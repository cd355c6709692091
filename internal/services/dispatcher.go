package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"checkout-service/internal/gateway"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/repository"
	"checkout-service/internal/scripts"
)

// DispatchState is the lifecycle stage of a dispatch or of one strategy run.
type DispatchState string

const (
	StateIdle             DispatchState = "IDLE"
	StateResolvingMethods DispatchState = "RESOLVING_METHODS"
	StateDispatching      DispatchState = "DISPATCHING"
	StateInstantiate      DispatchState = "INSTANTIATE"
	StateLoadScripts      DispatchState = "LOAD_SCRIPTS"
	StateRunAction        DispatchState = "RUN_ACTION"
	StateSuccess          DispatchState = "SUCCESS"
	StateFailed           DispatchState = "FAILED"
)

// Action names used in logs and events.
const (
	ActionCreateElements = "createElements"
	ActionTokenize       = "tokenize"
	ActionHandleRedirect = "handleRedirect"
	ActionAuthenticate   = "authenticate"
)

var (
	ErrElementParamsRequired  = errors.New("Payment element parameters are not provided")
	ErrTokenizeParamsRequired = errors.New("Tokenization parameters are not provided")
	ErrRedirectParamsRequired = errors.New("Redirect parameters are not provided")
)

// Store is the cart bridge plus the store reads the dispatcher needs.
type Store interface {
	gateway.CartBridge
	GetPaymentMethods(ctx context.Context) (models.PaymentMethods, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
}

// ScriptLoader loads provider SDKs into the page.
type ScriptLoader interface {
	Load(ctx context.Context, scripts ...scripts.Script) error
}

// DispatcherConfig holds the collaborators of one Dispatcher.
type DispatcherConfig struct {
	Store    Store
	Vault    gateway.Vault
	Page     host.Page
	Loader   ScriptLoader
	Registry *gateway.Registry
	Ledger   repository.RedirectLedger
	Clients  *gateway.ClientRegistry
	// SessionID scopes ledger rows. A random ID is used when empty.
	SessionID string
	Logger    *logrus.Entry
}

// AuthenticateResult is the outcome of Dispatcher.Authenticate. Failures are
// carried in Error rather than returned.
type AuthenticateResult struct {
	Status string `json:"status,omitempty"`
	Error  error  `json:"-"`
}

// Dispatcher routes per-method parameters to the strategy configured for
// each method and runs one action on all of them.
type Dispatcher struct {
	cfg    DispatcherConfig
	deps   gateway.Deps
	logger *logrus.Entry

	state atomic.Value

	methodsGroup singleflight.Group
	methodsMu    sync.RWMutex
	methods      models.PaymentMethods
}

// NewDispatcher creates a dispatcher for one page.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Registry == nil {
		cfg.Registry = gateway.DefaultRegistry()
	}
	if cfg.Clients == nil {
		cfg.Clients = gateway.NewClientRegistry()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = repository.NewMemoryLedger()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithFields(logrus.Fields{"component": "services.dispatcher", "session_id": cfg.SessionID})

	d := &Dispatcher{
		cfg: cfg,
		deps: gateway.Deps{
			Cart:      cfg.Store,
			Vault:     cfg.Vault,
			Page:      cfg.Page,
			Libraries: scripts.NewLibraries(cfg.Page),
			Clients:   cfg.Clients,
			Logger:    logger,
		},
		logger: logger,
	}
	d.state.Store(StateIdle)
	return d
}

// State returns the current dispatch state.
func (d *Dispatcher) State() DispatchState {
	return d.state.Load().(DispatchState)
}

func (d *Dispatcher) setState(state DispatchState) {
	d.state.Store(state)
	d.logger.WithField("state", state).Debug("Dispatch state changed")
}

// Methods returns the store's payment method settings, fetched once per
// dispatcher.
func (d *Dispatcher) Methods(ctx context.Context) (models.PaymentMethods, error) {
	d.methodsMu.RLock()
	methods := d.methods
	d.methodsMu.RUnlock()
	if methods != nil {
		return methods, nil
	}

	v, err, _ := d.methodsGroup.Do("methods", func() (any, error) {
		methods, err := d.cfg.Store.GetPaymentMethods(ctx)
		if err != nil {
			return nil, err
		}
		if methods == nil {
			methods = models.PaymentMethods{}
		}
		d.methodsMu.Lock()
		d.methods = methods
		d.methodsMu.Unlock()
		return methods, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.PaymentMethods), nil
}

// CreateElements renders the UI of every method in params.
func (d *Dispatcher) CreateElements(ctx context.Context, params gateway.MethodParams) error {
	if len(params) == 0 {
		return ErrElementParamsRequired
	}
	return d.perform(ctx, ActionCreateElements, params, nil, func(ctx context.Context, m gateway.Method) error {
		return m.CreateElements(ctx)
	})
}

// Tokenize tokenizes the collected data of every method in params.
func (d *Dispatcher) Tokenize(ctx context.Context, params gateway.MethodParams) error {
	if len(params) == 0 {
		return ErrTokenizeParamsRequired
	}
	return d.perform(ctx, ActionTokenize, params, nil, func(ctx context.Context, m gateway.Method) error {
		return m.Tokenize(ctx)
	})
}

// HandleRedirect resumes a redirect flow from the page query. The query is
// stripped from the address bar, then delivered to the strategies whose
// redirect gateway matches the `gateway` parameter. A return this session
// already handled for the same cart and intent is ignored.
func (d *Dispatcher) HandleRedirect(ctx context.Context, params gateway.MethodParams) error {
	if len(params) == 0 {
		return ErrRedirectParamsRequired
	}

	location := d.cfg.Page.Location()
	query := location.Query()
	d.cfg.Page.ReplaceState(host.StripQuery(location))

	redirectGateway := query.Get("gateway")
	if redirectGateway == "" {
		d.logger.Debug("No redirect gateway in return URL")
		return nil
	}
	logger := d.logger.WithField("gateway", redirectGateway)

	signature := RedirectSignature(d.redirectCorrelation(ctx, redirectGateway), redirectGateway, query)
	claimed, err := d.cfg.Ledger.Claim(ctx, &models.RedirectRecord{
		SessionID: d.cfg.SessionID,
		Signature: signature,
		Gateway:   redirectGateway,
		Query:     queryJSON(query),
	})
	if err != nil {
		return fmt.Errorf("failed to claim redirect: %w", err)
	}
	if !claimed {
		logger.Info("Redirect already handled")
		return nil
	}

	var (
		handledMu sync.Mutex
		handledBy string
	)
	accepts := func(m gateway.Method) bool {
		handler, ok := m.(gateway.RedirectHandler)
		return ok && handler.RedirectGateway() == redirectGateway
	}
	err = d.perform(ctx, ActionHandleRedirect, params, accepts, func(ctx context.Context, m gateway.Method) error {
		if err := m.(gateway.RedirectHandler).HandleRedirect(ctx, query); err != nil {
			return err
		}
		handledMu.Lock()
		if handledBy == "" {
			handledBy = m.Name()
		}
		handledMu.Unlock()
		return nil
	})

	if handledBy != "" {
		if lerr := d.cfg.Ledger.Complete(ctx, d.cfg.SessionID, signature, handledBy); lerr != nil {
			logger.WithError(lerr).Error("Failed to record handled redirect")
		}
	} else if lerr := d.cfg.Ledger.Release(ctx, d.cfg.SessionID, signature); lerr != nil {
		logger.WithError(lerr).Error("Failed to release redirect claim")
	}
	return err
}

// redirectCorrelation ties a return to the cart and the in-flight intent of
// redirectGateway, so a later purchase in the same session is not mistaken
// for a reload. A cart read failure leaves the signature session-scoped.
func (d *Dispatcher) redirectCorrelation(ctx context.Context, redirectGateway string) string {
	cart, err := d.cfg.Store.Get(ctx)
	if err != nil || cart == nil {
		if err != nil {
			d.logger.WithError(err).Warn("Failed to read cart for redirect signature")
		}
		return ""
	}
	return cart.ID + ":" + cart.IntentID(redirectGateway)
}

// Authenticate confirms a recorded payment out of band. Every failure is
// returned in the result.
func (d *Dispatcher) Authenticate(ctx context.Context, paymentID string) *AuthenticateResult {
	result, err := d.authenticate(ctx, paymentID)
	if err != nil {
		d.logger.WithError(err).WithField("payment_id", paymentID).Warn("Payment authentication failed")
		return &AuthenticateResult{Error: err}
	}
	return result
}

func (d *Dispatcher) authenticate(ctx context.Context, paymentID string) (*AuthenticateResult, error) {
	payment, err := d.cfg.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, errors.New("Payment not found")
	}

	ctor, ok := d.cfg.Registry.Resolve(payment.Method, payment.Gateway)
	if !ok {
		return nil, &gateway.UnsupportedPaymentMethodError{Method: payment.Method, Gateway: payment.Gateway}
	}

	methods, err := d.Methods(ctx)
	if err != nil {
		return nil, err
	}
	if methods[payment.Method] == nil {
		return nil, &gateway.PaymentMethodDisabledError{Method: payment.Method}
	}

	m, err := ctor(d.deps, nil, methods)
	if err != nil {
		return nil, err
	}
	if err := d.cfg.Loader.Load(ctx, m.Scripts()...); err != nil {
		return nil, err
	}

	authenticator, ok := m.(gateway.Authenticator)
	if !ok {
		return nil, fmt.Errorf("%s payments do not support authentication", gateway.GetPaymentMethodDisplayName(payment.Method))
	}
	auth, err := authenticator.Authenticate(ctx, payment)
	if err != nil {
		return nil, err
	}
	return &AuthenticateResult{Status: auth.Status}, nil
}

type actionFunc func(ctx context.Context, m gateway.Method) error

// perform resolves a strategy for every method in params and runs action on
// each concurrently. Disabled and unsupported methods are logged and
// skipped, as are strategies rejected by accepts. Construction failures are
// returned joined; action failures are delivered to the strategy's OnError.
func (d *Dispatcher) perform(ctx context.Context, action string, params gateway.MethodParams, accepts func(gateway.Method) bool, run actionFunc) error {
	logger := d.logger.WithField("action", action)

	d.setState(StateResolvingMethods)
	methods, err := d.Methods(ctx)
	if err != nil {
		d.setState(StateFailed)
		return err
	}

	d.setState(StateDispatching)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		wg         sync.WaitGroup
		ctorErrs   []error
		failed     atomic.Bool
		dispatched int
	)
	for _, name := range names {
		methodLogger := logger.WithField("method", name)

		settings := methods[name]
		if settings == nil || (settings.Enabled != nil && !*settings.Enabled) {
			methodLogger.Error((&gateway.PaymentMethodDisabledError{Method: name}).Error())
			continue
		}

		ctor, ok := d.cfg.Registry.Resolve(name, settings.Gateway)
		if !ok {
			methodLogger.Error((&gateway.UnsupportedPaymentMethodError{Method: name, Gateway: settings.Gateway}).Error())
			continue
		}

		methodLogger = methodLogger.WithFields(logrus.Fields{"gateway": settings.Gateway, "state": StateInstantiate})
		m, err := ctor(d.deps, params[name], methods)
		if err != nil {
			methodLogger.WithError(err).Error("Failed to create payment method")
			ctorErrs = append(ctorErrs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if accepts != nil && !accepts(m) {
			methodLogger.Debug("Payment method does not handle this action")
			continue
		}

		dispatched++
		wg.Add(1)
		go func(m gateway.Method, log *logrus.Entry) {
			defer wg.Done()
			if !d.runOne(ctx, m, log, run) {
				failed.Store(true)
			}
		}(m, methodLogger)
	}
	wg.Wait()

	if failed.Load() || len(ctorErrs) > 0 {
		d.setState(StateFailed)
	} else {
		d.setState(StateSuccess)
	}
	logger.WithField("dispatched", dispatched).Debug("Dispatch finished")

	return errors.Join(ctorErrs...)
}

// runOne loads a strategy's scripts and runs the action. It reports false
// when the strategy failed.
func (d *Dispatcher) runOne(ctx context.Context, m gateway.Method, logger *logrus.Entry, run actionFunc) bool {
	logger.WithField("state", StateLoadScripts).Debug("Loading payment scripts")
	if err := d.cfg.Loader.Load(ctx, m.Scripts()...); err != nil {
		logger.WithError(err).WithField("state", StateFailed).Warn("Failed to load payment scripts")
		m.OnError(err)
		return false
	}

	logger.WithField("state", StateRunAction).Debug("Running payment action")
	if err := run(ctx, m); err != nil {
		logger.WithError(err).WithField("state", StateFailed).Warn("Payment action failed")
		m.OnError(err)
		return false
	}
	logger.WithField("state", StateSuccess).Debug("Payment action finished")
	return true
}

// RedirectSignature identifies a return by its correlation (cart and
// intent), gateway and query. Ledger rows are additionally scoped to the
// checkout session.
func RedirectSignature(correlation, redirectGateway string, query url.Values) string {
	sum := sha256.Sum256([]byte(correlation + "|" + redirectGateway + "?" + query.Encode()))
	return hex.EncodeToString(sum[:])
}

func queryJSON(query url.Values) models.JSONB {
	out := make(models.JSONB, len(query))
	for key, values := range query {
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		out[key] = values
	}
	return out
}
