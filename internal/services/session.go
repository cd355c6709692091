package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"

	"checkout-service/internal/events"
	"checkout-service/internal/gateway"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/repository"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// ErrSessionNotFound is returned for unknown or expired checkout sessions.
var ErrSessionNotFound = errors.New("checkout session not found")

// EventPublisher publishes checkout outcomes.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.CheckoutEvent) error
}

// SessionBackend builds the per-session store and vault clients.
type SessionBackend interface {
	Store(cartSession string) Store
	Vault(cartSession string) gateway.Vault
}

// SessionConfig configures a SessionStore.
type SessionConfig struct {
	Backend        SessionBackend
	Registry       *gateway.Registry
	Ledger         repository.RedirectLedger
	Publisher      EventPublisher
	StripeBackends *stripe.Backends
	SettleDelay    time.Duration
	TTL            time.Duration
	Logger         *logrus.Entry
}

// CreateSessionRequest describes the page a checkout session models.
type CreateSessionRequest struct {
	PageURL     string   `json:"pageUrl" binding:"required,url"`
	CartSession string   `json:"cartSession,omitempty"`
	Elements    []string `json:"elements,omitempty"`
}

// SessionEvent is a strategy callback observed in a session.
type SessionEvent struct {
	Type    string    `json:"type"`
	Action  string    `json:"action"`
	Method  string    `json:"method"`
	Gateway string    `json:"gateway,omitempty"`
	Error   string    `json:"error,omitempty"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// DispatchResult is what one dispatcher call did to a session.
type DispatchResult struct {
	SessionID   string         `json:"sessionId"`
	State       DispatchState  `json:"state"`
	Location    string         `json:"location"`
	NavigatedTo string         `json:"navigatedTo,omitempty"`
	Effects     []host.Effect  `json:"effects"`
	Events      []SessionEvent `json:"events"`
	Errors      []string       `json:"errors,omitempty"`
}

// Session is one page load of a shopper's checkout.
type Session struct {
	ID          string
	CartSession string
	CreatedAt   time.Time

	page       *host.SessionPage
	dispatcher *Dispatcher
	ledger     repository.RedirectLedger
	publisher  EventPublisher
	logger     *logrus.Entry

	// Calls on one session are serialized, mirroring a single page.
	callMu sync.Mutex

	mu       sync.Mutex
	events   []SessionEvent
	lastSeen time.Time
}

// Page returns the page the session renders into.
func (s *Session) Page() *host.SessionPage { return s.page }

// Dispatcher returns the session's dispatcher.
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }

// Events returns a copy of the recorded callback events.
func (s *Session) Events() []SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Redirects lists the redirect returns this session has resumed.
func (s *Session) Redirects(ctx context.Context) ([]models.RedirectRecord, error) {
	return s.ledger.ListBySession(ctx, s.ID)
}

// CreateElements renders the methods in params.
func (s *Session) CreateElements(ctx context.Context, params gateway.MethodParams) (*DispatchResult, error) {
	return s.run(ctx, ActionCreateElements, params, s.dispatcher.CreateElements)
}

// Tokenize stores element inputs collected by the shopper, then tokenizes
// the methods in params.
func (s *Session) Tokenize(ctx context.Context, params gateway.MethodParams, inputs map[string]map[string]string) (*DispatchResult, error) {
	if len(inputs) > 0 {
		s.page.SetInputs(inputs)
	}
	return s.run(ctx, ActionTokenize, params, s.dispatcher.Tokenize)
}

// Return lands the page on its return URL carrying query, then resumes the
// redirect flow. Without params every configured method is offered the
// redirect.
func (s *Session) Return(ctx context.Context, query url.Values, params gateway.MethodParams) (*DispatchResult, error) {
	if len(params) == 0 {
		methods, err := s.dispatcher.Methods(ctx)
		if err != nil {
			return nil, err
		}
		params = make(gateway.MethodParams, len(methods))
		for name := range methods {
			params[name] = &gateway.Params{}
		}
	}

	landing := host.BaseURL(s.page.Location())
	if encoded := query.Encode(); encoded != "" {
		landing += "?" + encoded
	}
	s.page.ReplaceState(landing)

	return s.run(ctx, ActionHandleRedirect, params, s.dispatcher.HandleRedirect)
}

// Click presses the provider buttons rendered into an element.
func (s *Session) Click(ctx context.Context, elementID string) (*DispatchResult, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	effectsBefore, eventsBefore := len(s.page.Effects()), len(s.Events())
	err := s.page.Click(ctx, elementID)
	return s.result(effectsBefore, eventsBefore, err), err
}

// Authenticate confirms a recorded payment and publishes the outcome.
func (s *Session) Authenticate(ctx context.Context, paymentID string) *AuthenticateResult {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	result := s.dispatcher.Authenticate(ctx, paymentID)

	event := events.NewCheckoutEvent(events.CheckoutAuthenticated, s.ID)
	event.Action = ActionAuthenticate
	event.Data = map[string]any{"payment_id": paymentID, "status": result.Status}
	if result.Error != nil {
		event.EventType = events.CheckoutFailed
		event.Error = result.Error.Error()
	}
	s.publish(ctx, event)
	return result
}

type dispatchFunc func(ctx context.Context, params gateway.MethodParams) error

func (s *Session) run(ctx context.Context, action string, params gateway.MethodParams, dispatch dispatchFunc) (*DispatchResult, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	effectsBefore, eventsBefore := len(s.page.Effects()), len(s.Events())
	err := dispatch(ctx, s.bind(ctx, action, params))
	if isParamsError(err) {
		return nil, err
	}
	return s.result(effectsBefore, eventsBefore, err), nil
}

func isParamsError(err error) bool {
	return errors.Is(err, ErrElementParamsRequired) ||
		errors.Is(err, ErrTokenizeParamsRequired) ||
		errors.Is(err, ErrRedirectParamsRequired)
}

func (s *Session) result(effectsBefore, eventsBefore int, err error) *DispatchResult {
	effects := s.page.Effects()
	recorded := s.Events()
	result := &DispatchResult{
		SessionID:   s.ID,
		State:       s.dispatcher.State(),
		Location:    s.page.Location().String(),
		NavigatedTo: s.page.NavigatedTo(),
		Effects:     effects[effectsBefore:],
		Events:      recorded[eventsBefore:],
	}
	if err != nil {
		result.Errors = splitJoined(err)
	}
	return result
}

// splitJoined lists the errors wrapped by errors.Join, or err itself.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// bind attaches callbacks that record and publish strategy outcomes. Caller
// params are copied, never mutated.
func (s *Session) bind(ctx context.Context, action string, params gateway.MethodParams) gateway.MethodParams {
	if len(params) == 0 {
		return params
	}
	bound := make(gateway.MethodParams, len(params))
	for name, p := range params {
		cp := gateway.Params{}
		if p != nil {
			cp = *p
		}
		method := name
		cp.OnSuccess = func(data any) {
			s.observe(ctx, action, method, events.CheckoutSucceeded, data, nil)
		}
		cp.OnCancel = func() {
			s.observe(ctx, action, method, events.CheckoutCanceled, nil, nil)
		}
		cp.OnError = func(err error) {
			s.observe(ctx, action, method, events.CheckoutFailed, nil, err)
		}
		bound[name] = &cp
	}
	return bound
}

func (s *Session) observe(ctx context.Context, action, method, eventType string, data any, err error) {
	recorded := SessionEvent{
		Type:    eventType,
		Action:  action,
		Method:  method,
		Gateway: s.dispatcher.gatewayFor(method),
		Data:    data,
		At:      time.Now(),
	}
	if err != nil {
		recorded.Error = err.Error()
	}

	s.mu.Lock()
	s.events = append(s.events, recorded)
	s.mu.Unlock()

	event := events.NewCheckoutEvent(eventType, s.ID)
	event.Action = action
	event.Method = method
	event.Gateway = recorded.Gateway
	event.Error = recorded.Error
	if data != nil {
		event.Data = map[string]any{"result": data}
	}
	s.publish(ctx, event)
}

func (s *Session) publish(ctx context.Context, event *events.CheckoutEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.EventType).Warn("Failed to publish checkout event")
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore keeps live checkout sessions and expires idle ones.
type SessionStore struct {
	cfg    SessionConfig
	logger *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a session store and starts its cleanup loop.
func NewSessionStore(cfg SessionConfig) *SessionStore {
	if cfg.Registry == nil {
		cfg.Registry = gateway.DefaultRegistry()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = repository.NewMemoryLedger()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	st := &SessionStore{
		cfg:      cfg,
		logger:   logger.WithField("component", "services.sessions"),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	go st.cleanupLoop()
	return st
}

// Create opens a checkout session for a page.
func (st *SessionStore) Create(req *CreateSessionRequest) (*Session, error) {
	if st.cfg.Backend == nil {
		return nil, errors.New("checkout backend is not configured")
	}

	id := uuid.New().String()
	logger := st.cfg.Logger
	if logger == nil {
		logger = st.logger
	}
	logger = logger.WithField("session_id", id)

	backends := st.cfg.StripeBackends
	page, err := host.NewSessionPage(req.PageURL,
		host.WithElements(req.Elements...),
		host.WithProvider(scripts.GlobalStripe, func(p host.Page) any {
			return sdk.NewStripeFactory(p, backends)
		}),
	)
	if err != nil {
		return nil, err
	}

	var loaderOpts []scripts.LoaderOption
	if st.cfg.SettleDelay > 0 {
		loaderOpts = append(loaderOpts, scripts.WithSettleDelay(st.cfg.SettleDelay))
	}

	now := time.Now()
	session := &Session{
		ID:          id,
		CartSession: req.CartSession,
		CreatedAt:   now,
		page:        page,
		ledger:      st.cfg.Ledger,
		publisher:   st.cfg.Publisher,
		logger:      logger,
		lastSeen:    now,
	}
	session.dispatcher = NewDispatcher(DispatcherConfig{
		Store:     st.cfg.Backend.Store(req.CartSession),
		Vault:     st.cfg.Backend.Vault(req.CartSession),
		Page:      page,
		Loader:    scripts.NewLoader(page, logger, loaderOpts...),
		Registry:  st.cfg.Registry,
		Ledger:    st.cfg.Ledger,
		Clients:   gateway.NewClientRegistry(),
		SessionID: id,
		Logger:    logger,
	})

	st.mu.Lock()
	st.sessions[id] = session
	st.mu.Unlock()

	st.logger.WithFields(logrus.Fields{
		"session_id": id,
		"page_url":   req.PageURL,
	}).Info("Checkout session created")
	return session, nil
}

// Get returns a live session and marks it active.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	session, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(time.Now())
	return session, nil
}

// Delete ends a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// TTL is how long a session may stay idle.
func (st *SessionStore) TTL() time.Duration { return st.cfg.TTL }

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close stops the cleanup loop.
func (st *SessionStore) Close() {
	st.stopOnce.Do(func() { close(st.stop) })
}

func (st *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(st.cfg.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-st.stop:
			return
		case now := <-ticker.C:
			if removed := st.expire(now); removed > 0 {
				st.logger.WithField("expired", removed).Debug("Expired idle checkout sessions")
			}
		}
	}
}

// expire removes sessions idle for longer than the TTL.
func (st *SessionStore) expire(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, session := range st.sessions {
		if session.idleSince(now) > st.cfg.TTL {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// gatewayFor returns the configured gateway of a method once settings are
// known, without fetching them.
func (d *Dispatcher) gatewayFor(method string) string {
	d.methodsMu.RLock()
	defer d.methodsMu.RUnlock()
	if settings := d.methods[method]; settings != nil {
		return settings.Gateway
	}
	return ""
}
