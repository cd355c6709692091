package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/events"
	"checkout-service/internal/gateway"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
)

// fakeBackend hands every session the same store.
type fakeBackend struct {
	store *MockStore
	carts []string
}

func (b *fakeBackend) Store(cartSession string) Store {
	b.carts = append(b.carts, cartSession)
	return b.store
}

func (b *fakeBackend) Vault(string) gateway.Vault { return noVault{} }

type noVault struct{}

func (noVault) CreateIntent(context.Context, *models.IntentRequest) (json.RawMessage, error) {
	return nil, errors.New("vault unavailable")
}

func (noVault) UpdateIntent(context.Context, *models.IntentRequest) (json.RawMessage, error) {
	return nil, errors.New("vault unavailable")
}

func (noVault) AuthorizeGateway(context.Context, *models.AuthorizationRequest) (json.RawMessage, error) {
	return nil, errors.New("vault unavailable")
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mu     sync.Mutex
	events []*events.CheckoutEvent
}

var _ EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(_ context.Context, event *events.CheckoutEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.GetSubject())
	}
	return out
}

// succeedingMethod reports success from every action.
type succeedingMethod struct {
	fakeMethod
	params *gateway.Params
}

func (s *succeedingMethod) CreateElements(context.Context) error {
	s.params.OnSuccess(map[string]any{"rendered": true})
	return nil
}

func (s *succeedingMethod) OnError(err error) { s.params.OnError(err) }

func newSessionStore(t *testing.T, registry *gateway.Registry, store *MockStore, publisher EventPublisher) (*SessionStore, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{store: store}
	st := NewSessionStore(SessionConfig{
		Backend:     backend,
		Registry:    registry,
		Publisher:   publisher,
		SettleDelay: time.Millisecond,
		TTL:         time.Hour,
		Logger:      testLogger(),
	})
	t.Cleanup(st.Close)
	return st, backend
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	st, backend := newSessionStore(t, gateway.NewRegistry(), new(MockStore), nil)

	session, err := st.Create(&CreateSessionRequest{
		PageURL:     "https://shop.example/checkout",
		CartSession: "cart-123",
		Elements:    []string{"#card-element"},
	})
	require.NoError(t, err)

	got, err := st.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, []string{"cart-123"}, backend.carts)
	_, ok := got.Page().Element("card-element")
	assert.True(t, ok)

	st.Delete(session.ID)
	_, err = st.Get(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_RejectsRelativePageURL(t *testing.T) {
	st, _ := newSessionStore(t, gateway.NewRegistry(), new(MockStore), nil)

	_, err := st.Create(&CreateSessionRequest{PageURL: "/checkout"})
	assert.Error(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestSessionStore_ExpiresIdleSessions(t *testing.T) {
	st, _ := newSessionStore(t, gateway.NewRegistry(), new(MockStore), nil)

	idle, err := st.Create(&CreateSessionRequest{PageURL: "https://shop.example/checkout"})
	require.NoError(t, err)
	active, err := st.Create(&CreateSessionRequest{PageURL: "https://shop.example/checkout"})
	require.NoError(t, err)

	now := time.Now()
	idle.touch(now.Add(-2 * time.Hour))
	active.touch(now)

	assert.Equal(t, 1, st.expire(now))
	_, err = st.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.Get(active.ID)
	assert.NoError(t, err)
}

func TestSession_CreateElementsRecordsAndPublishesEvents(t *testing.T) {
	registry := gateway.NewRegistry()
	registry.Register(models.MethodCard, models.GatewayStripe, func(_ gateway.Deps, params *gateway.Params, _ models.PaymentMethods) (gateway.Method, error) {
		return &succeedingMethod{fakeMethod: fakeMethod{name: models.MethodCard, rec: newRecorder()}, params: params}, nil
	})
	registry.Register(models.MethodPayPal, models.GatewayPayPal, func(_ gateway.Deps, params *gateway.Params, _ models.PaymentMethods) (gateway.Method, error) {
		return &succeedingMethod{
			fakeMethod: fakeMethod{name: models.MethodPayPal, scripts: []scripts.Script{scripts.ID("paypal-sdk")}, rec: newRecorder()},
			params:     params,
		}, nil
	})
	store := new(MockStore)
	store.On("GetPaymentMethods", mock.Anything).Return(settings(
		models.MethodCard, models.GatewayStripe,
		models.MethodPayPal, models.GatewayPayPal,
	), nil)
	publisher := &MockPublisher{}
	st, _ := newSessionStore(t, registry, store, publisher)

	session, err := st.Create(&CreateSessionRequest{PageURL: "https://shop.example/checkout"})
	require.NoError(t, err)

	caller := &gateway.Params{Locale: "de"}
	result, err := session.CreateElements(context.Background(), gateway.MethodParams{
		models.MethodCard:   caller,
		models.MethodPayPal: {},
	})
	require.NoError(t, err)

	// The PayPal SDK is injected but installs no global on a server page.
	require.Len(t, result.Events, 2)
	byMethod := map[string]SessionEvent{}
	for _, e := range result.Events {
		byMethod[e.Method] = e
	}
	assert.Equal(t, events.CheckoutSucceeded, byMethod[models.MethodCard].Type)
	assert.Equal(t, models.GatewayStripe, byMethod[models.MethodCard].Gateway)
	assert.Equal(t, events.CheckoutFailed, byMethod[models.MethodPayPal].Type)
	assert.Equal(t, "PayPal was not loaded", byMethod[models.MethodPayPal].Error)
	assert.Equal(t, StateFailed, result.State)

	var scriptsInjected []string
	for _, effect := range result.Effects {
		if effect.Kind == host.EffectScript {
			scriptsInjected = append(scriptsInjected, effect.Target)
		}
	}
	assert.Equal(t, []string{"paypal-sdk"}, scriptsInjected)

	assert.ElementsMatch(t, []string{"checkout.succeeded", "checkout.failed"}, publisher.subjects())
	assert.Nil(t, caller.OnSuccess)
	assert.Len(t, session.Events(), 2)
}

func TestSession_EmptyParamsIsAnError(t *testing.T) {
	st, _ := newSessionStore(t, gateway.NewRegistry(), new(MockStore), nil)
	session, err := st.Create(&CreateSessionRequest{PageURL: "https://shop.example/checkout"})
	require.NoError(t, err)

	_, err = session.Tokenize(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrTokenizeParamsRequired)
}

func TestSession_ReturnOffersRedirectToConfiguredMethods(t *testing.T) {
	rec := newRecorder()
	registry := gateway.NewRegistry()
	registry.Register(models.MethodCard, models.GatewayQuickpay, redirectCtor(rec, models.MethodCard, "quickpay", nil))
	registry.Register(models.MethodAmazon, gateway.AnyGateway, redirectCtor(rec, models.MethodAmazon, "amazon", nil))
	store := new(MockStore)
	store.On("GetPaymentMethods", mock.Anything).Return(settings(
		models.MethodCard, models.GatewayQuickpay,
		models.MethodAmazon, models.GatewayAmazon,
	), nil)
	store.On("Get", mock.Anything).Return(&models.Cart{ID: "cart-1"}, nil)
	st, _ := newSessionStore(t, registry, store, nil)

	session, err := st.Create(&CreateSessionRequest{PageURL: "https://shop.example/checkout?step=payment"})
	require.NoError(t, err)

	query := url.Values{"gateway": {"amazon"}, "redirect_status": {"succeeded"}}
	result, err := session.Return(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"amazon:handleRedirect:succeeded"}, rec.sorted())
	assert.Equal(t, "https://shop.example/checkout", result.Location)

	redirects, err := session.Redirects(context.Background())
	require.NoError(t, err)
	require.Len(t, redirects, 1)
	assert.Equal(t, "amazon", redirects[0].Gateway)
	assert.Equal(t, models.MethodAmazon, redirects[0].Method)
	assert.Equal(t, models.RedirectSucceeded, redirects[0].Status)
	assert.Equal(t, session.ID, redirects[0].SessionID)
}
