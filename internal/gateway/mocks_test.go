package gateway

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// MockCart is a mock implementation of CartBridge
type MockCart struct {
	mock.Mock
}

var _ CartBridge = (*MockCart)(nil)

func (m *MockCart) Get(ctx context.Context) (*models.Cart, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCart) Update(ctx context.Context, update *models.CartUpdate) (*models.Cart, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCart) GetSettings(ctx context.Context) (*models.StoreSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreSettings), args.Error(1)
}

// MockVault is a mock implementation of Vault
type MockVault struct {
	mock.Mock
}

var _ Vault = (*MockVault)(nil)

func (m *MockVault) CreateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *MockVault) UpdateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *MockVault) AuthorizeGateway(ctx context.Context, req *models.AuthorizationRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

// fakeStripe is a scripted Stripe.js client.
type fakeStripe struct {
	paymentMethod *stripe.PaymentMethod
	source        *stripe.Source
	request       sdk.PaymentRequest
	confirmed     []string
	handled       []string
}

var _ sdk.Stripe = (*fakeStripe)(nil)

func (f *fakeStripe) Elements(map[string]any) sdk.StripeElements { return fakeElements{} }

func (f *fakeStripe) CreatePaymentMethod(context.Context, *sdk.PaymentMethodRequest) (*stripe.PaymentMethod, error) {
	return f.paymentMethod, nil
}

func (f *fakeStripe) CreateSource(context.Context, *sdk.SourceRequest) (*stripe.Source, error) {
	return f.source, nil
}

func (f *fakeStripe) ConfirmCardPayment(_ context.Context, clientSecret string) (*stripe.PaymentIntent, error) {
	f.confirmed = append(f.confirmed, clientSecret)
	return &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresCapture}, nil
}

func (f *fakeStripe) HandleCardAction(_ context.Context, clientSecret string) (*stripe.PaymentIntent, error) {
	f.handled = append(f.handled, clientSecret)
	return &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresConfirmation}, nil
}

func (f *fakeStripe) PaymentRequest(*sdk.PaymentRequestOptions) (sdk.PaymentRequest, error) {
	return f.request, nil
}

type fakeElements struct{}

func (fakeElements) Create(elementType string, _ map[string]any) (sdk.StripeElement, error) {
	return &fakeElement{typ: elementType}, nil
}

type fakeElement struct {
	typ     string
	mounted string
}

func (e *fakeElement) Type() string { return e.typ }

func (e *fakeElement) On(string, func(sdk.ElementEvent)) {}

func (e *fakeElement) Mount(selector string) error {
	e.mounted = selector
	return nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

type harness struct {
	cart    *MockCart
	vault   *MockVault
	page    *host.SessionPage
	clients *ClientRegistry
	deps    Deps

	succeeded []any
}

func newHarness(t *testing.T, pageURL string, opts ...host.PageOption) *harness {
	t.Helper()
	page, err := host.NewSessionPage(pageURL, opts...)
	require.NoError(t, err)

	h := &harness{
		cart:    new(MockCart),
		vault:   new(MockVault),
		page:    page,
		clients: NewClientRegistry(),
	}
	h.deps = Deps{
		Cart:      h.cart,
		Vault:     h.vault,
		Page:      page,
		Libraries: scripts.NewLibraries(page),
		Clients:   h.clients,
		Logger:    testLogger(),
	}
	return h
}

func (h *harness) params() *Params {
	return &Params{
		OnSuccess: func(data any) { h.succeeded = append(h.succeeded, data) },
	}
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// intentBody decodes the intent a vault call carried.
func intentBody(t *testing.T, req *models.IntentRequest) map[string]any {
	t.Helper()
	b, err := json.Marshal(req.Intent)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}
