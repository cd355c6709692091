package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/gateway"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubStore serves fixed payment method settings.
type stubStore struct {
	methods models.PaymentMethods
}

func (s *stubStore) Get(context.Context) (*models.Cart, error) {
	return &models.Cart{}, nil
}

func (s *stubStore) Update(context.Context, *models.CartUpdate) (*models.Cart, error) {
	return &models.Cart{}, nil
}

func (s *stubStore) GetSettings(context.Context) (*models.StoreSettings, error) {
	return &models.StoreSettings{}, nil
}

func (s *stubStore) GetPaymentMethods(context.Context) (models.PaymentMethods, error) {
	return s.methods, nil
}

func (s *stubStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	return nil, errors.New("Payment not found")
}

type stubBackend struct {
	store *stubStore
}

func (b *stubBackend) Store(string) services.Store { return b.store }

func (b *stubBackend) Vault(string) gateway.Vault { return nil }

func setupRouter(t *testing.T, methods models.PaymentMethods) (*gin.Engine, *services.SessionStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := gateway.DefaultRegistry()
	sessions := services.NewSessionStore(services.SessionConfig{
		Backend:     &stubBackend{store: &stubStore{methods: methods}},
		Registry:    registry,
		SettleDelay: time.Millisecond,
		TTL:         time.Hour,
		Logger:      logrus.NewEntry(logger),
	})
	t.Cleanup(sessions.Close)

	router := gin.New()
	NewCheckoutHandler(sessions, registry).RegisterRoutes(router.Group("/api/v1"), nil)
	return router, sessions
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router *gin.Engine, elements ...string) string {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/checkout/sessions", services.CreateSessionRequest{
		PageURL:  "https://shop.example/checkout",
		Elements: elements,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	return resp.SessionID
}

func TestCreateSession_InvalidRequest(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/checkout/sessions", map[string]string{"pageUrl": "not a url"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/checkout/sessions/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Checkout session not found", resp.Error)
}

func TestGetSession(t *testing.T) {
	router, _ := setupRouter(t, nil)
	id := createSession(t, router, "card-element")

	w := doJSON(router, http.MethodGet, "/api/v1/checkout/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp["sessionId"])
	assert.Equal(t, string(services.StateIdle), resp["state"])
	assert.Equal(t, "https://shop.example/checkout", resp["location"])
	assert.Contains(t, resp, "redirects")
}

func TestCreateElements_EmptyParams(t *testing.T) {
	router, _ := setupRouter(t, nil)
	id := createSession(t, router)

	w := doJSON(router, http.MethodPost, "/api/v1/checkout/sessions/"+id+"/elements", DispatchRequest{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Payment element parameters are not provided", resp.Message)
}

func TestCreateElements_MountsStripeCard(t *testing.T) {
	router, _ := setupRouter(t, models.PaymentMethods{
		models.MethodCard: {Gateway: models.GatewayStripe, PublishableKey: "pk_test_123"},
	})
	id := createSession(t, router, "card-element")

	w := doJSON(router, http.MethodPost, "/api/v1/checkout/sessions/"+id+"/elements", map[string]any{
		"params": map[string]any{
			"card":  map[string]any{},
			"ideal": map[string]any{},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, services.StateSuccess, result.State)
	assert.Empty(t, result.Events)

	kinds := map[string]string{}
	for _, effect := range result.Effects {
		kinds[effect.Kind] = effect.Target
	}
	assert.Equal(t, "stripe-js", kinds[host.EffectScript])
	assert.Equal(t, "card-element", kinds[host.EffectMount])
}

func TestCreateElements_MissingContainerIsReportedAsEvent(t *testing.T) {
	router, _ := setupRouter(t, models.PaymentMethods{
		models.MethodCard: {Gateway: models.GatewayStripe, PublishableKey: "pk_test_123"},
	})
	id := createSession(t, router)

	w := doJSON(router, http.MethodPost, "/api/v1/checkout/sessions/"+id+"/elements", map[string]any{
		"params": map[string]any{"card": map[string]any{}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result services.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Events, 1)
	assert.Equal(t, "failed", result.Events[0].Type)
	assert.Equal(t, "card", result.Events[0].Method)
	assert.Equal(t, "stripe", result.Events[0].Gateway)
	assert.Contains(t, result.Events[0].Error, "card-element")
}

func TestReturn_StripsQuery(t *testing.T) {
	router, _ := setupRouter(t, models.PaymentMethods{
		models.MethodCard: {Gateway: models.GatewayStripe},
	})
	id := createSession(t, router)

	w := doJSON(router, http.MethodGet, "/api/v1/checkout/sessions/"+id+"/return?gateway=unknown&redirect_status=succeeded", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "https://shop.example/checkout", result.Location)
	assert.Empty(t, result.Events)
}

func TestAuthenticate_ReportsErrorInBody(t *testing.T) {
	router, _ := setupRouter(t, nil)
	id := createSession(t, router)

	w := doJSON(router, http.MethodPost, "/api/v1/payments/pay_1/authenticate", models.AuthenticateRequest{SessionID: id})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AuthenticateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pay_1", resp.PaymentID)
	assert.Equal(t, "Payment not found", resp.Error)
}

func TestAuthenticate_UnknownSession(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/payments/pay_1/authenticate", models.AuthenticateRequest{SessionID: "missing"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListStrategies(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/checkout/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Strategies []gateway.Pair `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Strategies, 14)
	assert.Equal(t, gateway.Pair{Method: "amazon", Gateway: "*", DisplayName: "Amazon Pay (any gateway)"}, resp.Strategies[0])
}

func TestDeleteSession(t *testing.T) {
	router, sessions := setupRouter(t, nil)
	id := createSession(t, router)

	w := doJSON(router, http.MethodDelete, "/api/v1/checkout/sessions/"+id, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, sessions.Len())
}
