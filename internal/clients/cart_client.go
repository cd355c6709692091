package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkout-service/internal/models"
)

// CartNotFoundError is returned when the store has no cart for the session.
type CartNotFoundError struct{}

func (e *CartNotFoundError) Error() string { return "Cart not found" }

// PaymentNotFoundError is returned when a payment ID is unknown.
type PaymentNotFoundError struct {
	ID string
}

func (e *PaymentNotFoundError) Error() string { return "Payment not found" }

// PaymentMethodsCache caches method settings per store.
type PaymentMethodsCache interface {
	GetPaymentMethods(ctx context.Context, storeKey string) (models.PaymentMethods, bool)
	SetPaymentMethods(ctx context.Context, storeKey string, methods models.PaymentMethods)
}

// CartClient talks to the store API on behalf of one shopper session.
type CartClient struct {
	baseURL    string
	publicKey  string
	session    string
	httpClient *http.Client
	cache      PaymentMethodsCache
	logger     *logrus.Entry
}

// CartClientConfig configures a CartClient.
type CartClientConfig struct {
	BaseURL   string
	PublicKey string
	Timeout   time.Duration
	Cache     PaymentMethodsCache
}

// NewCartClient creates a store API client.
func NewCartClient(cfg CartClientConfig, logger *logrus.Entry) *CartClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &CartClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:  cfg.PublicKey,
		httpClient: newHTTPClient(timeout),
		cache:      cfg.Cache,
		logger:     logger.WithField("component", "clients.cart"),
	}
}

// ForSession returns a copy of the client scoped to a shopper session.
func (c *CartClient) ForSession(session string) *CartClient {
	scoped := *c
	scoped.session = session
	scoped.logger = c.logger.WithField("cart_session", session)
	return &scoped
}

// Get fetches the session cart.
func (c *CartClient) Get(ctx context.Context) (*models.Cart, error) {
	data, err := c.call(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	if isNullBody(data) {
		return nil, &CartNotFoundError{}
	}

	var cart models.Cart
	if err := decodeSnake(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}

// Update merges a partial update into the session cart. A nil cart with a
// nil error means the store rejected the update without an error body.
func (c *CartClient) Update(ctx context.Context, update *models.CartUpdate) (*models.Cart, error) {
	data, err := c.call(ctx, http.MethodPut, "/cart", update)
	if err != nil {
		return nil, err
	}
	if isNullBody(data) {
		return nil, nil
	}

	var cart models.Cart
	if err := decodeSnake(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}

// GetSettings fetches the store-level settings.
func (c *CartClient) GetSettings(ctx context.Context) (*models.StoreSettings, error) {
	data, err := c.call(ctx, http.MethodGet, "/settings", nil)
	if err != nil {
		return nil, err
	}

	var settings models.Settings
	if !isNullBody(data) {
		if err := decodeSnake(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	if settings.Store == nil {
		return &models.StoreSettings{}, nil
	}
	return settings.Store, nil
}

// GetPaymentMethods fetches payment method settings, consulting the cache first.
func (c *CartClient) GetPaymentMethods(ctx context.Context) (models.PaymentMethods, error) {
	if c.cache != nil {
		if methods, ok := c.cache.GetPaymentMethods(ctx, c.publicKey); ok {
			return methods, nil
		}
	}

	data, err := c.call(ctx, http.MethodGet, "/payment/methods", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		return nil, errors.New(envelope.Error)
	}

	methods := models.PaymentMethods{}
	if !isNullBody(data) {
		if err := decodeSnake(data, &methods); err != nil {
			return nil, fmt.Errorf("failed to decode payment methods: %w", err)
		}
	}

	if c.cache != nil {
		c.cache.SetPaymentMethods(ctx, c.publicKey, methods)
	}
	return methods, nil
}

// GetPayment fetches a payment record.
func (c *CartClient) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	if id == "" {
		return nil, &PaymentNotFoundError{}
	}
	data, err := c.call(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, &PaymentNotFoundError{ID: id}
		}
		return nil, err
	}
	if isNullBody(data) {
		return nil, &PaymentNotFoundError{ID: id}
	}

	var payment models.Payment
	if err := decodeSnake(data, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}
	return &payment, nil
}

func (c *CartClient) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	req := apiRequest{
		method:    method,
		url:       c.baseURL + path,
		publicKey: c.publicKey,
		session:   c.session,
	}
	if body != nil {
		req.body = body
	}

	status, data, err := do(ctx, c.httpClient, req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Error("Store API request failed")
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &StatusError{Method: method, URL: req.url, StatusCode: status, Body: string(data)}
	}
	return data, nil
}
