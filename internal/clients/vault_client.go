package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkout-service/internal/models"
)

const (
	vaultErrorCode   = "vault_error"
	vaultErrorStatus = http.StatusPaymentRequired
)

// VaultError is a field-level validation failure reported by the vault.
type VaultError struct {
	Code    string
	Status  int
	Param   string
	Message string
}

func (e *VaultError) Error() string {
	return e.Message
}

// VaultClient is the authenticated transport to the vault backend that
// creates and updates gateway intents and issues gateway authorizations.
type VaultClient struct {
	baseURL    string
	publicKey  string
	session    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// VaultClientConfig configures a VaultClient.
type VaultClientConfig struct {
	BaseURL   string
	PublicKey string
	Timeout   time.Duration
}

// NewVaultClient creates a vault client.
func NewVaultClient(cfg VaultClientConfig, logger *logrus.Entry) *VaultClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &VaultClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:  cfg.PublicKey,
		httpClient: newHTTPClient(timeout),
		logger:     logger.WithField("component", "clients.vault"),
	}
}

// ForSession returns a copy of the client scoped to a shopper session.
func (c *VaultClient) ForSession(session string) *VaultClient {
	scoped := *c
	scoped.session = session
	scoped.logger = c.logger.WithField("cart_session", session)
	return &scoped
}

// CreateIntent creates a gateway intent.
func (c *VaultClient) CreateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/intent", req)
}

// UpdateIntent updates a gateway intent.
func (c *VaultClient) UpdateIntent(ctx context.Context, req *models.IntentRequest) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, "/intent", req)
}

// AuthorizeGateway requests a gateway authorization (client token, merchant
// session, domain verification, hosted payment link).
func (c *VaultClient) AuthorizeGateway(ctx context.Context, req *models.AuthorizationRequest) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/authorization", req)
}

func (c *VaultClient) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req := apiRequest{
		method:    method,
		url:       c.baseURL + path,
		body:      body,
		publicKey: c.publicKey,
		session:   c.session,
	}

	status, data, err := do(ctx, c.httpClient, req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Error("Vault request failed")
		return nil, err
	}

	if vaultErr := parseVaultError(data); vaultErr != nil {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"param":  vaultErr.Param,
			"status": status,
		}).Warn("Vault rejected request")
		return nil, vaultErr
	}

	if !isSuccess(status) {
		return nil, &StatusError{Method: method, URL: req.url, StatusCode: status, Body: string(data)}
	}
	if isNullBody(data) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// parseVaultError returns a VaultError for the first entry of an `errors`
// object in data, keeping document order.
func parseVaultError(data []byte) *VaultError {
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || isNullBody(envelope.Errors) {
		return nil
	}

	vaultErr := &VaultError{
		Code:    vaultErrorCode,
		Status:  vaultErrorStatus,
		Message: "Unknown error",
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Errors))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return vaultErr
	}
	if !dec.More() {
		return vaultErr
	}
	tok, err := dec.Token()
	if err != nil {
		return vaultErr
	}
	key, _ := tok.(string)
	vaultErr.Param = key

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return vaultErr
	}
	var detail models.VaultErrorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		vaultErr.Message = detail.Message
	}
	return vaultErr
}
