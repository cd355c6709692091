package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Tesseract-Nexus/go-shared/httpclient"
	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

// getRetry governs retries of idempotent store reads.
var getRetry = httpclient.DefaultRetryConfig()

// newHTTPClient returns a pooled client for store and vault calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	config := httpclient.GetProfileConfig(httpclient.ProfileExternal)
	config.Timeout = timeout
	config.DialTimeout = 5 * time.Second
	config.TLSHandshakeTimeout = 5 * time.Second
	config.ResponseHeaderTimeout = 10 * time.Second
	return httpclient.NewClient(config)
}

// apiRequest is one JSON call against the store or vault API.
type apiRequest struct {
	method    string
	url       string
	body      any
	publicKey string
	session   string
}

// do sends req and returns the status and raw body. GET requests are
// retried on transport errors and retryable statuses.
func do(ctx context.Context, httpClient *http.Client, req apiRequest) (int, []byte, error) {
	if req.method != http.MethodGet {
		return send(ctx, httpClient, req)
	}

	for attempt := 0; ; attempt++ {
		status, data, err := send(ctx, httpClient, req)
		if attempt >= getRetry.MaxRetries || (err == nil && !getRetry.IsRetryableStatus(status)) {
			return status, data, err
		}

		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return status, data, err
		case <-time.After(getRetry.CalculateDelay(attempt)):
		}
	}
}

func send(ctx context.Context, httpClient *http.Client, req apiRequest) (int, []byte, error) {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.publicKey != "" {
		httpReq.SetBasicAuth(req.publicKey, "")
	}
	if req.session != "" {
		httpReq.Header.Set("X-Session", req.session)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.method, req.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isNullBody(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
