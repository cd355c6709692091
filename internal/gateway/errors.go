package gateway

import (
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
)

// PaymentMethodDisabledError is returned when a method is not enabled in the
// store settings, or a method it depends on is not.
type PaymentMethodDisabledError struct {
	Method string
}

func (e *PaymentMethodDisabledError) Error() string {
	return fmt.Sprintf("%s payments are disabled. See Payment settings in the store dashboard for details", e.Method)
}

// UnsupportedPaymentMethodError is returned when no strategy handles a
// (method, gateway) pair.
type UnsupportedPaymentMethodError struct {
	Method  string
	Gateway string
}

func (e *UnsupportedPaymentMethodError) Error() string {
	msg := "Unsupported payment method: " + e.Method
	if e.Gateway != "" {
		msg += " (" + e.Gateway + ")"
	}
	return msg
}

// UnableAuthenticatePaymentMethodError is returned when the shopper canceled
// or the provider could not authenticate the payment method.
type UnableAuthenticatePaymentMethodError struct{}

func (e *UnableAuthenticatePaymentMethodError) Error() string {
	return "We are unable to authenticate your payment method. Please choose a different payment method and try again"
}

// MethodPropertyMissingError is returned when a method setting required by a
// strategy is empty.
type MethodPropertyMissingError struct {
	Method   string
	Property string
}

func (e *MethodPropertyMissingError) Error() string {
	return fmt.Sprintf("%s payment method property %q is not defined", e.Method, e.Property)
}

// DomElementNotFoundError is returned when a container element is missing
// from the page.
type DomElementNotFoundError struct {
	ID string
}

func (e *DomElementNotFoundError) Error() string {
	return fmt.Sprintf("DOM element with '%s' ID not found", e.ID)
}

// GatewayError represents an error from a payment gateway
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Gateway string `json:"gateway,omitempty"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// NewGatewayError creates a new gateway error
func NewGatewayError(gateway, code, message string) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Gateway: gateway,
	}
}

const (
	codeMissingIntent     = "missing_intent"
	codeIntentStatus      = "unsupported_intent_status"
	codeRedirectStatus    = "unknown_redirect_status"
	codeProviderError     = "provider_error"
	codeMissingElement    = "missing_element"
	codeDeviceUnsupported = "device_unsupported"
	codeInvalidAmount     = "invalid_amount"
	codeInvalidConfig     = "invalid_config"
)

// providerError returns the nested `error.message` some vault payloads carry
// instead of an `errors` map.
func providerError(gateway string, raw json.RawMessage) error {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var payload struct {
		Error *models.ProviderError `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == nil {
		return nil
	}
	return NewGatewayError(gateway, codeProviderError, payload.Error.Message)
}
