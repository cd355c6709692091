package models

// IntentRequest is the body of vault intent calls.
type IntentRequest struct {
	Gateway string `json:"gateway"`
	Intent  any    `json:"intent"`
}

// AuthorizationRequest is the body of vault authorization calls.
type AuthorizationRequest struct {
	Gateway string `json:"gateway"`
	Params  any    `json:"params,omitempty"`
}

// VaultErrorDetail is one entry of a vault error map.
type VaultErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProviderError is the nested error some gateway payloads carry.
type ProviderError struct {
	Message string `json:"message"`
}
