package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateSessionResponse is returned when a checkout session opens
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	PageURL   string `json:"pageUrl"`
	ExpiresIn int64  `json:"expiresIn"` // seconds of inactivity before expiry
}

// AuthenticateRequest asks a checkout session to confirm a payment
type AuthenticateRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// AuthenticateResponse carries the outcome of an out-of-band confirmation.
// Failures are reported in Error with a 200 status.
type AuthenticateResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ClickRequest presses a rendered provider button
type ClickRequest struct {
	ElementID string `json:"elementId" binding:"required"`
}
