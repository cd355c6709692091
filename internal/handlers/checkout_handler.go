package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-service/internal/gateway"
	"checkout-service/internal/middleware"
	"checkout-service/internal/models"
	"checkout-service/internal/services"
)

// DispatchRequest carries per-method parameters for one dispatcher call.
type DispatchRequest struct {
	Params gateway.MethodParams `json:"params"`
	// Inputs are element values keyed by selector, e.g. {"#card-element": {"token": "tok_visa"}}.
	Inputs map[string]map[string]string `json:"inputs,omitempty"`
}

// CheckoutHandler exposes checkout sessions over HTTP
type CheckoutHandler struct {
	sessions *services.SessionStore
	registry *gateway.Registry
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(sessions *services.SessionStore, registry *gateway.Registry) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		registry: registry,
	}
}

// RegisterRoutes mounts the checkout API on an /api/v1 group. Nil limits
// disable rate limiting.
func (h *CheckoutHandler) RegisterRoutes(api *gin.RouterGroup, limits *middleware.CheckoutRateLimits) {
	var create, dispatch gin.HandlerFunc = noLimit, noLimit
	if limits != nil {
		create = limits.CreateSession.Middleware()
		dispatch = limits.Dispatch.Middleware()
	}

	checkout := api.Group("/checkout")
	{
		checkout.GET("/strategies", h.ListStrategies)
		checkout.POST("/sessions", create, h.CreateSession)
		checkout.GET("/sessions/:id", h.GetSession)
		checkout.DELETE("/sessions/:id", h.DeleteSession)
		checkout.POST("/sessions/:id/elements", dispatch, h.CreateElements)
		checkout.POST("/sessions/:id/tokenize", dispatch, h.Tokenize)
		checkout.POST("/sessions/:id/click", dispatch, h.Click)
		checkout.GET("/sessions/:id/return", dispatch, h.Return)
	}
	api.POST("/payments/:id/authenticate", create, h.Authenticate)
}

func noLimit(c *gin.Context) { c.Next() }

// ==================== Sessions ====================

// CreateSession handles POST /api/v1/checkout/sessions
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	session, err := h.sessions.Create(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Failed to create checkout session",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, models.CreateSessionResponse{
		SessionID: session.ID,
		PageURL:   session.Page().Location().String(),
		ExpiresIn: int64(h.sessions.TTL().Seconds()),
	})
}

// GetSession handles GET /api/v1/checkout/sessions/:id
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	redirects, err := session.Redirects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to load redirects",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":   session.ID,
		"createdAt":   session.CreatedAt,
		"state":       session.Dispatcher().State(),
		"location":    session.Page().Location().String(),
		"navigatedTo": session.Page().NavigatedTo(),
		"effects":     session.Page().Effects(),
		"events":      session.Events(),
		"redirects":   redirects,
	})
}

// DeleteSession handles DELETE /api/v1/checkout/sessions/:id
func (h *CheckoutHandler) DeleteSession(c *gin.Context) {
	h.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// ==================== Dispatch ====================

// CreateElements handles POST /api/v1/checkout/sessions/:id/elements
func (h *CheckoutHandler) CreateElements(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	req, ok := bindDispatch(c)
	if !ok {
		return
	}

	result, err := session.CreateElements(c.Request.Context(), req.Params)
	respondDispatch(c, result, err)
}

// Tokenize handles POST /api/v1/checkout/sessions/:id/tokenize
func (h *CheckoutHandler) Tokenize(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	req, ok := bindDispatch(c)
	if !ok {
		return
	}

	result, err := session.Tokenize(c.Request.Context(), req.Params, req.Inputs)
	respondDispatch(c, result, err)
}

// Click handles POST /api/v1/checkout/sessions/:id/click
func (h *CheckoutHandler) Click(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req models.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	result, err := session.Click(c.Request.Context(), req.ElementID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Nothing to click",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Return handles GET /api/v1/checkout/sessions/:id/return, the landing
// point of redirect-based payment flows.
func (h *CheckoutHandler) Return(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.Return(c.Request.Context(), c.Request.URL.Query(), nil)
	respondDispatch(c, result, err)
}

// Authenticate handles POST /api/v1/payments/:id/authenticate
func (h *CheckoutHandler) Authenticate(c *gin.Context) {
	var req models.AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	session, err := h.sessions.Get(req.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Checkout session not found",
			Message: err.Error(),
		})
		return
	}

	paymentID := c.Param("id")
	result := session.Authenticate(c.Request.Context(), paymentID)

	response := models.AuthenticateResponse{
		PaymentID: paymentID,
		Status:    result.Status,
	}
	if result.Error != nil {
		response.Error = result.Error.Error()
	}
	c.JSON(http.StatusOK, response)
}

// ==================== Strategies ====================

// ListStrategies handles GET /api/v1/checkout/strategies
func (h *CheckoutHandler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategies": h.registry.Pairs(),
	})
}

// ==================== Helpers ====================

func (h *CheckoutHandler) session(c *gin.Context) (*services.Session, bool) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Checkout session not found",
			Message: err.Error(),
		})
		return nil, false
	}
	return session, true
}

func bindDispatch(c *gin.Context) (*DispatchRequest, bool) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return nil, false
	}
	return &req, true
}

// respondDispatch writes a dispatch result. Strategy failures are part of
// the result; only missing parameters and unreadable settings fail the call.
func respondDispatch(c *gin.Context, result *services.DispatchResult, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, services.ErrElementParamsRequired) ||
			errors.Is(err, services.ErrTokenizeParamsRequired) ||
			errors.Is(err, services.ErrRedirectParamsRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{
			Error:   "Checkout dispatch failed",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}
