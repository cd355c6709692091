package events

import (
	"context"
	"fmt"
	"time"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Checkout event types. Each is published on subject "checkout.<type>".
const (
	CheckoutSucceeded = "succeeded"
	CheckoutCanceled  = "canceled"
	CheckoutFailed    = "failed"
	// CheckoutAuthenticated is published after an out-of-band authentication.
	CheckoutAuthenticated = "authenticated"
)

// SubjectPrefix is the subject namespace of checkout events.
const SubjectPrefix = "checkout."

// StreamCheckout is the JetStream stream holding checkout events.
const StreamCheckout = "CHECKOUT_EVENTS"

// CheckoutEvent is a strategy outcome observed in a checkout session. The
// tenant is the store the service checks out for.
type CheckoutEvent struct {
	gosharedevents.BaseEvent

	EventID   string         `json:"eventId"`
	SessionID string         `json:"sessionId"`
	Method    string         `json:"method,omitempty"`
	Gateway   string         `json:"gateway,omitempty"`
	Action    string         `json:"action,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewCheckoutEvent creates an event of eventType for a session
func NewCheckoutEvent(eventType, sessionID string) *CheckoutEvent {
	return &CheckoutEvent{
		BaseEvent: gosharedevents.BaseEvent{
			EventType: eventType,
			SourceID:  sessionID,
			Timestamp: time.Now().UTC(),
		},
		EventID:   uuid.New().String(),
		SessionID: sessionID,
	}
}

// GetSubject returns the subject the event is published on.
func (e *CheckoutEvent) GetSubject() string {
	return SubjectPrefix + e.EventType
}

// GetStream returns the stream the event is stored in.
func (e *CheckoutEvent) GetStream() string {
	return StreamCheckout
}

var _ gosharedevents.PublishableEvent = (*CheckoutEvent)(nil)

// eventSink is the part of the shared JetStream publisher checkout uses.
type eventSink interface {
	Publish(ctx context.Context, event gosharedevents.PublishableEvent) error
	IsConnected() bool
	Close()
}

// Publisher wraps the shared events publisher for checkout events. A
// publisher without a sink drops every event.
type Publisher struct {
	sink     eventSink
	tenantID string
	logger   *logrus.Entry
}

// NewPublisher connects to NATS JetStream and ensures the checkout stream.
func NewPublisher(natsURL, tenantID string, logger *logrus.Logger) (*Publisher, error) {
	config := gosharedevents.DefaultPublisherConfig(natsURL)
	config.Name = "checkout-service"

	publisher, err := gosharedevents.NewPublisher(config, logger)
	if err != nil {
		return nil, err
	}

	if err := publisher.EnsureStream(context.Background(), StreamCheckout, []string{SubjectPrefix + ">"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure CHECKOUT_EVENTS stream")
	}

	return newPublisher(publisher, tenantID, logrus.NewEntry(logger)), nil
}

// NewNoopPublisher returns a publisher used when NATS is not configured.
func NewNoopPublisher(logger *logrus.Entry) *Publisher {
	return newPublisher(nil, "", logger)
}

func newPublisher(sink eventSink, tenantID string, logger *logrus.Entry) *Publisher {
	return &Publisher{
		sink:     sink,
		tenantID: tenantID,
		logger:   logger.WithField("component", "events.publisher"),
	}
}

// Publish sends an event. Events without an ID, tenant or timestamp get one.
func (p *Publisher) Publish(ctx context.Context, event *CheckoutEvent) error {
	if p.sink == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.TenantID == "" {
		event.TenantID = p.tenantID
	}
	event.SetTimestamp()

	if err := p.sink.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.GetSubject(), err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":    event.GetSubject(),
		"session_id": event.SessionID,
		"method":     event.Method,
	}).Debug("Published checkout event")
	return nil
}

// IsConnected reports whether events reach NATS
func (p *Publisher) IsConnected() bool {
	return p.sink != nil && p.sink.IsConnected()
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	if p.sink != nil {
		p.sink.Close()
	}
}
