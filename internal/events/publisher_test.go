package events

import (
	"context"
	"errors"
	"io"
	"testing"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSink is a mock implementation of eventSink
type MockSink struct {
	mock.Mock
}

var _ eventSink = (*MockSink)(nil)

func (m *MockSink) Publish(ctx context.Context, event gosharedevents.PublishableEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSink) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *MockSink) Close() {
	m.Called()
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNewCheckoutEvent(t *testing.T) {
	event := NewCheckoutEvent(CheckoutSucceeded, "sess-1")

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "checkout.succeeded", event.GetSubject())
	assert.Equal(t, StreamCheckout, event.GetStream())
	assert.Equal(t, "sess-1", event.SessionID)
	assert.Equal(t, "sess-1", event.SourceID)
	assert.False(t, event.Timestamp.IsZero())

	// A checkout event only validates once its tenant is known.
	assert.ErrorIs(t, event.Validate(), gosharedevents.ErrMissingTenantID)
}

func TestPublisher_NoSinkIsNoop(t *testing.T) {
	p := NewNoopPublisher(testLogger())

	require.NoError(t, p.Publish(context.Background(), &CheckoutEvent{}))
	assert.False(t, p.IsConnected())
	p.Close()
}

func TestPublisher_FillsTenantAndPublishes(t *testing.T) {
	sink := new(MockSink)
	sink.On("Publish", mock.Anything, mock.MatchedBy(func(e gosharedevents.PublishableEvent) bool {
		event, ok := e.(*CheckoutEvent)
		return ok &&
			event.TenantID == "store-1" &&
			event.EventID != "" &&
			!event.Timestamp.IsZero() &&
			e.GetSubject() == "checkout.failed" &&
			e.Validate() == nil
	})).Return(nil).Once()
	sink.On("IsConnected").Return(true)
	sink.On("Close").Return().Once()

	p := newPublisher(sink, "store-1", testLogger())
	event := &CheckoutEvent{SessionID: "sess-1", Method: "card"}
	event.EventType = CheckoutFailed

	require.NoError(t, p.Publish(context.Background(), event))
	assert.True(t, p.IsConnected())
	p.Close()
	sink.AssertExpectations(t)
}

func TestPublisher_KeepsExplicitTenant(t *testing.T) {
	sink := new(MockSink)
	sink.On("Publish", mock.Anything, mock.MatchedBy(func(e gosharedevents.PublishableEvent) bool {
		return e.(*CheckoutEvent).TenantID == "store-2"
	})).Return(nil).Once()

	p := newPublisher(sink, "store-1", testLogger())
	event := NewCheckoutEvent(CheckoutCanceled, "sess-1")
	event.TenantID = "store-2"

	require.NoError(t, p.Publish(context.Background(), event))
	sink.AssertExpectations(t)
}

func TestPublisher_WrapsSinkError(t *testing.T) {
	sink := new(MockSink)
	sink.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats: timeout"))

	p := newPublisher(sink, "store-1", testLogger())
	err := p.Publish(context.Background(), NewCheckoutEvent(CheckoutSucceeded, "sess-1"))

	require.Error(t, err)
	assert.Equal(t, "failed to publish checkout.succeeded: nats: timeout", err.Error())
}

func TestPublisher_CanceledContext(t *testing.T) {
	sink := new(MockSink)
	p := newPublisher(sink, "store-1", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, NewCheckoutEvent(CheckoutSucceeded, "sess-1")), context.Canceled)
	sink.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
