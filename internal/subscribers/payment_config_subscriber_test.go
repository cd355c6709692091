package subscribers

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInvalidator is a mock implementation of SettingsInvalidator
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, storeKey string) error {
	args := m.Called(ctx, storeKey)
	return args.Error(0)
}

func (m *MockInvalidator) InvalidateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ SettingsInvalidator = (*MockInvalidator)(nil)

// MockSource is a mock implementation of messageSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Subscribe(ctx context.Context, stream string, subjects []string, handler events.MessageHandler) error {
	args := m.Called(ctx, stream, subjects, handler)
	return args.Error(0)
}

func (m *MockSource) Close() {
	m.Called()
}

var _ messageSource = (*MockSource)(nil)

var testStore = StoreBinding{TenantID: "tenant-1", StoreKey: "pk_store"}

func newTestSubscriber(source messageSource, cache SettingsInvalidator) *PaymentConfigSubscriber {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return newPaymentConfigSubscriber(source, cache, testStore, logrus.NewEntry(logger))
}

func message(subject, data string) *events.Message {
	return &events.Message{Subject: subject, Data: []byte(data)}
}

// ==========================================================================
// HandleMessage
// ==========================================================================

func TestHandleMessage_InvalidatesStore(t *testing.T) {
	cache := new(MockInvalidator)
	cache.On("Invalidate", mock.Anything, "pk_store").Return(nil)
	sub := newTestSubscriber(nil, cache)

	err := sub.HandleMessage(context.Background(), message(events.PaymentConfigUpdated,
		`{"eventType":"payment_config.updated","tenantId":"tenant-1","paymentMethodCode":"card","provider":"stripe"}`))

	assert.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestHandleMessage_SubjectFallbackAndInvalidateAll(t *testing.T) {
	cache := new(MockInvalidator)
	cache.On("InvalidateAll", mock.Anything).Return(nil)
	sub := newTestSubscriber(nil, cache)

	err := sub.HandleMessage(context.Background(), message(events.PaymentConfigDisabled, `{}`))

	assert.NoError(t, err)
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestHandleMessage_IgnoresOtherTenant(t *testing.T) {
	cache := new(MockInvalidator)
	sub := newTestSubscriber(nil, cache)

	err := sub.HandleMessage(context.Background(), message(events.PaymentConfigEnabled, `{"tenantId":"tenant-2"}`))

	assert.NoError(t, err)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateAll", mock.Anything)
}

func TestHandleMessage_PropagatesCacheError(t *testing.T) {
	cache := new(MockInvalidator)
	cache.On("Invalidate", mock.Anything, "pk_store").Return(errors.New("redis down"))
	sub := newTestSubscriber(nil, cache)

	err := sub.HandleMessage(context.Background(), message(events.PaymentConfigEnabled, `{"tenantId":"tenant-1"}`))

	assert.EqualError(t, err, "redis down")
}

func TestHandleMessage_IgnoresTestedAndMalformed(t *testing.T) {
	cache := new(MockInvalidator)
	sub := newTestSubscriber(nil, cache)
	ctx := context.Background()

	assert.NoError(t, sub.HandleMessage(ctx, message(events.PaymentConfigTested, `{"testSuccess":true}`)))
	assert.NoError(t, sub.HandleMessage(ctx, message(events.PaymentConfigUpdated, `not json`)))
	assert.NoError(t, sub.HandleMessage(ctx, message("payment_config.archived", `{"tenantId":"tenant-1"}`)))

	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateAll", mock.Anything)
}

// ==========================================================================
// Lifecycle
// ==========================================================================

func TestStart_SubscribesToPaymentConfigStream(t *testing.T) {
	source := new(MockSource)
	source.On("Subscribe", mock.Anything, events.StreamPaymentConfigs, []string{
		events.PaymentConfigUpdated,
		events.PaymentConfigEnabled,
		events.PaymentConfigDisabled,
		events.PaymentConfigTested,
	}, mock.Anything).Return(nil).Once()
	source.On("Close").Return().Once()

	sub := newTestSubscriber(source, new(MockInvalidator))

	require.NoError(t, sub.Start(context.Background()))
	sub.Stop()
	sub.Stop()

	source.AssertExpectations(t)
}

func TestStart_SubscribeError(t *testing.T) {
	source := new(MockSource)
	source.On("Subscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("stream not found"))

	sub := newTestSubscriber(source, new(MockInvalidator))

	assert.EqualError(t, sub.Start(context.Background()), "stream not found")
}
