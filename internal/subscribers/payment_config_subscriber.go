package subscribers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
)

// SettingsInvalidator drops cached payment method settings.
type SettingsInvalidator interface {
	Invalidate(ctx context.Context, storeKey string) error
	InvalidateAll(ctx context.Context) error
}

// messageSource is the part of the shared JetStream subscriber used here.
type messageSource interface {
	Subscribe(ctx context.Context, stream string, subjects []string, handler events.MessageHandler) error
	Close()
}

// StoreBinding ties the store tenant that payment config events name to
// the key its settings are cached under.
type StoreBinding struct {
	TenantID string
	StoreKey string
}

// PaymentConfigSubscriber keeps the settings cache in step with payment
// config changes made in the store admin.
type PaymentConfigSubscriber struct {
	source    messageSource
	cache     SettingsInvalidator
	store     StoreBinding
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    *logrus.Entry
}

// NewPaymentConfigSubscriber connects a durable consumer to the payment
// config stream.
func NewPaymentConfigSubscriber(natsURL string, cache SettingsInvalidator, store StoreBinding, logger *logrus.Logger) (*PaymentConfigSubscriber, error) {
	config := events.DefaultSubscriberConfig(natsURL, "checkout-service-config-sync")
	config.Name = "checkout-service-payment-config"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 5
	config.AckWait = 30 * time.Second

	subscriber, err := events.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return newPaymentConfigSubscriber(subscriber, cache, store, logrus.NewEntry(logger)), nil
}

func newPaymentConfigSubscriber(source messageSource, cache SettingsInvalidator, store StoreBinding, logger *logrus.Entry) *PaymentConfigSubscriber {
	return &PaymentConfigSubscriber{
		source: source,
		cache:  cache,
		store:  store,
		logger: logger.WithField("component", "payment-config-subscriber"),
	}
}

// Start subscribes to payment config events
func (s *PaymentConfigSubscriber) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	subjects := []string{
		events.PaymentConfigUpdated,
		events.PaymentConfigEnabled,
		events.PaymentConfigDisabled,
		events.PaymentConfigTested,
	}

	if err := s.source.Subscribe(ctx, events.StreamPaymentConfigs, subjects, s.HandleMessage); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"stream":   events.StreamPaymentConfigs,
		"subjects": subjects,
	}).Info("Payment config subscriber started successfully")
	return nil
}

// HandleMessage processes one payment config message. Malformed events are
// acknowledged and dropped.
func (s *PaymentConfigSubscriber) HandleMessage(ctx context.Context, msg *events.Message) error {
	var event events.PaymentConfigEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.WithError(err).WithField("subject", msg.Subject).Error("Failed to unmarshal payment config event")
		return nil
	}
	if event.EventType == "" {
		event.EventType = msg.Subject
	}

	log := s.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
		"method":     event.PaymentMethodCode,
		"provider":   event.Provider,
		"is_enabled": event.IsEnabled,
	})
	log.Info("Received payment config event")

	switch event.EventType {
	case events.PaymentConfigUpdated, events.PaymentConfigEnabled, events.PaymentConfigDisabled:
		switch event.TenantID {
		case "":
			return s.cache.InvalidateAll(ctx)
		case s.store.TenantID:
			return s.cache.Invalidate(ctx, s.store.StoreKey)
		default:
			log.Debug("Payment config event for another tenant")
			return nil
		}
	case events.PaymentConfigTested:
		log.WithFields(logrus.Fields{
			"success": event.TestSuccess,
			"message": event.TestMessage,
			"error":   event.TestError,
		}).Info("Payment config test result received")
		return nil
	default:
		log.Warn("Unknown payment config event type")
		return nil
	}
}

// Stop ends the subscription and closes the connection. It is safe to call
// twice.
func (s *PaymentConfigSubscriber) Stop() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.source.Close()
		s.logger.Info("Payment config subscriber stopped")
	})
}
