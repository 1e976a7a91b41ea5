package service

import (
	"context"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/event"
)

// NotificationService relays review events to the contractor's conversation thread
type NotificationService interface {
	// Register subscribes the relay handlers on d
	Register(d dispatcher.Dispatcher)
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.ConversationNotifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.ConversationNotifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

var notifiedEvents = []event.Type{
	event.TypeConfirmationRequested,
	event.TypeChangesCommitted,
	event.TypeChangesCancelled,
	event.TypeSessionExpired,
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, typ := range notifiedEvents {
		d.Subscribe(typ, "conversation-notifier", s.HandleEvent)
	}
}

// HandleEvent posts the message for evt; events without a thread are skipped
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	threadID := evt.GetPayloadString(event.KeyThreadID)
	if threadID == "" {
		return nil
	}

	text := messageFor(evt)
	if text == "" {
		return nil
	}

	if err := s.notifier.Notify(ctx, threadID, text); err != nil {
		s.logger.Error("Failed to notify thread",
			"error", err,
			"quote_id", evt.QuoteID,
			"event_type", evt.Type,
			"thread_id", threadID,
		)
		return fmt.Errorf("notify thread: %w", err)
	}

	s.logger.Info("Thread notified", "quote_id", evt.QuoteID, "event_type", evt.Type, "thread_id", threadID)
	return nil
}

func messageFor(evt *event.Event) string {
	switch evt.Type {
	case event.TypeConfirmationRequested, event.TypeChangesCommitted:
		return evt.GetPayloadString(event.KeySummary)
	case event.TypeChangesCancelled:
		return fmt.Sprintf("Cancelled %d pending change(s). Quote %s is unchanged; keep editing or start over.",
			evt.GetPayloadInt(event.KeyCommandCount), evt.QuoteID)
	case event.TypeSessionExpired:
		n := evt.GetPayloadInt(event.KeyCommandCount)
		if n == 0 {
			return fmt.Sprintf("Review of quote %s timed out.", evt.QuoteID)
		}
		return fmt.Sprintf("Review of quote %s timed out. %d pending change(s) were discarded; the quote is unchanged.", evt.QuoteID, n)
	}
	return ""
}
