package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	"go.uber.org/zap"
)

// MessageReceiveEventType is the Lark event type of an incoming chat message
const MessageReceiveEventType = "im.message.receive_v1"

// MessageHandler consumes chat messages addressed to the bot
type MessageHandler interface {
	HandleMessage(ctx context.Context, threadID, senderID, text string) error
}

// messageEvent is the subset of an im.message.receive_v1 payload the processor reads
type messageEvent struct {
	Header struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
			SenderType string `json:"sender_type"`
		} `json:"sender"`
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

var mentionPattern = regexp.MustCompile(`@_user_\d+`)

// EventProcessor routes Lark chat messages into the conversation handler.
type EventProcessor struct {
	handler MessageHandler
	logger  *zap.Logger
}

// NewEventProcessor creates a new EventProcessor.
func NewEventProcessor(handler MessageHandler, logger *zap.Logger) *EventProcessor {
	return &EventProcessor{
		handler: handler,
		logger:  logger,
	}
}

// HandleCustomizedEvent adapts the SDK event payload for processing.
func (p *EventProcessor) HandleCustomizedEvent(ctx context.Context, event *larkevent.EventReq) error {
	return p.ProcessEvent(ctx, event.Body)
}

// ProcessEvent parses a message event and hands its text to the handler.
// Non-text messages and messages sent by apps are ignored.
func (p *EventProcessor) ProcessEvent(ctx context.Context, payload []byte) error {
	var evt messageEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to parse message event payload: %w", err)
	}

	if evt.Header.EventType != "" && evt.Header.EventType != MessageReceiveEventType {
		p.logger.Info("Unhandled event type", zap.String("event_type", evt.Header.EventType))
		return nil
	}

	msg := evt.Event.Message
	if msg.ChatID == "" {
		p.logger.Warn("Chat ID not found in message event", zap.String("event_id", evt.Header.EventID))
		return nil
	}
	if evt.Event.Sender.SenderType == "app" {
		return nil
	}
	if msg.MessageType != "text" {
		p.logger.Info("Ignoring non-text message",
			zap.String("chat_id", msg.ChatID),
			zap.String("message_type", msg.MessageType))
		return nil
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
		return fmt.Errorf("failed to parse message content: %w", err)
	}
	text := strings.TrimSpace(mentionPattern.ReplaceAllString(content.Text, ""))
	if text == "" {
		return nil
	}

	p.logger.Debug("Routing chat message",
		zap.String("chat_id", msg.ChatID),
		zap.String("message_id", msg.MessageID))
	return p.handler.HandleMessage(ctx, msg.ChatID, evt.Event.Sender.SenderID.OpenID, text)
}
