package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/port"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// MessageCreator is the Lark IM message API used to post into chats
type MessageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.ConversationNotifier by posting text messages to Lark chats.
// Thread ids are Lark chat ids.
type Messenger struct {
	messages MessageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(sdkClient *SDKClient, logger *zap.Logger) *Messenger {
	return NewMessengerWithAPI(sdkClient.Client().Im.Message, logger)
}

// NewMessengerWithAPI creates a messenger around an existing message API
func NewMessengerWithAPI(messages MessageCreator, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: messages,
		logger:   logger,
	}
}

// Notify sends text to the chat identified by threadID
func (m *Messenger) Notify(ctx context.Context, threadID, text string) error {
	if threadID == "" {
		return fmt.Errorf("threadID cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(threadID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("chat_id", threadID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("chat_id", threadID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("chat_id", threadID))
	return nil
}

// LogNotifier writes conversation messages to the log; used when Lark is not configured
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message
func (n *LogNotifier) Notify(_ context.Context, threadID, text string) error {
	n.logger.Info("Conversation message", zap.String("thread_id", threadID), zap.String("text", text))
	return nil
}

// Verify interface compliance
var (
	_ port.ConversationNotifier = (*Messenger)(nil)
	_ port.ConversationNotifier = (*LogNotifier)(nil)
)
