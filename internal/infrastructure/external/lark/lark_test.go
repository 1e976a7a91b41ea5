package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockMessageCreator struct {
	createFunc func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
}

func (m *mockMessageCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	return m.createFunc(ctx, req)
}

func TestMessenger_Notify(t *testing.T) {
	var got *larkim.CreateMessageReq
	api := &mockMessageCreator{
		createFunc: func(_ context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
			got = req
			id := "om_1"
			return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}, nil
		},
	}
	m := NewMessengerWithAPI(api, zap.NewNop())

	text := "Pending changes:\n1. Set price of \"Paint\" to $60.00"
	require.NoError(t, m.Notify(context.Background(), "oc_chat", text))

	require.NotNil(t, got)
	require.NotNil(t, got.Body)
	assert.Equal(t, "oc_chat", *got.Body.ReceiveId)
	assert.Equal(t, "text", *got.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*got.Body.Content), &content))
	assert.Equal(t, text, content["text"])
}

func TestMessenger_NotifyFailures(t *testing.T) {
	tests := []struct {
		name string
		resp *larkim.CreateMessageResp
		err  error
	}{
		{name: "transport error", err: errors.New("timeout")},
		{name: "api error", resp: &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockMessageCreator{
				createFunc: func(context.Context, *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
					return tt.resp, tt.err
				},
			}
			m := NewMessengerWithAPI(api, zap.NewNop())
			assert.Error(t, m.Notify(context.Background(), "oc_chat", "hi"))
		})
	}

	m := NewMessengerWithAPI(&mockMessageCreator{}, zap.NewNop())
	assert.Error(t, m.Notify(context.Background(), "", "hi"))
}

type recordingHandler struct {
	threadID, senderID, text string
	calls                    int
}

func (h *recordingHandler) HandleMessage(_ context.Context, threadID, senderID, text string) error {
	h.threadID, h.senderID, h.text = threadID, senderID, text
	h.calls++
	return nil
}

func messagePayload(t *testing.T, senderType, msgType, text string) []byte {
	t.Helper()
	content, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	payload := map[string]interface{}{
		"schema": "2.0",
		"header": map[string]interface{}{"event_id": "ev-1", "event_type": MessageReceiveEventType},
		"event": map[string]interface{}{
			"sender": map[string]interface{}{
				"sender_id":   map[string]string{"open_id": "ou_contractor"},
				"sender_type": senderType,
			},
			"message": map[string]interface{}{
				"message_id":   "om_1",
				"chat_id":      "oc_chat",
				"message_type": msgType,
				"content":      string(content),
			},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestEventProcessor_RoutesText(t *testing.T) {
	h := &recordingHandler{}
	p := NewEventProcessor(h, zap.NewNop())

	require.NoError(t, p.ProcessEvent(context.Background(), messagePayload(t, "user", "text", "@_user_1 change paint to 60")))
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, "oc_chat", h.threadID)
	assert.Equal(t, "ou_contractor", h.senderID)
	assert.Equal(t, "change paint to 60", h.text)
}

func TestEventProcessor_Ignores(t *testing.T) {
	tests := []struct {
		name    string
		payload func(t *testing.T) []byte
	}{
		{name: "bot message", payload: func(t *testing.T) []byte { return messagePayload(t, "app", "text", "hello") }},
		{name: "image message", payload: func(t *testing.T) []byte { return messagePayload(t, "user", "image", "") }},
		{name: "mention only", payload: func(t *testing.T) []byte { return messagePayload(t, "user", "text", "@_user_1") }},
		{name: "other event", payload: func(*testing.T) []byte {
			return []byte(`{"header":{"event_type":"approval_instance"},"event":{}}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			p := NewEventProcessor(h, zap.NewNop())
			require.NoError(t, p.ProcessEvent(context.Background(), tt.payload(t)))
			assert.Zero(t, h.calls)
		})
	}
}

func TestEventProcessor_BadPayload(t *testing.T) {
	p := NewEventProcessor(&recordingHandler{}, zap.NewNop())
	assert.Error(t, p.ProcessEvent(context.Background(), []byte("{")))
}

func TestNewSDKClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantURL string
		wantErr string
	}{
		{"default domain", Config{AppID: "cli_1", AppSecret: "shh"}, larkcore.FeishuBaseUrl, ""},
		{"global platform", Config{AppID: "cli_1", AppSecret: "shh", Domain: "Lark"}, larkcore.LarkBaseUrl, ""},
		{"unknown domain", Config{AppID: "cli_1", AppSecret: "shh", Domain: "slack"}, "", "unknown lark domain"},
		{"missing secret", Config{AppID: "cli_1"}, "", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			client, err := NewSDKClient(tt.cfg, zap.New(core))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client.Client())

			creds := client.Credentials()
			assert.Equal(t, Credentials{AppID: "cli_1", AppSecret: "shh", BaseURL: tt.wantURL}, creds)

			entries := logs.FilterMessage("Lark client configured").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantURL, entries[0].ContextMap()["base_url"])
			assert.NotContains(t, entries[0].ContextMap(), "app_secret")
		})
	}
}
