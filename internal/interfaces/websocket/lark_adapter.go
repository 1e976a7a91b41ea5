// Package websocket provides WebSocket adapters for external event sources.
package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

// LarkAdapter wraps the Lark WebSocket SDK client and feeds incoming chat
// messages to the event processor.
type LarkAdapter struct {
	appID     string
	appSecret string
	baseURL   string
	processor *lark.EventProcessor
	logger    *zap.Logger

	wsClient *larkws.Client
	mu       sync.RWMutex
	started  bool
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
// BaseURL selects the open platform; empty keeps the SDK default.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// NewLarkAdapter creates a new Lark WebSocket adapter.
func NewLarkAdapter(cfg LarkAdapterConfig, processor *lark.EventProcessor, logger *zap.Logger) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		baseURL:   cfg.BaseURL,
		processor: processor,
		logger:    logger,
	}
}

// Start opens the WebSocket connection and blocks until ctx is cancelled or the client fails.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}

	// Verification token and encrypt key are not used in WebSocket mode
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "")
	sdkDispatcher.OnCustomizedEvent(lark.MessageReceiveEventType, a.processor.HandleCustomizedEvent)

	opts := []larkws.ClientOption{larkws.WithEventHandler(sdkDispatcher)}
	if a.baseURL != "" {
		opts = append(opts, larkws.WithDomain(a.baseURL))
	}
	a.wsClient = larkws.NewClient(a.appID, a.appSecret, opts...)

	a.started = true
	a.mu.Unlock()

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.appID), zap.String("base_url", a.baseURL))

	if err := a.wsClient.Start(ctx); err != nil {
		a.mu.Lock()
		a.started = false
		a.mu.Unlock()
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}

	return nil
}

// Stop marks the adapter stopped. The SDK client itself stops when the
// context passed to Start is cancelled.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}
