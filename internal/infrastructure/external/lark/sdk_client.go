package lark

import (
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Open platform domains a review bot can be registered on
const (
	DomainFeishu = "feishu"
	DomainLark   = "lark"
)

// Config holds the bot app credentials and the open platform it lives on
type Config struct {
	AppID     string
	AppSecret string
	Domain    string
}

// Credentials are what the event subscription needs to reach the same bot app
type Credentials struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// SDKClient owns the REST client used to answer review threads and the
// credentials the WebSocket subscription reuses.
type SDKClient struct {
	client *lark.Client
	creds  Credentials
}

// BaseURL resolves a configured domain; empty means Feishu
func BaseURL(domain string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case "", DomainFeishu:
		return larkcore.FeishuBaseUrl, nil
	case DomainLark:
		return larkcore.LarkBaseUrl, nil
	default:
		return "", fmt.Errorf("unknown lark domain %q", domain)
	}
}

// NewSDKClient builds the REST client for the bot app
func NewSDKClient(cfg Config, logger *zap.Logger) (*SDKClient, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark app id and secret are required")
	}
	baseURL, err := BaseURL(cfg.Domain)
	if err != nil {
		return nil, err
	}

	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithOpenBaseUrl(baseURL),
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	logger.Info("Lark client configured",
		zap.String("app_id", cfg.AppID),
		zap.String("base_url", baseURL),
	)

	return &SDKClient{
		client: client,
		creds: Credentials{
			AppID:     cfg.AppID,
			AppSecret: cfg.AppSecret,
			BaseURL:   baseURL,
		},
	}, nil
}

// Client returns the underlying REST client
func (c *SDKClient) Client() *lark.Client {
	return c.client
}

// Credentials returns the app credentials and resolved base URL
func (c *SDKClient) Credentials() Credentials {
	return c.creds
}
