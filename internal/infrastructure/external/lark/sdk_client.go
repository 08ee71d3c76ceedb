package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	logger *zap.Logger
}

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the Open Platform endpoint, empty means the SDK default
	BaseURL string
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKClient{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}
