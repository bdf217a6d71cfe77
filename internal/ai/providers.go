package ai

import (
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ProviderConfig describes one hosted chat-completion endpoint. Groq speaks
// the OpenAI wire protocol, so both providers share the same client type
// and differ only in base URL and credentials.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func newChatClient(cfg ProviderConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientCfg)
}
