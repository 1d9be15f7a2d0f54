package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Role values accepted in Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the alternating chat history sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces the raw text of one model reply. Callers must not assume
// the text is valid JSON.
type Provider interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// Config controls provider construction.
type Config struct {
	Mode string

	AWSRegion        string
	BedrockModelID   string
	BedrockMaxTokens int

	GeminiAPIKey string
	GeminiModel  string

	HTTPURL    string
	HTTPAPIKey string
	HTTPModel  string

	Breaker BreakerConfig
	Logger  *zap.Logger
}

var errNoText = errors.New("model returned no text")

// NewProvider resolves the configured backend and wraps it in a circuit
// breaker. It returns the provider and the resolved backend name.
func NewProvider(ctx context.Context, cfg Config) (Provider, string, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	var (
		p    Provider
		name string
		err  error
	)
	switch mode {
	case "bedrock":
		p, err = NewBedrockProvider(ctx, cfg.AWSRegion, cfg.BedrockModelID, cfg.BedrockMaxTokens)
		name = "bedrock"
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		name = "gemini"
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, "", errors.New("LLM_HTTP_URL is required for http mode")
		}
		p = NewHTTPProvider(cfg.HTTPURL, cfg.HTTPAPIKey, cfg.HTTPModel)
		name = "http"
	case "mock":
		p = NewMockProvider()
		name = "mock"
	case "auto":
		p, name, err = autoProvider(ctx, cfg, logger)
	default:
		return nil, "", fmt.Errorf("unsupported LLM_PROVIDER %q (expected auto|bedrock|gemini|http|mock)", cfg.Mode)
	}
	if err != nil {
		return nil, "", err
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "llm-" + name
	}
	return NewBreakerProvider(p, breakerCfg, logger), name, nil
}

func autoProvider(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, string, error) {
	if strings.TrimSpace(cfg.BedrockModelID) != "" && strings.TrimSpace(cfg.AWSRegion) != "" {
		p, err := NewBedrockProvider(ctx, cfg.AWSRegion, cfg.BedrockModelID, cfg.BedrockMaxTokens)
		if err == nil {
			return p, "bedrock", nil
		}
		logger.Warn("bedrock provider unavailable", zap.Error(err))
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err == nil {
			return p, "gemini", nil
		}
		logger.Warn("gemini provider unavailable", zap.Error(err))
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPProvider(cfg.HTTPURL, cfg.HTTPAPIKey, cfg.HTTPModel), "http", nil
	}
	return NewMockProvider(), "mock", nil
}

const defaultHTTPTimeout = 60 * time.Second
