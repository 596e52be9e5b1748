package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderGroq    = "groq"
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// New builds the client named by opts.Provider.
func New(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderGroq, "":
		return NewChatClient(ProviderGroq, firstNonEmpty(opts.BaseURL, GroqURL), opts.APIKey,
			firstNonEmpty(opts.Model, "llama-3.3-70b-versatile"), opts.Timeout), nil
	case ProviderGateway:
		return NewChatClient(ProviderGateway, firstNonEmpty(opts.BaseURL, GatewayURL), opts.APIKey,
			firstNonEmpty(opts.Model, "google/gemini-2.5-flash"), opts.Timeout), nil
	case ProviderGemini:
		if opts.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewGeminiClient(ctx, opts.APIKey, firstNonEmpty(opts.Model, "gemini-2.5-flash"))
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
