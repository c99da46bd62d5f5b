package ai

import (
    "context"
    "fmt"

    "github.com/developers-against-humanity/dah/internal/ai/ollama"
    "github.com/developers-against-humanity/dah/internal/ai/openai"
)

type Provider interface {
    Complete(ctx context.Context, model string, prompt string) (string, error)
    CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

type Config struct {
    Provider      string // "", "openai" or "ollama"
    Model         string
    SystemPrompt  string
    OpenAIKey     string
    OpenAIBaseURL string
    OllamaHost    string
}

// NewProvider builds the configured provider. An empty name yields nil, which
// makes the bot play random cards.
func NewProvider(cfg Config) (Provider, error) {
    switch cfg.Provider {
    case "":
        return nil, nil
    case "openai":
        return openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
    case "ollama":
        return ollama.New(cfg.OllamaHost), nil
    default:
        return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
    }
}

func PickerFromConfig(cfg Config) (*Picker, error) {
    p, err := NewProvider(cfg)
    if err != nil {
        return nil, err
    }
    return NewPicker(p, cfg.Model, cfg.SystemPrompt), nil
}
