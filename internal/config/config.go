package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port      int    `mapstructure:"port" env:"PORT"`
	LogLevel  string `mapstructure:"log_level" env:"LOG_LEVEL"`
	LogFormat string `mapstructure:"log_format" env:"LOG_FORMAT"`
	PublicURL string `mapstructure:"public_url" env:"PUBLIC_URL"`

	Cards  CardsConfig  `mapstructure:"cards"`
	Room   RoomConfig   `mapstructure:"room"`
	AI     AIConfig     `mapstructure:"ai"`
	Export ExportConfig `mapstructure:"export"`
}

type CardsConfig struct {
	Dir          string `mapstructure:"dir" env:"CARDS_DIR"`
	PromptFile   string `mapstructure:"prompt_file" env:"PROMPT_FILE"`
	ResponseFile string `mapstructure:"response_file" env:"RESPONSE_FILE"`
}

type RoomConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" env:"ROOM_IDLE_TIMEOUT"`
	MaxPlayers   int           `mapstructure:"max_players" env:"ROOM_MAX_PLAYERS"`
	WinningScore int           `mapstructure:"winning_score" env:"ROOM_WINNING_SCORE"`
	MinPlayers   int           `mapstructure:"min_players" env:"ROOM_MIN_PLAYERS"`
	HandSize     int           `mapstructure:"hand_size" env:"ROOM_HAND_SIZE"`
}

type AIConfig struct {
	Provider      string `mapstructure:"provider" env:"AI_PROVIDER"`
	Model         string `mapstructure:"model" env:"AI_MODEL"`
	SystemPrompt  string `mapstructure:"system_prompt" env:"AI_SYSTEM_PROMPT"`
	OpenAIKey     string `mapstructure:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" env:"OPENAI_BASE_URL"`
	OllamaHost    string `mapstructure:"ollama_host" env:"OLLAMA_HOST"`
}

type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled" env:"EXPORT_ENABLED"`
	File    string `mapstructure:"file" env:"EXPORT_FILE"`
}

func Defaults() Config {
	return Config{
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "console",
		PublicURL: "http://localhost:8080",
		Cards: CardsConfig{
			Dir:          "cards",
			PromptFile:   "black-cards.txt",
			ResponseFile: "white-cards.txt",
		},
		Room: RoomConfig{
			IdleTimeout:  60 * time.Minute,
			MaxPlayers:   10,
			WinningScore: 7,
			MinPlayers:   3,
			HandSize:     10,
		},
		AI: AIConfig{
			Model:      "gpt-4o-mini",
			OllamaHost: "http://localhost:11434",
		},
		Export: ExportConfig{
			File: "./dah-results.txt",
		},
	}
}

// Load layers an optional config file and then the environment over Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ApplyFlags copies the command-line flags that were set explicitly.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed("port") {
		if c.Port, err = fs.GetInt("port"); err != nil {
			return err
		}
	}
	if fs.Changed("cards-dir") {
		if c.Cards.Dir, err = fs.GetString("cards-dir"); err != nil {
			return err
		}
	}
	if fs.Changed("log-level") {
		if c.LogLevel, err = fs.GetString("log-level"); err != nil {
			return err
		}
	}
	if fs.Changed("verbose") {
		verbose, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		if verbose {
			c.LogLevel = "debug"
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	switch c.AI.Provider {
	case "", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown ai provider %q", c.AI.Provider))
	}
	if c.Room.MaxPlayers < 1 || c.Room.WinningScore < 1 || c.Room.MinPlayers < 1 || c.Room.HandSize < 1 {
		errs = append(errs, errors.New("room limits must be positive"))
	}
	if c.Room.IdleTimeout < 0 {
		errs = append(errs, errors.New("room idle timeout must not be negative"))
	}
	if c.Cards.Dir == "" {
		errs = append(errs, errors.New("cards dir must be set"))
	}
	return errors.Join(errs...)
}
