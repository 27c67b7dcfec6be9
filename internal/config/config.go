package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tatianab/rpg-narrator/internal/models"
)

// Config holds the application configuration.
type Config struct {
	Provider        string `env:"NARRATOR_PROVIDER" envDefault:"gemini"`
	Model           string `env:"NARRATOR_MODEL"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	Temperature   float32       `env:"NARRATOR_TEMPERATURE" envDefault:"0.8"`
	HistoryWindow int           `env:"NARRATOR_HISTORY_WINDOW" envDefault:"6"`
	TurnTimeout   time.Duration `env:"NARRATOR_TURN_TIMEOUT" envDefault:"60s"`

	Difficulty string   `env:"NARRATOR_DIFFICULTY" envDefault:"normal"`
	Party      []string `env:"NARRATOR_PARTY" envSeparator:"," envDefault:"Aria,Borin,Cyra"`

	Store       string `env:"NARRATOR_STORE" envDefault:"file"`
	SaveDir     string `env:"NARRATOR_SAVE_DIR" envDefault:".saves"`
	SQLitePath  string `env:"NARRATOR_SQLITE_PATH" envDefault:"narrator.db"`
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_KEY"`

	LogLevel string `env:"NARRATOR_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"NARRATOR_LOG_FILE"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

// Validate checks settings that only make sense together. Call it after
// command-line overrides have been applied.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("no API key set for provider %q", c.Provider)
	}

	if _, err := models.ParseDifficulty(c.Difficulty); err != nil {
		return err
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if len(models.RosterFromNames(c.Party)) == 0 {
		return errors.New("NARRATOR_PARTY must name at least one party member")
	}

	switch c.Store {
	case "file", "sqlite":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("supabase store needs SUPABASE_URL and SUPABASE_KEY")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}
