package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "g-key", cfg.APIKey())
	assert.Equal(t, float32(0.8), cfg.Temperature)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.Equal(t, 60*time.Second, cfg.TurnTimeout)
	assert.Equal(t, []string{"Aria", "Borin", "Cyra"}, cfg.Party)
	assert.Equal(t, "file", cfg.Store)
	assert.Equal(t, ".saves", cfg.SaveDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NARRATOR_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("NARRATOR_PARTY", "Kael,Mira")
	t.Setenv("NARRATOR_TURN_TIMEOUT", "15s")
	t.Setenv("NARRATOR_STORE", "sqlite")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "a-key", cfg.APIKey())
	assert.Equal(t, []string{"Kael", "Mira"}, cfg.Party)
	assert.Equal(t, 15*time.Second, cfg.TurnTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NARRATOR_HISTORY_WINDOW", "six")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Provider:     "openai",
			OpenAIAPIKey: "o-key",
			Temperature:  0.8,
			Difficulty:   "hard",
			Party:        []string{"Aria"},
			Store:        "file",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "oracle" }, wantErr: "unknown provider"},
		{name: "missing key", mutate: func(c *Config) { c.OpenAIAPIKey = "" }, wantErr: "no API key"},
		{name: "bad difficulty", mutate: func(c *Config) { c.Difficulty = "nightmare" }, wantErr: "invalid difficulty"},
		{name: "temperature", mutate: func(c *Config) { c.Temperature = 3 }, wantErr: "out of range"},
		{name: "empty party", mutate: func(c *Config) { c.Party = []string{" "} }, wantErr: "at least one"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "redis" }, wantErr: "unknown store"},
		{name: "supabase without creds", mutate: func(c *Config) { c.Store = "supabase" }, wantErr: "SUPABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir in newer Go releases.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
