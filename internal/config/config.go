// Package config loads harness configuration: defaults, then a TOML file,
// then environment variables. Env wins.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/yukot/deepagent/audit"
	"github.com/yukot/deepagent/redisclient"
	"github.com/yukot/deepagent/workspace"
)

type Config struct {
	Server Server `toml:"server"`
	Redis  Redis  `toml:"redis"`
	Audit  Audit  `toml:"audit"`
	Model  Model  `toml:"model"`
	Search Search `toml:"search"`
	Tracer Tracer `toml:"tracer"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Redis struct {
	URL string `toml:"url"`
}

type Audit struct {
	Workspace string `toml:"workspace"`
	Dir       string `toml:"dir"`
	Name      string `toml:"name"`
}

type Model struct {
	Provider  string `toml:"provider"`
	Anthropic string `toml:"anthropic_model"`
	OpenAI    string `toml:"openai_model"`
}

type Search struct {
	APIKey string `toml:"api_key"`
}

type Tracer struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	ws := workspace.Resolve()
	return Config{
		Server: Server{Addr: ":8000"},
		Redis:  Redis{URL: redisclient.DefaultURL},
		Audit: Audit{
			Workspace: ws,
			Dir:       audit.DefaultDirName,
			Name:      "tools",
		},
		Model: Model{
			Provider:  "anthropic",
			Anthropic: "claude-sonnet-4-20250514",
			OpenAI:    "gpt-4o-mini",
		},
	}
}

// Load reads config: .env file -> defaults -> TOML file -> env vars.
func Load(path string) Config {
	// Hydrate the process env from a .env file if one exists.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = "deepagent.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv(workspace.EnvVar); v != "" {
		cfg.Audit.Workspace = v
	}
	if v := os.Getenv("AUDIT_DIR"); v != "" {
		cfg.Audit.Dir = v
	}
	if v := FromEnv([]string{"MODEL_PROVIDER", "LLM_PROVIDER"}, ""); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ANTHROPIC_MODEL_NAME"); v != "" {
		cfg.Model.Anthropic = v
	}
	if v := FromEnv([]string{"OPENAI_MODEL_NAME", "OPENAI_MODEL", "OPENAI_CHAT_MODEL"}, ""); v != "" {
		cfg.Model.OpenAI = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("TRACER_ENABLED"); v == "true" || v == "1" {
		cfg.Tracer.Enabled = true
	}

	return cfg
}

// ModelName returns the model for the configured provider.
func (c Config) ModelName() string {
	if strings.HasPrefix(c.Model.Provider, "openai") {
		return c.Model.OpenAI
	}
	return c.Model.Anthropic
}

// FromEnv returns the first non-empty value among keys, or def.
func FromEnv(keys []string, def string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return def
}

// Validate checks that required secrets are present for the configured
// provider. Returned errors name every missing variable.
func (c Config) Validate() error {
	var missing []string
	if c.Search.APIKey == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if strings.HasPrefix(c.Model.Provider, "openai") {
		if os.Getenv("OPENAI_API_KEY") == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	} else if os.Getenv("ANTHROPIC_API_KEY") == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s (set them in your shell or a .env file)",
			strings.Join(missing, ", "))
	}
	return nil
}
