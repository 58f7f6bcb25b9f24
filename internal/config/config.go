package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"DebateArena/internal/backend"
	"DebateArena/internal/debate"
	"DebateArena/internal/provider"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DEBATEARENA_DEBATE_MAX_ROUNDS
const EnvPrefix = "DEBATEARENA"

// Config holds application configuration
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	Debate   DebateConfig   `mapstructure:"debate"`
	Provider ProviderConfig `mapstructure:"provider"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Trivia   TriviaConfig   `mapstructure:"trivia"`
}

// DebateConfig controls the debate itself
type DebateConfig struct {
	MaxRounds         int           `mapstructure:"max_rounds"`
	RoundDelay        time.Duration `mapstructure:"round_delay"`
	DevilIntensity    float64       `mapstructure:"devil_intensity"`
	OptimistIntensity float64       `mapstructure:"optimist_intensity"`
}

// ProviderConfig points at the Response Provider endpoint. An empty URL
// answers persona requests in-process with the configured backend.
type ProviderConfig struct {
	URL      string        `mapstructure:"url"`
	Path     string        `mapstructure:"path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// BackendConfig selects the LLM behind the Response Provider. API keys are
// read from ANTHROPIC_API_KEY, GROK_API_KEY and OPENAI_API_KEY.
type BackendConfig struct {
	Name    string `mapstructure:"name"`
	Model   string `mapstructure:"model"` // e.g. "llama3:latest" for ollama
	BaseURL string `mapstructure:"base_url"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// ServeProvider mounts the Response Provider endpoint next to the API
	ServeProvider bool `mapstructure:"serve_provider"`
}

// StorageConfig controls debate persistence
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig controls log and telemetry output
type LoggingConfig struct {
	Dir string `mapstructure:"dir"`
}

// TriviaConfig controls the college guessing game. A players file that
// cannot be read falls back to the built-in roster.
type TriviaConfig struct {
	PlayersPath string `mapstructure:"players_path"`
}

// Default returns the default configuration
func Default() *Config {
	params := debate.DefaultParams()
	return &Config{
		Debate: DebateConfig{
			MaxRounds:         params.MaxRounds,
			RoundDelay:        params.RoundDelay,
			DevilIntensity:    params.DevilIntensity,
			OptimistIntensity: params.OptimistIntensity,
		},
		Provider: ProviderConfig{
			Path:     provider.DefaultPath,
			Timeout:  60 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
		Backend: BackendConfig{
			Name: backend.Ollama,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			ServeProvider: true,
		},
		Storage: StorageConfig{
			DBPath: "debatearena.db",
		},
		Logging: LoggingConfig{
			Dir: "logs",
		},
		Trivia: TriviaConfig{
			PlayersPath: "players.json",
		},
	}
}

// SetDefaults registers the defaults with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("debug", d.Debug)

	v.SetDefault("debate.max_rounds", d.Debate.MaxRounds)
	v.SetDefault("debate.round_delay", d.Debate.RoundDelay)
	v.SetDefault("debate.devil_intensity", d.Debate.DevilIntensity)
	v.SetDefault("debate.optimist_intensity", d.Debate.OptimistIntensity)

	v.SetDefault("provider.url", d.Provider.URL)
	v.SetDefault("provider.path", d.Provider.Path)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.cache_ttl", d.Provider.CacheTTL)

	v.SetDefault("backend.name", d.Backend.Name)
	v.SetDefault("backend.model", d.Backend.Model)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.serve_provider", d.Server.ServeProvider)

	v.SetDefault("storage.db_path", d.Storage.DBPath)

	v.SetDefault("logging.dir", d.Logging.Dir)

	v.SetDefault("trivia.players_path", d.Trivia.PlayersPath)
}

// NewViper builds a viper instance with defaults, the optional config file
// and environment overrides. A missing default config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error

	if c.Debate.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("debate.max_rounds must be at least 1, got %d", c.Debate.MaxRounds))
	}
	if c.Debate.RoundDelay < 0 {
		errs = append(errs, fmt.Errorf("debate.round_delay must not be negative, got %s", c.Debate.RoundDelay))
	}
	for name, x := range map[string]float64{
		"debate.devil_intensity":    c.Debate.DevilIntensity,
		"debate.optimist_intensity": c.Debate.OptimistIntensity,
	} {
		if !ValidIntensity(x) {
			errs = append(errs, fmt.Errorf("%s must be greater than 0 and at most 2, got %g", name, x))
		}
	}
	if c.Provider.URL != "" {
		if u, err := url.Parse(c.Provider.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("provider.url must be an http(s) URL, got %q", c.Provider.URL))
		}
	}
	if !strings.HasPrefix(c.Provider.Path, "/") {
		errs = append(errs, fmt.Errorf("provider.path must start with /, got %q", c.Provider.Path))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout))
	}
	if !slices.Contains(backend.Names, c.Backend.Name) {
		errs = append(errs, fmt.Errorf("unknown backend: %s (%s)", c.Backend.Name, strings.Join(backend.Names, "|")))
	}

	return errors.Join(errs...)
}

// Params converts the debate settings into orchestrator parameters
func (c *Config) Params() debate.Params {
	return debate.Params{
		MaxRounds:         c.Debate.MaxRounds,
		RoundDelay:        c.Debate.RoundDelay,
		DevilIntensity:    c.Debate.DevilIntensity,
		OptimistIntensity: c.Debate.OptimistIntensity,
	}
}

// ConfigDir returns the user's config directory for debatearena
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "debatearena")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".debatearena"
	}
	return filepath.Join(home, ".config", "debatearena")
}

// ValidIntensity reports whether x lies in (0, 2]. The provider reads zero
// as unset and sends 1.0.
func ValidIntensity(x float64) bool {
	return x > 0 && x <= 2
}
