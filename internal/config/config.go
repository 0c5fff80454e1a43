package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultAPIBase is the local development backend.
const DefaultAPIBase = "http://localhost:5000/api"

// Config holds all slh settings.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Identity IdentityConfig `yaml:"identity"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Storage  StorageConfig  `yaml:"storage"`
	Theme    string         `yaml:"theme" env:"SLH_THEME"`
}

// APIConfig points at the SmartLearn Hub backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"SLH_API_BASE"`
	Timeout time.Duration `yaml:"timeout" env:"SLH_API_TIMEOUT"`
}

// IdentityConfig configures the Identity Toolkit REST client.
type IdentityConfig struct {
	APIKey   string `yaml:"api_key" env:"SLH_IDENTITY_API_KEY"`
	Endpoint string `yaml:"endpoint" env:"SLH_IDENTITY_ENDPOINT"`
}

// OAuthConfig holds the federated sign-in clients, keyed by provider name.
type OAuthConfig struct {
	Google       OAuthClient   `yaml:"google"`
	CallbackPort int           `yaml:"callback_port" env:"SLH_OAUTH_CALLBACK_PORT"`
	Timeout      time.Duration `yaml:"timeout" env:"SLH_OAUTH_TIMEOUT"`
}

// OAuthClient is one OIDC client registration.
type OAuthClient struct {
	ClientID     string   `yaml:"client_id" env:"SLH_GOOGLE_CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"SLH_GOOGLE_CLIENT_SECRET"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// StorageConfig selects where the session is persisted.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"SLH_STORAGE_DRIVER"`
	Path   string `yaml:"path" env:"SLH_STORAGE_PATH"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIBase,
			Timeout: 15 * time.Second,
		},
		Identity: IdentityConfig{
			Endpoint: "https://identitytoolkit.googleapis.com/v1",
		},
		OAuth: OAuthConfig{
			Google: OAuthClient{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
				Scopes:   []string{"openid", "email", "profile"},
			},
			Timeout: 3 * time.Minute,
		},
		Storage: StorageConfig{
			Driver: "file",
		},
		Theme: "light",
	}
}

// Dir returns the per-user config directory.
//
//	Linux:   ~/.config/slh
//	macOS:   ~/Library/Application Support/slh
//	Windows: %AppData%\slh
//
// Override with SLH_CONFIG_DIR environment variable.
func Dir() string {
	if d := os.Getenv("SLH_CONFIG_DIR"); d != "" {
		return d
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".slh"
	}
	return filepath.Join(base, "slh")
}

// FilePath returns the full path to the config file.
func FilePath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// SessionPath returns the storage path used when storage.path is unset.
func (c *Config) SessionPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Driver == "sqlite" {
		return filepath.Join(Dir(), "session.db")
	}
	return filepath.Join(Dir(), "session.json")
}

// Load reads the YAML config file and then applies environment overrides.
// If the file does not exist, the defaults are used as the base.
func Load() (*Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load without the environment overlay. Use it to edit and
// Save the file so SLH_* values are not written back.
func LoadFile() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(FilePath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays SLH_* variables. Unset variables leave the file value.
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Save writes the configuration to the YAML file.
func Save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(FilePath(), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
