package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// EnvPrefix namespaces environment overrides, e.g. DIADI_SESSION_ID.
const EnvPrefix = "DIADI"

type Config struct {
	Server        ServerConfig       `yaml:"server" mapstructure:"server"`
	Session       SessionConfig      `yaml:"session" mapstructure:"session"`
	Reconnect     ReconnectConfig    `yaml:"reconnect" mapstructure:"reconnect"`
	Heartbeat     HeartbeatConfig    `yaml:"heartbeat" mapstructure:"heartbeat"`
	Interventions InterventionConfig `yaml:"interventions" mapstructure:"interventions"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	APIURL string `yaml:"api_url,omitempty" mapstructure:"api_url"`
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

type SessionConfig struct {
	ID string `yaml:"id,omitempty" mapstructure:"id"`
}

type ReconnectConfig struct {
	MaxAttempts int             `yaml:"max_attempts" mapstructure:"max_attempts"`
	Delays      []time.Duration `yaml:"delays" mapstructure:"delays"`
}

type HeartbeatConfig struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
}

type InterventionConfig struct {
	MaxQueue int           `yaml:"max_queue" mapstructure:"max_queue"`
	History  int           `yaml:"history" mapstructure:"history"`
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://127.0.0.1:7014",
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Delays: []time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
				8 * time.Second,
				16 * time.Second,
			},
		},
		Heartbeat: HeartbeatConfig{
			Interval:    30 * time.Second,
			ReadTimeout: 75 * time.Second,
		},
		Interventions: InterventionConfig{
			MaxQueue: 10,
			History:  50,
			Cooldown: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(Dir(), "diadi-live.log"),
		},
	}
}

// Dir is the per-user config directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".diadi"
	}
	return filepath.Join(home, ".diadi")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (a missing file is not an error), then
// applies DIADI_* environment overrides and any flags already bound to v.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	setDefaults(v, Default())

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.api_url", d.Server.APIURL)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("session.id", d.Session.ID)
	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)
	v.SetDefault("reconnect.delays", d.Reconnect.Delays)
	v.SetDefault("heartbeat.interval", d.Heartbeat.Interval)
	v.SetDefault("heartbeat.read_timeout", d.Heartbeat.ReadTimeout)
	v.SetDefault("interventions.max_queue", d.Interventions.MaxQueue)
	v.SetDefault("interventions.history", d.Interventions.History)
	v.SetDefault("interventions.cooldown", d.Interventions.Cooldown)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// Validate checks the values the connection manager and scheduler depend on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("%w: server.url: %v", ErrInvalid, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: server.url must use ws:// or wss://, got %q", ErrInvalid, c.Server.URL)
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("%w: reconnect.max_attempts must be positive", ErrInvalid)
	}
	if len(c.Reconnect.Delays) == 0 {
		return fmt.Errorf("%w: reconnect.delays must not be empty", ErrInvalid)
	}
	for i, d := range c.Reconnect.Delays {
		if d <= 0 {
			return fmt.Errorf("%w: reconnect.delays[%d] must be positive", ErrInvalid, i)
		}
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("%w: heartbeat.interval must be positive", ErrInvalid)
	}
	if c.Interventions.MaxQueue <= 0 || c.Interventions.History <= 0 {
		return fmt.Errorf("%w: interventions.max_queue and interventions.history must be positive", ErrInvalid)
	}
	return nil
}

// APIBaseURL returns the REST base URL, deriving it from the websocket URL
// when none is configured: ws://host:port/x becomes http://host:port.
func (c *Config) APIBaseURL() string {
	if c.Server.APIURL != "" {
		return strings.TrimRight(c.Server.APIURL, "/")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:7014"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}
