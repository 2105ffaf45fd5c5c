// Package commands holds the diadi-live subcommands and the shared flag and
// config plumbing they use.
package commands

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/app"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/config"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/debug"
)

// AppVersion is reported in logs; main sets it from the build.
var AppVersion = "0.0.0-dev"

var (
	settings   = viper.New()
	configPath string
)

// BindFlags registers the global flags on root and binds them to config keys,
// so a flag beats the environment which beats the config file.
func BindFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	f.String("session", "", "session id to follow")
	f.String("url", "", "websocket base URL of the facilitation server")
	f.String("api-url", "", "REST base URL (derived from --url when empty)")
	f.String("api-key", "", "API key sent with every request")
	f.String("log-level", "", "debug, info, warn or error")

	for key, name := range map[string]string{
		"session.id":     "session",
		"server.url":     "url",
		"server.api_url": "api-url",
		"server.api_key": "api-key",
		"log.level":      "log-level",
	} {
		_ = settings.BindPFlag(key, f.Lookup(name))
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(settings, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func apiClient(cfg *config.Config) *client.HTTPClient {
	return client.NewHTTPClient(cfg.APIBaseURL(), cfg.Server.APIKey)
}

// RunTUI launches the live dashboard for the configured session.
func RunTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Session.ID = args[0]
	}

	logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closer.Close()
	if cfg.Log.File == "" || cfg.Log.File == "-" {
		// stderr belongs to the alt screen while the TUI runs
		logger.SetOutput(io.Discard)
	}
	hook := debug.NewHook(256)
	logger.AddHook(hook)

	entry := logger.WithFields(logrus.Fields{"version": AppVersion, "session": cfg.Session.ID})
	entry.Info("starting dashboard")

	m := app.New(app.Options{
		Config:       cfg,
		API:          apiClient(cfg),
		Log:          entry,
		Hook:         hook,
		SummaryStyle: "auto",
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
