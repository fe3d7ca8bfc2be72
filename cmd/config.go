package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usefulness/keeper/internal/config"
	"github.com/usefulness/keeper/internal/logger"
)

// AppConfig holds all the shared configuration and dependencies
type AppConfig struct {
	Logger logger.Logger
	Zap    *zap.Logger
}

// NewAppConfig creates a new configuration instance
func NewAppConfig(log logger.Logger, zl *zap.Logger) *AppConfig {
	return &AppConfig{
		Logger: log,
		Zap:    zl,
	}
}

// appConfig returns the shared configuration, filling in loggers that were
// not injected.
func appConfig(cmd *cobra.Command) (*AppConfig, error) {
	app, _ := cmd.Context().Value(ConfigKey).(*AppConfig)
	if app == nil {
		app = NewAppConfig(nil, nil)
	}
	if app.Zap == nil {
		verbose, _ := cmd.Flags().GetBool("verbose")
		zl, err := logger.NewZap(verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		app.Zap = zl
	}
	if app.Logger == nil {
		app.Logger = &logger.StdoutLogger{W: cmd.OutOrStdout()}
	}
	return app, nil
}

// loadConfig reads the file named by --config or the discovered default.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(path)
}
