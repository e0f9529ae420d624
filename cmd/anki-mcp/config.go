package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the process configuration.
type Config struct {
	// AnkiConnectURL is the AnkiConnect endpoint. Empty selects ankiconnect.DefaultURL.
	AnkiConnectURL string `mapstructure:"anki_connect_url" validate:"omitempty,url"`
	AnkiConnectKey string `mapstructure:"anki_connect_key"`
	LogLevel       string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// loadConfig reads configuration from v, with environment variables bound
// to their keys, and validates it.
func loadConfig(v *viper.Viper) (*Config, error) {
	v.SetDefault("log_level", "info")

	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"anki_connect_url", "ANKI_CONNECT_URL"},
		{"anki_connect_key", "ANKI_CONNECT_KEY"},
		{"log_level", "ANKI_MCP_LOG_LEVEL"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// newLogger builds a development logger writing to stderr, leaving stdout to
// the MCP transport.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.ErrorOutputPaths = []string{"stderr"}

	return logConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}
