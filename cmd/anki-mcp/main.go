package main

import (
	"fmt"
	"os"

	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Set via ldflags at build time
var version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command; flags are bound into v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "anki-mcp",
		Short:        "MCP server exposing an Anki collection through AnkiConnect",
		Long:         "Serves Anki card searches as MCP resources and review/creation as MCP tools over stdin/stdout.",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("anki-connect-url", "", "AnkiConnect URL (env ANKI_CONNECT_URL, default "+ankiconnect.DefaultURL+")")
	flags.String("anki-connect-key", "", "AnkiConnect API key (env ANKI_CONNECT_KEY)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error (env ANKI_MCP_LOG_LEVEL)")

	for key, flag := range map[string]string{
		"anki_connect_url": "anki-connect-url",
		"anki_connect_key": "anki-connect-key",
		"log_level":        "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	return cmd
}

func run(cfg *Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := ankiconnect.NewClient(cfg.AnkiConnectURL,
		ankiconnect.WithKey(cfg.AnkiConnectKey),
		ankiconnect.WithLogger(logger.Named("ankiconnect")),
	)
	s := newServer(client, logger, version)

	logger.Info("Starting Anki MCP server", zap.String("version", version), zap.String("anki_connect_url", client.URL()))
	if err := server.ServeStdio(s, server.WithErrorLogger(zap.NewStdLog(logger))); err != nil {
		logger.Error("Error serving MCP server", zap.Error(err))
		return err
	}
	return nil
}
