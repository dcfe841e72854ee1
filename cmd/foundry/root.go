package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	foundry "github.com/azfoundry/foundry-go"
	"github.com/azfoundry/foundry-go/internal/config"
	"github.com/azfoundry/foundry-go/internal/usage"
	"github.com/azfoundry/foundry-go/internal/version"
	"github.com/azfoundry/foundry-go/sdk/auth"
)

// app holds shared state assembled once in PersistentPreRunE and used
// by every subcommand.
type app struct {
	cfg    *config.Config
	client *foundry.Client
	logger zerolog.Logger

	configPath string
	endpoint   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "foundry",
		Short:   "Command-line client for Azure AI Foundry model endpoints",
		Version: version.Version(),
		Long: `foundry talks to Azure AI Foundry model endpoints: chat completions
(blocking or streamed) and embeddings, with local usage tracking.

Configuration comes from a YAML file (--config), environment variables
(FOUNDRY_ENDPOINT, FOUNDRY_API_KEY), or flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The usage command only reads the local database.
			return a.setup(cmd.Name() != "usage")
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "foundry.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "service endpoint URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newChatCmd(a))
	root.AddCommand(newEmbedCmd(a))
	root.AddCommand(newUsageCmd(a))

	return root
}

// setup loads config and builds the API client. Flags beat environment
// variables, which beat file values.
func (a *app) setup(needsClient bool) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Endpoint = a.endpoint
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if a.verbose || cfg.LogLevel == "debug" {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if !needsClient {
		return nil
	}

	opts := []foundry.Option{
		foundry.WithEndpoint(cfg.Endpoint),
		foundry.WithRetryPolicy(cfg.Retry.MaxRetries, time.Duration(cfg.Retry.InitialBackoff)),
		foundry.WithLogger(a.logger),
	}
	if cfg.APIKey != "" {
		opts = append(opts, foundry.WithCredential(auth.NewStatic(cfg.APIKey)))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, foundry.WithAPIVersion(cfg.APIVersion))
	}

	client, err := foundry.New(opts...)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// openUsage opens the usage store, logging rather than failing when the
// database is unavailable so usage tracking never blocks an API call.
func (a *app) openUsage() *usage.Store {
	store, err := usage.Open(a.cfg.UsageDB)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.UsageDB).Msg("usage tracking disabled")
		return nil
	}
	return store
}

// recordUsage writes one usage row, best effort. A nil usage block or
// an unavailable database just skips the record.
func (a *app) recordUsage(cmd *cobra.Command, operation, model string, u *foundry.Usage, attempts int, elapsed time.Duration) {
	if u == nil {
		return
	}
	store := a.openUsage()
	if store == nil {
		return
	}
	defer store.Close()

	rec := usage.Record{
		Operation:        operation,
		Model:            model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Attempts:         attempts,
		Duration:         elapsed,
	}
	if err := store.Add(cmd.Context(), rec); err != nil {
		a.logger.Warn().Err(err).Msg("recording usage failed")
	}
}
