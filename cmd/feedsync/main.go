// Package main provides the feedsync CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/config"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/logging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/metadata"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitFatal   = 2
)

const (
	configRelPath   = "feedsync/feedsync.cue"
	metadataRelPath = "feedsync/metadata.db"
)

// Global flag values.
var (
	flagConfig   string
	flagDB       string
	flagJSON     bool
	flagLogLevel string
	flagContinue bool
)

// Initialized by PersistentPreRunE for every command but version.
var (
	client *feedsync.Client
	store  *metadata.SQLiteStore
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCodeFatal(err) {
			return exitFatal
		}
		return exitFailure
	}
	return exitSuccess
}

var rootCmd = &cobra.Command{
	Use:     "feedsync",
	Short:   "Synchronize partner data feeds into a local staging area",
	Version: feedsync.Version,
	Long: `feedsync discovers the schema of a partner feed, reconciles it with the
tracked entities and downloads the data files listed by the oldest
unprocessed manifest into a local staging area.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"configuration file (default: $XDG_CONFIG_HOME/"+configRelPath+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "",
		"metadata database (default: $XDG_DATA_HOME/"+metadataRelPath+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagContinue, "continue-on-error", false,
		"keep downloading other entities when one fails")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(manifestsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(inspectCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	ctx := cmd.Context()

	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(osfs.New(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Debug("configuration loaded", "path", path, "config", cfg)

	if credentials.IsReference(cfg.Key) || credentials.IsReference(cfg.Secret) {
		resolver, err := credentials.NewAWSResolver(ctx, cfg.Region, cfg.Endpoint, logger)
		if err != nil {
			return err
		}
		if err := cfg.ResolveSecrets(ctx, resolver); err != nil {
			return err
		}
	}

	dbPath, err := databasePath()
	if err != nil {
		return err
	}
	store, err = metadata.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, cfg.SeedEntities()); err != nil {
		return err
	}

	client, err = feedsync.New(ctx, cfg,
		feedsync.WithLogger(logger),
		feedsync.WithEntityStore(store),
		feedsync.WithContinueOnEntityError(flagContinue),
	)
	if err != nil {
		return err
	}

	logger.Debug("feedsync initialized", "metadata", dbPath, "staging", client.StagingRoot())
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if store != nil {
		return store.Close()
	}
	return nil
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	path, err := xdg.SearchConfigFile(configRelPath)
	if err != nil {
		return "", fmt.Errorf("no configuration found, pass --config: %w", err)
	}
	return path, nil
}

func databasePath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	path, err := xdg.DataFile(metadataRelPath)
	if err != nil {
		return "", fmt.Errorf("resolve metadata database path: %w", err)
	}
	return path, nil
}
