// Package cli provides the command-line interface for podbase.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"podbase/internal/config"
	"podbase/internal/llm"
	"podbase/internal/retrieval"
	"podbase/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	catalogFlag  string
	logLevelFlag string
	verbose      bool

	// Global config and store client
	cfg         config.Config
	storeClient *store.Client
	logCleanup  func() error

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "podbase",
	Short: "Podcast transcript knowledge base",
	Long: `Podbase turns podcast episodes into a searchable knowledge base.

Episodes from a YAML catalog are transcribed, split into speaker-attributed
segments, embedded and stored in SurrealDB. Questions are answered from the
stored transcripts with cited sources.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Nothing to set up for commands that only print.
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// A .env in the working directory is convenient for local use;
		// absence is not an error.
		_ = godotenv.Load()

		cfg = config.Load()
		if catalogFlag != "" {
			cfg.CatalogPath = catalogFlag
		}
		if logLevelFlag != "" {
			cfg.LogLevel = config.ParseLevel(logLevelFlag)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		logCleanup = cleanup

		if !needsStore(cmd) {
			return nil
		}

		// Connect to the store and make sure the schema exists.
		ctx := context.Background()
		var err error
		storeClient, err = store.NewClient(ctx, storeConfig(), slog.Default())
		if err != nil {
			return fmt.Errorf("connect to store: %w", err)
		}
		if err := storeClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if storeClient != nil {
			if err := storeClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// needsStore reports whether a command uses the SurrealDB connection.
// format works purely on the filesystem and completion generates shell
// scripts, so neither one opens a connection.
func needsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "format", "completion":
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return true
}

// storeConfig maps the loaded configuration onto the store package.
func storeConfig() store.Config {
	return store.Config{
		URL:       cfg.DBURL,
		Namespace: cfg.DBNamespace,
		Database:  cfg.DBDatabase,
		Username:  cfg.DBUser,
		Password:  cfg.DBPass,
		AuthLevel: cfg.DBAuthLevel,
	}
}

// getSearcher lazily builds the embedding client and returns a searcher
// over the connected store.
func getSearcher() (*retrieval.Searcher, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}
	return retrieval.NewSearcher(embedder, storeClient, cfg.TopK, cfg.MinSimilarity, slog.Default()), nil
}

// getAssembler lazily builds the generation model and returns the answer
// assembler.
func getAssembler(ctx context.Context) (*retrieval.Assembler, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}
	return retrieval.NewAssembler(model, cfg.PodcastTitle, cfg.MaxContextChars, slog.Default()), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&catalogFlag, "catalog", "", "episode catalog path (overrides PODBASE_CATALOG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (overrides PODBASE_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(episodesCmd)
	rootCmd.AddCommand(statsCmd)
}
