package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	nodebook "github.com/gnowledge/nodeBook-sub003"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
)

var (
	verbose    bool
	configPath string
	userName   string
	adapter    string
	gitless    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nodebook",
	Short: "A client for NodeBook knowledge graphs",
	Long: `nodebook edits knowledge graphs written in CNL and shows them as diagrams.
Graphs live in a local directory (optionally versioned with git) or on a
NodeBook server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "User the session acts for")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Collaborator: fs or http")
	rootCmd.PersistentFlags().BoolVar(&gitless, "gitless", false, "Do not version the graph directory with git")
}

// loadConfig layers the configuration files and applies the global flags.
func loadConfig() (*nodebook.Config, error) {
	cfg, err := nodebook.NewLoader(slog.Default()).Load(configPath)
	if err != nil {
		return nil, err
	}
	if userName != "" {
		cfg.User = userName
	}
	if adapter != "" {
		cfg.Adapter = adapter
	}
	if gitless {
		off := false
		cfg.FS.Versioning = &off
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func backendOptions(cfg *nodebook.Config) []nodebook.Option {
	return append(cfg.Options(), nodebook.WithLogger(slog.Default()))
}

// openBackend opens the configured collaborator.
func openBackend(ctx context.Context) (*nodebook.Config, *nodebook.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	backend, err := nodebook.Init(ctx, cfg.URI(), backendOptions(cfg)...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backend, nil
}

// openSession starts a session on the configured collaborator.
func openSession(ctx context.Context) (*nodebook.Config, *session.Manager, *nodebook.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	m, backend, err := nodebook.NewSession(ctx, cfg.URI(), cfg.User, backendOptions(cfg)...)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, m, backend, nil
}
