package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/config"
	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/documents"
)

var version = "dev"

// closeTimeout bounds the final flush when a command exits.
const closeTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	noColor   bool
	configDir string
	dataDir   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "docstate",
		Short:         "Inspect and edit per-user settings, state and history documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().StringVar(&g.configDir, "config-dir", "", "override the config directory")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "override the data directory")

	root.AddCommand(
		newPathsCmd(g),
		newConfigCmd(g),
		newShowCmd(g),
		newGetCmd(g),
		newSetCmd(g),
		newAccountsCmd(g),
		newThemeCmd(g),
		newServeCmd(g),
	)
	return root
}

// loadConfig loads the environment configuration and applies the global
// directory flags on top.
func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if g.configDir != "" {
		if err := config.Set(&cfg, "dirs.config", g.configDir); err != nil {
			return config.Config{}, err
		}
	}
	if g.dataDir != "" {
		if err := config.Set(&cfg, "dirs.data", g.dataDir); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// openSet opens the document set described by cfg.
func openSet(cfg config.Config, opts documents.Options) *documents.Set {
	opts.DocumentOptions = append(opts.DocumentOptions,
		configfile.WithCoalesceOptions(coalesce.WithInterval(cfg.Flush.Interval)))
	return documents.Open(cfg.Paths(), opts)
}

// withSet runs fn against a freshly opened set and closes it afterwards so
// every staged write reaches disk before the command returns.
func withSet(g *globalFlags, opts documents.Options, fn func(*documents.Set) error) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	set := openSet(cfg, opts)

	runErr := fn(set)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := set.Close(ctx); err != nil {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("saving documents: %w", err)
	}
	return runErr
}
