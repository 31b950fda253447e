package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corey/symdex/internal/app"
	"github.com/corey/symdex/internal/config"
	"github.com/corey/symdex/internal/logging"
)

var (
	cfgFile  string
	rootFlag string
	cfg      *config.Config
	settings *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "symdex",
	Short: "symdex — symbol extraction across dozens of grammars",
	Long: `symdex parses a workspace with tree-sitter grammars and extracts a normalized
symbol model (functions, classes, constants, views, stored routines...).
What each grammar can and cannot answer is governed by a capability table.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./symdex.yaml or <root>/.symdex/config.yaml)")
	pf.StringVar(&rootFlag, "root", "", "workspace root (default: current directory)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (json, text)")
	pf.Int("workers", 0, "parallel files during scans (default: GOMAXPROCS)")
	pf.String("store", "", "symbol store backend (memory, bbolt, sqlite)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(grammarCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"workers":    "workers",
	"store":      "store.backend",
}

func initConfig(cmd *cobra.Command, _ []string) error {
	var err error
	settings, err = config.NewViper(cfgFile, projectRoot())
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := settings.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}
	cfg, err = config.New(settings)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	logging.SetLogger(logger)
	return nil
}

// projectRoot returns --root or the working directory.
func projectRoot() string {
	if rootFlag != "" {
		return rootFlag
	}
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// openApp wires the workspace. Store lock contention is reported with
// guidance instead of the raw error.
func openApp(ctx context.Context) (*app.App, error) {
	root := projectRoot()
	a, err := app.New(ctx, app.Options{Root: root, Config: cfg})
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(root))
		}
		return nil, err
	}
	return a, nil
}
