package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visionpipe/graph-runtime/assets"
	"github.com/visionpipe/graph-runtime/engine"
)

var (
	cfgFile   string
	activeCfg Config
	logger    = zap.NewNop()
)

func NewRootCmd() *cobra.Command {
	defaults := DefaultConfig()

	cmd := &cobra.Command{
		Use:           "posegraph",
		Short:         "Run the pose estimation graph over video frames",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := LoadConfig(LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded

			l, err := setupLogger(loaded.LogLevel)
			if err != nil {
				return err
			}
			logger = l
			engine.SetLogger(l)
			assets.SetLogger(l)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

// setupLogger builds the process-wide zap logger. Output goes to stderr so
// result JSON on stdout stays clean.
func setupLogger(levelStr string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
