package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/visionpipe/graph-runtime/engine"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <engine.wasm>",
		Short: "Compile an engine binary and list its exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			eng, err := engine.NewWithConfig(ctx, &engine.Config{
				MemoryLimitPages: activeCfg.Engine.MemoryLimitPages,
			})
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			mod, err := eng.Load(ctx, data)
			if err != nil {
				return err
			}

			exports := mod.Exports()
			sort.Strings(exports)

			fmt.Printf("Binary: %s (%d bytes)\n", args[0], len(data))
			fmt.Printf("Exported functions: %d\n", len(exports))
			for _, name := range exports {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}
