package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

type difficultySetter interface {
	SetDifficulty(ctx context.Context, userID string, d core.Difficulty) error
}

var difficultyCmd = &cobra.Command{
	Use:   "difficulty [tier]",
	Short: "Show or set the difficulty tier of the user",
	Long: `Without arguments, print the difficulty tier and the layout it selects.
With a tier (easy, moderate, advanced, expert, superuser), store it.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, backend, err := openBackend(ctx)
		if err != nil {
			fatal("Failed to open graphs", err)
		}

		if len(args) == 1 {
			d, err := core.ParseDifficulty(args[0])
			if err != nil {
				fatal("Invalid tier", err)
			}
			setter, ok := backend.Source.(difficultySetter)
			if !ok {
				fatal("Failed to set difficulty", fmt.Errorf("the %s adapter is read-only for preferences", cfg.Adapter))
			}
			if err := setter.SetDifficulty(ctx, cfg.User, d); err != nil {
				fatal("Failed to set difficulty", err)
			}
			fmt.Printf("Difficulty set to %s (layout %s).\n", d, diagram.LayoutFor(d))
			return
		}

		if backend.Preferences == nil {
			fatal("Failed to read difficulty", fmt.Errorf("the %s adapter keeps no preferences", cfg.Adapter))
		}
		d, err := backend.Preferences.GetDifficulty(ctx, cfg.User)
		if err != nil {
			fatal("Failed to read difficulty", err)
		}
		fmt.Printf("%s (layout %s)\n", d, diagram.LayoutFor(d))
	},
}

func init() {
	rootCmd.AddCommand(difficultyCmd)
}
