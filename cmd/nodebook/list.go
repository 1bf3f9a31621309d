package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the graphs of the user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, backend, err := openBackend(ctx)
		if err != nil {
			fatal("Failed to open graphs", err)
		}

		graphs, err := backend.Source.ListGraphs(ctx, cfg.User)
		if err != nil {
			fatal("Failed to list graphs", err)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(graphs); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, g := range graphs {
			fmt.Printf("%s - %s\n", g.ID, g.Title)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
