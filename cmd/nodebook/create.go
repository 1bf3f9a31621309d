package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createDescription string

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an empty graph",
	Long:  `Create a graph whose identifier is derived from the title.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		_, m, _, err := openSession(ctx)
		if err != nil {
			fatal("Failed to open session", err)
		}
		defer m.Shutdown()

		id, err := m.Create(ctx, strings.Join(args, " "), createDescription)
		if err != nil {
			fatal("Failed to create graph", err)
		}
		fmt.Printf("Graph '%s' created.\n", id)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Graph description")
}
