package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var saveFile string

var saveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Replace the CNL source of a graph",
	Long:  `Replace the source of an existing graph with a file, or stdin when no file is given.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			src []byte
			err error
		)
		if saveFile == "" || saveFile == "-" {
			src, err = io.ReadAll(os.Stdin)
		} else {
			src, err = os.ReadFile(saveFile)
		}
		if err != nil {
			fatal("Failed to read source", err)
		}

		ctx := context.Background()
		_, m, _, err := openSession(ctx)
		if err != nil {
			fatal("Failed to open session", err)
		}
		defer m.Shutdown()

		id := args[0]
		if err := m.Open(ctx, id); err != nil {
			fatal("Failed to open graph", err)
		}
		if err := m.UpdateDraft(id, string(src)); err != nil {
			fatal("Failed to edit graph", err)
		}
		if err := m.Save(ctx, id); err != nil {
			fatal("Failed to save graph", err)
		}

		doc, err := m.Document(id)
		if err != nil {
			fatal("Failed to read graph", err)
		}
		fmt.Printf("Graph '%s' saved (%d nodes).\n", id, doc.Parsed.Len())
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "CNL source file (default stdin)")
}
