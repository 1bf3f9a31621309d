package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	nodebook "github.com/gnowledge/nodeBook-sub003"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/textrender"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

var (
	showLayout string
	showRaw    bool
	showStats  bool
	showJSON   bool
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a graph as a D2 diagram",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, backend, err := openBackend(ctx)
		if err != nil {
			fatal("Failed to open graphs", err)
		}
		id := args[0]

		if showRaw {
			raw, err := backend.Source.FetchRaw(ctx, cfg.User, id)
			if err != nil {
				fatal("Failed to read graph", err)
			}
			fmt.Print(raw)
			return
		}

		parsed, err := backend.Source.FetchParsed(ctx, cfg.User, id)
		if err != nil {
			fatal("Failed to parse graph", err)
		}
		model := diagram.Project(parsed)

		switch {
		case showJSON:
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(model); err != nil {
				fatal("Failed to encode JSON", err)
			}
		case showStats:
			s := model.Stats()
			fmt.Printf("nodes: %d\nedges: %d\ndangling: %d\n", s.NodeCount, s.EdgeCount, s.DanglingCount)
		default:
			fmt.Print(textrender.Render(model.Nodes, model.Edges, resolveLayout(ctx, cfg, backend)))
		}
	},
}

// resolveLayout prefers the flag, then the configuration, then the user's
// difficulty tier.
func resolveLayout(ctx context.Context, cfg *nodebook.Config, backend *nodebook.Backend) string {
	if showLayout != "" {
		return showLayout
	}
	if cfg.Diagram.Layout != "" {
		return cfg.Diagram.Layout
	}
	if backend.Preferences == nil {
		return diagram.DefaultLayout
	}
	d, err := backend.Preferences.GetDifficulty(ctx, cfg.User)
	if err != nil {
		slog.Warn("difficulty unavailable, using default layout", "error", err)
		return diagram.DefaultLayout
	}
	return diagram.LayoutFor(d)
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showLayout, "layout", "l", "", "Layout name (grid, circle, breadthfirst, cose, dagre)")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the CNL source instead")
	showCmd.Flags().BoolVar(&showStats, "stats", false, "Print node and edge counts")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the diagram model as JSON")
}
