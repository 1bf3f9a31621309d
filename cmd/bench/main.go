package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	nodebook "github.com/gnowledge/nodeBook-sub003"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

const user = "bench"

func main() {
	count := flag.Int("count", 200, "Number of graphs to generate")
	nodes := flag.Int("nodes", 50, "Nodes per graph")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "nodebook_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()
	root := filepath.Join(benchDir, "graphs")

	// Git is left out to measure parsing and IO only.
	m, backend, err := nodebook.NewSession(ctx, root, user,
		nodebook.WithLogger(logger),
		nodebook.WithVersioning(false),
		nodebook.WithEventBuffer(4*(*count)+16),
	)
	if err != nil {
		panic(err)
	}
	defer m.Shutdown()

	fmt.Printf("Generating %d graphs of %d nodes in %s...\n", *count, *nodes, root)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		id := fmt.Sprintf("graph_%d", i)
		if err := backend.Source.CreateDocument(ctx, user, id, fmt.Sprintf("Graph %d", i), ""); err != nil {
			panic(err)
		}
		if err := backend.Source.SaveDocument(ctx, user, id, source(*nodes)); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	startList := time.Now()
	graphs, err := m.ListAvailable(ctx)
	if err != nil {
		panic(err)
	}
	listDur := time.Since(startList)

	startOpen := time.Now()
	for _, info := range graphs {
		if err := m.Open(ctx, info.ID); err != nil {
			panic(err)
		}
	}
	openDur := time.Since(startOpen)

	startParse := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, info := range graphs {
		g.Go(func() error {
			_, err := backend.Source.FetchParsed(gctx, user, info.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	parseDur := time.Since(startParse)

	startProject := time.Now()
	edges := 0
	for _, info := range m.OpenDocuments() {
		doc, err := m.Document(info.ID)
		if err != nil {
			panic(err)
		}
		edges += diagram.Project(doc.Parsed).Stats().EdgeCount
	}
	projectDur := time.Since(startProject)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d graphs):\n", len(graphs))
	fmt.Printf("  List:    %v\n", listDur)
	fmt.Printf("  Open:    %v (%d open)\n", openDur, len(m.OpenDocuments()))
	fmt.Printf("  Parse:   %v (8 workers)\n", parseDur)
	fmt.Printf("  Project: %v (%d edges)\n", projectDur, edges)
	fmt.Printf("--------------------------------------------------\n")
}

// source writes a chain of n nodes, each linked to the next.
func source(n int) string {
	var b []byte
	for i := 0; i < n; i++ {
		b = fmt.Appendf(b, "# Node %d\nNode number %d.\nhas index: %d;\n", i, i, i)
		if i+1 < n {
			b = fmt.Appendf(b, "<links_to> Node %d;\n", i+1)
		}
		b = append(b, '\n')
	}
	return string(b)
}
