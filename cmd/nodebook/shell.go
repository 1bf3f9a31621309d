package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/textrender"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
	"github.com/gnowledge/nodeBook-sub003/pkg/workspace"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive session",
	Long: `Open several graphs at once, switch between them, edit and save them.
The diagram of the active graph is printed whenever it changes.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, m, backend, err := openSession(ctx)
		if err != nil {
			fatal("Failed to open session", err)
		}

		out := &syncWriter{w: os.Stdout}
		sh := newShell(m, out, textrender.Surface(os.Stdout),
			workspace.WithPreferences(backend.Preferences),
			workspace.WithWatcher(backend.Watcher),
			workspace.WithLayout(cfg.Diagram.Layout),
			workspace.WithLogger(slog.Default()),
		)
		if err := sh.serve(ctx, os.Stdin, diagram.WithPollInterval(cfg.Diagram.PollInterval)); err != nil {
			fatal("Shell failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// syncWriter serializes the prompt and the diagrams written by the renderer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type shell struct {
	manager  *session.Manager
	renderer *textrender.Renderer
	surface  diagram.Surface
	wsOpts   []workspace.Option
	out      io.Writer

	controller *diagram.Controller
	workspace  *workspace.Workspace
}

func newShell(m *session.Manager, out io.Writer, s diagram.Surface, opts ...workspace.Option) *shell {
	return &shell{
		manager:  m,
		renderer: textrender.New(out, textrender.WithLogger(slog.Default())),
		surface:  s,
		wsOpts:   opts,
		out:      out,
	}
}

// serve runs the workspace and reads commands from in until quit, EOF or
// ctx is canceled. The session is shut down on return.
func (sh *shell) serve(ctx context.Context, in io.Reader, copts ...diagram.ControllerOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	copts = append(copts,
		diagram.WithLogger(slog.Default()),
		diagram.WithSelectHandler(func(n core.Node) {
			fmt.Fprintf(sh.out, "selected %s (%s)\n", n.DisplayName(), n.ID)
			for _, a := range n.Attributes {
				fmt.Fprintf(sh.out, "  %s: %s %s\n", a.Name, a.Value, a.Unit)
			}
			for _, r := range n.Relations {
				fmt.Fprintf(sh.out, "  <%s> %s\n", r.Name, r.Target)
			}
		}),
		diagram.WithHoverHandler(func(nodeID, description string) {
			fmt.Fprintf(sh.out, "%s: %s\n", nodeID, description)
		}),
	)
	sh.controller = diagram.NewController(ctx, sh.renderer, sh.surface, copts...)
	defer sh.controller.Close()
	sh.workspace = workspace.New(sh.manager, sh.controller, sh.wsOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sh.workspace.Run(gctx)
	})
	g.Go(func() error {
		defer sh.manager.Shutdown()
		return sh.loop(gctx, in)
	})
	return g.Wait()
}

func (sh *shell) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	sh.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := sh.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(sh.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			sh.prompt()
		}
	}
}

func (sh *shell) prompt() {
	active := sh.manager.ActiveID()
	if active == "" {
		active = "-"
	}
	fmt.Fprintf(sh.out, "nodebook [%s]> ", active)
}

var errUsage = errors.New("usage")

// graphCommands act on one graph, the active one when none is named.
var graphCommands = map[string]bool{
	"open":   true,
	"use":    true,
	"save":   true,
	"close":  true,
	"source": true,
}

// exec runs one command line and reports whether the shell should stop.
func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		sh.help()
		return false, nil
	case "ls":
		return false, sh.list(ctx)
	case "tabs":
		sh.tabs()
		return false, nil
	case "new":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: new <title>", errUsage)
		}
		id, err := sh.manager.Create(ctx, strings.Join(args, " "), "")
		if err == nil {
			fmt.Fprintf(sh.out, "created %s\n", id)
		}
		return false, err
	case "layout", "tap", "hover":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: %s <name>", errUsage, cmd)
		}
		return false, sh.diagram(cmd, args[0])
	case "edit":
		// edit [id] <file>
		if len(args) == 0 || len(args) > 2 {
			return false, fmt.Errorf("%w: edit [id] <file>", errUsage)
		}
		id, file := sh.manager.ActiveID(), args[len(args)-1]
		if len(args) == 2 {
			id = args[0]
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return false, err
		}
		return false, sh.manager.UpdateDraft(id, string(src))
	}

	if !graphCommands[cmd] {
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}

	id, force := sh.manager.ActiveID(), false
	for _, a := range args {
		if a == "!" {
			force = true
		} else {
			id = a
		}
	}
	if id == "" {
		return false, fmt.Errorf("%w: %s needs a graph", errUsage, cmd)
	}

	switch cmd {
	case "open":
		return false, sh.manager.Open(ctx, id)
	case "use":
		return false, sh.manager.Activate(id)
	case "save":
		return false, sh.manager.Save(ctx, id)
	case "close":
		closed, err := sh.manager.Close(id, func(core.Document) bool { return force })
		if err == nil && !closed {
			fmt.Fprintf(sh.out, "%s has unsaved edits; use 'close %s !' to discard them\n", id, id)
		}
		return false, err
	case "source":
		text, err := sh.manager.Text(id)
		if err == nil {
			fmt.Fprintln(sh.out, text)
		}
		return false, err
	}
	return false, fmt.Errorf("unknown command %q, try help", cmd)
}

// diagram runs the commands acting on the diagram of the active graph.
func (sh *shell) diagram(cmd, arg string) error {
	if cmd == "layout" {
		return sh.workspace.SetLayout(arg)
	}
	h, ok := sh.controller.Handle()
	if !ok {
		if msg := sh.controller.Placeholder(); msg != "" {
			return errors.New(msg)
		}
		return errors.New("diagram is not ready yet")
	}
	if _, ok := sh.controller.Model().Node(arg); !ok {
		return fmt.Errorf("no node %q in the diagram", arg)
	}
	var hit bool
	if cmd == "tap" {
		hit = sh.renderer.Tap(h, arg)
	} else {
		hit = sh.renderer.Hover(h, arg)
	}
	if !hit {
		return errors.New("diagram is not interactive")
	}
	return nil
}

func (sh *shell) list(ctx context.Context) error {
	graphs, err := sh.manager.ListAvailable(ctx)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		fmt.Fprintf(sh.out, "%s - %s\n", g.ID, g.Title)
	}
	return nil
}

func (sh *shell) tabs() {
	active := sh.manager.ActiveID()
	for _, info := range sh.manager.OpenDocuments() {
		marker, dirty := " ", ""
		if info.ID == active {
			marker = "*"
		}
		if doc, err := sh.manager.Document(info.ID); err == nil && doc.Dirty {
			dirty = " (modified)"
		}
		fmt.Fprintf(sh.out, "%s %s - %s%s\n", marker, info.ID, info.Title, dirty)
	}
}

func (sh *shell) help() {
	fmt.Fprint(sh.out, `commands:
  ls                   list available graphs
  tabs                 list open graphs
  new <title>          create and open a graph
  open <id>            open a graph
  use <id>             make an open graph active
  edit [id] <file>     replace the text of a graph with a file
  save [id]            save a graph
  close [id] [!]       close a graph, ! discards unsaved edits
  source [id]          print the text of a graph
  layout <name>        change the diagram layout
  tap <node>           select a node of the diagram
  hover <node>         describe a node of the diagram
  quit                 leave the shell
`)
}
