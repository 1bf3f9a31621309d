package textrender

import (
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

// TerminalSurface measures a terminal. It is only attached while the file
// descriptor is a terminal, so output redirected to a file or pipe never
// becomes ready; use FixedSurface there.
type TerminalSurface struct {
	fd int
}

// NewTerminalSurface returns a surface for f, typically os.Stdout.
func NewTerminalSurface(f *os.File) *TerminalSurface {
	return &TerminalSurface{fd: int(f.Fd())}
}

// Measure implements diagram.Surface.
func (s *TerminalSurface) Measure() (width, height int) {
	w, h, err := term.GetSize(s.fd)
	if err != nil {
		return 0, 0
	}
	return w, h
}

// Attached implements diagram.Surface.
func (s *TerminalSurface) Attached() bool {
	return term.IsTerminal(s.fd)
}

// FixedSurface has a size set by its owner. A zero size is not ready.
type FixedSurface struct {
	mu     sync.Mutex
	width  int
	height int
}

// NewFixedSurface returns a surface of the given size.
func NewFixedSurface(width, height int) *FixedSurface {
	return &FixedSurface{width: width, height: height}
}

// Resize changes the size, e.g. when a hidden view becomes visible.
func (s *FixedSurface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Measure implements diagram.Surface.
func (s *FixedSurface) Measure() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Attached implements diagram.Surface.
func (s *FixedSurface) Attached() bool { return true }

// Surface picks a TerminalSurface when f is a terminal and a fixed 80x24
// surface otherwise.
func Surface(f *os.File) diagram.Surface {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return NewTerminalSurface(f)
	}
	return NewFixedSurface(80, 24)
}
