package diagram

// Handle identifies a rendering instance owned by a Controller.
type Handle string

// Surface is the display region a diagram is drawn on.
type Surface interface {
	// Measure returns the current size of the region.
	Measure() (width, height int)
	// Attached reports whether the region belongs to the visible document.
	Attached() bool
}

// Ready reports whether a diagram can be bound to s.
func Ready(s Surface) bool {
	if s == nil || !s.Attached() {
		return false
	}
	w, h := s.Measure()
	return w > 0 && h > 0
}

// Renderer is the external graph drawing capability.
// Callbacks are invoked from interaction events, never from within Create.
type Renderer interface {
	// Create draws nodes and edges on the surface with the named layout.
	Create(s Surface, nodes []Node, edges []Edge, layout string) (Handle, error)
	// Destroy releases an instance. Callbacks of a destroyed instance never fire.
	Destroy(h Handle) error
	// OnHover registers the pointer-hover callback of an instance.
	OnHover(h Handle, fn func(nodeID string))
	// OnTap registers the pointer-tap callback of an instance.
	OnTap(h Handle, fn func(nodeID string))
}
