package layout

import "fmt"

// Builder accumulates segments one at a time and marks flex segments
// explicitly. It reports a second flex request as ErrInvalidLayout.
type Builder struct {
	width Width
	sizes []int
	flex  []int
}

// NewBuilder creates a Builder for the given width.
func NewBuilder(width Width) *Builder {
	return &Builder{width: width}
}

// Add appends a fixed segment and returns its index.
func (b *Builder) Add(size int) int {
	b.sizes = append(b.sizes, size)
	return len(b.sizes) - 1
}

// AddFlex appends a flex segment with the given minimum size and returns
// its index.
func (b *Builder) AddFlex(minSize int) int {
	i := b.Add(minSize)
	b.flex = append(b.flex, i)
	return i
}

// Build computes the layout.
func (b *Builder) Build() (*Layout, error) {
	flex := NoFlex
	switch len(b.flex) {
	case 0:
	case 1:
		flex = b.flex[0]
	default:
		return nil, fmt.Errorf("%w: %d flex segments requested, at most one allowed", ErrInvalidLayout, len(b.flex))
	}
	return Compute(b.sizes, flex, b.width)
}
