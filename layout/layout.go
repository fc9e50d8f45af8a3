package layout

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// NoFlex marks a layout without a flex segment.
const NoFlex = -1

// ErrInvalidLayout is returned for layouts that cannot be represented.
var ErrInvalidLayout = errors.New("invalid layout")

// Width is the integer width bounding segment sizes and offsets.
type Width uint8

const (
	// Width32 bounds sizes and offsets to 32 bits. It is the default.
	Width32 Width = iota
	// Width16 bounds sizes and offsets to 16 bits.
	Width16
)

// Max returns the largest size or offset representable in w.
func (w Width) Max() int64 {
	if w == Width16 {
		return math.MaxUint16
	}
	return math.MaxUint32
}

func (w Width) String() string {
	if w == Width16 {
		return "u16"
	}
	return "u32"
}

// Segment is a byte range of a buffer. It never outlives the buffer it views.
type Segment struct {
	Offset int
	Len    int
}

// End returns the offset of the first byte after the segment.
func (s Segment) End() int {
	return s.Offset + s.Len
}

// Layout holds the offsets computed from an ordered list of segment sizes.
type Layout struct {
	sizes   []int
	offsets []int
	flex    int
	width   Width
	total   int
}

// Compute builds a Layout from sizes. flex is the index of the flex segment,
// or NoFlex.
func Compute(sizes []int, flex int, width Width) (*Layout, error) {
	if width != Width16 && width != Width32 {
		return nil, fmt.Errorf("%w: unknown width %d", ErrInvalidLayout, width)
	}
	if flex != NoFlex && (flex < 0 || flex >= len(sizes)) {
		return nil, fmt.Errorf("%w: flex index %d out of range [0,%d)", ErrInvalidLayout, flex, len(sizes))
	}

	limit := width.Max()
	offsets := make([]int, len(sizes))
	total := 0
	for i, sz := range sizes {
		if sz < 0 {
			return nil, fmt.Errorf("%w: segment %d has negative size %d", ErrInvalidLayout, i, sz)
		}
		if int64(sz) > limit {
			return nil, fmt.Errorf("%w: segment %d size %d overflows %s", ErrInvalidLayout, i, sz, width)
		}
		offsets[i] = total
		total += sz
		if int64(total) > limit {
			return nil, fmt.Errorf("%w: total length %d overflows %s at segment %d", ErrInvalidLayout, total, width, i)
		}
	}

	return &Layout{
		sizes:   slices.Clone(sizes),
		offsets: offsets,
		flex:    flex,
		width:   width,
		total:   total,
	}, nil
}

// Count returns the number of segments.
func (l *Layout) Count() int { return len(l.sizes) }

// Size returns the declared size of segment i.
func (l *Layout) Size(i int) int { return l.sizes[i] }

// Offset returns the offset of segment i relative to the layout start.
func (l *Layout) Offset(i int) int { return l.offsets[i] }

// Sizes returns a copy of the declared sizes.
func (l *Layout) Sizes() []int { return slices.Clone(l.sizes) }

// Offsets returns a copy of the computed offsets.
func (l *Layout) Offsets() []int { return slices.Clone(l.offsets) }

// TotalLen returns the sum of declared sizes. The flex segment contributes
// its minimum.
func (l *Layout) TotalLen() int { return l.total }

// Width returns the configured index width.
func (l *Layout) Width() Width { return l.width }

// Flex returns the flex segment index and whether one exists.
func (l *Layout) Flex() (int, bool) {
	return l.flex, l.flex != NoFlex
}

// FixedLen returns the summed size of every segment except the flex segment.
func (l *Layout) FixedLen() int {
	if l.flex == NoFlex {
		return l.total
	}
	return l.total - l.sizes[l.flex]
}

// Segments returns the declared ranges shifted by base.
func (l *Layout) Segments(base int) []Segment {
	segs := make([]Segment, len(l.sizes))
	for i := range l.sizes {
		segs[i] = Segment{Offset: base + l.offsets[i], Len: l.sizes[i]}
	}
	return segs
}

// Equal reports whether two layouts describe the same ranges.
func (l *Layout) Equal(other *Layout) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.flex == other.flex &&
		l.width == other.width &&
		slices.Equal(l.sizes, other.sizes)
}
