package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkit/layout"
)

var (
	// ErrBufferTooSmall is returned when the buffer cannot hold the layout.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrSegmentIndexOutOfRange is returned by SegmentAt for unknown segments.
	ErrSegmentIndexOutOfRange = errors.New("segment index out of range")

	// ErrInvalidOffset is returned for a negative base offset.
	ErrInvalidOffset = errors.New("invalid base offset")
)

// SegmentStore exposes the segments of a layout over a buffer.
type SegmentStore struct {
	buf    []byte
	base   int
	layout *layout.Layout
	segs   []layout.Segment
}

// TryCreate binds l to buf at base for a freshly allocated buffer. The buffer
// must already have its final size; no flex adjustment takes place.
func TryCreate(buf []byte, base int, l *layout.Layout) (*SegmentStore, error) {
	if err := checkBase(buf, base); err != nil {
		return nil, err
	}
	if need := base + l.TotalLen(); len(buf) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, len(buf))
	}
	return &SegmentStore{
		buf:    buf,
		base:   base,
		layout: l,
		segs:   l.Segments(base),
	}, nil
}

// TryLoad binds l to an existing buffer. A flex segment absorbs every byte
// after base not claimed by the fixed segments.
func TryLoad(buf []byte, base int, l *layout.Layout) (*SegmentStore, error) {
	if err := checkBase(buf, base); err != nil {
		return nil, err
	}

	flex, ok := l.Flex()
	if !ok {
		return TryCreate(buf, base, l)
	}

	available := len(buf) - base
	flexLen := available - l.FixedLen()
	if flexLen < l.Size(flex) {
		return nil, fmt.Errorf("%w: flex segment %d resolves to %d bytes, minimum %d",
			ErrBufferTooSmall, flex, flexLen, l.Size(flex))
	}

	segs := make([]layout.Segment, l.Count())
	off := base
	for i := range segs {
		sz := l.Size(i)
		if i == flex {
			sz = flexLen
		}
		segs[i] = layout.Segment{Offset: off, Len: sz}
		off += sz
	}

	return &SegmentStore{
		buf:    buf,
		base:   base,
		layout: l,
		segs:   segs,
	}, nil
}

func checkBase(buf []byte, base int) error {
	if base < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, base)
	}
	if base > len(buf) {
		return fmt.Errorf("%w: base offset %d beyond buffer length %d", ErrBufferTooSmall, base, len(buf))
	}
	return nil
}

// Count returns the number of segments.
func (s *SegmentStore) Count() int { return len(s.segs) }

// Base returns the byte offset the layout starts at.
func (s *SegmentStore) Base() int { return s.base }

// Layout returns the bound layout.
func (s *SegmentStore) Layout() *layout.Layout { return s.layout }

// Buffer returns the underlying buffer.
func (s *SegmentStore) Buffer() []byte { return s.buf }

// Len returns the number of bytes covered by all segments.
func (s *SegmentStore) Len() int {
	if len(s.segs) == 0 {
		return 0
	}
	return s.segs[len(s.segs)-1].End() - s.base
}

// Segment returns the effective range of segment i.
func (s *SegmentStore) Segment(i int) (layout.Segment, error) {
	if i < 0 || i >= len(s.segs) {
		return layout.Segment{}, fmt.Errorf("%w: %d (count %d)", ErrSegmentIndexOutOfRange, i, len(s.segs))
	}
	return s.segs[i], nil
}

// SegmentAt returns a window onto segment i. The window's capacity is
// clipped to the segment so appends cannot spill into a neighbour.
func (s *SegmentStore) SegmentAt(i int) ([]byte, error) {
	seg, err := s.Segment(i)
	if err != nil {
		return nil, err
	}
	return s.buf[seg.Offset:seg.End():seg.End()], nil
}
