package container

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/internal/conv"
	"github.com/hupe1980/segkit/layout"
	"github.com/hupe1980/segkit/model"
)

// ErrInvalidDefinition is returned for inconsistent container definitions.
var ErrInvalidDefinition = errors.New("invalid container definition")

// SegmentKind says how a segment is formatted on create.
type SegmentKind uint8

const (
	// KindRaw segments are left zeroed.
	KindRaw SegmentKind = iota
	// KindCollection segments get a collection header.
	KindCollection
)

func (k SegmentKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindCollection:
		return "collection"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SegmentDef declares one data segment.
//
// For KindRaw, Size is the byte size (minimum size when Flex). For
// KindCollection, RecordSize and Capacity determine the size and Size is
// ignored; a flex collection treats Capacity as its minimum.
type SegmentDef struct {
	Name       string
	Kind       SegmentKind
	Size       int
	RecordSize int
	Capacity   int
	Flex       bool
}

// Definition describes a container type: its tag, meta record size and
// data segments. It is immutable once built.
type Definition struct {
	name     string
	tag      model.TypeTag
	metaSize int
	segments []SegmentDef
	index    map[string]int
	layout   *layout.Layout
}

// NewDefinition validates the segment list and computes its layout.
func NewDefinition(name string, tag model.TypeTag, metaSize int, width layout.Width, segments []SegmentDef) (*Definition, error) {
	if tag == 0 {
		return nil, fmt.Errorf("%w: %q: type tag 0 is reserved", ErrInvalidDefinition, name)
	}
	if metaSize < 0 {
		return nil, fmt.Errorf("%w: %q: negative meta size %d", ErrInvalidDefinition, name, metaSize)
	}

	b := layout.NewBuilder(width)
	segs := make([]SegmentDef, len(segments))
	index := make(map[string]int, len(segments))
	for i, sd := range segments {
		if sd.Name != "" {
			if _, dup := index[sd.Name]; dup {
				return nil, fmt.Errorf("%w: %q: duplicate segment %q", ErrInvalidDefinition, name, sd.Name)
			}
			index[sd.Name] = i
		}

		size := sd.Size
		switch sd.Kind {
		case KindRaw:
		case KindCollection:
			var err error
			if size, err = collection.SizeFor(sd.RecordSize, sd.Capacity); err != nil {
				return nil, fmt.Errorf("%w: %q: segment %d: %w", ErrInvalidDefinition, name, i, err)
			}
			sd.Size = size
		default:
			return nil, fmt.Errorf("%w: %q: segment %d: unknown kind %s", ErrInvalidDefinition, name, i, sd.Kind)
		}

		if sd.Flex {
			b.AddFlex(size)
		} else {
			b.Add(size)
		}
		segs[i] = sd
	}

	l, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidDefinition, name, err)
	}
	if _, err := conv.AddInt(HeaderSize+metaSize, l.TotalLen()); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidDefinition, name, err)
	}

	return &Definition{
		name:     name,
		tag:      tag,
		metaSize: metaSize,
		segments: segs,
		index:    index,
		layout:   l,
	}, nil
}

// MustDefinition is like NewDefinition but panics on error.
func MustDefinition(name string, tag model.TypeTag, metaSize int, width layout.Width, segments []SegmentDef) *Definition {
	d, err := NewDefinition(name, tag, metaSize, width, segments)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the human readable type name.
func (d *Definition) Name() string { return d.name }

// Tag returns the type tag written into the header.
func (d *Definition) Tag() model.TypeTag { return d.tag }

// MetaSize returns the size of the meta record.
func (d *Definition) MetaSize() int { return d.metaSize }

// Base returns the offset of the first data segment.
func (d *Definition) Base() int { return HeaderSize + d.metaSize }

// Layout returns the data segment layout.
func (d *Definition) Layout() *layout.Layout { return d.layout }

// InitialDataLen is the minimum buffer size: header, meta and every segment
// at its declared size.
func (d *Definition) InitialDataLen() int {
	return d.Base() + d.layout.TotalLen()
}

// SegmentCount returns the number of data segments.
func (d *Definition) SegmentCount() int { return len(d.segments) }

// Segment returns the declaration of segment i. Size is resolved for
// collections.
func (d *Definition) Segment(i int) SegmentDef { return d.segments[i] }

// SegmentIndex looks a segment up by name.
func (d *Definition) SegmentIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}
