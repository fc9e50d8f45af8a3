// Package schema declares container types field by field.
//
//	b := schema.New("ledger", 0x4c444752)
//	counter := b.MetaU64("counter")
//	owner := b.MetaKey("owner")
//	entries := b.Collection("entries", 40, 4)
//	def, err := b.Build()
//
// Meta fields receive offsets relative to the meta record in declaration
// order, packed without padding. Segments are laid out in declaration order.
package schema

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/field"
	"github.com/hupe1980/segkit/layout"
	"github.com/hupe1980/segkit/model"
)

// ErrInvalidSchema is returned by Build for malformed declarations.
var ErrInvalidSchema = errors.New("invalid schema")

// Segment identifies a declared data segment.
type Segment struct {
	Index int
	Name  string
}

// Builder accumulates a container declaration. The first declaration error
// is reported by Build.
type Builder struct {
	name     string
	tag      model.TypeTag
	width    layout.Width
	metaSize int
	fields   []field.Field
	segments []container.SegmentDef
	names    map[string]struct{}
	err      error
}

// New starts a declaration for the given type.
func New(name string, tag model.TypeTag) *Builder {
	return &Builder{
		name:  name,
		tag:   tag,
		width: layout.Width32,
		names: make(map[string]struct{}),
	}
}

// Width selects the index width bounding every segment size.
func (b *Builder) Width(w layout.Width) *Builder {
	b.width = w
	return b
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s: %s", ErrInvalidSchema, b.name, fmt.Sprintf(format, args...))
	}
}

func (b *Builder) claim(kind, name string) {
	if name == "" {
		b.fail("empty %s name", kind)
		return
	}
	if _, dup := b.names[name]; dup {
		b.fail("duplicate name %q", name)
		return
	}
	b.names[name] = struct{}{}
}

func (b *Builder) meta(name string, size int) int {
	b.claim("field", name)
	off := b.metaSize
	b.metaSize += size
	return off
}

func (b *Builder) addMeta(f field.Field) {
	b.fields = append(b.fields, f)
}

// MetaU8 declares a uint8 meta field.
func (b *Builder) MetaU8(name string) field.U8 {
	f := field.NewU8(name, b.meta(name, 1))
	b.addMeta(f)
	return f
}

// MetaBool declares a boolean meta field.
func (b *Builder) MetaBool(name string) field.Bool {
	f := field.NewBool(name, b.meta(name, 1))
	b.addMeta(f)
	return f
}

// MetaU16 declares a uint16 meta field.
func (b *Builder) MetaU16(name string) field.U16 {
	f := field.NewU16(name, b.meta(name, 2))
	b.addMeta(f)
	return f
}

// MetaU32 declares a uint32 meta field.
func (b *Builder) MetaU32(name string) field.U32 {
	f := field.NewU32(name, b.meta(name, 4))
	b.addMeta(f)
	return f
}

// MetaU64 declares a uint64 meta field.
func (b *Builder) MetaU64(name string) field.U64 {
	f := field.NewU64(name, b.meta(name, 8))
	b.addMeta(f)
	return f
}

// MetaKey declares a storage key meta field.
func (b *Builder) MetaKey(name string) field.Key {
	f := field.NewKey(name, b.meta(name, model.KeySize))
	b.addMeta(f)
	return f
}

// MetaBytes declares an n-byte opaque meta field.
func (b *Builder) MetaBytes(name string, n int) field.Bytes {
	if n < 0 {
		b.fail("field %q: negative size %d", name, n)
		n = 0
	}
	f := field.NewBytes(name, b.meta(name, n), n)
	b.addMeta(f)
	return f
}

func (b *Builder) segment(sd container.SegmentDef) Segment {
	b.claim("segment", sd.Name)
	b.segments = append(b.segments, sd)
	return Segment{Index: len(b.segments) - 1, Name: sd.Name}
}

// Raw declares a fixed-size opaque segment.
func (b *Builder) Raw(name string, size int) Segment {
	return b.segment(container.SegmentDef{Name: name, Kind: container.KindRaw, Size: size})
}

// Flex declares the opaque segment that absorbs spare buffer space.
func (b *Builder) Flex(name string, minSize int) Segment {
	return b.segment(container.SegmentDef{Name: name, Kind: container.KindRaw, Size: minSize, Flex: true})
}

// Collection declares a record collection of fixed capacity.
func (b *Builder) Collection(name string, recordSize, capacity int) Segment {
	return b.segment(container.SegmentDef{
		Name:       name,
		Kind:       container.KindCollection,
		RecordSize: recordSize,
		Capacity:   capacity,
	})
}

// FlexCollection declares a record collection whose capacity follows the
// buffer size, never below minCapacity.
func (b *Builder) FlexCollection(name string, recordSize, minCapacity int) Segment {
	return b.segment(container.SegmentDef{
		Name:       name,
		Kind:       container.KindCollection,
		RecordSize: recordSize,
		Capacity:   minCapacity,
		Flex:       true,
	})
}

// Fields returns the declared meta fields in order.
func (b *Builder) Fields() []field.Field {
	return append([]field.Field(nil), b.fields...)
}

// MetaSize returns the meta record size declared so far.
func (b *Builder) MetaSize() int { return b.metaSize }

// Build computes the layout and returns the container definition.
func (b *Builder) Build() (*container.Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	flex := 0
	for _, sd := range b.segments {
		if sd.Flex {
			flex++
		}
	}
	if flex > 1 {
		return nil, fmt.Errorf("%w: %s: %d flex segments, at most one allowed", ErrInvalidSchema, b.name, flex)
	}
	def, err := container.NewDefinition(b.name, b.tag, b.metaSize, b.width, b.segments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return def, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *container.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
