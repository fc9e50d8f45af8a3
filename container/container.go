package container

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/model"
	"github.com/hupe1980/segkit/store"
)

// HeaderSize is the size of the container header: type tag u32 LE followed
// by 4 reserved zero bytes.
const HeaderSize = 8

const (
	tagOff      = 0
	reservedOff = 4
)

// Names resolves type tags to readable names for error messages.
// *registry.Registry satisfies it.
type Names interface {
	Lookup(tag model.TypeTag) (string, bool)
}

// Container is a typed view over one buffer. It borrows the buffer; the
// caller must not use it after handing the buffer back to its host.
type Container struct {
	buf   []byte
	def   *Definition
	store *store.SegmentStore
}

// ReadTag returns the tag stored in buf's header.
func ReadTag(buf []byte) (model.TypeTag, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("%w: need %d bytes for header, have %d", store.ErrBufferTooSmall, HeaderSize, len(buf))
	}
	return model.TypeTag(binary.LittleEndian.Uint32(buf[tagOff:])), nil
}

// TryCreate formats buf as a new container of type def. It writes the
// header tag, zeroes the reserved bytes and the meta record and initialises
// every collection segment. Nothing is written unless buf is large enough.
func TryCreate(buf []byte, def *Definition) (*Container, error) {
	if len(buf) < def.InitialDataLen() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, have %d",
			store.ErrBufferTooSmall, def.Name(), def.InitialDataLen(), len(buf))
	}
	if _, err := store.TryCreate(buf, def.Base(), def.Layout()); err != nil {
		return nil, err
	}
	// Resolve the flex segment over the whole buffer so a flex collection
	// starts with the capacity that fits.
	s, err := store.TryLoad(buf, def.Base(), def.Layout())
	if err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(buf[tagOff:], uint32(def.Tag()))
	clear(buf[reservedOff:def.Base()])

	for i := range def.SegmentCount() {
		sd := def.Segment(i)
		if sd.Kind != KindCollection {
			continue
		}
		window, _ := s.SegmentAt(i)
		capacity := sd.Capacity
		if sd.Flex {
			capacity = collection.CapacityFor(len(window), sd.RecordSize)
		}
		if err := collection.InitHeader(window, sd.RecordSize, capacity); err != nil {
			return nil, fmt.Errorf("%s: segment %d: %w", def.Name(), i, err)
		}
	}

	return &Container{buf: buf, def: def, store: s}, nil
}

// TryLoad binds buf as an existing container of type def. The stored tag
// must equal def's tag; names, which may be nil, labels a mismatch.
func TryLoad(buf []byte, def *Definition, names Names) (*Container, error) {
	found, err := ReadTag(buf)
	if err != nil {
		return nil, err
	}
	if found != def.Tag() {
		return nil, mismatch(def, found, names)
	}
	if len(buf) < def.Base() {
		return nil, fmt.Errorf("%w: %s meta needs %d bytes, have %d",
			store.ErrBufferTooSmall, def.Name(), def.Base(), len(buf))
	}
	s, err := store.TryLoad(buf, def.Base(), def.Layout())
	if err != nil {
		return nil, err
	}
	return &Container{buf: buf, def: def, store: s}, nil
}

func mismatch(def *Definition, found model.TypeTag, names Names) error {
	e := &ErrContainerTypeMismatch{Expected: def.Tag(), Found: found, ExpectedName: def.Name()}
	if names != nil {
		if n, ok := names.Lookup(def.Tag()); ok {
			e.ExpectedName = n
		}
		if n, ok := names.Lookup(found); ok {
			e.FoundName = n
		}
	}
	return e
}

// Definition returns the container's type.
func (c *Container) Definition() *Definition { return c.def }

// Tag returns the stored type tag.
func (c *Container) Tag() model.TypeTag {
	return model.TypeTag(binary.LittleEndian.Uint32(c.buf[tagOff:]))
}

// Buffer returns the whole underlying buffer.
func (c *Container) Buffer() []byte { return c.buf }

// Store returns the segment store over the data region.
func (c *Container) Store() *store.SegmentStore { return c.store }

// Meta returns the meta record window for use with field accessors.
func (c *Container) Meta() []byte {
	return c.buf[HeaderSize:c.def.Base():c.def.Base()]
}

// Segment returns the window of data segment i.
func (c *Container) Segment(i int) ([]byte, error) {
	return c.store.SegmentAt(i)
}

// SegmentByName returns the window of the named data segment.
func (c *Container) SegmentByName(name string) ([]byte, error) {
	i, ok := c.def.SegmentIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no segment %q", store.ErrSegmentIndexOutOfRange, c.def.Name(), name)
	}
	return c.store.SegmentAt(i)
}

// ExpandCollections raises every flex collection's capacity to what its
// segment now holds. Call it after the buffer grew.
func (c *Container) ExpandCollections() error {
	for i := range c.def.SegmentCount() {
		sd := c.def.Segment(i)
		if sd.Kind != KindCollection || !sd.Flex {
			continue
		}
		window, err := c.store.SegmentAt(i)
		if err != nil {
			return err
		}
		if _, err := collection.ExpandHeader(window, sd.RecordSize); err != nil {
			return fmt.Errorf("%s: segment %q: %w", c.def.Name(), sd.Name, err)
		}
	}
	return nil
}

// OpenArray binds collection segment i as an Array.
func OpenArray[T any](c *Container, i int, codec collection.Codec[T]) (*collection.Array[T], error) {
	window, err := collectionWindow(c, i, codec.Size())
	if err != nil {
		return nil, err
	}
	return collection.Open(window, codec)
}

// OpenOrdered binds collection segment i as an Ordered collection.
func OpenOrdered[T any](c *Container, i int, codec collection.OrderedCodec[T]) (*collection.Ordered[T], error) {
	window, err := collectionWindow(c, i, codec.Size())
	if err != nil {
		return nil, err
	}
	return collection.OpenOrdered(window, codec)
}

func collectionWindow(c *Container, i, recordSize int) ([]byte, error) {
	window, err := c.store.SegmentAt(i)
	if err != nil {
		return nil, err
	}
	sd := c.def.Segment(i)
	if sd.Kind != KindCollection {
		return nil, fmt.Errorf("%w: %s segment %d is %s", ErrInvalidDefinition, c.def.Name(), i, sd.Kind)
	}
	if sd.RecordSize != recordSize {
		return nil, fmt.Errorf("%w: %s segment %d holds %d-byte records, codec is %d",
			ErrInvalidDefinition, c.def.Name(), i, sd.RecordSize, recordSize)
	}
	return window, nil
}
