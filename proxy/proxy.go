// Package proxy implements containers that only point at another storage
// key. A proxy buffer is a container header tagged Tag followed by the
// referenced key as its meta record.
package proxy

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/field"
	"github.com/hupe1980/segkit/layout"
	"github.com/hupe1980/segkit/model"
)

// Tag marks proxy containers ("PRXY" in little-endian byte order).
const Tag model.TypeTag = 0x59585250

// Size is the exact buffer size of a proxy.
const Size = container.HeaderSize + model.KeySize

// ErrSelfReference is returned when a proxy would point at itself.
var ErrSelfReference = errors.New("proxy references itself")

// Definition is the container type of every proxy.
var Definition = container.MustDefinition("proxy", Tag, model.KeySize, layout.Width32, nil)

var target = field.NewKey("target", 0)

// TryCreate formats buf as a proxy to ref. buf must hold at least Size
// bytes.
func TryCreate(buf []byte, ref model.StorageKey) error {
	if ref.IsZero() {
		return fmt.Errorf("%w: proxy target", model.ErrInvalidKey)
	}
	c, err := container.TryCreate(buf, Definition)
	if err != nil {
		return err
	}
	target.Set(c.Meta(), ref)
	return nil
}

// TryLoad returns the key a proxy buffer points at. A buffer of any other
// type fails with a *container.ErrContainerTypeMismatch.
func TryLoad(buf []byte, names container.Names) (model.StorageKey, error) {
	c, err := container.TryLoad(buf, Definition, names)
	if err != nil {
		return model.ZeroKey, err
	}
	return target.Get(c.Meta()), nil
}

// IsProxy reports whether buf carries the proxy tag.
func IsProxy(buf []byte) bool {
	tag, err := container.ReadTag(buf)
	return err == nil && tag == Tag
}

// Retarget rewrites the key of an existing proxy.
func Retarget(buf []byte, ref model.StorageKey) error {
	if ref.IsZero() {
		return fmt.Errorf("%w: proxy target", model.ErrInvalidKey)
	}
	c, err := container.TryLoad(buf, Definition, nil)
	if err != nil {
		return err
	}
	target.Set(c.Meta(), ref)
	return nil
}
