package segkit

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/layout"
	"github.com/hupe1980/segkit/proxy"
	"github.com/hupe1980/segkit/store"
)

var (
	ErrInvalidLayout          = layout.ErrInvalidLayout
	ErrBufferTooSmall         = store.ErrBufferTooSmall
	ErrSegmentIndexOutOfRange = store.ErrSegmentIndexOutOfRange
	ErrTypeMismatch           = container.ErrTypeMismatch
	ErrInvalidDefinition      = container.ErrInvalidDefinition
	ErrCollectionFull         = collection.ErrCollectionFull
	ErrEntryNotFound          = collection.ErrEntryNotFound
	ErrReadOnlyAccessDenied   = collection.ErrReadOnlyAccessDenied
	ErrOrderViolated          = collection.ErrOrderViolated
	ErrInvalidHeader          = collection.ErrInvalidHeader
	ErrExists                 = host.ErrExists
	ErrGrowthDenied           = host.ErrGrowthDenied
	ErrConflict               = host.ErrConflict
	ErrSelfReference          = proxy.ErrSelfReference
)

var (
	// ErrNotFound is returned when a key has no buffer, whatever the host.
	ErrNotFound = errors.New("segkit: not found")

	// ErrInvalidSize is returned for sizes no buffer operation accepts,
	// such as shrinking through Grow.
	ErrInvalidSize = errors.New("segkit: invalid buffer size")

	// ErrProxyCycle is returned when a proxy chain loops.
	ErrProxyCycle = errors.New("segkit: proxy cycle")

	// ErrTooManyHops is returned when a proxy chain is longer than the
	// configured maximum.
	ErrTooManyHops = errors.New("segkit: too many proxy hops")
)

// ErrContainerTypeMismatch is the typed form of ErrTypeMismatch.
type ErrContainerTypeMismatch = container.ErrContainerTypeMismatch

func isTypeMismatch(err error) bool {
	return errors.Is(err, container.ErrTypeMismatch)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification across hosts and blob stores.
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, host.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
