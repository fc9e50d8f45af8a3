package collection

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/segkit/internal/conv"
)

// HeaderSize is the size of the (count, capacity) collection header.
const HeaderSize = 8

// maxCapacity is the largest capacity the u32 header field holds.
const maxCapacity uint64 = math.MaxUint32

const (
	countOff    = 0
	capacityOff = 4
)

// SizeFor returns the segment size needed for capacity records of
// recordSize bytes.
func SizeFor(recordSize, capacity int) (int, error) {
	if recordSize <= 0 {
		return 0, fmt.Errorf("%w: record size %d", ErrInvalidHeader, recordSize)
	}
	if capacity < 0 || uint64(capacity) > maxCapacity {
		return 0, fmt.Errorf("%w: capacity %d", ErrInvalidHeader, capacity)
	}
	body, err := conv.MulInt(recordSize, capacity)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	return conv.AddInt(HeaderSize, body)
}

// CapacityFor returns how many records of recordSize fit a window of
// windowLen bytes.
func CapacityFor(windowLen, recordSize int) int {
	if recordSize <= 0 || windowLen < HeaderSize {
		return 0
	}
	n := (windowLen - HeaderSize) / recordSize
	if uint64(n) > maxCapacity {
		n, _ = conv.Uint32ToInt(math.MaxUint32)
	}
	return n
}

// InitHeader formats window as an empty collection of capacity records.
// Only the header is written.
func InitHeader(window []byte, recordSize, capacity int) error {
	need, err := SizeFor(recordSize, capacity)
	if err != nil {
		return err
	}
	if len(window) < need {
		return fmt.Errorf("%w: capacity %d x %d bytes needs %d, window has %d",
			ErrInvalidHeader, capacity, recordSize, need, len(window))
	}
	binary.LittleEndian.PutUint32(window[countOff:], 0)
	binary.LittleEndian.PutUint32(window[capacityOff:], uint32(capacity))
	return nil
}

// ReadHeader returns the stored count and capacity.
func ReadHeader(window []byte) (count, capacity int, err error) {
	if len(window) < HeaderSize {
		return 0, 0, fmt.Errorf("%w: window of %d bytes", ErrInvalidHeader, len(window))
	}
	if count, err = conv.Uint32ToInt(binary.LittleEndian.Uint32(window[countOff:])); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if capacity, err = conv.Uint32ToInt(binary.LittleEndian.Uint32(window[capacityOff:])); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	return count, capacity, nil
}

func validateHeader(window []byte, recordSize int) error {
	count, capacity, err := ReadHeader(window)
	if err != nil {
		return err
	}
	if count > capacity {
		return fmt.Errorf("%w: count %d exceeds capacity %d", ErrInvalidHeader, count, capacity)
	}
	need, err := SizeFor(recordSize, capacity)
	if err != nil {
		return err
	}
	if len(window) < need {
		return fmt.Errorf("%w: capacity %d x %d bytes needs %d, window has %d",
			ErrInvalidHeader, capacity, recordSize, need, len(window))
	}
	return nil
}

// ExpandHeader raises the stored capacity to what window can hold and
// returns the resulting capacity. Capacity never shrinks.
func ExpandHeader(window []byte, recordSize int) (int, error) {
	if err := validateHeader(window, recordSize); err != nil {
		return 0, err
	}
	capacity := int(binary.LittleEndian.Uint32(window[capacityOff:]))
	if fit := CapacityFor(len(window), recordSize); fit > capacity {
		binary.LittleEndian.PutUint32(window[capacityOff:], uint32(fit))
		return fit, nil
	}
	return capacity, nil
}
