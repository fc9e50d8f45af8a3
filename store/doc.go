// Package store binds a layout.Layout to a live storage buffer.
//
// A SegmentStore never owns its buffer: the slice is handed in by the
// caller (usually a host) and the store only validates bounds and hands out
// windows onto it. Neither TryCreate nor TryLoad writes a byte; formatting
// segments is left to the overlays built on top (package container and
// package collection).
//
// When the layout declares a flex segment, TryLoad resolves its effective
// length from the real buffer length so that the sum of all segment lengths
// equals len(buf) - base exactly. Fixed segments always keep their declared
// size.
package store
