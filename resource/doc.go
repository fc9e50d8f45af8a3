// Package resource limits what a host may hold and how fast it may talk to
// its backend.
//
// Memory reservations never block: AcquireMemory fails with
// ErrMemoryLimitExceeded and the caller decides what to do (hosts turn it
// into a denied growth). Concurrent IO slots and the byte-rate limiter block
// until admitted or the context ends.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   64 << 20,
//	    IOLimitBytesPerSec: 8 << 20,
//	})
//	if err := rc.AcquireMemory(int64(n)); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(int64(n))
//
// Every method is safe on a nil *Controller and then does nothing.
package resource
