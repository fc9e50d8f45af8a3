package segkit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. Implement it to feed a
// monitoring system.
type MetricsCollector interface {
	// RecordCreate is called after each Create or CreateProxy.
	RecordCreate(duration time.Duration, err error)

	// RecordView is called after each View.
	RecordView(duration time.Duration, err error)

	// RecordUpdate is called after each Update, including the persist.
	RecordUpdate(duration time.Duration, err error)

	// RecordGrow is called after each Grow. delta is the requested growth.
	RecordGrow(delta int, duration time.Duration, err error)

	// RecordResolve is called after each proxy resolution. hops is the
	// number of proxies followed.
	RecordResolve(hops int, duration time.Duration, err error)
}

// NoopMetricsCollector discards every metric.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error)       {}
func (NoopMetricsCollector) RecordView(time.Duration, error)         {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)       {}
func (NoopMetricsCollector) RecordGrow(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordResolve(int, time.Duration, error) {}

// BasicMetricsCollector counts operations in memory.
type BasicMetricsCollector struct {
	CreateCount      atomic.Int64
	CreateErrors     atomic.Int64
	ViewCount        atomic.Int64
	ViewErrors       atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
	UpdateTotalNanos atomic.Int64
	GrowCount        atomic.Int64
	GrowErrors       atomic.Int64
	GrowBytes        atomic.Int64
	ResolveCount     atomic.Int64
	ResolveErrors    atomic.Int64
	ResolveHops      atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordView implements MetricsCollector.
func (b *BasicMetricsCollector) RecordView(_ time.Duration, err error) {
	b.ViewCount.Add(1)
	if err != nil {
		b.ViewErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	b.UpdateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(delta int, _ time.Duration, err error) {
	b.GrowCount.Add(1)
	if err != nil {
		b.GrowErrors.Add(1)
		return
	}
	b.GrowBytes.Add(int64(delta))
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(hops int, _ time.Duration, err error) {
	b.ResolveCount.Add(1)
	b.ResolveHops.Add(int64(hops))
	if err != nil {
		b.ResolveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:    b.CreateCount.Load(),
		CreateErrors:   b.CreateErrors.Load(),
		ViewCount:      b.ViewCount.Load(),
		ViewErrors:     b.ViewErrors.Load(),
		UpdateCount:    b.UpdateCount.Load(),
		UpdateErrors:   b.UpdateErrors.Load(),
		UpdateAvgNanos: b.getAvgUpdateNanos(),
		GrowCount:      b.GrowCount.Load(),
		GrowErrors:     b.GrowErrors.Load(),
		GrowBytes:      b.GrowBytes.Load(),
		ResolveCount:   b.ResolveCount.Load(),
		ResolveErrors:  b.ResolveErrors.Load(),
		ResolveHops:    b.ResolveHops.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgUpdateNanos() int64 {
	count := b.UpdateCount.Load()
	if count == 0 {
		return 0
	}
	return b.UpdateTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount    int64
	CreateErrors   int64
	ViewCount      int64
	ViewErrors     int64
	UpdateCount    int64
	UpdateErrors   int64
	UpdateAvgNanos int64
	GrowCount      int64
	GrowErrors     int64
	GrowBytes      int64
	ResolveCount   int64
	ResolveErrors  int64
	ResolveHops    int64
}
