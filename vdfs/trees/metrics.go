package trees

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector observes a tree and keeps the latest metrics snapshot.
// Snapshots may be read from any goroutine.
type MetricsCollector struct {
	mu      sync.Mutex
	counts  map[string]int64
	metrics atomic.Value // stores *TreeMetrics
	started time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		counts:  make(map[string]int64),
		started: time.Now(),
	}
	mc.metrics.Store(&TreeMetrics{
		OperationCounts: make(map[string]int64),
	})
	return mc
}

// OnTreeEvent counts the event by type. It never rejects.
func (mc *MetricsCollector) OnTreeEvent(e Event) Response {
	mc.IncrementOperation(e.Type.String())
	return Accept
}

// IncrementOperation safely increments operation count using mutex locking
func (mc *MetricsCollector) IncrementOperation(op string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counts[op]++
}

// Snapshot returns the metrics stored by the last UpdateMetrics.
func (mc *MetricsCollector) Snapshot() *TreeMetrics {
	return mc.metrics.Load().(*TreeMetrics)
}

// Uptime returns the time since the collector was created.
func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.started)
}

// UpdateMetrics recomputes the metrics of tree. It must run on the
// goroutine owning the tree.
func (mc *MetricsCollector) UpdateMetrics(ctx context.Context, tree *ContentTree) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := tree.Metrics()
	mc.mu.Lock()
	m.OperationCounts = maps.Clone(mc.counts)
	mc.mu.Unlock()

	mc.metrics.Store(m)
	return nil
}

// computeTreeMetrics recursively computes metrics starting from the given node.
func computeTreeMetrics(n *Node, depth int, m *TreeMetrics) {
	if !n.IsRoot() {
		m.TotalNodes++
		m.Stats.account(n, 1)
	}
	m.MaxDepth = max(m.MaxDepth, depth)
	for _, c := range n.children {
		computeTreeMetrics(c, depth+1, m)
	}
}

// Metrics computes a metrics snapshot by traversing the tree. Stats are
// recounted, not copied from the incremental counters.
func (t *ContentTree) Metrics() *TreeMetrics {
	m := &TreeMetrics{
		TotalSectors:    t.GetSectorCount(),
		Joliet:          t.joliet.len(),
		Refs:            t.refs.len(),
		LastUpdated:     time.Now(),
		OperationCounts: make(map[string]int64),
	}
	computeTreeMetrics(t.root, 0, m)
	t.grafts.Walk(func(u *URINode) bool {
		if u.IsEmpty() {
			m.Excluded++
		} else {
			m.Grafts++
		}
		return true
	})
	return m
}
