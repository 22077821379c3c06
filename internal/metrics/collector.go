// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the pipeline and query paths.
const (
	OpTranscribe = "transcribe"
	OpFormat     = "format"
	OpExport     = "export"
	OpEmbed      = "embed"
	OpStore      = "store"
	OpSearch     = "search"
	OpGenerate   = "generate"
)

type operationMetrics struct {
	count  int64
	errors int64
	total  time.Duration
	min    time.Duration
	max    time.Duration
}

// OperationSnapshot provides computed stats for one operation.
type OperationSnapshot struct {
	Name        string
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot is a point-in-time view of all recorded operations.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Operation looks up an operation snapshot by name.
func (s Snapshot) Operation(name string) (OperationSnapshot, bool) {
	for _, op := range s.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return OperationSnapshot{}, false
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*operationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*operationMetrics),
	}
}

// Record adds one observation for an operation. A non-nil err counts
// toward the operation's error total; the duration is recorded either way.
func (c *Collector) Record(op string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &operationMetrics{min: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}

	m.count++
	m.total += duration
	if err != nil {
		m.errors++
	}
	if duration < m.min {
		m.min = duration
	}
	if duration > m.max {
		m.max = duration
	}
}

// Snapshot returns a point-in-time snapshot of all metrics, operations
// sorted by name.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make([]OperationSnapshot, 0, len(c.ops)),
	}
	for name, m := range c.ops {
		if m.count == 0 {
			continue
		}
		snap.Operations = append(snap.Operations, OperationSnapshot{
			Name:        name,
			Count:       m.count,
			Errors:      m.errors,
			TotalTimeMs: m.total.Milliseconds(),
			AvgTimeMs:   float64(m.total.Milliseconds()) / float64(m.count),
			MinTimeMs:   m.min.Milliseconds(),
			MaxTimeMs:   m.max.Milliseconds(),
		})
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Name < snap.Operations[j].Name
	})
	return snap
}
