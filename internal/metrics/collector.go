package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection with no external dependencies
type Collector struct {
	engineMetrics     *Snapshot
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// Snapshot holds engine-level counters
type Snapshot struct {
	// Payload updates by classification
	ContinuationUpdates int64 `json:"continuation_updates"`
	ReplacementUpdates  int64 `json:"replacement_updates"`
	EmptyUpdates        int64 `json:"empty_updates"`
	Resets              int64 `json:"resets"`

	// Widget lifecycle
	WidgetsMounted       int64 `json:"widgets_mounted"`
	WidgetsTornDown      int64 `json:"widgets_torn_down"`
	ActiveWidgets        int64 `json:"active_widgets"`
	MaxConcurrentWidgets int64 `json:"max_concurrent_widgets"`
	WidgetRerenders      int64 `json:"widget_rerenders"`

	// Failures contained at a single slot
	UnknownWidgetTypes int64 `json:"unknown_widget_types"`
	WidgetFailures     int64 `json:"widget_failures"`

	// Scalar bindings
	BindingsResolved   int64 `json:"bindings_resolved"`
	BindingsUnresolved int64 `json:"bindings_unresolved"`

	// Interactions
	InteractionsEmitted    int64 `json:"interactions_emitted"`
	InteractionsSuppressed int64 `json:"interactions_suppressed"`

	// Reconciliation
	NodesInserted  int64 `json:"nodes_inserted"`
	NodesUpdated   int64 `json:"nodes_updated"`
	NodesDiscarded int64 `json:"nodes_discarded"`
	NodesMoved     int64 `json:"nodes_moved"`
	NodesKept      int64 `json:"nodes_kept"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		engineMetrics:     &Snapshot{},
		operationCounters: make(map[string]*int64),
		startTime:         now,
	}
}

// IncrementUpdate records one payload update of the named classification.
// Unknown classifications are counted as custom counters.
func (c *Collector) IncrementUpdate(classification string) {
	switch classification {
	case "continuation":
		atomic.AddInt64(&c.engineMetrics.ContinuationUpdates, 1)
	case "replacement":
		atomic.AddInt64(&c.engineMetrics.ReplacementUpdates, 1)
	case "empty":
		atomic.AddInt64(&c.engineMetrics.EmptyUpdates, 1)
	default:
		c.IncrementCustomCounter("update:" + classification)
	}
}

// IncrementReset records an explicit epoch reset
func (c *Collector) IncrementReset() {
	atomic.AddInt64(&c.engineMetrics.Resets, 1)
}

// IncrementWidgetMounted records a widget mount
func (c *Collector) IncrementWidgetMounted() {
	atomic.AddInt64(&c.engineMetrics.WidgetsMounted, 1)
	currentActive := atomic.AddInt64(&c.engineMetrics.ActiveWidgets, 1)

	// Update max concurrent if needed
	for {
		max := atomic.LoadInt64(&c.engineMetrics.MaxConcurrentWidgets)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.engineMetrics.MaxConcurrentWidgets, max, currentActive) {
			break
		}
	}
}

// IncrementWidgetTornDown records a widget teardown
func (c *Collector) IncrementWidgetTornDown() {
	atomic.AddInt64(&c.engineMetrics.WidgetsTornDown, 1)
	atomic.AddInt64(&c.engineMetrics.ActiveWidgets, -1)
}

// IncrementWidgetRerender records a mounted widget rendering again after a data change
func (c *Collector) IncrementWidgetRerender() {
	atomic.AddInt64(&c.engineMetrics.WidgetRerenders, 1)
}

// IncrementUnknownType records a slot naming an unregistered widget type
func (c *Collector) IncrementUnknownType() {
	atomic.AddInt64(&c.engineMetrics.UnknownWidgetTypes, 1)
}

// IncrementWidgetFailure records a widget that failed to construct or render
func (c *Collector) IncrementWidgetFailure() {
	atomic.AddInt64(&c.engineMetrics.WidgetFailures, 1)
}

// IncrementBinding records a scalar binding resolution attempt
func (c *Collector) IncrementBinding(resolved bool) {
	if resolved {
		atomic.AddInt64(&c.engineMetrics.BindingsResolved, 1)
		return
	}
	atomic.AddInt64(&c.engineMetrics.BindingsUnresolved, 1)
}

// IncrementInteraction records an interaction leaving a widget
func (c *Collector) IncrementInteraction(suppressed bool) {
	if suppressed {
		atomic.AddInt64(&c.engineMetrics.InteractionsSuppressed, 1)
		return
	}
	atomic.AddInt64(&c.engineMetrics.InteractionsEmitted, 1)
}

// Reconcile holds the node counts of one reconciliation pass.
type Reconcile struct {
	Inserted  int
	Updated   int
	Discarded int
	Moved     int
	Kept      int // held back by an ownership veto
}

// RecordReconcile adds the node counts of one reconciliation pass
func (c *Collector) RecordReconcile(r Reconcile) {
	atomic.AddInt64(&c.engineMetrics.NodesInserted, int64(r.Inserted))
	atomic.AddInt64(&c.engineMetrics.NodesUpdated, int64(r.Updated))
	atomic.AddInt64(&c.engineMetrics.NodesDiscarded, int64(r.Discarded))
	atomic.AddInt64(&c.engineMetrics.NodesMoved, int64(r.Moved))
	atomic.AddInt64(&c.engineMetrics.NodesKept, int64(r.Kept))
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current engine metrics
func (c *Collector) GetMetrics() Snapshot {
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()

	m := c.engineMetrics
	return Snapshot{
		ContinuationUpdates:    atomic.LoadInt64(&m.ContinuationUpdates),
		ReplacementUpdates:     atomic.LoadInt64(&m.ReplacementUpdates),
		EmptyUpdates:           atomic.LoadInt64(&m.EmptyUpdates),
		Resets:                 atomic.LoadInt64(&m.Resets),
		WidgetsMounted:         atomic.LoadInt64(&m.WidgetsMounted),
		WidgetsTornDown:        atomic.LoadInt64(&m.WidgetsTornDown),
		ActiveWidgets:          atomic.LoadInt64(&m.ActiveWidgets),
		MaxConcurrentWidgets:   atomic.LoadInt64(&m.MaxConcurrentWidgets),
		WidgetRerenders:        atomic.LoadInt64(&m.WidgetRerenders),
		UnknownWidgetTypes:     atomic.LoadInt64(&m.UnknownWidgetTypes),
		WidgetFailures:         atomic.LoadInt64(&m.WidgetFailures),
		BindingsResolved:       atomic.LoadInt64(&m.BindingsResolved),
		BindingsUnresolved:     atomic.LoadInt64(&m.BindingsUnresolved),
		InteractionsEmitted:    atomic.LoadInt64(&m.InteractionsEmitted),
		InteractionsSuppressed: atomic.LoadInt64(&m.InteractionsSuppressed),
		NodesInserted:          atomic.LoadInt64(&m.NodesInserted),
		NodesUpdated:           atomic.LoadInt64(&m.NodesUpdated),
		NodesDiscarded:         atomic.LoadInt64(&m.NodesDiscarded),
		NodesMoved:             atomic.LoadInt64(&m.NodesMoved),
		NodesKept:              atomic.LoadInt64(&m.NodesKept),
		StartTime:              start,
		Uptime:                 time.Since(start),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// GetFailureRate returns the percentage of mounted widgets that failed.
// A failed widget still holds its mount point, so it counts as mounted.
func (c *Collector) GetFailureRate() float64 {
	mounted := atomic.LoadInt64(&c.engineMetrics.WidgetsMounted)
	failures := atomic.LoadInt64(&c.engineMetrics.WidgetFailures)

	if mounted == 0 {
		return 0.0
	}

	return float64(failures) / float64(mounted) * 100.0
}
