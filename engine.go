// Package livehydrate hydrates streamed, model-generated markup into a live
// document tree. Slot declarations in the markup become widget instances
// that survive streaming appends; scalar bindings are filled from a data
// context; everything else is reconciled against the live tree with a keyed
// diff that never touches widget-owned mount points.
package livehydrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livefir/livehydrate/internal/datapath"
	"github.com/livefir/livehydrate/internal/diff"
	"github.com/livefir/livehydrate/internal/lifecycle"
	"github.com/livefir/livehydrate/internal/metrics"
	"github.com/livefir/livehydrate/internal/sanitize"
	"github.com/livefir/livehydrate/internal/slot"
	"github.com/livefir/livehydrate/internal/slotconfig"
	"github.com/livefir/livehydrate/internal/tracestore"
	"github.com/livefir/livehydrate/widget"
)

// Options configures an Engine.
type Options struct {
	// Config defaults to DefaultConfig().
	Config *Config

	// Registry maps widget type names to adapters. Required; see
	// builtin.NewRegistry for the standard set.
	Registry *widget.Registry

	// OnInteraction receives widget interactions. Kind is the gesture
	// translation the adapter chose (for example "click" or "select").
	OnInteraction func(kind string, in widget.Interaction)

	// OnStage receives pipeline stage events.
	OnStage func(StageEvent)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Scheduler runs deferred widget teardown. By default the engine drains
	// its own queue after every committed update, outside its lock.
	Scheduler lifecycle.Scheduler

	// SessionID labels stage events and trace records. Defaults to a new
	// random UUID.
	SessionID string
}

type pendingInteraction struct {
	kind string
	in   widget.Interaction
}

// batch is what one committed call produced for observers.
type batch struct {
	stages       []StageEvent
	interactions []pendingInteraction
}

// Engine hydrates one document. All methods are safe for concurrent use;
// updates are applied one at a time in arrival order, and observers receive
// stage events and interactions in the order their updates committed. A
// call may return before its events are delivered when another goroutine
// is already delivering; that goroutine delivers them before it returns.
type Engine struct {
	cfg        *Config
	sessionID  string
	logger     *slog.Logger
	policy     *sanitize.Policy
	reconciler *diff.Reconciler
	manager    *lifecycle.Manager
	queue      *lifecycle.Queue
	metrics    *metrics.Collector
	trace      *tracestore.Store

	onStage       func(StageEvent)
	onInteraction func(kind string, in widget.Interaction)

	mu           sync.Mutex
	live         *diff.Node
	payload      string
	data         DataContext
	closed       bool
	stages       []StageEvent
	interactions []pendingInteraction
	outbox       []batch
	delivering   bool
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("a widget registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	e := &Engine{
		cfg:           cfg,
		sessionID:     sessionID,
		logger:        logger.With("session_id", sessionID),
		policy:        sanitize.NewPolicy(cfg.SlotTag, cfg.BindingTag, cfg.ExtraTags, cfg.ExtraAttributes),
		metrics:       metrics.NewCollector(),
		onStage:       opts.OnStage,
		onInteraction: opts.OnInteraction,
		live:          diff.NewDocument(),
		data:          DataContext{},
	}

	scheduler := opts.Scheduler
	if scheduler == nil {
		e.queue = lifecycle.NewQueue(e.logger)
		scheduler = e.queue
	}

	manager, err := lifecycle.NewManager(lifecycle.Options{
		Registry:   opts.Registry,
		Configs:    slotconfig.NewParser(cfg.ConfigCacheSize),
		Scheduler:  scheduler,
		Logger:     e.logger,
		Metrics:    e.metrics,
		MountClass: cfg.MountClass,
		EmptyClass: cfg.EmptyClass,
		Emit: func(kind string, in widget.Interaction) {
			// Runs under e.mu from Dispatch; delivered after unlock.
			e.interactions = append(e.interactions, pendingInteraction{kind: kind, in: in})
		},
	})
	if err != nil {
		return nil, err
	}
	e.manager = manager

	e.reconciler = diff.NewReconciler(diff.Hooks{
		Key:           mountKey,
		BeforeUpdate:  func(live, _ *diff.Node) bool { return !e.owned(live) },
		BeforeDiscard: func(live *diff.Node) bool { return !e.owned(live) },
		OnDiscard:     e.discarded,
	})

	if cfg.TraceDB != "" {
		store, err := tracestore.Open(cfg.TraceDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace store: %w", err)
		}
		e.trace = store
	}

	return e, nil
}

// SessionID returns the id stage events are labelled with.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Apply processes one stream event: an optional reset, then an optional
// data replacement, then an optional markup payload.
func (e *Engine) Apply(ev Event) error {
	return e.do(func() error {
		if ev.Reset {
			e.reset()
		}
		if ev.Data != nil {
			e.data = ev.Data
			e.reinvoke()
			if !ev.HasMarkup || ev.Markup == e.payload {
				e.refresh()
			}
		}
		if ev.HasMarkup {
			e.update(ev.Markup)
		}
		return nil
	})
}

// SetData replaces the data context. Scalar bindings are resolved again and
// mounted widgets whose data changed are re-invoked.
func (e *Engine) SetData(ctx DataContext) error {
	if ctx == nil {
		ctx = DataContext{}
	}
	return e.Apply(Event{Data: ctx})
}

// SetMarkup applies a new markup payload. A payload equal to the current one
// is a no-op.
func (e *Engine) SetMarkup(payload string) error {
	return e.Apply(Event{Markup: payload, HasMarkup: true})
}

// Refresh runs the pipeline again on the current payload, keeping every
// widget instance.
func (e *Engine) Refresh() error {
	return e.do(func() error {
		e.refresh()
		return nil
	})
}

// Reset ends the current epoch: every widget is torn down and the live tree
// is cleared. The data context is kept.
func (e *Engine) Reset() error {
	return e.Apply(Event{Reset: true})
}

// Run applies events from the channel in order until it is closed or ctx is
// done.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.Apply(ev); err != nil {
				return err
			}
		}
	}
}

// Dispatch delivers a gesture to the widget mounted at slotID.
func (e *Engine) Dispatch(slotID string, g widget.Gesture) error {
	return e.do(func() error {
		handled, err := e.manager.Dispatch(slotID, g)
		if errors.Is(err, lifecycle.ErrNotMounted) {
			return fmt.Errorf("%w: %s", ErrSlotNotMounted, slotID)
		}
		if err != nil {
			return err
		}
		if !handled {
			return ErrNoInteraction
		}
		return nil
	})
}

// SetInteracting suppresses outward interactions while a follow-up request
// is in flight.
func (e *Engine) SetInteracting(interacting bool) {
	e.manager.SetSuppressed(interacting)
}

// HTML renders the live tree.
func (e *Engine) HTML() string {
	e.mu.Lock()
	out := diff.Render(e.live)
	e.mu.Unlock()

	if e.cfg.Minify {
		return minifyHTML(out)
	}
	return out
}

// Mounted returns the identities of live widget instances in mount order.
func (e *Engine) Mounted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Mounted()
}

// Stats returns the engine counters.
func (e *Engine) Stats() metrics.Snapshot {
	return e.metrics.GetMetrics()
}

// Counters returns the per widget type counters, keyed "mount:<type>".
func (e *Engine) Counters() map[string]int64 {
	return e.metrics.GetCustomCounters()
}

// FailureRate is the percentage of mounted widgets that failed to render.
func (e *Engine) FailureRate() float64 {
	return e.metrics.GetFailureRate()
}

// Close tears down every widget and releases the trace store. Further calls
// return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.manager.TeardownAll()
	e.live = diff.NewDocument()
	e.commit()
	e.mu.Unlock()

	err := e.flush()
	if e.queue != nil {
		e.queue.Drain()
	}
	return err
}

// do runs fn under the lock, then delivers what fn produced and runs
// deferred teardown once the tree mutation has committed.
func (e *Engine) do(fn func() error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	err := fn()
	e.commit()
	e.mu.Unlock()

	if flushErr := e.flush(); flushErr != nil {
		e.logger.Warn("failed to close trace store", "error", flushErr)
	}
	if e.queue != nil {
		e.queue.Drain()
	}
	return err
}

// commit moves what the current call produced to the outbox; must hold e.mu.
func (e *Engine) commit() {
	if len(e.stages) == 0 && len(e.interactions) == 0 {
		return
	}
	e.outbox = append(e.outbox, batch{stages: e.stages, interactions: e.interactions})
	e.stages = nil
	e.interactions = nil
}

// flush delivers committed batches in commit order. One goroutine delivers
// at a time; a caller that finds delivery in progress leaves its batch to
// that goroutine. Observers calling back into the engine land here too and
// return at once. Once the engine is closed and the outbox is empty, the
// trace store is closed.
func (e *Engine) flush() error {
	e.mu.Lock()
	if e.delivering {
		e.mu.Unlock()
		return nil
	}
	e.delivering = true
	for len(e.outbox) > 0 {
		b := e.outbox[0]
		e.outbox = e.outbox[1:]
		e.mu.Unlock()
		e.deliver(b)
		e.mu.Lock()
	}
	e.delivering = false

	var store *tracestore.Store
	if e.closed && e.trace != nil {
		store, e.trace = e.trace, nil
	}
	e.mu.Unlock()

	if store != nil {
		return store.Close()
	}
	return nil
}

func (e *Engine) deliver(b batch) {
	for _, ev := range b.stages {
		if e.trace != nil {
			if _, err := e.trace.Record(context.Background(), tracestore.Event{
				SessionID:  ev.SessionID,
				Stage:      string(ev.Stage),
				Message:    ev.Message,
				Data:       ev.Data,
				RecordedAt: ev.Time,
			}); err != nil {
				e.logger.Debug("failed to record stage event", "error", err)
			}
		}
		if e.onStage != nil {
			e.onStage(ev)
		}
	}
	if e.onInteraction == nil {
		return
	}
	for _, p := range b.interactions {
		e.onInteraction(p.kind, p.in)
	}
}

// observed reports whether anyone consumes stage events.
func (e *Engine) observed() bool {
	return e.onStage != nil || e.trace != nil
}

// emit queues a stage event; must hold e.mu.
func (e *Engine) emit(stage Stage, message string, data map[string]any) {
	if !e.observed() {
		return
	}
	e.stages = append(e.stages, StageEvent{
		SessionID: e.sessionID,
		Stage:     stage,
		Message:   message,
		Data:      data,
		SlotCount: len(e.manager.Mounted()),
		Time:      time.Now(),
	})
}

// update classifies a new payload against the committed one and runs the
// pipeline. Re-sending the committed payload does nothing.
func (e *Engine) update(next string) {
	if next == e.payload {
		return
	}

	class := diff.Classify(e.payload, next)
	e.metrics.IncrementUpdate(string(class))

	if class == diff.Empty {
		e.clear()
		e.emit(StageComplete, "Cleared", map[string]any{"classification": string(class)})
		return
	}
	if !class.PreservesInstances() {
		// Instances leave the mounted set before reconciliation so their
		// mount points are discarded like any other node.
		if n := e.manager.TeardownAll(); n > 0 {
			e.logger.Debug("epoch ended", "classification", string(class), "torn_down", n)
		}
	}

	e.payload = next
	e.process(class)
}

// reinvoke re-renders mounted widgets whose data changed.
func (e *Engine) reinvoke() {
	for _, id := range e.manager.Mounted() {
		rerendered, err := e.manager.Reinvoke(id, e.data)
		if err != nil {
			e.logger.Warn("widget re-render failed", "slot_id", id, "error", err)
			continue
		}
		if rerendered {
			e.emit(StageMount, "Re-rendered "+id, map[string]any{"slotId": id})
		}
	}
}

// refresh re-runs the pipeline on the committed payload as a continuation.
func (e *Engine) refresh() {
	if e.payload == "" {
		return
	}
	e.process(diff.Continuation)
}

func (e *Engine) reset() {
	e.metrics.IncrementReset()
	e.clear()
	e.emit(StageComplete, "Reset", nil)
}

func (e *Engine) clear() {
	e.manager.TeardownAll()
	e.live = diff.NewDocument()
	e.payload = ""
}

// process runs sanitize, parse, resolve, reconcile and mount for the current
// payload.
func (e *Engine) process(class diff.Classification) {
	e.emit(StageParse, "Processing HTML", map[string]any{
		"classification": string(class),
		"bytes":          len(e.payload),
	})

	sanitized := e.policy.Sanitize(e.payload)
	e.emit(StageSanitize, "Sanitizing HTML", map[string]any{"bytes": len(sanitized)})

	candidate, err := diff.Parse(sanitized)
	if err != nil {
		// The tokenizer based parser only fails on reader errors; keep the
		// committed tree.
		e.logger.Error("failed to parse sanitized markup", "error", err)
		return
	}

	ids, bound := e.prepare(candidate)
	e.emit(StageDetect, fmt.Sprintf("Found %d slot declaration(s)", len(ids)), map[string]any{"slots": ids})
	for _, msg := range bound {
		e.emit(StageResolve, msg, nil)
	}

	var before *diff.Node
	if e.observed() {
		before = e.live.Clone()
	}

	res := e.reconciler.Reconcile(e.live, candidate)
	e.metrics.RecordReconcile(metrics.Reconcile{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Discarded: res.Discarded,
		Moved:     res.Moved,
		Kept:      res.Kept,
	})

	pattern := diff.ChangeNone
	if before != nil && res.Changed() && !diff.Equal(before, e.live) {
		pattern = diff.ClassifyChanges(diff.Compare(before, e.live))
	}

	e.mountNew()

	e.emit(StageComplete, fmt.Sprintf("Processing complete, %d slot(s) mounted", len(e.manager.Mounted())), map[string]any{
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"discarded": res.Discarded,
		"moved":     res.Moved,
		"kept":      res.Kept,
		"pattern":   string(pattern),
	})
}

// prepare rewrites the candidate before it is diffed: scalar bindings get
// their resolved text, and the first declaration of every identity that
// already has a live instance becomes an inert placeholder keyed like the
// mount point. It returns the identities of all declarations found and a
// message per resolved binding.
func (e *Engine) prepare(candidate *diff.Node) (ids, bound []string) {
	ids = make([]string, 0)
	placed := make(map[string]bool)

	candidate.Walk(func(n *diff.Node) bool {
		switch {
		case n.Is(e.cfg.BindingTag):
			if msg, ok := e.bind(n); ok {
				bound = append(bound, msg)
			}
			return false

		case n.Is(e.cfg.SlotTag):
			id := slot.Identity(n.Attributes)
			ids = append(ids, id)
			if e.manager.Alive(id) && !placed[id] {
				placed[id] = true
				n.ReplaceWith(diff.NewElement("div", map[string]string{
					"class":          e.cfg.MountClass,
					slot.AttrMountID: id,
				}))
			}
			return false
		}
		return true
	})
	return ids, bound
}

// bind fills a scalar binding. Unresolved bindings keep their fallback text.
func (e *Engine) bind(n *diff.Node) (string, bool) {
	source := n.GetAttribute(slot.AttrDataSource)
	if source == "" {
		return "", false
	}
	v, ok := datapath.Scalar(e.data, source)
	e.metrics.IncrementBinding(ok)
	if !ok {
		e.logger.Debug("binding unresolved", "source", source, "fallback", n.GetTextContent())
		return "", false
	}
	text := datapath.Format(v)
	n.SetTextContent(text)
	return fmt.Sprintf("Set %s = %s", source, text), true
}

// mountNew mounts every declaration in the live tree whose identity has no
// live instance yet. Later declarations of an identity stay inert.
func (e *Engine) mountNew() {
	isDecl := func(n *diff.Node) bool { return n.Is(e.cfg.SlotTag) }
	pending := e.live.Find(isDecl, func(n *diff.Node) bool {
		return isDecl(n) || mountKey(n) != ""
	})

	for _, n := range pending {
		decl := slot.FromAttrs(n.Attributes)
		if decl.Type == "" {
			e.emit(StageMount, "Skipping slot: no component type specified", nil)
			continue
		}

		rep := e.manager.Mount(n, decl, e.data)
		switch rep.Outcome {
		case lifecycle.OutcomeSkipped:
			continue
		case lifecycle.OutcomeUnknownType:
			e.emit(StageMount, "Unknown component type: "+decl.Type, map[string]any{
				"componentType": decl.Type,
				"slotId":        rep.SlotID,
			})
			continue
		}

		e.emit(StageResolve, "Data resolved for "+decl.Type, map[string]any{
			"componentType": decl.Type,
			"dataResolved":  rep.DataResolved,
		})
		data := map[string]any{
			"componentType": decl.Type,
			"slotId":        rep.SlotID,
			"dataResolved":  rep.DataResolved,
		}
		if rep.Outcome == lifecycle.OutcomeFailed {
			data["error"] = rep.Err.Error()
			e.emit(StageMount, fmt.Sprintf("Error in %s: %v", decl.Type, rep.Err), data)
			continue
		}
		e.emit(StageMount, "Mounting "+decl.Type, data)
	}
}

// owned reports whether n is the mount point of a live instance.
func (e *Engine) owned(n *diff.Node) bool {
	id := mountKey(n)
	return id != "" && e.manager.Alive(id)
}

// discarded tears down instances whose mount point left the live tree.
func (e *Engine) discarded(n *diff.Node) {
	n.Walk(func(c *diff.Node) bool {
		if id := mountKey(c); id != "" {
			if inst, ok := e.manager.Instance(id); ok && inst.Mount == c {
				e.manager.Teardown(id)
			}
			return false
		}
		return true
	})
}

func mountKey(n *diff.Node) string {
	if !n.IsElementNode() {
		return ""
	}
	return n.GetAttribute(slot.AttrMountID)
}
