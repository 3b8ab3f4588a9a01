package livehydrate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livehydrate/internal/lifecycle"
	"github.com/livefir/livehydrate/internal/tracestore"
	"github.com/livefir/livehydrate/widget"
	"github.com/livefir/livehydrate/widget/builtin"
)

const cardSlot = `<component-slot type="Card" data-source="user::profile"></component-slot>`

// trackedView wraps a built-in view so tests can count teardowns.
type trackedView struct {
	widget.View
	closed *int
}

func (v trackedView) Close() error {
	*v.closed++
	return nil
}

type harness struct {
	t            *testing.T
	engine       *Engine
	logs         *bytes.Buffer
	stages       []StageEvent
	interactions []widget.Interaction
	kinds        []string
	mounts       int
	inputs       []widget.Input
	closed       int
}

type harnessOption func(*Options)

func withConfig(cfg *Config) harnessOption {
	return func(o *Options) { o.Config = cfg }
}

func withScheduler(s lifecycle.Scheduler) harnessOption {
	return func(o *Options) { o.Scheduler = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{t: t, logs: &bytes.Buffer{}}

	reg := widget.NewRegistry()
	for name, adapter := range builtin.Adapters() {
		if name == "Card" {
			continue
		}
		reg.MustRegister(name, adapter)
	}
	reg.MustRegister("Card", func(in widget.Input) (widget.View, error) {
		h.mounts++
		h.inputs = append(h.inputs, in)
		view, err := builtin.Card(in)
		if err != nil {
			return nil, err
		}
		return trackedView{View: view, closed: &h.closed}, nil
	})

	o := Options{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(h.logs, nil)),
		OnStage: func(ev StageEvent) {
			h.stages = append(h.stages, ev)
		},
		OnInteraction: func(kind string, in widget.Interaction) {
			h.kinds = append(h.kinds, kind)
			h.interactions = append(h.interactions, in)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	e, err := New(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	h.engine = e
	return h
}

func (h *harness) markup(payload string) {
	h.t.Helper()
	require.NoError(h.t, h.engine.SetMarkup(payload))
}

func (h *harness) data(ctx DataContext) {
	h.t.Helper()
	require.NoError(h.t, h.engine.SetData(ctx))
}

func (h *harness) stageNames() []Stage {
	out := make([]Stage, 0, len(h.stages))
	for _, ev := range h.stages {
		out = append(out, ev.Stage)
	}
	return out
}

func profile(title string) DataContext {
	return DataContext{"user": {"profile": map[string]any{"title": title}}}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err, "registry is required")

	cfg := DefaultConfig()
	cfg.BindingTag = cfg.SlotTag
	_, err = New(Options{Config: cfg, Registry: builtin.NewRegistry()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ from SlotTag")

	e, err := New(Options{Registry: builtin.NewRegistry()})
	require.NoError(t, err)
	assert.NotEmpty(t, e.SessionID())
	require.NoError(t, e.Close())
}

func TestMountOnceWithResolvedData(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	assert.Equal(t, 1, h.mounts)
	require.Len(t, h.inputs, 1)
	assert.Equal(t, widget.Record{"title": "John"}, h.inputs[0].Data)
	assert.Equal(t, "Card::user::profile", h.inputs[0].SlotID)
	assert.Equal(t, []string{"Card::user::profile"}, h.engine.Mounted())
	assert.Equal(t,
		`<div class="hybrid-slot" data-slot-id="Card::user::profile"><div class="widget-card card-default"><h3>John</h3></div></div>`,
		h.engine.HTML())
}

func TestCustomSlotTag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlotTag = "card"
	h := newHarness(t, withConfig(cfg))
	h.data(profile("John"))
	h.markup(`<card type="Card" data-source="user::profile"/><p>after</p>`)

	assert.Equal(t, 1, h.mounts)
	assert.Equal(t,
		`<div class="hybrid-slot" data-slot-id="Card::user::profile"><div class="widget-card card-default"><h3>John</h3></div></div><p>after</p>`,
		h.engine.HTML())
}

func TestStreamingAppendPreservesInstances(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))

	payload := `<p>Hello</p>` + cardSlot
	h.markup(payload)
	payload += `<p>more</p>`
	h.markup(payload)

	assert.Equal(t, 1, h.mounts)
	assert.Equal(t, 0, h.closed)
	assert.Equal(t,
		`<p>Hello</p><div class="hybrid-slot" data-slot-id="Card::user::profile"><div class="widget-card card-default"><h3>John</h3></div></div><p>more</p>`,
		h.engine.HTML())

	stats := h.engine.Stats()
	assert.Equal(t, int64(1), stats.ContinuationUpdates)
	assert.Equal(t, int64(1), stats.ReplacementUpdates)
}

func TestMountOnceAcrossContinuations(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))

	chunks := []string{
		`<section><h2>Profile</h2>`,
		cardSlot,
		`<p>one</p>`,
		`<p>two</p><component-slot type="List" data-source="user::`,
		`tags"></component-slot>`,
		`</section>`,
	}
	payload := ""
	for _, c := range chunks {
		payload += c
		h.markup(payload)
		require.NoError(t, h.engine.Refresh())
	}

	assert.Equal(t, 1, h.mounts)
	assert.Equal(t, 0, h.closed)
	assert.Equal(t, []string{"Card::user::profile", "List::user::tags"}, h.engine.Mounted())
	assert.Contains(t, h.engine.HTML(), `<h3>John</h3>`)
}

func TestTruncatedSlotTagIsNotMountedEarly(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))

	h.markup(`<p>a</p><component-slot type="Card" data-source="user::pro`)
	assert.Empty(t, h.engine.Mounted())

	h.markup(`<p>a</p>` + cardSlot)
	assert.Equal(t, []string{"Card::user::profile"}, h.engine.Mounted())
	assert.Equal(t, 1, h.mounts)
}

func TestUnknownWidgetType(t *testing.T) {
	h := newHarness(t)
	payload := `<component-slot type="Foo" data-source="x::y"></component-slot>`
	h.markup(payload)
	require.NoError(t, h.engine.Refresh())

	assert.Equal(t, `<div class="slot-empty"></div>`, h.engine.HTML())
	assert.Empty(t, h.engine.Mounted())
	assert.Equal(t, 1, strings.Count(h.logs.String(), "unknown widget type"))
	assert.Contains(t, h.logs.String(), "widget_type=Foo")
}

func TestMissingTypeStaysInert(t *testing.T) {
	h := newHarness(t)
	h.markup(`<component-slot data-source="user::profile"></component-slot>`)

	assert.Empty(t, h.engine.Mounted())
	assert.Equal(t, `<component-slot data-source="user::profile"></component-slot>`, h.engine.HTML())

	var messages []string
	for _, ev := range h.stages {
		messages = append(messages, ev.Message)
	}
	assert.Contains(t, messages, "Skipping slot: no component type specified")
}

func TestOwnershipVeto(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(`<div class="wrap">` + cardSlot + `</div>`)

	// The candidate carries only an empty placeholder for the mount point;
	// the rendered widget must survive the diff.
	h.markup(`<div class="wrap">` + cardSlot + `</div><p>tail</p>`)
	assert.Contains(t, h.engine.HTML(), `<h3>John</h3>`)

	// Generated markup cannot forge a mount point.
	h.markup(`<div class="wrap">` + cardSlot + `</div><p>tail</p><div data-slot-id="Card::user::profile">fake</div>`)
	assert.Equal(t, 1, strings.Count(h.engine.HTML(), `data-slot-id="Card::user::profile"`))
	assert.Equal(t, 1, h.mounts)

	complete := h.stages[len(h.stages)-1]
	require.Equal(t, StageComplete, complete.Stage)
	assert.Equal(t, 1, complete.Data["kept"])
	assert.Greater(t, h.engine.Stats().NodesKept, int64(0))
}

func TestIdempotentRefresh(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(`<p>x</p>` + cardSlot)
	before := h.engine.HTML()
	stats := h.engine.Stats()

	require.NoError(t, h.engine.Refresh())
	h.markup(`<p>x</p>` + cardSlot)

	assert.Equal(t, before, h.engine.HTML())
	after := h.engine.Stats()
	assert.Equal(t, stats.WidgetsMounted, after.WidgetsMounted)
	assert.Equal(t, stats.WidgetsTornDown, after.WidgetsTornDown)
	assert.Equal(t, stats.NodesInserted, after.NodesInserted)
	assert.Equal(t, stats.NodesDiscarded, after.NodesDiscarded)
}

func TestReplacementTearsDownAfterCommit(t *testing.T) {
	queue := lifecycle.NewQueue(slog.Default())
	h := newHarness(t, withScheduler(queue))
	h.data(profile("John"))
	h.markup(`<p>first</p>` + cardSlot)
	require.Equal(t, 1, h.mounts)

	h.markup(`<h1>second</h1>` + cardSlot)

	// The new epoch has its own instance; the old one is marked but not
	// destroyed until the scheduler runs.
	assert.Equal(t, 2, h.mounts)
	assert.Equal(t, 0, h.closed)
	assert.Equal(t, []string{"Card::user::profile"}, h.engine.Mounted())
	assert.Equal(t, 1, queue.Len())

	queue.Drain()
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, int64(1), h.engine.Stats().WidgetsTornDown)
}

func TestEmptyPayloadClears(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	h.markup("")

	assert.Empty(t, h.engine.HTML())
	assert.Empty(t, h.engine.Mounted())
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, int64(1), h.engine.Stats().EmptyUpdates)

	// Re-sending the payload starts a fresh epoch.
	h.markup(cardSlot)
	assert.Equal(t, 2, h.mounts)
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	require.NoError(t, h.engine.Reset())

	assert.Empty(t, h.engine.HTML())
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, int64(1), h.engine.Stats().Resets)

	// Data survives a reset.
	h.markup(cardSlot)
	require.Len(t, h.inputs, 2)
	assert.Equal(t, widget.Record{"title": "John"}, h.inputs[1].Data)
}

func TestScalarBindings(t *testing.T) {
	h := newHarness(t)
	h.data(DataContext{"stats": {"count": 5, "tags": []any{"a", "b", "c"}}})

	h.markup(`<p>Count: <data-value data-source="stats::count">0</data-value></p>` +
		`<p>Tags: <data-value data-source="stats::tags">?</data-value></p>` +
		`<p>Missing: <data-value data-source="stats::nope">n/a</data-value></p>`)

	assert.Equal(t,
		`<p>Count: <data-value data-source="stats::count">5</data-value></p>`+
			`<p>Tags: <data-value data-source="stats::tags">3</data-value></p>`+
			`<p>Missing: <data-value data-source="stats::nope">n/a</data-value></p>`,
		h.engine.HTML())

	h.data(DataContext{"stats": {"count": 7}})
	assert.Contains(t, h.engine.HTML(), `<data-value data-source="stats::count">7</data-value>`)

	stats := h.engine.Stats()
	assert.Positive(t, stats.BindingsResolved)
	assert.Positive(t, stats.BindingsUnresolved)
}

func TestDataChangeReinvokesWidget(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	h.data(profile("Jane"))

	assert.Equal(t, 2, h.mounts, "adapter invoked again with the new data")
	assert.Equal(t, 1, h.closed, "previous view released")
	assert.Equal(t, []string{"Card::user::profile"}, h.engine.Mounted())
	assert.Contains(t, h.engine.HTML(), `<h3>Jane</h3>`)
	assert.Equal(t, int64(1), h.engine.Stats().WidgetRerenders)

	// Same data again is a no-op for the widget.
	h.data(profile("Jane"))
	assert.Equal(t, 2, h.mounts)
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(`<component-slot type="Card" data-source="user::profile" interaction="Tell me more"></component-slot>` +
		`<component-slot type="Card" data-source="user::profile" slot-id="quiet"></component-slot>`)

	click := widget.Gesture{Kind: widget.InteractionClick, Index: widget.WholeWidget}

	require.NoError(t, h.engine.Dispatch("Card::user::profile", click))
	require.Len(t, h.interactions, 1)
	assert.Equal(t, []string{widget.InteractionClick}, h.kinds)
	assert.Equal(t, widget.Interaction{
		WidgetType:  "Card",
		Mode:        "Tell me more",
		SlotID:      "Card::user::profile",
		ClickedData: widget.Record{"title": "John"},
	}, h.interactions[0])

	assert.ErrorIs(t, h.engine.Dispatch("quiet", click), ErrNoInteraction)
	assert.ErrorIs(t, h.engine.Dispatch("missing", click), ErrSlotNotMounted)
}

func TestSetInteractingSuppresses(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(`<component-slot type="Card" data-source="user::profile" click-prompt="More"></component-slot>`)
	click := widget.Gesture{Kind: widget.InteractionClick, Index: widget.WholeWidget}

	h.engine.SetInteracting(true)
	require.NoError(t, h.engine.Dispatch("Card::user::profile", click))
	assert.Empty(t, h.interactions)

	h.engine.SetInteracting(false)
	require.NoError(t, h.engine.Dispatch("Card::user::profile", click))
	require.Len(t, h.interactions, 1)
	assert.Equal(t, "More", h.interactions[0].Mode)

	stats := h.engine.Stats()
	assert.Equal(t, int64(1), stats.InteractionsEmitted)
	assert.Equal(t, int64(1), stats.InteractionsSuppressed)
}

func TestStageEventOrder(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected []Stage
		messages map[int]string
	}{
		{
			name:   "slot only",
			markup: `<p>hi</p>` + cardSlot,
			expected: []Stage{
				StageParse, StageSanitize, StageDetect, StageResolve, StageMount, StageComplete,
			},
			messages: map[int]string{
				2: "Found 1 slot declaration(s)",
				4: "Mounting Card",
				5: "Processing complete, 1 slot(s) mounted",
			},
		},
		{
			name:   "binding resolves after detection",
			markup: `<p><data-value data-source="user::profile.title">?</data-value></p>` + cardSlot,
			expected: []Stage{
				StageParse, StageSanitize, StageDetect, StageResolve, StageResolve, StageMount, StageComplete,
			},
			messages: map[int]string{
				2: "Found 1 slot declaration(s)",
				3: "Set user::profile.title = John",
				4: "Data resolved for Card",
				6: "Processing complete, 1 slot(s) mounted",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.data(profile("John"))
			h.stages = nil

			h.markup(tt.markup)

			assert.Equal(t, tt.expected, h.stageNames())
			for _, ev := range h.stages {
				assert.Equal(t, h.engine.SessionID(), ev.SessionID)
				assert.False(t, ev.Time.IsZero())
			}
			for i, msg := range tt.messages {
				require.Greater(t, len(h.stages), i)
				assert.Equal(t, msg, h.stages[i].Message, "stage %d", i)
			}
			assert.Equal(t, 1, h.stages[len(h.stages)-1].SlotCount)
		})
	}
}

func TestConcurrentUpdatesDeliverInCommitOrder(t *testing.T) {
	h := newHarness(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = h.engine.SetMarkup(fmt.Sprintf("<p>writer %d step %d</p>", i, j))
			}
		}(i)
	}
	wg.Wait()

	// Every update is delivered as one contiguous run from parse to complete.
	require.NotEmpty(t, h.stages)
	open := false
	for i, ev := range h.stages {
		switch ev.Stage {
		case StageParse:
			assert.False(t, open, "parse at %d interleaves another update", i)
			open = true
		case StageComplete:
			assert.True(t, open, "complete at %d without a parse", i)
			open = false
		}
	}
	assert.False(t, open)
}

func TestObserverCanCallBack(t *testing.T) {
	reg := builtin.NewRegistry()
	var e *Engine
	var stages []Stage
	refreshed := false
	e, err := New(Options{
		Registry: reg,
		OnStage: func(ev StageEvent) {
			stages = append(stages, ev.Stage)
			if ev.Stage == StageComplete && !refreshed {
				refreshed = true
				require.NoError(t, e.Refresh())
				assert.Len(t, e.Mounted(), 0)
			}
		},
	})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.SetMarkup(`<p>a</p>`))

	// The nested refresh is delivered after the update that triggered it.
	assert.Equal(t, []Stage{
		StageParse, StageSanitize, StageDetect, StageComplete,
		StageParse, StageSanitize, StageDetect, StageComplete,
	}, stages)
}

func TestFailedWidgetIsContained(t *testing.T) {
	logs := &bytes.Buffer{}
	reg := widget.NewRegistry()
	reg.MustRegister("Boom", func(widget.Input) (widget.View, error) {
		panic("adapter exploded")
	})
	e, err := New(Options{Registry: reg, Logger: slog.New(slog.NewTextHandler(logs, nil))})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.SetMarkup(`<p>before</p><component-slot type="Boom" data-source="a::b"></component-slot><p>after</p>`))

	assert.Equal(t,
		`<p>before</p><div class="hybrid-slot" data-slot-id="Boom::a::b"><div class="slot-empty"></div></div><p>after</p>`,
		e.HTML())
	assert.Contains(t, logs.String(), "widget failed")
	assert.Equal(t, int64(1), e.Stats().WidgetFailures)
	assert.Equal(t, float64(100), e.FailureRate())
	assert.Equal(t, int64(1), e.Counters()["mount:Boom"])
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	events := make(chan Event, 4)
	events <- Event{Data: profile("John")}
	events <- Event{Markup: `<p>a</p>`, HasMarkup: true}
	events <- Event{Markup: `<p>a</p>` + cardSlot, HasMarkup: true}
	close(events)

	require.NoError(t, h.engine.Run(context.Background(), events))
	assert.Equal(t, []string{"Card::user::profile"}, h.engine.Mounted())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.engine.Run(ctx, make(chan Event)), context.Canceled)
}

func TestApplyResetThenMarkup(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	require.NoError(t, h.engine.Apply(Event{Reset: true, Markup: cardSlot, HasMarkup: true}))

	assert.Equal(t, 2, h.mounts, "reset starts a new epoch")
	assert.Equal(t, 1, h.closed)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.data(profile("John"))
	h.markup(cardSlot)

	require.NoError(t, h.engine.Close())
	assert.Equal(t, 1, h.closed)
	assert.ErrorIs(t, h.engine.Close(), ErrClosed)
	assert.ErrorIs(t, h.engine.SetMarkup("<p>x</p>"), ErrClosed)
	assert.ErrorIs(t, h.engine.Dispatch("Card::user::profile", widget.Gesture{}), ErrClosed)
}

func TestMinifiedHTML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Minify = true
	h := newHarness(t, withConfig(cfg))
	h.markup("<div>\n   <p>a   b</p>\n</div>")

	assert.Equal(t, `<div><p>a b</p></div>`, h.engine.HTML())
}

func TestTraceStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	cfg := DefaultConfig()
	cfg.TraceDB = path

	reg := builtin.NewRegistry()
	e, err := New(Options{Config: cfg, Registry: reg, SessionID: "s-1"})
	require.NoError(t, err)
	require.NoError(t, e.SetData(profile("John")))
	require.NoError(t, e.SetMarkup(cardSlot))
	require.NoError(t, e.Close())

	store, err := tracestore.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := store.Events(ctx, "s-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "parse", events[0].Stage)
	assert.Equal(t, "complete", events[len(events)-1].Stage)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
	}
}
