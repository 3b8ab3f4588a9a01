// Package lifecycle owns widget instances: it mounts them into mount points
// of the live tree, routes gestures to them and tears them down in two
// phases (mark now, destroy once the current pass has committed).
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/internal/datapath"
	"github.com/livefir/livehydrate/internal/diff"
	"github.com/livefir/livehydrate/internal/metrics"
	"github.com/livefir/livehydrate/internal/slot"
	"github.com/livefir/livehydrate/internal/slotconfig"
	"github.com/livefir/livehydrate/widget"
)

// ErrNotMounted is returned when addressing a slot identity with no live
// instance.
var ErrNotMounted = errors.New("slot not mounted")

// Default classes of the nodes the manager writes into the live tree.
const (
	DefaultMountClass = "hybrid-slot"
	DefaultEmptyClass = "slot-empty"
)

// State is the lifecycle state of one slot identity.
type State int

const (
	Unmounted State = iota
	Mounted
	TornDown
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounted:
		return "mounted"
	case TornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of a mount attempt.
type Outcome int

const (
	// OutcomeMounted means the widget rendered into its mount point.
	OutcomeMounted Outcome = iota
	// OutcomeFailed means the widget failed; its mount point holds an empty
	// block and the identity counts as mounted.
	OutcomeFailed
	// OutcomeUnknownType means no adapter is registered for the type; the
	// declaration became an empty block and nothing was mounted.
	OutcomeUnknownType
	// OutcomeSkipped means the declaration has no type, or its identity is
	// already mounted.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMounted:
		return "mounted"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnknownType:
		return "unknown_type"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Report describes one mount attempt.
type Report struct {
	SlotID       string
	WidgetType   string
	Outcome      Outcome
	DataResolved bool
	Err          error
}

// Instance is one mounted widget.
type Instance struct {
	ID    string
	Type  string
	Mount *diff.Node

	decl  slot.Declaration
	view  widget.View
	raw   any
	state atomic.Int32
	once  sync.Once
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// Failed reports whether the widget failed to construct or render.
func (i *Instance) Failed() bool {
	return i.view == nil
}

// Options configures a Manager.
type Options struct {
	Registry   *widget.Registry
	Configs    *slotconfig.Parser
	Scheduler  Scheduler
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	MountClass string
	EmptyClass string

	// Emit receives interactions from widgets of slots that declare an
	// interaction mode. It is not called while interactions are suppressed.
	Emit func(kind string, in widget.Interaction)
}

// Manager tracks the mounted set of one engine. It is not safe for
// concurrent use; the engine serializes access.
type Manager struct {
	opts       Options
	instances  map[string]*Instance
	order      []string
	warned     map[string]bool
	suppressed atomic.Bool
}

// NewManager creates a manager. Registry and Scheduler are required.
func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("lifecycle: registry is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("lifecycle: scheduler is required")
	}
	if opts.Configs == nil {
		opts.Configs = slotconfig.NewParser(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.MountClass == "" {
		opts.MountClass = DefaultMountClass
	}
	if opts.EmptyClass == "" {
		opts.EmptyClass = DefaultEmptyClass
	}
	return &Manager{
		opts:      opts,
		instances: make(map[string]*Instance),
		warned:    make(map[string]bool),
	}, nil
}

// Alive reports whether id has a live instance.
func (m *Manager) Alive(id string) bool {
	_, ok := m.instances[id]
	return ok
}

// Instance returns the live instance for id.
func (m *Manager) Instance(id string) (*Instance, bool) {
	inst, ok := m.instances[id]
	return inst, ok
}

// Mounted returns the live slot identities in mount order.
func (m *Manager) Mounted() []string {
	return append([]string(nil), m.order...)
}

// SetSuppressed turns outward interactions off or back on. Gestures still
// reach widgets while suppressed; their interactions are dropped.
func (m *Manager) SetSuppressed(suppressed bool) {
	m.suppressed.Store(suppressed)
}

// Suppressed reports whether outward interactions are dropped.
func (m *Manager) Suppressed() bool {
	return m.suppressed.Load()
}

// Mount turns the slot declaration n of the live tree into a mount point and
// instantiates its widget. Unknown types turn n into an empty block.
func (m *Manager) Mount(n *diff.Node, decl slot.Declaration, ctx datapath.Context) Report {
	id := decl.Identity()
	rep := Report{SlotID: id, WidgetType: decl.Type}

	if decl.Type == "" || m.Alive(id) {
		rep.Outcome = OutcomeSkipped
		return rep
	}

	adapter, ok := m.opts.Registry.Lookup(decl.Type)
	if !ok {
		rep.Outcome = OutcomeUnknownType
		m.opts.Metrics.IncrementUnknownType()
		if key := id + "\x00" + decl.Type; !m.warned[key] {
			m.warned[key] = true
			m.opts.Logger.Warn("unknown widget type", "widget_type", decl.Type, "slot_id", id)
		}
		m.makeEmpty(n)
		return rep
	}

	raw, found := datapath.Structured(ctx, decl.DataSource)
	rep.DataResolved = found

	m.makeMountPoint(n, id)
	inst := &Instance{ID: id, Type: decl.Type, Mount: n, decl: decl, raw: raw}
	inst.state.Store(int32(Mounted))
	m.instances[id] = inst
	m.order = append(m.order, id)
	m.opts.Metrics.IncrementWidgetMounted()
	m.opts.Metrics.IncrementCustomCounter("mount:" + decl.Type)

	if err := m.render(inst, adapter, raw); err != nil {
		rep.Outcome = OutcomeFailed
		rep.Err = err
		return rep
	}
	rep.Outcome = OutcomeMounted
	return rep
}

// Reinvoke re-renders a live widget when the data its reference resolves to
// has changed. It reports whether the widget rendered again.
func (m *Manager) Reinvoke(id string, ctx datapath.Context) (bool, error) {
	inst, ok := m.instances[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotMounted, id)
	}
	raw, _ := datapath.Structured(ctx, inst.decl.DataSource)
	if reflect.DeepEqual(raw, inst.raw) {
		return false, nil
	}
	adapter, ok := m.opts.Registry.Lookup(inst.Type)
	if !ok {
		return false, fmt.Errorf("widget type %q is no longer registered", inst.Type)
	}

	previous := inst.view
	inst.raw = raw
	err := m.render(inst, adapter, raw)
	if previous != nil {
		m.opts.Scheduler.Schedule(func() { m.closeView(inst, previous) })
	}
	m.opts.Metrics.IncrementWidgetRerender()
	return true, err
}

// Dispatch routes a gesture to the widget mounted at id. It reports whether
// the widget produced an interaction.
func (m *Manager) Dispatch(id string, g widget.Gesture) (handled bool, err error) {
	inst, ok := m.instances[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotMounted, id)
	}
	if inst.view == nil {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			handled = false
			err = fmt.Errorf("widget %s panicked handling gesture: %v", inst.Type, r)
			m.opts.Logger.Error("widget gesture failed", "widget_type", inst.Type, "slot_id", id, "error", err)
		}
	}()
	return inst.view.Handle(g), nil
}

// TeardownAll ends the epoch. Every instance leaves the mounted set now;
// destruction runs later on the scheduler.
func (m *Manager) TeardownAll() int {
	n := len(m.order)
	for _, id := range m.order {
		m.markForTeardown(m.instances[id])
	}
	m.instances = make(map[string]*Instance)
	m.order = nil
	m.warned = make(map[string]bool)
	return n
}

// Teardown removes a single identity from the mounted set and schedules its
// destruction.
func (m *Manager) Teardown(id string) bool {
	inst, ok := m.instances[id]
	if !ok {
		return false
	}
	delete(m.instances, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.markForTeardown(inst)
	return true
}

func (m *Manager) markForTeardown(inst *Instance) {
	m.opts.Scheduler.Schedule(func() { m.destroy(inst) })
}

// destroy is idempotent.
func (m *Manager) destroy(inst *Instance) {
	inst.once.Do(func() {
		if inst.view != nil {
			m.closeView(inst, inst.view)
		}
		inst.state.Store(int32(TornDown))
		m.opts.Metrics.IncrementWidgetTornDown()
	})
}

func (m *Manager) closeView(inst *Instance, view widget.View) {
	closer, ok := view.(widget.Closer)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.opts.Logger.Debug("widget close panicked", "widget_type", inst.Type, "slot_id", inst.ID, "error", fmt.Sprint(r))
		}
	}()
	if err := closer.Close(); err != nil {
		m.opts.Logger.Debug("widget close failed", "widget_type", inst.Type, "slot_id", inst.ID, "error", err)
	}
}

// render builds the view and fills the mount point. Any error or panic
// leaves an empty block in the mount point.
func (m *Manager) render(inst *Instance, adapter widget.Adapter, raw any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("widget %s panicked: %v", inst.Type, r)
		}
		if err != nil {
			inst.view = nil
			inst.Mount.SetChildren([]*diff.Node{m.emptyBlock()})
			m.opts.Metrics.IncrementWidgetFailure()
			m.opts.Logger.Error("widget failed", "widget_type", inst.Type, "slot_id", inst.ID, "error", err)
		}
	}()

	view, err := adapter(m.input(inst, raw))
	if err != nil {
		return fmt.Errorf("widget %s: %w", inst.Type, err)
	}
	if view == nil {
		return fmt.Errorf("widget %s returned no view", inst.Type)
	}

	children := make([]*diff.Node, 0)
	for _, hn := range view.Render() {
		if hn == nil {
			continue
		}
		if c := diff.FromHTML(hn); c != nil {
			children = append(children, c)
		}
	}
	inst.view = view
	inst.Mount.SetChildren(children)
	return nil
}

func (m *Manager) input(inst *Instance, raw any) widget.Input {
	in := widget.Input{
		Type:   inst.Type,
		SlotID: inst.ID,
		Data:   widget.Normalize(raw),
		Config: m.opts.Configs.Parse(inst.decl.Config),
		Mode:   inst.decl.Interaction,
	}
	if inst.decl.Interaction == "" {
		return in
	}
	typ, mode, id := inst.Type, inst.decl.Interaction, inst.ID
	in.OnInteraction = func(kind string, clicked any) {
		suppressed := m.suppressed.Load()
		m.opts.Metrics.IncrementInteraction(suppressed)
		if suppressed || m.opts.Emit == nil {
			return
		}
		m.opts.Emit(kind, widget.Interaction{
			WidgetType:  typ,
			Mode:        mode,
			SlotID:      id,
			ClickedData: clicked,
		})
	}
	return in
}

func (m *Manager) makeMountPoint(n *diff.Node, id string) {
	n.Type = html.ElementNode
	n.Data = "div"
	n.Attributes = map[string]string{
		"class":          m.opts.MountClass,
		slot.AttrMountID: id,
	}
	n.SetChildren(nil)
}

func (m *Manager) makeEmpty(n *diff.Node) {
	n.Type = html.ElementNode
	n.Data = "div"
	n.Attributes = map[string]string{"class": m.opts.EmptyClass}
	n.SetChildren(nil)
}

func (m *Manager) emptyBlock() *diff.Node {
	return diff.NewElement("div", map[string]string{"class": m.opts.EmptyClass})
}
