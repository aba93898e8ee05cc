package trayitem

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// manualDispatcher queues posted functions until drain is called.
type manualDispatcher struct {
	mu    sync.Mutex
	queue []func()
}

func (d *manualDispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, fn)
}

// drain runs queued functions, including ones they post, until the queue is
// empty.
func (d *manualDispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

func (d *manualDispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// recordingNotifier counts change notifications.
type recordingNotifier struct {
	counts    map[string]int
	statuses  []Status
	refreshes int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{counts: map[string]int{}}
}

func (n *recordingNotifier) NewTitle()         { n.counts["NewTitle"]++ }
func (n *recordingNotifier) NewIcon()          { n.counts["NewIcon"]++ }
func (n *recordingNotifier) NewOverlayIcon()   { n.counts["NewOverlayIcon"]++ }
func (n *recordingNotifier) NewAttentionIcon() { n.counts["NewAttentionIcon"]++ }
func (n *recordingNotifier) NewToolTip()       { n.counts["NewToolTip"]++ }
func (n *recordingNotifier) NewMenu()          { n.counts["NewMenu"]++ }

func (n *recordingNotifier) NewStatus(status Status) {
	n.counts["NewStatus"]++
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) refreshProperties() { n.refreshes++ }

func (n *recordingNotifier) total() int {
	total := 0
	for _, c := range n.counts {
		total += c
	}
	return total
}

func (n *recordingNotifier) reset() {
	n.counts = map[string]int{}
	n.statuses = nil
	n.refreshes = 0
}

// fakeRegistrar holds protocol version requests until reply is called.
type fakeRegistrar struct {
	reachable   bool
	registerErr error

	pending    []func(int32, error)
	registered []string
	owner      func(oldOwner, newOwner string)
	closed     bool
}

func (r *fakeRegistrar) Reachable() bool { return r.reachable }

func (r *fakeRegistrar) ProtocolVersion(done func(int32, error)) {
	r.pending = append(r.pending, done)
}

func (r *fakeRegistrar) RegisterItem(service string) error {
	if r.registerErr != nil {
		return r.registerErr
	}
	r.registered = append(r.registered, service)
	return nil
}

func (r *fakeRegistrar) WatchOwner(fn func(oldOwner, newOwner string)) error {
	r.owner = fn
	return nil
}

func (r *fakeRegistrar) Close() error {
	r.closed = true
	return nil
}

// reply answers the oldest pending protocol version request.
func (r *fakeRegistrar) reply(t *testing.T, version int32, err error) {
	t.Helper()
	require.NotEmpty(t, r.pending, "no pending protocol version request")
	done := r.pending[0]
	r.pending = r.pending[1:]
	done(version, err)
}

type fakeFallback struct {
	available bool
	err       error
	surfaces  []*fakeSurface
	handler   SurfaceHandler
}

func (f *fakeFallback) Available() bool { return f.available }

func (f *fakeFallback) NewSurface(h SurfaceHandler) (Surface, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.handler = h
	s := &fakeSurface{geometry: image.Rect(100, 0, 124, 24)}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func (f *fakeFallback) last() *fakeSurface {
	if len(f.surfaces) == 0 {
		return nil
	}
	return f.surfaces[len(f.surfaces)-1]
}

type fakeSurface struct {
	syncs    []Snapshot
	menus    []*Menu
	geometry image.Rectangle
	closed   bool
}

func (s *fakeSurface) Sync(snapshot Snapshot) { s.syncs = append(s.syncs, snapshot) }
func (s *fakeSurface) SetMenu(m *Menu)        { s.menus = append(s.menus, m) }
func (s *fakeSurface) Geometry() image.Rectangle {
	return s.geometry
}

func (s *fakeSurface) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSurface) lastSync() Snapshot {
	if len(s.syncs) == 0 {
		return Snapshot{}
	}
	return s.syncs[len(s.syncs)-1]
}

type fakeWindow struct {
	id        uint32
	visible   bool
	minimized bool
	active    bool
	geometry  image.Rectangle
	calls     []string
	positions []image.Point
}

func (w *fakeWindow) ID() uint32                { return w.id }
func (w *fakeWindow) Visible() bool             { return w.visible }
func (w *fakeWindow) Minimized() bool           { return w.minimized }
func (w *fakeWindow) Active() bool              { return w.active }
func (w *fakeWindow) Geometry() image.Rectangle { return w.geometry }
func (w *fakeWindow) Position() image.Point     { return w.geometry.Min }

func (w *fakeWindow) SetPosition(p image.Point) {
	w.calls = append(w.calls, "SetPosition")
	w.positions = append(w.positions, p)
	w.geometry = w.geometry.Add(p.Sub(w.geometry.Min))
}

func (w *fakeWindow) Show() {
	w.calls = append(w.calls, "Show")
	w.visible = true
	w.minimized = false
}

func (w *fakeWindow) Raise() { w.calls = append(w.calls, "Raise") }

func (w *fakeWindow) Activate() {
	w.calls = append(w.calls, "Activate")
	w.active = true
}

func (w *fakeWindow) Hide() {
	w.calls = append(w.calls, "Hide")
	w.visible = false
	w.active = false
	// Window managers may place the window elsewhere when it is mapped again.
	w.geometry = w.geometry.Sub(w.geometry.Min)
}

type fakeQuery struct {
	windows     map[uint32]WindowInfo
	stacking    []uint32
	stackingErr error

	forced     []uint32
	forceErr   error
	desktops   []int
	onAllCalls []bool
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{windows: map[uint32]WindowInfo{}}
}

// add puts a window on top of the stacking order.
func (q *fakeQuery) add(info WindowInfo) {
	q.windows[info.ID] = info
	q.stacking = append(q.stacking, info.ID)
}

func (q *fakeQuery) StackingOrder() ([]uint32, error) {
	if q.stackingErr != nil {
		return nil, q.stackingErr
	}
	return q.stacking, nil
}

func (q *fakeQuery) Info(id uint32) (WindowInfo, error) {
	info, ok := q.windows[id]
	if !ok {
		return WindowInfo{}, errors.New("no such window")
	}
	return info, nil
}

func (q *fakeQuery) ForceActivate(id uint32) error {
	q.forced = append(q.forced, id)
	return q.forceErr
}

func (q *fakeQuery) SetCurrentDesktop(desktop int) error {
	q.desktops = append(q.desktops, desktop)
	return nil
}

func (q *fakeQuery) SetOnAllDesktops(id uint32, onAll bool) error {
	q.onAllCalls = append(q.onAllCalls, onAll)
	return nil
}

// recordingEmitter records emitted D-Bus signals.
type recordingEmitter struct {
	signals []string
	values  [][]any
}

func (e *recordingEmitter) Emit(path dbus.ObjectPath, name string, values ...any) error {
	e.signals = append(e.signals, name)
	e.values = append(e.values, values)
	return nil
}

// testEnv bundles an item with its fakes.
type testEnv struct {
	item      *Item
	dispatch  *manualDispatcher
	notifier  *recordingNotifier
	registrar *fakeRegistrar
	fallback  *fakeFallback
}

// newTestItem creates an item named "app" whose watcher is unreachable and
// which has no fallback, unless opts say otherwise.
func newTestItem(t *testing.T, env testEnv, opts ...Option) testEnv {
	t.Helper()

	if env.dispatch == nil {
		env.dispatch = &manualDispatcher{}
	}
	if env.notifier == nil {
		env.notifier = newRecordingNotifier()
	}
	if env.registrar == nil {
		env.registrar = &fakeRegistrar{}
	}

	base := []Option{
		WithAppName("app"),
		WithDispatcher(env.dispatch),
		WithNotifier(env.notifier),
		WithRegistrar(env.registrar),
		WithLogger(discardLogger()),
	}
	if env.fallback != nil {
		base = append(base, WithFallback(env.fallback))
	}

	item, err := New(nil, DefaultConfig(), append(base, opts...)...)
	require.NoError(t, err)

	env.item = item
	env.notifier.reset()

	return env
}
