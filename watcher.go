package trayitem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	StatusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      = "/StatusNotifierWatcher"

	// ProtocolVersion is the StatusNotifierWatcher protocol version this
	// package speaks.
	ProtocolVersion = 0
)

// Registrar is the client side of the StatusNotifierWatcher.
type Registrar interface {
	// Reachable reports whether the watcher currently has an owner.
	Reachable() bool

	// ProtocolVersion reads the protocol version of the watcher
	// asynchronously. done may run on any goroutine.
	ProtocolVersion(done func(version int32, err error))

	// RegisterItem registers the item service with the watcher.
	RegisterItem(service string) error

	// WatchOwner calls fn whenever the watcher name changes owner. An empty
	// newOwner means the watcher disappeared, an empty oldOwner means it
	// appeared. fn may run on any goroutine.
	WatchOwner(fn func(oldOwner, newOwner string)) error

	Close() error
}

// WatcherClient implements [Registrar] over D-Bus.
type WatcherClient struct {
	conn    *dbus.Conn
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	signals chan *dbus.Signal
}

// NewWatcherClient returns a new [WatcherClient]. timeout bounds the protocol
// version request; zero means no bound.
func NewWatcherClient(conn *dbus.Conn, timeout time.Duration) *WatcherClient {
	return &WatcherClient{
		conn:    conn,
		timeout: timeout,
	}
}

// Reachable asks the bus whether org.kde.StatusNotifierWatcher has an owner.
func (w *WatcherClient) Reachable() bool {
	var hasOwner bool

	err := w.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, StatusNotifierWatcherInterface).Store(&hasOwner)
	if err != nil {
		return false
	}

	return hasOwner
}

// ProtocolVersion reads the ProtocolVersion property of the watcher. done
// runs on a new goroutine.
func (w *WatcherClient) ProtocolVersion(done func(version int32, err error)) {
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
	}

	obj := w.conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)
	call := obj.GoWithContext(ctx, getProperty, 0, make(chan *dbus.Call, 1), StatusNotifierWatcherInterface, "ProtocolVersion")

	go func() {
		defer cancel()

		reply := <-call.Done
		if reply.Err != nil {
			done(0, fmt.Errorf("failed to read protocol version: %w", reply.Err))
			return
		}

		var value dbus.Variant
		if err := reply.Store(&value); err != nil {
			done(0, fmt.Errorf("failed to read protocol version: %w", err))
			return
		}

		version, ok := variantInt32(value)
		if !ok {
			done(0, fmt.Errorf("invalid protocol version type: %s", value.Signature()))
			return
		}

		done(version, nil)
	}()
}

// RegisterItem calls RegisterStatusNotifierItem with the item bus name.
func (w *WatcherClient) RegisterItem(service string) error {
	call := w.conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath).Call(
		StatusNotifierWatcherInterface+".RegisterStatusNotifierItem",
		0,
		service,
	)
	if call.Err != nil {
		return fmt.Errorf("failed to register item: %w", call.Err)
	}

	return nil
}

// WatchOwner subscribes to NameOwnerChanged of the watcher name. It can be
// called once.
func (w *WatcherClient) WatchOwner(fn func(oldOwner, newOwner string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watch owner: %w", ErrClosed)
	}

	if w.signals != nil {
		return fmt.Errorf("watch owner: already watching")
	}

	// Whenever the watcher name changes owner, D-Bus sends NameOwnerChanged
	// with the old and the new owner. Either of them is empty when the name
	// appears or disappears.
	if err := w.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, StatusNotifierWatcherInterface),
	); err != nil {
		return fmt.Errorf("watch owner: %w", err)
	}

	w.signals = make(chan *dbus.Signal, 16)
	w.conn.Signal(w.signals)

	go func(signals chan *dbus.Signal) {
		for signal := range signals {
			if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" {
				continue
			}

			if len(signal.Body) < 3 {
				continue
			}

			name, ok := signal.Body[0].(string)
			if !ok || name != StatusNotifierWatcherInterface {
				continue
			}

			oldOwner, ok := signal.Body[1].(string)
			if !ok {
				continue
			}

			newOwner, ok := signal.Body[2].(string)
			if !ok {
				continue
			}

			fn(oldOwner, newOwner)
		}
	}(w.signals)

	return nil
}

// Close removes the signal subscription. Closing twice is a no-op.
func (w *WatcherClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.signals == nil {
		return nil
	}

	err := w.conn.RemoveMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, StatusNotifierWatcherInterface),
	)

	w.conn.RemoveSignal(w.signals)
	close(w.signals)

	return err
}

const getProperty = "org.freedesktop.DBus.Properties.Get"

// variantInt32 extracts an integer of any D-Bus integer type.
func variantInt32(v dbus.Variant) (int32, bool) {
	switch n := v.Value().(type) {
	case int32:
		return n, true
	case uint32:
		return int32(n), true
	case int16:
		return int32(n), true
	case uint16:
		return int32(n), true
	case int64:
		return int32(n), true
	case uint64:
		return int32(n), true
	case byte:
		return int32(n), true
	default:
		return 0, false
	}
}
