package trayitem

import (
	"image"
	"log/slog"
)

// State is the registration state of an item.
type State int

const (
	// StateUnregistered is the state before the first probe.
	StateUnregistered State = iota

	// StateProbing waits for the protocol version of the watcher.
	StateProbing

	// StateRegistered means the item is registered with the watcher and the
	// host renders it.
	StateRegistered

	// StateFallback means the item is presented by a fallback surface, or
	// not presented at all when none is available.
	StateFallback
)

var stateNames = [...]string{
	StateUnregistered: "unregistered",
	StateProbing:      "probing",
	StateRegistered:   "registered",
	StateFallback:     "fallback",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// FallbackProvider creates local tray icons for environments without a
// StatusNotifierWatcher.
type FallbackProvider interface {
	// Available reports whether the host environment has a legacy tray.
	Available() bool

	// NewSurface creates a tray icon reporting user input to h.
	NewSurface(h SurfaceHandler) (Surface, error)
}

// Surface is a local tray icon.
type Surface interface {
	// Sync repaints the icon and the tooltip from s.
	Sync(s Snapshot)

	// SetMenu sets the menu shown on context click. The menu remains owned by
	// the item.
	SetMenu(m *Menu)

	// Geometry returns the icon area in screen coordinates.
	Geometry() image.Rectangle

	Close() error
}

// SurfaceHandler receives user input from a [Surface]. Methods may be called
// from any goroutine.
type SurfaceHandler interface {
	Activate(pos image.Point)
	SecondaryActivate(pos image.Point)
	Scroll(delta int, orientation Orientation)
	ContextMenu(pos image.Point)

	// MenuDismissed reports that the context menu lost focus or an entry was
	// clicked.
	MenuDismissed()
}

// presentation is notified by the negotiator when the presenting transport
// changes.
type presentation interface {
	// presentationChanged runs after a surface was created or closed, so
	// that the item re-presents its menu and state.
	presentationChanged()

	surfaceHandler() SurfaceHandler
}

// negotiator decides whether the item is presented through the watcher or
// through a fallback surface, and re-decides when the watcher changes owner.
//
// All methods run on the dispatcher.
type negotiator struct {
	cfg       Config
	registrar Registrar
	fallback  FallbackProvider
	dispatch  Dispatcher
	log       *slog.Logger
	service   string
	target    presentation

	state   State
	surface Surface
	closed  bool

	// probe is incremented for every probe so that late replies of
	// superseded probes are ignored.
	probe uint64
}

func newNegotiator(cfg Config, registrar Registrar, fallback FallbackProvider, dispatch Dispatcher, log *slog.Logger, service string, target presentation) *negotiator {
	return &negotiator{
		cfg:       cfg,
		registrar: registrar,
		fallback:  fallback,
		dispatch:  dispatch,
		log:       log,
		service:   service,
		target:    target,
		state:     StateUnregistered,
	}
}

// start subscribes to watcher owner changes and issues the first probe.
func (n *negotiator) start() {
	if n.registrar != nil {
		err := n.registrar.WatchOwner(func(oldOwner, newOwner string) {
			n.dispatch.Post(func() { n.ownerChanged(oldOwner, newOwner) })
		})
		if err != nil {
			n.log.Debug("Failed to watch StatusNotifierWatcher owner", "error", err)
		}
	}

	n.register()
}

// register probes the watcher, or falls back when it is not reachable.
func (n *negotiator) register() {
	if n.closed {
		return
	}

	n.log.Debug("Registering a client interface to the StatusNotifierWatcher")

	if n.registrar == nil || !n.registrar.Reachable() {
		n.log.Debug("StatusNotifierWatcher not reachable")
		n.enterFallback()
		return
	}

	n.probe++
	probe := n.probe
	n.state = StateProbing

	n.registrar.ProtocolVersion(func(version int32, err error) {
		n.dispatch.Post(func() { n.probeDone(probe, version, err) })
	})

	n.setSurfaceEnabled(false)
}

// probeDone handles the protocol version reply.
func (n *negotiator) probeDone(probe uint64, version int32, err error) {
	if n.closed || probe != n.probe || n.state != StateProbing {
		return
	}

	if err != nil {
		n.log.Debug("Failed to read protocol version of StatusNotifierWatcher", "error", err)
		n.enterFallback()
		return
	}

	if version != ProtocolVersion {
		n.log.Debug("StatusNotifierWatcher has incorrect protocol version", "version", version, "expected", ProtocolVersion)
		n.enterFallback()
		return
	}

	if err := n.registrar.RegisterItem(n.service); err != nil {
		n.log.Debug("Failed to register with StatusNotifierWatcher", "error", err)
		n.enterFallback()
		return
	}

	n.state = StateRegistered
	n.log.Debug("Registered with StatusNotifierWatcher", "service", n.service)
	n.setSurfaceEnabled(false)
}

// ownerChanged handles NameOwnerChanged of the watcher name.
func (n *negotiator) ownerChanged(oldOwner, newOwner string) {
	if n.closed {
		return
	}

	switch {
	case newOwner == "":
		n.log.Debug("Connection to the StatusNotifierWatcher lost")
		n.probe++
		n.enterFallback()
	case oldOwner == "":
		n.register()
	}
}

func (n *negotiator) enterFallback() {
	n.state = StateFallback
	n.setSurfaceEnabled(true)
}

// setSurfaceEnabled creates or closes the fallback surface.
func (n *negotiator) setSurfaceEnabled(enabled bool) {
	if enabled == (n.surface != nil) {
		return
	}

	if enabled {
		if n.cfg.ModernSession {
			// The watcher belongs to the session shell, a fallback icon
			// would only be replaced again once it comes back.
			n.log.Warn("Desktop session provides StatusNotifierWatcher but it is unavailable")
			return
		}

		if n.fallback == nil || !n.fallback.Available() {
			return
		}

		surface, err := n.fallback.NewSurface(n.target.surfaceHandler())
		if err != nil {
			n.log.Debug("Failed to create fallback surface", "error", err)
			return
		}

		n.surface = surface
	} else {
		if err := n.surface.Close(); err != nil {
			n.log.Debug("Failed to close fallback surface", "error", err)
		}
		n.surface = nil
	}

	n.target.presentationChanged()
}

// close releases the surface and the registrar. Late probe replies and owner
// changes are ignored afterwards.
func (n *negotiator) close() error {
	if n.closed {
		return nil
	}
	n.closed = true

	var err error
	if n.surface != nil {
		err = n.surface.Close()
		n.surface = nil
	}

	if n.registrar != nil {
		if cerr := n.registrar.Close(); err == nil {
			err = cerr
		}
	}

	return err
}
