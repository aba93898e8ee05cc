package x11

import (
	"image"
	"log/slog"
	"slices"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/xwindow"
)

// Window implements [trayitem.Window] for a top-level X11 client window.
//
// Requests that fail are logged and otherwise ignored, the window manager
// may refuse any of them.
type Window struct {
	xu  *xgbutil.XUtil
	win *xwindow.Window
	log *slog.Logger
}

// NewWindow returns the client window id. A nil logger means
// [slog.Default].
func NewWindow(xu *xgbutil.XUtil, id uint32, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}

	return &Window{
		xu:  xu,
		win: xwindow.New(xu, xproto.Window(id)),
		log: logger.With("window", id),
	}
}

// ID returns the X11 window id.
func (w *Window) ID() uint32 { return uint32(w.win.Id) }

// Visible reports whether the window is viewable.
func (w *Window) Visible() bool {
	attrs, err := xproto.GetWindowAttributes(w.xu.Conn(), w.win.Id).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// Minimized reports whether the window is iconic or hidden.
func (w *Window) Minimized() bool {
	if state, err := icccm.WmStateGet(w.xu, w.win.Id); err == nil && state.State == icccm.StateIconic {
		return true
	}

	states, _ := ewmh.WmStateGet(w.xu, w.win.Id)
	return slices.Contains(states, "_NET_WM_STATE_HIDDEN")
}

// Active reports whether the window is _NET_ACTIVE_WINDOW.
func (w *Window) Active() bool {
	active, err := ewmh.ActiveWindowGet(w.xu)
	return err == nil && active == w.win.Id
}

// Geometry returns the window frame including decorations.
func (w *Window) Geometry() image.Rectangle {
	rect, err := w.win.DecorGeometry()
	if err != nil {
		w.log.Debug("Failed to read window geometry", "error", err)
		return image.Rectangle{}
	}
	return image.Rect(rect.X(), rect.Y(), rect.X()+rect.Width(), rect.Y()+rect.Height())
}

// Position returns the top-left corner of the window frame.
func (w *Window) Position() image.Point {
	return w.Geometry().Min
}

// SetPosition moves the window frame to p.
func (w *Window) SetPosition(p image.Point) {
	w.win.Move(p.X, p.Y)
}

// Show maps the window and takes it out of the hidden state.
func (w *Window) Show() {
	if w.Minimized() {
		if err := ewmh.WmStateReq(w.xu, w.win.Id, ewmh.StateRemove, "_NET_WM_STATE_HIDDEN"); err != nil {
			w.log.Debug("Failed to unminimize window", "error", err)
		}
	}
	w.win.Map()
}

// Raise stacks the window above its siblings.
func (w *Window) Raise() {
	w.win.Stack(xproto.StackModeAbove)
}

// Activate asks the window manager to focus the window.
func (w *Window) Activate() {
	if err := ewmh.ActiveWindowReq(w.xu, w.win.Id); err != nil {
		w.log.Debug("Failed to activate window", "error", err)
	}
}

// Hide unmaps the window.
func (w *Window) Hide() {
	w.win.Unmap()
}
