package trayitem

import (
	"errors"
	"image"
)

// ErrUnsupported is returned by a [WindowQuery] when the windowing system
// cannot answer a request.
var ErrUnsupported = errors.New("unsupported by the windowing system")

// Window is the application window associated with an item. The item does
// not own the window, it only shows, raises and hides it on activation.
type Window interface {
	// ID returns the windowing-system identifier, such as an X11 window id.
	ID() uint32

	// Visible reports whether the window is shown.
	Visible() bool

	// Minimized reports whether the window is minimized.
	Minimized() bool

	// Active reports whether the window has input focus.
	Active() bool

	// Geometry returns the window frame in screen coordinates.
	Geometry() image.Rectangle

	Position() image.Point
	SetPosition(p image.Point)

	// Show maps the window and restores it from the minimized state.
	Show()
	Raise()
	Activate()
	Hide()
}

// WindowType classifies top-level windows, as in _NET_WM_WINDOW_TYPE.
type WindowType int

const (
	WindowTypeUnknown WindowType = iota
	WindowTypeNormal
	WindowTypeDesktop
	WindowTypeDock
	WindowTypeToolbar
	WindowTypeMenu
	WindowTypeDialog
	WindowTypeOverride
	WindowTypeTopMenu
	WindowTypeUtility
	WindowTypeSplash
)

// WindowInfo is what the window manager reports about a top-level window.
type WindowInfo struct {
	ID       uint32
	Geometry image.Rectangle

	// Desktop is the virtual desktop of the window.
	Desktop          int
	OnAllDesktops    bool
	OnCurrentDesktop bool

	// Mapped reports whether the window is viewable, i.e. neither withdrawn
	// nor iconic.
	Mapped bool

	KeepAbove bool
	Type      WindowType
}

// WindowQuery answers questions about the window manager state.
//
// Calls are synchronous and must only be made from the dispatcher.
type WindowQuery interface {
	// StackingOrder returns top-level windows ordered bottom to top.
	StackingOrder() ([]uint32, error)

	Info(id uint32) (WindowInfo, error)

	// ForceActivate activates the window even when focus stealing prevention
	// would refuse it.
	ForceActivate(id uint32) error

	SetCurrentDesktop(desktop int) error
	SetOnAllDesktops(id uint32, onAll bool) error
}

// Decision is the outcome of an activation on the associated window.
type Decision int

const (
	// DecisionShow shows, raises and focuses a hidden or minimized window.
	DecisionShow Decision = iota

	// DecisionRaise raises and focuses a window obscured by another one.
	DecisionRaise

	// DecisionActivate switches to a window on another desktop, or focuses an
	// unfocused window when the stacking order is unknown.
	DecisionActivate

	// DecisionHide hides a window that is fully visible to the user.
	DecisionHide
)

var decisionNames = [...]string{
	DecisionShow:     "show",
	DecisionRaise:    "raise",
	DecisionActivate: "activate",
	DecisionHide:     "hide",
}

// String returns the name of the decision.
func (d Decision) String() string {
	if d < 0 || int(d) >= len(decisionNames) {
		return "unknown"
	}
	return decisionNames[d]
}

// Shows reports whether the window ends up shown.
func (d Decision) Shows() bool {
	return d != DecisionHide
}

// decideVisibility decides what activating the item does to win.
//
//   - not mapped: show
//   - mapped and obscured: raise
//   - mapped, not obscured, on another desktop: activate
//   - otherwise: hide
//
// With no query, or when the window manager cannot be asked, it falls back
// to input focus: an unfocused window is activated, a focused one is hidden.
func decideVisibility(win Window, query WindowQuery) Decision {
	if !win.Visible() || win.Minimized() {
		return DecisionShow
	}

	if query == nil {
		return decideByFocus(win)
	}

	target, err := query.Info(win.ID())
	if err != nil {
		return decideByFocus(win)
	}

	stacking, err := query.StackingOrder()
	if err != nil {
		return decideByFocus(win)
	}

	geometry := win.Geometry()

	for i := len(stacking) - 1; i >= 0; i-- {
		id := stacking[i]
		if id == win.ID() {
			break
		}

		other, err := query.Info(id)
		if err != nil {
			continue
		}

		if !other.Mapped || !other.OnCurrentDesktop {
			continue
		}

		if !other.Geometry.Overlaps(geometry) {
			continue
		}

		if !target.KeepAbove && other.KeepAbove {
			continue
		}

		if other.Type == WindowTypeDock || other.Type == WindowTypeTopMenu {
			continue
		}

		return DecisionRaise
	}

	if !target.OnCurrentDesktop {
		return DecisionActivate
	}

	return DecisionHide
}

func decideByFocus(win Window) Decision {
	if !win.Active() {
		return DecisionActivate
	}
	return DecisionHide
}
