// Package x11 connects trayitem to X11 window managers and legacy system
// trays.
//
// [WindowQuery] and [Window] let an item decide whether its window is
// obscured and toggle it. [Fallback] docks an XEmbed icon into a
// freedesktop system tray when no StatusNotifierWatcher is running.
//
// Events of fallback icons are delivered by the xgbutil event loop, so the
// application must run [xevent.Main] on the same connection.
package x11

import (
	"fmt"
	"image"
	"slices"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/xwindow"

	"github.com/shelepuginivan/trayitem"
)

// allDesktops is the _NET_WM_DESKTOP value of sticky windows.
const allDesktops = 0xFFFFFFFF

// sourcePager marks requests from pagers and taskbars, which window
// managers honor regardless of focus stealing prevention.
const sourcePager = 2

var windowTypes = map[string]trayitem.WindowType{
	"_NET_WM_WINDOW_TYPE_NORMAL":       trayitem.WindowTypeNormal,
	"_NET_WM_WINDOW_TYPE_DESKTOP":      trayitem.WindowTypeDesktop,
	"_NET_WM_WINDOW_TYPE_DOCK":         trayitem.WindowTypeDock,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":      trayitem.WindowTypeToolbar,
	"_NET_WM_WINDOW_TYPE_MENU":         trayitem.WindowTypeMenu,
	"_NET_WM_WINDOW_TYPE_DIALOG":       trayitem.WindowTypeDialog,
	"_NET_WM_WINDOW_TYPE_UTILITY":      trayitem.WindowTypeUtility,
	"_NET_WM_WINDOW_TYPE_SPLASH":       trayitem.WindowTypeSplash,
	"_KDE_NET_WM_WINDOW_TYPE_OVERRIDE": trayitem.WindowTypeOverride,
	"_KDE_NET_WM_WINDOW_TYPE_TOPMENU":  trayitem.WindowTypeTopMenu,
}

// windowType returns the first known type of a _NET_WM_WINDOW_TYPE list.
// Windows without a type are normal.
func windowType(types []string) trayitem.WindowType {
	if len(types) == 0 {
		return trayitem.WindowTypeNormal
	}

	for _, name := range types {
		if t, ok := windowTypes[name]; ok {
			return t
		}
	}

	return trayitem.WindowTypeUnknown
}

// WindowQuery implements [trayitem.WindowQuery] with EWMH and ICCCM
// properties.
type WindowQuery struct {
	xu *xgbutil.XUtil
}

var (
	_ trayitem.WindowQuery = (*WindowQuery)(nil)
	_ trayitem.Window      = (*Window)(nil)
)

// NewWindowQuery returns a new [WindowQuery].
func NewWindowQuery(xu *xgbutil.XUtil) *WindowQuery {
	return &WindowQuery{xu: xu}
}

// StackingOrder reads _NET_CLIENT_LIST_STACKING. Window managers that do not
// maintain it yield [trayitem.ErrUnsupported].
func (q *WindowQuery) StackingOrder() ([]uint32, error) {
	clients, err := ewmh.ClientListStackingGet(q.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to read stacking order: %w: %w", trayitem.ErrUnsupported, err)
	}

	ids := make([]uint32, len(clients))
	for i, c := range clients {
		ids[i] = uint32(c)
	}

	return ids, nil
}

// Info reads frame geometry, desktop, state and type of window id.
func (q *WindowQuery) Info(id uint32) (trayitem.WindowInfo, error) {
	win := xproto.Window(id)
	info := trayitem.WindowInfo{ID: id}

	rect, err := xwindow.New(q.xu, win).DecorGeometry()
	if err != nil {
		return info, fmt.Errorf("failed to read geometry of window %d: %w", id, err)
	}
	info.Geometry = image.Rect(rect.X(), rect.Y(), rect.X()+rect.Width(), rect.Y()+rect.Height())

	if desktop, err := ewmh.WmDesktopGet(q.xu, win); err == nil {
		if desktop == allDesktops {
			info.OnAllDesktops = true
		} else {
			info.Desktop = int(desktop)
		}
	}

	states, _ := ewmh.WmStateGet(q.xu, win)
	if slices.Contains(states, "_NET_WM_STATE_STICKY") {
		info.OnAllDesktops = true
	}
	info.KeepAbove = slices.Contains(states, "_NET_WM_STATE_ABOVE")

	info.OnCurrentDesktop = true
	if !info.OnAllDesktops {
		if current, err := ewmh.CurrentDesktopGet(q.xu); err == nil {
			info.OnCurrentDesktop = int(current) == info.Desktop
		}
	}

	info.Mapped = q.mapped(win) && !slices.Contains(states, "_NET_WM_STATE_HIDDEN")

	types, _ := ewmh.WmWindowTypeGet(q.xu, win)
	info.Type = windowType(types)

	return info, nil
}

// mapped reports whether win is in the normal state. Without a window
// manager setting WM_STATE, the map state of the window is used.
func (q *WindowQuery) mapped(win xproto.Window) bool {
	if state, err := icccm.WmStateGet(q.xu, win); err == nil {
		return state.State == icccm.StateNormal
	}

	attrs, err := xproto.GetWindowAttributes(q.xu.Conn(), win).Reply()
	if err != nil {
		return false
	}

	return attrs.MapState == xproto.MapStateViewable
}

// ForceActivate sends _NET_ACTIVE_WINDOW as a pager, which window managers
// do not subject to focus stealing prevention.
func (q *WindowQuery) ForceActivate(id uint32) error {
	err := ewmh.ActiveWindowReqExtra(q.xu, xproto.Window(id), sourcePager, xproto.TimeCurrentTime, 0)
	if err != nil {
		return fmt.Errorf("failed to activate window %d: %w", id, err)
	}
	return nil
}

// SetCurrentDesktop switches to desktop.
func (q *WindowQuery) SetCurrentDesktop(desktop int) error {
	if err := ewmh.CurrentDesktopReq(q.xu, desktop); err != nil {
		return fmt.Errorf("failed to switch to desktop %d: %w", desktop, err)
	}
	return nil
}

// SetOnAllDesktops makes window id sticky, or moves it to the current desktop.
func (q *WindowQuery) SetOnAllDesktops(id uint32, onAll bool) error {
	win := xproto.Window(id)

	action := ewmh.StateRemove
	desktop := uint(allDesktops)

	if onAll {
		action = ewmh.StateAdd
	} else {
		current, err := ewmh.CurrentDesktopGet(q.xu)
		if err != nil {
			return fmt.Errorf("failed to read current desktop: %w", err)
		}
		desktop = current
	}

	if err := ewmh.WmStateReq(q.xu, win, action, "_NET_WM_STATE_STICKY"); err != nil {
		return fmt.Errorf("failed to change sticky state of window %d: %w", id, err)
	}

	if err := ewmh.WmDesktopReq(q.xu, win, desktop); err != nil {
		return fmt.Errorf("failed to move window %d to desktop: %w", id, err)
	}

	return nil
}
