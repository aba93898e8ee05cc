package x11

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/xevent"
	"github.com/jezek/xgbutil/xprop"
	"github.com/jezek/xgbutil/xwindow"

	"github.com/shelepuginivan/trayitem"
)

const (
	systemTrayRequestDock = 0

	xembedVersion = 0
	xembedMapped  = 1

	// iconSize is the initial size of a tray icon. Trays resize icons to fit
	// their panel.
	iconSize = 24

	// wheelDelta is the scroll delta of one wheel notch.
	wheelDelta = 120
)

// ErrNoTray is returned when no system tray owns the tray selection.
var ErrNoTray = errors.New("no system tray running")

var (
	_ trayitem.FallbackProvider = (*Fallback)(nil)
	_ trayitem.Surface          = (*surface)(nil)
)

// buttonInput is what a pointer button does on a tray icon.
type buttonInput int

const (
	inputNone buttonInput = iota
	inputActivate
	inputSecondaryActivate
	inputContextMenu
	inputScroll
)

// buttonAction maps an X11 pointer button to tray icon input. Scroll
// buttons also return the delta and orientation.
func buttonAction(button xproto.Button) (buttonInput, int, trayitem.Orientation) {
	switch button {
	case xproto.ButtonIndex1:
		return inputActivate, 0, ""
	case xproto.ButtonIndex2:
		return inputSecondaryActivate, 0, ""
	case xproto.ButtonIndex3:
		return inputContextMenu, 0, ""
	case xproto.ButtonIndex4:
		return inputScroll, wheelDelta, trayitem.OrientationVertical
	case xproto.ButtonIndex5:
		return inputScroll, -wheelDelta, trayitem.OrientationVertical
	case 6:
		return inputScroll, wheelDelta, trayitem.OrientationHorizontal
	case 7:
		return inputScroll, -wheelDelta, trayitem.OrientationHorizontal
	default:
		return inputNone, 0, ""
	}
}

// Fallback implements [trayitem.FallbackProvider] with XEmbed icons docked
// into a freedesktop system tray.
type Fallback struct {
	xu         *xgbutil.XUtil
	log        *slog.Logger
	background color.NRGBA
}

// NewFallback returns a new [Fallback]. A nil logger means [slog.Default].
func NewFallback(xu *xgbutil.XUtil, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}

	return &Fallback{
		xu:  xu,
		log: logger,
	}
}

// SetBackground sets the color painted behind icons when the tray
// background cannot be read.
func (f *Fallback) SetBackground(c color.NRGBA) {
	f.background = c
}

func (f *Fallback) selection() string {
	return fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", f.xu.Conn().DefaultScreen)
}

// owner returns the window owning the tray selection.
func (f *Fallback) owner() (xproto.Window, error) {
	atom, err := xprop.Atm(f.xu, f.selection())
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", f.selection(), err)
	}

	reply, err := xproto.GetSelectionOwner(f.xu.Conn(), atom).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get selection owner: %w", err)
	}

	if reply.Owner == xproto.WindowNone {
		return 0, ErrNoTray
	}

	return reply.Owner, nil
}

// Available reports whether a system tray is running on the default screen.
func (f *Fallback) Available() bool {
	_, err := f.owner()
	return err == nil
}

// NewSurface docks a new icon into the system tray.
func (f *Fallback) NewSurface(h trayitem.SurfaceHandler) (trayitem.Surface, error) {
	owner, err := f.owner()
	if err != nil {
		return nil, err
	}

	win, err := xwindow.Generate(f.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to generate window id: %w", err)
	}

	err = win.CreateChecked(f.xu.RootWin(), 0, 0, iconSize, iconSize,
		xproto.CwBackPixmap|xproto.CwEventMask,
		xproto.BackPixmapParentRelative,
		xproto.EventMaskExposure|xproto.EventMaskButtonPress|xproto.EventMaskStructureNotify,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create icon window: %w", err)
	}

	s := &surface{
		xu:         f.xu,
		win:        win,
		handler:    h,
		log:        f.log,
		background: f.background,
		size:       image.Pt(iconSize, iconSize),
		iconDirs:   iconDirs("", os.Getenv),
		msb:        xproto.Setup(f.xu.Conn()).ImageByteOrder == xproto.ImageOrderMSBFirst,
	}

	if err := s.init(owner); err != nil {
		win.Destroy()
		return nil, err
	}

	return s, nil
}

// surface is a docked XEmbed icon.
//
// Sync, SetMenu, Geometry and Close run on the item dispatcher, event
// callbacks run on the xgbutil event loop. mu guards the painted state.
type surface struct {
	xu         *xgbutil.XUtil
	win        *xwindow.Window
	gc         xproto.Gcontext
	handler    trayitem.SurfaceHandler
	log        *slog.Logger
	background color.NRGBA
	iconDirs   []string
	msb        bool

	mu     sync.Mutex
	size   image.Point
	icon   image.Image
	menu   *trayitem.Menu
	closed bool
}

func (s *surface) init(owner xproto.Window) error {
	conn := s.xu.Conn()

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return fmt.Errorf("failed to generate graphics context id: %w", err)
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(s.win.Id), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	s.gc = gc

	if err := s.setXEmbedInfo(); err != nil {
		return err
	}

	xevent.ExposeFun(func(xu *xgbutil.XUtil, ev xevent.ExposeEvent) {
		if ev.Count == 0 {
			s.paint()
		}
	}).Connect(s.xu, s.win.Id)

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		s.mu.Lock()
		s.size = image.Pt(int(ev.Width), int(ev.Height))
		s.mu.Unlock()
	}).Connect(s.xu, s.win.Id)

	xevent.ButtonPressFun(func(xu *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
		s.buttonPressed(ev.Detail, image.Pt(int(ev.RootX), int(ev.RootY)))
	}).Connect(s.xu, s.win.Id)

	return s.requestDock(owner)
}

func (s *surface) setXEmbedInfo() error {
	atom, err := xprop.Atm(s.xu, "_XEMBED_INFO")
	if err != nil {
		return fmt.Errorf("failed to intern _XEMBED_INFO: %w", err)
	}

	values := []uint32{xembedVersion, xembedMapped}
	data := make([]byte, len(values)*4)
	for i, v := range values {
		xgb.Put32(data[i*4:], v)
	}

	err = xproto.ChangePropertyChecked(s.xu.Conn(), xproto.PropModeReplace, s.win.Id, atom, atom, 32, uint32(len(values)), data).Check()
	if err != nil {
		return fmt.Errorf("failed to set _XEMBED_INFO: %w", err)
	}

	return nil
}

// requestDock asks the tray manager to embed the icon window.
func (s *surface) requestDock(owner xproto.Window) error {
	opcode, err := xprop.Atm(s.xu, "_NET_SYSTEM_TRAY_OPCODE")
	if err != nil {
		return fmt.Errorf("failed to intern _NET_SYSTEM_TRAY_OPCODE: %w", err)
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: owner,
		Type:   opcode,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			systemTrayRequestDock,
			uint32(s.win.Id),
			0,
			0,
		}),
	}

	if err := xproto.SendEventChecked(s.xu.Conn(), false, owner, xproto.EventMaskNoEvent, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to request dock: %w", err)
	}

	return nil
}

func (s *surface) buttonPressed(button xproto.Button, pos image.Point) {
	input, delta, orientation := buttonAction(button)

	switch input {
	case inputActivate:
		s.handler.Activate(pos)
	case inputSecondaryActivate:
		s.handler.SecondaryActivate(pos)
	case inputContextMenu:
		s.mu.Lock()
		hasMenu := s.menu != nil
		s.mu.Unlock()
		if hasMenu {
			s.handler.ContextMenu(pos)
		}
	case inputScroll:
		s.handler.Scroll(delta, orientation)
	}
}

func (s *surface) Sync(snapshot trayitem.Snapshot) {
	name, pixmap, movie := snapshot.LegacyIcon()

	dirs := s.iconDirs
	if snapshot.IconThemePath != "" {
		dirs = append([]string{snapshot.IconThemePath}, dirs...)
	}

	var icon image.Image
	switch {
	case movie != "":
		icon, _ = loadIcon(movie, dirs)
	case name != "":
		icon, _ = loadIcon(name, dirs)
	default:
		if p, ok := pixmap.Best(iconSize); ok {
			icon = p.Image()
		}
	}

	title := snapshot.ToolTip.Title
	if title == "" {
		title = snapshot.Title
	}

	if err := icccm.WmNameSet(s.xu, s.win.Id, title); err != nil {
		s.log.Debug("Failed to set icon title", "error", err)
	}
	if err := ewmh.WmNameSet(s.xu, s.win.Id, title); err != nil {
		s.log.Debug("Failed to set icon title", "error", err)
	}

	s.mu.Lock()
	s.icon = icon
	s.mu.Unlock()

	s.paint()
}

func (s *surface) SetMenu(m *trayitem.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = m
}

// paint draws the icon over the tray background.
func (s *surface) paint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.size.X <= 0 || s.size.Y <= 0 {
		return
	}

	conn := s.xu.Conn()
	w, h := uint16(s.size.X), uint16(s.size.Y)

	xproto.ClearArea(conn, false, s.win.Id, 0, 0, w, h)

	if s.icon == nil {
		return
	}

	var bg []byte
	if reply, err := xproto.GetImage(conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.win.Id), 0, 0, w, h, 0xffffffff).Reply(); err == nil && len(reply.Data) >= s.size.X*s.size.Y*4 {
		bg = reply.Data
	} else {
		bg = solidBackground(s.size, s.background, s.msb)
	}

	data := composeZPixmap(bg, scaleNearest(s.icon, s.size), s.msb)

	depth := s.xu.Screen().RootDepth
	xproto.PutImage(conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.win.Id), s.gc, w, h, 0, 0, 0, depth, data)
}

// Geometry returns the icon area in root window coordinates.
func (s *surface) Geometry() image.Rectangle {
	s.mu.Lock()
	size := s.size
	s.mu.Unlock()

	reply, err := xproto.TranslateCoordinates(s.xu.Conn(), s.win.Id, s.xu.RootWin(), 0, 0).Reply()
	if err != nil {
		return image.Rectangle{Max: size}
	}

	origin := image.Pt(int(reply.DstX), int(reply.DstY))
	return image.Rectangle{Min: origin, Max: origin.Add(size)}
}

func (s *surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.menu = nil

	xproto.FreeGC(s.xu.Conn(), s.gc)
	s.win.Destroy()

	return nil
}
