package trayitem

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/godbus/dbus/v5"
)

var (
	// ErrClosed is returned when operating on a closed item or client.
	ErrClosed = errors.New("closed")

	// ErrNoBus is returned by operations that need a session bus connection
	// when the item was created without one.
	ErrNoBus = errors.New("no session bus connection")
)

// noPosition marks that no window position is remembered.
var noPosition = image.Pt(-1, -1)

// Option configures an [Item].
type Option func(*options)

type options struct {
	appName   string
	extraID   string
	dispatch  Dispatcher
	logger    *slog.Logger
	registrar Registrar
	fallback  FallbackProvider
	windows   WindowQuery
	notifier  Notifier
}

// WithAppName sets the application name used for the item ID and the
// initial title. It defaults to the executable name.
func WithAppName(name string) Option {
	return func(o *options) { o.appName = name }
}

// WithExtraID distinguishes several items of the same application. The item
// ID becomes "<app name>_<extra id>".
func WithExtraID(id string) Option {
	return func(o *options) { o.extraID = id }
}

// WithDispatcher runs the item on an existing control thread, such as the
// event loop of a GUI toolkit.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

// WithLogger sets the logger. It defaults to [slog.Default] with a
// component attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistrar replaces the D-Bus watcher client.
func WithRegistrar(r Registrar) Option {
	return func(o *options) { o.registrar = r }
}

// WithFallback sets the provider of local tray icons used when no watcher is
// available.
func WithFallback(f FallbackProvider) Option {
	return func(o *options) { o.fallback = f }
}

// WithWindowQuery enables stacking-order aware activation of the associated
// window.
func WithWindowQuery(q WindowQuery) Option {
	return func(o *options) { o.windows = q }
}

// WithNotifier replaces the D-Bus item object as receiver of change
// notifications.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// Item is the tray presence of an application and implements
// [StatusNotifierItem].
//
// Methods must be called on the item's dispatcher. Use [Item.Post] from
// other goroutines.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierItem/
type Item struct {
	cfg      Config
	conn     *dbus.Conn
	loop     *Loop
	dispatch Dispatcher
	log      *slog.Logger
	notifier Notifier
	dbus     *dbusItem
	exporter *menuExporter
	neg      *negotiator
	windows  WindowQuery
	closed   bool

	id                     string
	category               Category
	status                 Status
	title                  string
	icon                   iconSlot
	overlayIcon            iconSlot
	attentionIcon          iconSlot
	movieName              string
	toolTipIcon            iconSlot
	toolTipTitle           string
	toolTipSubTitle        string
	isMenu                 bool
	menu                   *Menu
	menuPath               dbus.ObjectPath
	window                 Window
	windowPos              image.Point
	onAllDesktops          bool
	standardActionsEnabled bool
	hasQuit                bool
	quitAborted            bool
	activationToken        string

	standardSeparator *MenuItem
	minimizeRestore   *MenuItem
	quit              *MenuItem

	onActivateRequested          func(active bool, pos image.Point)
	onSecondaryActivateRequested func(pos image.Point)
	onScrollRequested            func(delta int, orientation Orientation)
	onContextMenuRequested       func(menu *Menu, pos image.Point)
	onQuitRequested              func()
	onQuit                       func()
}

// New creates an item, exports it on conn and starts looking for a
// StatusNotifierWatcher.
//
// With a nil conn the item goes straight to the fallback presentation.
// Unless [WithDispatcher] is given, the item gets its own [Loop], which must
// be run with [Item.Run]. New must be called on the dispatcher.
func New(conn *dbus.Conn, cfg Config, opts ...Option) (*Item, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		appName: filepath.Base(os.Args[0]),
	}
	for _, opt := range opts {
		opt(&o)
	}

	item := &Item{
		cfg:                    cfg,
		conn:                   conn,
		dispatch:               o.dispatch,
		log:                    o.logger,
		windows:                o.windows,
		category:               CategoryApplicationStatus,
		status:                 StatusPassive,
		title:                  o.appName,
		windowPos:              noPosition,
		standardActionsEnabled: true,
	}

	item.id = o.appName
	if o.extraID != "" {
		item.id += "_" + o.extraID
	}

	if item.dispatch == nil {
		item.loop = NewLoop()
		item.dispatch = item.loop
	}

	if item.log == nil {
		item.log = slog.Default().With("component", "trayitem")
	}

	item.minimizeRestore = newMenuItem(MenuItemStandard, "&Minimize")
	item.minimizeRestore.iconName = "window-minimize"
	item.minimizeRestore.triggered = item.minimizeRestoreTriggered

	item.quit = newMenuItem(MenuItemStandard, "Quit")
	item.quit.iconName = "application-exit"
	item.quit.triggered = item.maybeQuit

	registrar := o.registrar
	service := ""

	if conn != nil {
		item.dbus = newDBusItem(conn, item.dispatch, item, item.Snapshot)
		if err := item.dbus.export(); err != nil {
			return nil, err
		}
		service = item.dbus.service

		item.exporter = newMenuExporter(conn, item.dispatch)
		if !cfg.DisableMenuExport {
			if err := item.exporter.export(conn); err != nil {
				item.dbus.close()
				return nil, err
			}
		}

		if registrar == nil {
			registrar = NewWatcherClient(conn, cfg.ProbeTimeout)
		}
	}

	switch {
	case o.notifier != nil:
		item.notifier = o.notifier
	case item.dbus != nil:
		item.notifier = item.dbus
	default:
		item.notifier = discardNotifier{}
	}

	item.neg = newNegotiator(cfg, registrar, o.fallback, item.dispatch, item.log, service, item)

	// Default menu with the application title as header.
	menu := NewMenu(item.title)
	menu.AddSection(item.title, "")
	item.SetMenu(menu)

	item.neg.start()

	return item, nil
}

// Run runs the item's own loop until ctx is done. It fails for items created
// with [WithDispatcher].
func (item *Item) Run(ctx context.Context) error {
	if item.loop == nil {
		return fmt.Errorf("run: item uses an external dispatcher")
	}
	return item.loop.Run(ctx)
}

// Post runs fn on the item's dispatcher.
func (item *Item) Post(fn func()) {
	item.dispatch.Post(fn)
}

// Close unregisters the item, closes its menu and fallback surface, and
// releases the associated window. The item cannot be used afterwards.
func (item *Item) Close() error {
	if item.closed {
		return fmt.Errorf("close: %w", ErrClosed)
	}
	item.closed = true

	var errs []error

	if err := item.neg.close(); err != nil {
		errs = append(errs, err)
	}

	if item.menu != nil {
		item.menu.Close()
		item.menu = nil
	}

	item.window = nil

	if item.exporter != nil && !item.cfg.DisableMenuExport {
		item.exporter.unexport(item.conn)
	}

	if item.dbus != nil {
		if err := item.dbus.close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (item *Item) mustOpen() {
	if item.closed {
		panic("trayitem: use of closed Item")
	}
}

// ID returns the unique identifier of the item.
func (item *Item) ID() string { return item.id }

// Service returns the bus name of the item, empty without a bus connection.
func (item *Item) Service() string {
	if item.dbus == nil {
		return ""
	}
	return item.dbus.service
}

// State returns the registration state of the item.
func (item *Item) State() State { return item.neg.state }

// Category returns the category of the item.
func (item *Item) Category() Category { return item.category }

// SetCategory sets the category of the item.
func (item *Item) SetCategory(category Category) {
	item.mustOpen()
	if item.category == category {
		return
	}
	item.category = category
	item.refreshProperties()
}

// Title returns the name that describes the application.
func (item *Item) Title() string { return item.title }

// SetTitle sets the name that describes the application.
func (item *Item) SetTitle(title string) {
	item.mustOpen()
	if item.title == title {
		return
	}
	item.title = title
	item.notifier.NewTitle()
	item.syncSurface()
}

// Status returns the status of the item.
func (item *Item) Status() Status { return item.status }

// SetStatus sets the status of the item.
func (item *Item) SetStatus(status Status) {
	item.mustOpen()
	if item.status == status {
		return
	}
	item.status = status
	item.notifier.NewStatus(status)
	item.syncSurface()
}

// IconName returns the Freedesktop-compliant name of the main icon.
func (item *Item) IconName() string { return item.icon.name }

// SetIconByName sets the main icon by its Freedesktop-compliant name.
func (item *Item) SetIconByName(name string) {
	item.mustOpen()
	if !item.icon.setName(name) {
		return
	}
	item.notifier.NewIcon()
	item.syncSurface()
}

// IconPixmap returns the main icon set by [Item.SetIconByPixmap].
func (item *Item) IconPixmap() Icon { return item.icon.source }

// SetIconByPixmap sets the main icon from a bitmap. It clears the icon name.
func (item *Item) SetIconByPixmap(icon Icon) {
	item.mustOpen()
	if !item.icon.setIcon(icon) {
		return
	}
	item.notifier.NewIcon()
	item.syncSurface()
}

// OverlayIconName returns the name of the icon drawn over the main icon.
func (item *Item) OverlayIconName() string { return item.overlayIcon.name }

// SetOverlayIconByName sets the overlay icon by name.
func (item *Item) SetOverlayIconByName(name string) {
	item.mustOpen()
	if !item.overlayIcon.setName(name) {
		return
	}
	item.notifier.NewOverlayIcon()
	item.syncSurface()
}

// OverlayIconPixmap returns the overlay icon set by
// [Item.SetOverlayIconByPixmap].
func (item *Item) OverlayIconPixmap() Icon { return item.overlayIcon.source }

// SetOverlayIconByPixmap sets the overlay icon from a bitmap.
func (item *Item) SetOverlayIconByPixmap(icon Icon) {
	item.mustOpen()
	if !item.overlayIcon.setIcon(icon) {
		return
	}
	item.notifier.NewOverlayIcon()
	item.syncSurface()
}

// AttentionIconName returns the name of the icon shown while the item needs
// attention.
func (item *Item) AttentionIconName() string { return item.attentionIcon.name }

// SetAttentionIconByName sets the attention icon by name.
func (item *Item) SetAttentionIconByName(name string) {
	item.mustOpen()
	if !item.attentionIcon.setName(name) {
		return
	}
	item.notifier.NewAttentionIcon()
	item.syncSurface()
}

// AttentionIconPixmap returns the attention icon set by
// [Item.SetAttentionIconByPixmap].
func (item *Item) AttentionIconPixmap() Icon { return item.attentionIcon.source }

// SetAttentionIconByPixmap sets the attention icon from a bitmap.
func (item *Item) SetAttentionIconByPixmap(icon Icon) {
	item.mustOpen()
	if !item.attentionIcon.setIcon(icon) {
		return
	}
	item.notifier.NewAttentionIcon()
	item.syncSurface()
}

// AttentionMovieName returns the animation shown while the item needs
// attention.
func (item *Item) AttentionMovieName() string { return item.movieName }

// SetAttentionMovieByName sets an animation, either an icon name or a path,
// that takes precedence over the attention icon.
func (item *Item) SetAttentionMovieByName(name string) {
	item.mustOpen()
	if item.movieName == name {
		return
	}
	item.movieName = name
	item.notifier.NewAttentionIcon()
	item.syncSurface()
}

// SetToolTip sets the whole tooltip with an icon name.
func (item *Item) SetToolTip(iconName, title, subTitle string) {
	item.mustOpen()
	if item.toolTipIcon.name == iconName && item.toolTipTitle == title && item.toolTipSubTitle == subTitle {
		return
	}
	if item.toolTipIcon.name != iconName {
		item.toolTipIcon.name = iconName
		item.toolTipIcon.source = nil
		item.toolTipIcon.wire = nil
	}
	item.toolTipTitle = title
	item.toolTipSubTitle = subTitle
	item.notifier.NewToolTip()
	item.syncSurface()
}

// SetToolTipWithPixmap sets the whole tooltip with a bitmap icon.
func (item *Item) SetToolTipWithPixmap(icon Icon, title, subTitle string) {
	item.mustOpen()
	if item.toolTipIcon.name == "" && sameIcon(item.toolTipIcon.source, icon) &&
		item.toolTipTitle == title && item.toolTipSubTitle == subTitle {
		return
	}
	item.toolTipIcon.name = ""
	item.toolTipIcon.source = icon
	item.toolTipIcon.wire = EncodeIcon(icon)
	item.toolTipTitle = title
	item.toolTipSubTitle = subTitle
	item.notifier.NewToolTip()
	item.syncSurface()
}

// ToolTipIconName returns the name of the tooltip icon.
func (item *Item) ToolTipIconName() string { return item.toolTipIcon.name }

// SetToolTipIconByName sets the tooltip icon by name. It clears the tooltip
// bitmap.
func (item *Item) SetToolTipIconByName(name string) {
	item.mustOpen()
	if !item.toolTipIcon.setName(name) {
		return
	}
	item.notifier.NewToolTip()
	item.syncSurface()
}

// ToolTipIconPixmap returns the tooltip icon set from a bitmap.
func (item *Item) ToolTipIconPixmap() Icon { return item.toolTipIcon.source }

// SetToolTipIconByPixmap sets the tooltip icon from a bitmap. It clears the
// tooltip icon name.
func (item *Item) SetToolTipIconByPixmap(icon Icon) {
	item.mustOpen()
	if !item.toolTipIcon.setIcon(icon) {
		return
	}
	item.notifier.NewToolTip()
	item.syncSurface()
}

// ToolTipTitle returns the title of the tooltip.
func (item *Item) ToolTipTitle() string { return item.toolTipTitle }

// SetToolTipTitle sets the title of the tooltip.
func (item *Item) SetToolTipTitle(title string) {
	item.mustOpen()
	if item.toolTipTitle == title {
		return
	}
	item.toolTipTitle = title
	item.notifier.NewToolTip()
	item.syncSurface()
}

// ToolTipSubTitle returns the text shown below the tooltip title.
func (item *Item) ToolTipSubTitle() string { return item.toolTipSubTitle }

// SetToolTipSubTitle sets the text shown below the tooltip title. It may
// contain basic markup.
func (item *Item) SetToolTipSubTitle(subTitle string) {
	item.mustOpen()
	if item.toolTipSubTitle == subTitle {
		return
	}
	item.toolTipSubTitle = subTitle
	item.notifier.NewToolTip()
	item.syncSurface()
}

// IsMenu reports whether the item only supports the context menu.
func (item *Item) IsMenu() bool { return item.isMenu }

// SetIsMenu tells hosts to show the menu instead of calling Activate.
func (item *Item) SetIsMenu(isMenu bool) {
	item.mustOpen()
	if item.isMenu == isMenu {
		return
	}
	item.isMenu = isMenu
	item.refreshProperties()
}

// ProvidedToken returns the last activation token provided by the host.
func (item *Item) ProvidedToken() string { return item.activationToken }

func (item *Item) provideActivationToken(token string) {
	if item.closed {
		return
	}
	item.activationToken = token
}

// Snapshot returns a copy of the item state.
func (item *Item) Snapshot() Snapshot {
	var windowID uint32
	if item.window != nil {
		windowID = item.window.ID()
	}

	return Snapshot{
		ID:                  item.id,
		Category:            item.category,
		Status:              item.status,
		Title:               item.title,
		WindowID:            windowID,
		IconName:            item.icon.name,
		IconPixmap:          item.icon.wire,
		OverlayIconName:     item.overlayIcon.name,
		OverlayPixmap:       item.overlayIcon.wire,
		AttentionIconName:   item.attentionIcon.name,
		AttentionIconPixmap: item.attentionIcon.wire,
		AttentionMovieName:  item.movieName,
		ToolTip: ToolTip{
			IconName:    item.toolTipIcon.name,
			IconPixmap:  item.toolTipIcon.wire,
			Title:       item.toolTipTitle,
			Description: item.toolTipSubTitle,
		},
		IsMenu:        item.isMenu,
		MenuPath:      item.menuPath,
		IconThemePath: item.cfg.IconThemePath,
	}
}

// Menu returns the context menu of the item.
func (item *Item) Menu() *Menu { return item.menu }

// SetMenu sets the context menu. The item takes ownership of m and closes
// the previous menu unless it is m.
func (item *Item) SetMenu(m *Menu) {
	item.mustOpen()
	if item.menu == m {
		return
	}

	if item.menu != nil {
		item.menu.Close()
	}

	item.menu = m
	item.hasQuit = false
	item.standardSeparator = nil

	if m == nil {
		if item.exporter != nil {
			item.exporter.setMenu(nil)
		}
		if surface := item.neg.surface; surface != nil {
			surface.SetMenu(nil)
		}
		return
	}

	m.onAboutToShow = item.menuAboutToShow
	m.onChange = item.menuChanged

	item.presentMenu()
}

// presentMenu hands the current menu to the active presentation.
func (item *Item) presentMenu() {
	if surface := item.neg.surface; surface != nil {
		surface.SetMenu(item.menu)
		return
	}

	if item.menu == nil {
		return
	}

	if item.cfg.DisableMenuExport {
		item.menuPath = NoMenuPath
	} else {
		item.menuPath = MenuPath
		if item.exporter != nil {
			item.exporter.setMenu(item.menu)
		}
	}

	item.notifier.NewMenu()
}

func (item *Item) menuChanged() {
	if item.exporter != nil && item.exporter.menu == item.menu {
		item.exporter.update()
	}
}

// menuAboutToShow appends the standard actions once and updates the
// minimize/restore label.
func (item *Item) menuAboutToShow() {
	if !item.hasQuit && item.standardActionsEnabled {
		// Standard actions go at the end of the menu.
		item.standardSeparator = item.menu.AddSeparator()
		item.menu.Insert(item.quit)
		item.hasQuit = true
	}

	if item.window != nil && item.hasQuit && !item.menu.Contains(item.minimizeRestore) {
		// Minimize/Restore sits right above Quit.
		item.menu.Remove(item.quit)
		item.menu.Insert(item.minimizeRestore)
		item.menu.Insert(item.quit)
	}

	if item.window != nil {
		if item.checkVisibility(image.Point{}, false) {
			item.minimizeRestore.SetLabel("&Restore")
			item.minimizeRestore.SetIconName("window-restore")
		} else {
			item.minimizeRestore.SetLabel("&Minimize")
			item.minimizeRestore.SetIconName("window-minimize")
		}
	}
}

// StandardActionsEnabled reports whether Minimize/Restore and Quit are
// added to the menu.
func (item *Item) StandardActionsEnabled() bool { return item.standardActionsEnabled }

// SetStandardActionsEnabled enables or disables the standard actions.
func (item *Item) SetStandardActionsEnabled(enabled bool) {
	item.mustOpen()
	if item.standardActionsEnabled == enabled {
		return
	}
	item.standardActionsEnabled = enabled

	if item.menu != nil && !enabled && item.hasQuit {
		item.menu.Remove(item.minimizeRestore)
		item.menu.Remove(item.quit)
		if item.standardSeparator != nil {
			item.menu.Remove(item.standardSeparator)
			item.standardSeparator = nil
		}
		item.hasQuit = false
	}
}

// AssociatedWindow returns the window toggled on activation.
func (item *Item) AssociatedWindow() Window { return item.window }

// SetAssociatedWindow sets the window toggled on activation. The item does
// not take ownership of w. A nil w detaches the current window.
func (item *Item) SetAssociatedWindow(w Window) {
	item.mustOpen()
	if sameValue(item.window, w) {
		return
	}

	if isNilValue(w) {
		item.window = nil
	} else {
		item.window = w
		item.windowPos = noPosition
	}

	if item.window != nil {
		if item.windows != nil {
			if info, err := item.windows.Info(w.ID()); err == nil {
				item.onAllDesktops = info.OnAllDesktops
			}
		}
	} else {
		if item.menu != nil && item.hasQuit {
			item.menu.Remove(item.minimizeRestore)
		}
		item.onAllDesktops = false
	}

	item.refreshProperties()
}

// OnActivateRequested sets callback that runs after an activation. active
// reports whether the associated window was shown (true) or hidden (false).
func (item *Item) OnActivateRequested(callback func(active bool, pos image.Point)) {
	item.onActivateRequested = callback
}

// OnSecondaryActivateRequested sets callback for secondary activation, such as
// a middle click.
func (item *Item) OnSecondaryActivateRequested(callback func(pos image.Point)) {
	item.onSecondaryActivateRequested = callback
}

// OnScrollRequested sets callback for mouse wheel events over the item.
func (item *Item) OnScrollRequested(callback func(delta int, orientation Orientation)) {
	item.onScrollRequested = callback
}

// OnContextMenuRequested sets callback that runs when a host asks the
// application to show the menu itself.
func (item *Item) OnContextMenuRequested(callback func(menu *Menu, pos image.Point)) {
	item.onContextMenuRequested = callback
}

// OnQuitRequested sets callback that runs when the Quit action is
// triggered. Calling [Item.AbortQuit] from it cancels the quit.
func (item *Item) OnQuitRequested(callback func()) {
	item.onQuitRequested = callback
}

// OnQuit sets callback that quits the application.
func (item *Item) OnQuit(callback func()) {
	item.onQuit = callback
}

// AbortQuit cancels the quit being requested.
func (item *Item) AbortQuit() {
	item.quitAborted = true
}

func (item *Item) maybeQuit() {
	if item.onQuitRequested != nil {
		item.onQuitRequested()
	}

	if item.quitAborted {
		item.quitAborted = false
		return
	}

	if item.onQuit != nil {
		item.onQuit()
	}
}

func (item *Item) minimizeRestoreTriggered() {
	pos := image.Point{}
	if surface := item.neg.surface; surface != nil {
		pos = surface.Geometry().Min
	}
	item.Activate(pos)
}

// Activate handles primary activation, typically a left click at pos.
//
// An item that needs attention becomes active. Without an associated window
// the activation is only reported; otherwise the window is shown, raised or
// hidden depending on how visible it currently is.
func (item *Item) Activate(pos image.Point) {
	if item.closed {
		return
	}

	if item.status == StatusNeedsAttention {
		item.status = StatusActive
		item.notifier.NewStatus(item.status)
		item.syncSurface()
	}

	if item.menu != nil && item.menu.Visible() {
		item.menu.Hide()
	}

	if item.window == nil {
		item.emitActivateRequested(true, pos)
		return
	}

	item.checkVisibility(pos, true)
}

// SecondaryActivate handles secondary activation, typically a middle click.
func (item *Item) SecondaryActivate(pos image.Point) {
	if item.closed {
		return
	}
	if item.onSecondaryActivateRequested != nil {
		item.onSecondaryActivateRequested(pos)
	}
}

// Scroll handles a mouse wheel event over the item.
func (item *Item) Scroll(delta int, orientation Orientation) {
	if item.closed {
		return
	}
	if item.onScrollRequested != nil {
		item.onScrollRequested(delta, orientation)
	}
}

// ContextMenu prepares the menu and asks the application to show it at pos.
func (item *Item) ContextMenu(pos image.Point) {
	if item.closed || item.menu == nil {
		return
	}
	item.menu.aboutToShow()
	if item.onContextMenuRequested != nil {
		item.onContextMenuRequested(item.menu, pos)
	}
}

// HideAssociatedWindow hides the associated window, if any.
func (item *Item) HideAssociatedWindow() {
	item.mustOpen()
	if item.window == nil {
		return
	}
	item.showWindow(false)
}

func (item *Item) emitActivateRequested(active bool, pos image.Point) {
	if item.onActivateRequested != nil {
		item.onActivateRequested(active, pos)
	}
}

// checkVisibility decides what activation does to the associated window and
// reports whether the window ends up shown. With perform it also applies the
// decision and reports it through OnActivateRequested.
func (item *Item) checkVisibility(pos image.Point, perform bool) bool {
	decision := decideVisibility(item.window, item.windows)
	if !perform {
		return decision.Shows()
	}

	item.log.Debug("Activating associated window", "decision", decision)

	switch decision {
	case DecisionShow:
		item.showWindow(true)
	case DecisionRaise:
		if err := item.windows.ForceActivate(item.window.ID()); err != nil {
			item.log.Debug("Failed to force window activation", "error", err)
			item.window.Raise()
			item.window.Activate()
		}
	case DecisionActivate:
		item.window.Activate()
	case DecisionHide:
		item.showWindow(false)
	}

	item.emitActivateRequested(decision.Shows(), pos)
	return decision.Shows()
}

// showWindow shows or hides the associated window, keeping its desktop and
// its position across the hide/show cycle.
func (item *Item) showWindow(show bool) {
	w := item.window

	if item.windows != nil {
		if info, err := item.windows.Info(w.ID()); err == nil {
			switch {
			case !show:
				item.onAllDesktops = info.OnAllDesktops
			case item.onAllDesktops:
				item.windows.SetOnAllDesktops(w.ID(), true)
			default:
				item.windows.SetCurrentDesktop(info.Desktop)
			}
		}
	}

	if show {
		if item.windowPos != noPosition {
			w.SetPosition(item.windowPos)
			item.windowPos = noPosition
		}
		w.Show()
		w.Raise()
		w.Activate()
	} else {
		item.windowPos = w.Position()
		w.Hide()
	}
}

// presentationChanged re-presents the menu and state after the fallback
// surface was created or closed.
func (item *Item) presentationChanged() {
	item.presentMenu()
	item.syncSurface()
}

func (item *Item) surfaceHandler() SurfaceHandler {
	return surfaceInput{item: item}
}

func (item *Item) syncSurface() {
	if surface := item.neg.surface; surface != nil {
		surface.Sync(item.Snapshot())
	}
}

func (item *Item) refreshProperties() {
	if r, ok := item.notifier.(propertyRefresher); ok {
		r.refreshProperties()
	}
}

// surfaceInput forwards fallback surface input to the dispatcher.
type surfaceInput struct {
	item *Item
}

func (s surfaceInput) Activate(pos image.Point) {
	s.item.dispatch.Post(func() { s.item.Activate(pos) })
}

func (s surfaceInput) SecondaryActivate(pos image.Point) {
	s.item.dispatch.Post(func() { s.item.SecondaryActivate(pos) })
}

func (s surfaceInput) Scroll(delta int, orientation Orientation) {
	s.item.dispatch.Post(func() { s.item.Scroll(delta, orientation) })
}

func (s surfaceInput) ContextMenu(pos image.Point) {
	s.item.dispatch.Post(func() { s.item.ContextMenu(pos) })
}

func (s surfaceInput) MenuDismissed() {
	// Hide on the next turn so that a clicked entry is triggered first.
	Defer(s.item.dispatch, func() {
		if !s.item.closed && s.item.menu != nil {
			s.item.menu.Hide()
		}
	})
}

type discardNotifier struct{}

func (discardNotifier) NewTitle()         {}
func (discardNotifier) NewIcon()          {}
func (discardNotifier) NewOverlayIcon()   {}
func (discardNotifier) NewAttentionIcon() {}
func (discardNotifier) NewToolTip()       {}
func (discardNotifier) NewStatus(Status)  {}
func (discardNotifier) NewMenu()          {}

// sameValue compares two interface values without panicking on
// non-comparable dynamic types.
func sameValue(a, b any) bool {
	if isNilValue(a) || isNilValue(b) {
		return isNilValue(a) && isNilValue(b)
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
