package trayitem

import (
	"fmt"
	"image"
	"os"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	StatusNotifierItemInterface = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      = "/StatusNotifierItem"
)

// Notifier is told about every externally visible change of the item. Each
// method is called once per change, never for setters that keep the value.
type Notifier interface {
	NewTitle()
	NewIcon()
	NewOverlayIcon()
	NewAttentionIcon()
	NewToolTip()
	NewStatus(status Status)
	NewMenu()
}

// propertyRefresher is implemented by notifiers that also publish properties
// without a change signal, such as Category and WindowId.
type propertyRefresher interface {
	refreshProperties()
}

// itemInput is the activation input accepted from hosts. Methods run on the
// dispatcher.
type itemInput interface {
	Activate(pos image.Point)
	SecondaryActivate(pos image.Point)
	Scroll(delta int, orientation Orientation)
	ContextMenu(pos image.Point)
	provideActivationToken(token string)
}

var serviceIDs atomic.Uint64

// serviceName returns a unique bus name for an item of this process.
func serviceName() string {
	return fmt.Sprintf("org.kde.StatusNotifierItem-%d-%d", os.Getpid(), serviceIDs.Add(1))
}

// dbusItem exports the item as org.kde.StatusNotifierItem.
//
// Bus methods run on bus goroutines and only post to the dispatcher.
// Notifier methods run on the dispatcher and read state through snapshot.
type dbusItem struct {
	conn     *dbus.Conn
	service  string
	dispatch Dispatcher
	input    itemInput
	snapshot func() Snapshot
	props    *prop.Properties
}

func newDBusItem(conn *dbus.Conn, dispatch Dispatcher, input itemInput, snapshot func() Snapshot) *dbusItem {
	return &dbusItem{
		conn:     conn,
		service:  serviceName(),
		dispatch: dispatch,
		input:    input,
		snapshot: snapshot,
	}
}

// export requests the service name and exports the item object.
func (d *dbusItem) export() error {
	reply, err := d.conn.RequestName(d.service, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name %s: %w", d.service, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", d.service)
	}

	if err := d.conn.Export(d, StatusNotifierItemPath, StatusNotifierItemInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", StatusNotifierItemInterface, err)
	}

	props, err := prop.Export(d.conn, StatusNotifierItemPath, prop.Map{
		StatusNotifierItemInterface: itemProperties(d.snapshot()),
	})
	if err != nil {
		return fmt.Errorf("failed to export %s properties: %w", StatusNotifierItemInterface, err)
	}
	d.props = props

	node := &introspect.Node{
		Name: StatusNotifierItemPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       StatusNotifierItemInterface,
				Methods:    introspect.Methods(d),
				Properties: props.Introspection(StatusNotifierItemInterface),
				Signals: []introspect.Signal{
					{Name: "NewTitle"},
					{Name: "NewIcon"},
					{Name: "NewAttentionIcon"},
					{Name: "NewOverlayIcon"},
					{Name: "NewToolTip"},
					{Name: "NewMenu"},
					{Name: "NewStatus", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
				},
			},
		},
	}

	if err := d.conn.Export(introspect.NewIntrospectable(node), StatusNotifierItemPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection data: %w", err)
	}

	return nil
}

// close releases the service name and removes the object from the bus.
func (d *dbusItem) close() error {
	d.conn.Export(nil, StatusNotifierItemPath, StatusNotifierItemInterface)
	d.conn.Export(nil, StatusNotifierItemPath, "org.freedesktop.DBus.Properties")
	d.conn.Export(nil, StatusNotifierItemPath, "org.freedesktop.DBus.Introspectable")

	if _, err := d.conn.ReleaseName(d.service); err != nil {
		return fmt.Errorf("failed to release name %s: %w", d.service, err)
	}

	return nil
}

func itemProperties(s Snapshot) map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"Category":            readOnly(s.Category.String()),
		"Id":                  readOnly(s.ID),
		"Title":               readOnly(s.Title),
		"Status":              readOnly(s.Status.String()),
		"WindowId":            readOnly(int32(s.WindowID)),
		"IconThemePath":       readOnly(s.IconThemePath),
		"IconName":            readOnly(s.IconName),
		"IconPixmap":          readOnly(wireSet(s.IconPixmap)),
		"OverlayIconName":     readOnly(s.OverlayIconName),
		"OverlayIconPixmap":   readOnly(wireSet(s.OverlayPixmap)),
		"AttentionIconName":   readOnly(s.AttentionIconName),
		"AttentionIconPixmap": readOnly(wireSet(s.AttentionIconPixmap)),
		"AttentionMovieName":  readOnly(s.AttentionMovieName),
		"ToolTip":             readOnly(wireToolTip(s.ToolTip)),
		"ItemIsMenu":          readOnly(s.IsMenu),
		"Menu":                readOnly(s.MenuPath),
	}
}

// readOnly returns a property that hosts learn about through the item's own
// change signals rather than PropertiesChanged.
func readOnly[T any](v T) *prop.Prop {
	return &prop.Prop{
		Value:    v,
		Writable: false,
		Emit:     prop.EmitFalse,
	}
}

func wireSet(s IconSet) IconSet {
	if s == nil {
		return IconSet{}
	}
	return s
}

func wireToolTip(t ToolTip) ToolTip {
	t.IconPixmap = wireSet(t.IconPixmap)
	return t
}

func (d *dbusItem) set(name string, value any) {
	if d.props == nil {
		return
	}
	d.props.SetMust(StatusNotifierItemInterface, name, value)
}

func (d *dbusItem) emit(signal string, values ...any) {
	d.conn.Emit(StatusNotifierItemPath, StatusNotifierItemInterface+"."+signal, values...)
}

func (d *dbusItem) NewTitle() {
	d.set("Title", d.snapshot().Title)
	d.emit("NewTitle")
}

func (d *dbusItem) NewIcon() {
	s := d.snapshot()
	d.set("IconName", s.IconName)
	d.set("IconPixmap", wireSet(s.IconPixmap))
	d.emit("NewIcon")
}

func (d *dbusItem) NewOverlayIcon() {
	s := d.snapshot()
	d.set("OverlayIconName", s.OverlayIconName)
	d.set("OverlayIconPixmap", wireSet(s.OverlayPixmap))
	d.emit("NewOverlayIcon")
}

func (d *dbusItem) NewAttentionIcon() {
	s := d.snapshot()
	d.set("AttentionIconName", s.AttentionIconName)
	d.set("AttentionIconPixmap", wireSet(s.AttentionIconPixmap))
	d.set("AttentionMovieName", s.AttentionMovieName)
	d.emit("NewAttentionIcon")
}

func (d *dbusItem) NewToolTip() {
	d.set("ToolTip", wireToolTip(d.snapshot().ToolTip))
	d.emit("NewToolTip")
}

func (d *dbusItem) NewStatus(status Status) {
	d.set("Status", status.String())
	d.emit("NewStatus", status.String())
}

func (d *dbusItem) NewMenu() {
	d.set("Menu", d.snapshot().MenuPath)
	d.emit("NewMenu")
}

func (d *dbusItem) refreshProperties() {
	s := d.snapshot()
	d.set("Category", s.Category.String())
	d.set("WindowId", int32(s.WindowID))
	d.set("ItemIsMenu", s.IsMenu)
	d.set("IconThemePath", s.IconThemePath)
}

// Activate asks the item for activation, typically on a left click. x and y
// are screen coordinates where eventual windows could be shown.
func (d *dbusItem) Activate(x, y int32) *dbus.Error {
	d.dispatch.Post(func() { d.input.Activate(image.Pt(int(x), int(y))) })
	return nil
}

// SecondaryActivate is a less important form of activation, typically a
// middle click.
func (d *dbusItem) SecondaryActivate(x, y int32) *dbus.Error {
	d.dispatch.Post(func() { d.input.SecondaryActivate(image.Pt(int(x), int(y))) })
	return nil
}

// ContextMenu asks the item to show its context menu at x and y.
func (d *dbusItem) ContextMenu(x, y int32) *dbus.Error {
	d.dispatch.Post(func() { d.input.ContextMenu(image.Pt(int(x), int(y))) })
	return nil
}

// Scroll delivers a mouse wheel event. Valid orientations are "horizontal"
// and "vertical".
func (d *dbusItem) Scroll(delta int32, orientation string) *dbus.Error {
	d.dispatch.Post(func() { d.input.Scroll(int(delta), parseOrientation(orientation)) })
	return nil
}

// ProvideXdgActivationToken hands over a token the application can use to
// activate its windows on Wayland.
func (d *dbusItem) ProvideXdgActivationToken(token string) *dbus.Error {
	d.dispatch.Post(func() { d.input.provideActivationToken(token) })
	return nil
}
