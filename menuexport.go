package trayitem

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	MenuInterface = "com.canonical.dbusmenu"

	// MenuPath is where the item menu is exported.
	MenuPath dbus.ObjectPath = "/MenuBar"

	// NoMenuPath is advertised when menu export is disabled. Hosts recognize
	// it and call ContextMenu instead of importing the menu.
	NoMenuPath dbus.ObjectPath = "/NO_DBUSMENU"

	menuVersion = 3
)

// signalEmitter emits D-Bus signals. It is implemented by [dbus.Conn].
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// menuEvent is an element of the EventGroup argument, (isvu).
type menuEvent struct {
	ID        int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}

// menuExporter implements com.canonical.dbusmenu for the item menu.
//
// D-Bus methods run on bus goroutines. They read an immutable layout snapshot
// under mu and post everything that touches the menu to the dispatcher.
type menuExporter struct {
	emitter  signalEmitter
	dispatch Dispatcher
	path     dbus.ObjectPath

	mu       sync.RWMutex
	revision uint32
	layout   *LayoutNode

	// Accessed on the dispatcher only.
	menu *Menu
}

func newMenuExporter(emitter signalEmitter, dispatch Dispatcher) *menuExporter {
	return &menuExporter{
		emitter:  emitter,
		dispatch: dispatch,
		path:     MenuPath,
		layout:   newLayout(nil),
	}
}

// export publishes the exporter on conn.
func (e *menuExporter) export(conn *dbus.Conn) error {
	if err := conn.Export(e, e.path, MenuInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", MenuInterface, err)
	}

	props, err := prop.Export(conn, e.path, prop.Map{
		MenuInterface: map[string]*prop.Prop{
			"Version":       {Value: uint32(menuVersion), Emit: prop.EmitFalse},
			"TextDirection": {Value: "ltr", Emit: prop.EmitFalse},
			"Status":        {Value: "normal", Emit: prop.EmitFalse},
			"IconThemePath": {Value: []string{}, Emit: prop.EmitFalse},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to export %s properties: %w", MenuInterface, err)
	}

	node := &introspect.Node{
		Name: string(e.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       MenuInterface,
				Methods:    introspect.Methods(e),
				Properties: props.Introspection(MenuInterface),
				Signals: []introspect.Signal{
					{Name: "LayoutUpdated", Args: []introspect.Arg{
						{Name: "revision", Type: "u"},
						{Name: "parent", Type: "i"},
					}},
					{Name: "ItemsPropertiesUpdated", Args: []introspect.Arg{
						{Name: "updatedProps", Type: "a(ia{sv})"},
						{Name: "removedProps", Type: "a(ias)"},
					}},
					{Name: "ItemActivationRequested", Args: []introspect.Arg{
						{Name: "id", Type: "i"},
						{Name: "timestamp", Type: "u"},
					}},
				},
			},
		},
	}

	if err := conn.Export(introspect.NewIntrospectable(node), e.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection data: %w", err)
	}

	return nil
}

// unexport removes the exporter from conn.
func (e *menuExporter) unexport(conn *dbus.Conn) {
	conn.Export(nil, e.path, MenuInterface)
	conn.Export(nil, e.path, "org.freedesktop.DBus.Properties")
	conn.Export(nil, e.path, "org.freedesktop.DBus.Introspectable")
}

// setMenu switches the exported menu. Must run on the dispatcher.
func (e *menuExporter) setMenu(m *Menu) {
	e.menu = m
	e.update()
}

// update snapshots the menu and emits LayoutUpdated. Must run on the
// dispatcher.
func (e *menuExporter) update() {
	layout := newLayout(e.menu)

	e.mu.Lock()
	e.revision++
	e.layout = layout
	revision := e.revision
	e.mu.Unlock()

	if e.emitter != nil {
		e.emitter.Emit(e.path, MenuInterface+".LayoutUpdated", revision, int32(0))
	}
}

func (e *menuExporter) snapshot() (uint32, *LayoutNode) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision, e.layout
}

// GetLayout provides the layout and properties of the entries below
// parentID.
func (e *menuExporter) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, layoutStruct, *dbus.Error) {
	revision, layout := e.snapshot()

	node := layout.find(parentID)
	if node == nil {
		return 0, layoutStruct{}, unknownMenuItem(parentID)
	}

	return revision, node.toDBus(int(recursionDepth), propertyNames), nil
}

// GetGroupProperties returns properties of several entries at once. Unknown
// IDs are skipped.
func (e *menuExporter) GetGroupProperties(ids []int32, propertyNames []string) ([]groupProperties, *dbus.Error) {
	_, layout := e.snapshot()

	result := make([]groupProperties, 0, len(ids))
	for _, id := range ids {
		node := layout.find(id)
		if node == nil {
			continue
		}
		result = append(result, groupProperties{
			ID:         id,
			Properties: node.filteredProperties(propertyNames),
		})
	}

	return result, nil
}

// GetProperty returns a single property of an entry.
func (e *menuExporter) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	_, layout := e.snapshot()

	node := layout.find(id)
	if node == nil {
		return dbus.Variant{}, unknownMenuItem(id)
	}

	value, ok := node.Properties[name]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []any{"unknown property " + name})
	}

	return dbus.MakeVariant(value), nil
}

// Event is called by the host when something happens to an entry.
//
// Possible values for eventID are clicked, hovered, opened and closed.
func (e *menuExporter) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	_, layout := e.snapshot()
	if layout.find(id) == nil {
		return unknownMenuItem(id)
	}

	e.dispatch.Post(func() { e.handleEvent(id, eventID) })
	return nil
}

// EventGroup delivers several events. It returns IDs that were not found.
func (e *menuExporter) EventGroup(events []menuEvent) ([]int32, *dbus.Error) {
	_, layout := e.snapshot()

	notFound := []int32{}
	for _, ev := range events {
		if layout.find(ev.ID) == nil {
			notFound = append(notFound, ev.ID)
			continue
		}
		id, eventID := ev.ID, ev.EventID
		e.dispatch.Post(func() { e.handleEvent(id, eventID) })
	}

	return notFound, nil
}

// AboutToShow is called by the host before the entry's submenu is shown.
func (e *menuExporter) AboutToShow(id int32) (bool, *dbus.Error) {
	_, layout := e.snapshot()
	if layout.find(id) == nil {
		return false, unknownMenuItem(id)
	}

	if id == 0 {
		e.dispatch.Post(e.rootAboutToShow)
	}

	// Changes made while preparing the menu are announced with LayoutUpdated.
	return false, nil
}

// AboutToShowGroup is the batched form of AboutToShow.
func (e *menuExporter) AboutToShowGroup(ids []int32) ([]int32, []int32, *dbus.Error) {
	_, layout := e.snapshot()

	notFound := []int32{}
	for _, id := range ids {
		if layout.find(id) == nil {
			notFound = append(notFound, id)
			continue
		}
		if id == 0 {
			e.dispatch.Post(e.rootAboutToShow)
		}
	}

	return []int32{}, notFound, nil
}

func (e *menuExporter) rootAboutToShow() {
	if e.menu != nil && !e.menu.closed {
		e.menu.aboutToShow()
	}
}

// handleEvent runs on the dispatcher.
func (e *menuExporter) handleEvent(id int32, eventID string) {
	if e.menu == nil || e.menu.closed {
		return
	}

	switch eventID {
	case "clicked":
		if it := e.menu.find(id); it != nil {
			e.menu.Hide()
			it.Trigger()
		}
	case "opened":
		if id == 0 {
			e.menu.aboutToShow()
		}
	case "closed":
		if id == 0 {
			e.menu.Hide()
		}
	}
}

func unknownMenuItem(id int32) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []any{fmt.Sprintf("unknown menu item %d", id)})
}
