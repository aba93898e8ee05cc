package trayitem

import (
	"slices"
	"sync/atomic"
)

// menuItemIDs hands out layout node IDs. Zero is reserved for the root.
var menuItemIDs atomic.Int32

// MenuItemKind is the kind of a [MenuItem].
type MenuItemKind int

const (
	MenuItemStandard MenuItemKind = iota
	MenuItemSeparator

	// MenuItemSection is a disabled header entry that titles the items below.
	MenuItemSection
)

// MenuItem is an entry of a [Menu].
type MenuItem struct {
	id        int32
	kind      MenuItemKind
	label     string
	iconName  string
	enabled   bool
	visible   bool
	submenu   *Menu
	triggered func()
	owner     *Menu
}

func newMenuItem(kind MenuItemKind, label string) *MenuItem {
	return &MenuItem{
		id:      menuItemIDs.Add(1),
		kind:    kind,
		label:   label,
		enabled: kind != MenuItemSection,
		visible: true,
	}
}

// ID returns the layout node ID of the entry.
func (it *MenuItem) ID() int32 { return it.id }

// Kind returns the kind of the entry.
func (it *MenuItem) Kind() MenuItemKind { return it.kind }

// Label returns the label. An ampersand marks the access key.
func (it *MenuItem) Label() string { return it.label }

// IconName returns the Freedesktop-compliant name of the entry icon.
func (it *MenuItem) IconName() string { return it.iconName }

// Enabled reports whether the entry can be clicked.
func (it *MenuItem) Enabled() bool { return it.enabled }

// Visible reports whether the entry is shown.
func (it *MenuItem) Visible() bool { return it.visible }

// Submenu returns the submenu opened by the entry, if any.
func (it *MenuItem) Submenu() *Menu { return it.submenu }

// SetLabel sets the label. An ampersand marks the access key and "&&" is a
// literal ampersand.
func (it *MenuItem) SetLabel(label string) {
	if it.label == label {
		return
	}
	it.label = label
	it.changed()
}

// SetIconName sets the entry icon by name.
func (it *MenuItem) SetIconName(name string) {
	if it.iconName == name {
		return
	}
	it.iconName = name
	it.changed()
}

// SetEnabled enables or disables the entry.
func (it *MenuItem) SetEnabled(enabled bool) {
	if it.enabled == enabled {
		return
	}
	it.enabled = enabled
	it.changed()
}

// SetVisible shows or hides the entry.
func (it *MenuItem) SetVisible(visible bool) {
	if it.visible == visible {
		return
	}
	it.visible = visible
	it.changed()
}

// OnTriggered sets callback that runs when the entry is clicked.
func (it *MenuItem) OnTriggered(callback func()) {
	it.triggered = callback
}

// Trigger runs the entry's callback as if it was clicked. Disabled entries
// are ignored.
func (it *MenuItem) Trigger() {
	if !it.enabled || it.triggered == nil {
		return
	}
	it.triggered()
}

func (it *MenuItem) changed() {
	if it.owner != nil {
		it.owner.changed()
	}
}

// Menu is the context menu of an item.
//
// Once handed to [Item.SetMenu], the menu is owned by the item and is closed
// when replaced or when the item is closed.
type Menu struct {
	title   string
	items   []*MenuItem
	parent  *Menu
	visible bool
	closed  bool

	onChange      func()
	onAboutToShow func()
}

// NewMenu returns an empty menu.
func NewMenu(title string) *Menu {
	return &Menu{title: title}
}

// Title returns the title of the menu, used as label of its submenu entry.
func (m *Menu) Title() string { return m.title }

// SetTitle sets the title of the menu.
func (m *Menu) SetTitle(title string) {
	if m.title == title {
		return
	}
	m.title = title
	m.changed()
}

// Items returns entries of the menu.
func (m *Menu) Items() []*MenuItem {
	return slices.Clone(m.items)
}

// AddItem appends a standard entry.
func (m *Menu) AddItem(label string, triggered func()) *MenuItem {
	it := newMenuItem(MenuItemStandard, label)
	it.triggered = triggered
	return m.append(it)
}

// AddSeparator appends a separator.
func (m *Menu) AddSeparator() *MenuItem {
	return m.append(newMenuItem(MenuItemSeparator, ""))
}

// AddSection appends a header entry.
func (m *Menu) AddSection(label, iconName string) *MenuItem {
	it := newMenuItem(MenuItemSection, label)
	it.iconName = iconName
	return m.append(it)
}

// AddSubmenu appends an entry that opens sub.
func (m *Menu) AddSubmenu(sub *Menu) *MenuItem {
	m.mustOpen()
	it := newMenuItem(MenuItemStandard, sub.title)
	it.submenu = sub
	sub.parent = m
	return m.append(it)
}

// Insert adds it to the menu. Entries already in the menu are left as is.
func (m *Menu) Insert(it *MenuItem) {
	if it.owner == m {
		return
	}
	if it.owner != nil {
		it.owner.Remove(it)
	}
	m.append(it)
}

// Remove removes it from the menu. It reports whether it was present.
func (m *Menu) Remove(it *MenuItem) bool {
	idx := slices.Index(m.items, it)
	if idx < 0 {
		return false
	}
	m.items = slices.Delete(m.items, idx, idx+1)
	it.owner = nil
	m.changed()
	return true
}

// Contains reports whether it is an entry of the menu.
func (m *Menu) Contains(it *MenuItem) bool {
	return slices.Contains(m.items, it)
}

// Visible reports whether the menu is currently shown.
func (m *Menu) Visible() bool { return m.visible }

// Hide marks the menu as dismissed.
func (m *Menu) Hide() {
	m.visible = false
}

// Closed reports whether the menu has been closed.
func (m *Menu) Closed() bool { return m.closed }

// Close releases the menu and its submenus. Closing a menu twice is a
// programming error and panics.
func (m *Menu) Close() {
	if m.closed {
		panic("trayitem: menu closed twice")
	}
	m.closed = true
	m.visible = false

	for _, it := range m.items {
		if it.submenu != nil && !it.submenu.closed {
			it.submenu.Close()
		}
	}

	m.onChange = nil
	m.onAboutToShow = nil
}

// find returns the entry with the given ID in m or its submenus.
func (m *Menu) find(id int32) *MenuItem {
	for _, it := range m.items {
		if it.id == id {
			return it
		}
		if it.submenu != nil {
			if found := it.submenu.find(id); found != nil {
				return found
			}
		}
	}
	return nil
}

// aboutToShow runs before the menu is presented to the user.
func (m *Menu) aboutToShow() {
	if m.onAboutToShow != nil {
		m.onAboutToShow()
	}
	m.visible = true
}

func (m *Menu) root() *Menu {
	for m.parent != nil {
		m = m.parent
	}
	return m
}

func (m *Menu) changed() {
	root := m.root()
	if root.onChange != nil {
		root.onChange()
	}
}

func (m *Menu) append(it *MenuItem) *MenuItem {
	m.mustOpen()
	it.owner = m
	m.items = append(m.items, it)
	m.changed()
	return it
}

func (m *Menu) mustOpen() {
	if m.closed {
		panic("trayitem: use of closed menu")
	}
}
