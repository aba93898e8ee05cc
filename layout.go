package trayitem

import (
	"maps"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
)

// LayoutNode is an immutable snapshot of a menu entry as exported over
// com.canonical.dbusmenu.
type LayoutNode struct {
	ID         int32
	Properties map[string]any
	Children   []*LayoutNode
}

// layoutStruct is the D-Bus form of a layout node, (ia{sv}av).
type layoutStruct struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// groupProperties is an element of GetGroupProperties and
// ItemsPropertiesUpdated, (ia{sv}).
type groupProperties struct {
	ID         int32
	Properties map[string]dbus.Variant
}

// newLayout snapshots menu. The root node has ID 0.
func newLayout(menu *Menu) *LayoutNode {
	root := &LayoutNode{
		ID: 0,
		Properties: map[string]any{
			"children-display": "submenu",
		},
	}
	if menu != nil {
		root.Children = layoutChildren(menu)
	}
	return root
}

func layoutChildren(menu *Menu) []*LayoutNode {
	children := make([]*LayoutNode, 0, len(menu.items))
	for _, it := range menu.items {
		children = append(children, layoutItem(it))
	}
	return children
}

func layoutItem(it *MenuItem) *LayoutNode {
	props := map[string]any{}

	switch it.kind {
	case MenuItemSeparator:
		props["type"] = "separator"
	case MenuItemSection:
		props["label"] = mnemonicLabel(it.label)
		props["enabled"] = false
		props["x-kde-title"] = true
	default:
		props["label"] = mnemonicLabel(it.label)
		if !it.enabled {
			props["enabled"] = false
		}
	}

	if it.iconName != "" {
		props["icon-name"] = it.iconName
	}

	if !it.visible {
		props["visible"] = false
	}

	node := &LayoutNode{
		ID:         it.id,
		Properties: props,
	}

	if it.submenu != nil {
		props["children-display"] = "submenu"
		node.Children = layoutChildren(it.submenu)
	}

	return node
}

// mnemonicLabel converts '&' accelerator markers to the '_' markers used by
// dbusmenu. A literal '_' is doubled and "&&" becomes '&'.
func mnemonicLabel(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	for i := 0; i < len(label); i++ {
		switch c := label[i]; c {
		case '_':
			b.WriteString("__")
		case '&':
			if i+1 < len(label) && label[i+1] == '&' {
				b.WriteByte('&')
				i++
			} else {
				b.WriteByte('_')
			}
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// find returns the node with the given ID.
func (n *LayoutNode) find(id int32) *LayoutNode {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.find(id); found != nil {
			return found
		}
	}
	return nil
}

// filteredProperties returns properties of the node restricted to names.
// Empty names select all properties.
func (n *LayoutNode) filteredProperties(names []string) map[string]dbus.Variant {
	props := make(map[string]dbus.Variant, len(n.Properties))
	for _, key := range slices.Sorted(maps.Keys(n.Properties)) {
		if len(names) > 0 && !slices.Contains(names, key) {
			continue
		}
		props[key] = dbus.MakeVariant(n.Properties[key])
	}
	return props
}

// toDBus converts the node to its wire form.
//
// depth limits the recursion: -1 delivers all levels, 0 delivers no
// children.
func (n *LayoutNode) toDBus(depth int, names []string) layoutStruct {
	out := layoutStruct{
		ID:         n.ID,
		Properties: n.filteredProperties(names),
		Children:   []dbus.Variant{},
	}

	if depth == 0 {
		return out
	}

	for _, child := range n.Children {
		out.Children = append(out.Children, dbus.MakeVariant(child.toDBus(depth-1, names)))
	}

	return out
}
