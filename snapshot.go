package trayitem

import (
	"github.com/godbus/dbus/v5"
)

// ToolTip is the wire form of the item tooltip, (sa(iiay)ss).
type ToolTip struct {
	IconName    string
	IconPixmap  IconSet
	Title       string
	Description string
}

// Snapshot is a copy of the item state handed to presentations.
type Snapshot struct {
	ID       string
	Category Category
	Status   Status
	Title    string
	WindowID uint32

	IconName        string
	IconPixmap      IconSet
	OverlayIconName string
	OverlayPixmap   IconSet

	AttentionIconName   string
	AttentionIconPixmap IconSet
	AttentionMovieName  string

	ToolTip       ToolTip
	IsMenu        bool
	MenuPath      dbus.ObjectPath
	IconThemePath string
}

// LegacyIcon returns what a fallback surface shows: an icon name, a pixmap
// set, or an animation name. Exactly one of them is non-empty unless the
// item has no icon at all.
//
// Items that need attention show the attention movie, then the attention
// icon. Other items show their main icon.
func (s Snapshot) LegacyIcon() (name string, pixmap IconSet, movie string) {
	if s.Status == StatusNeedsAttention {
		switch {
		case s.AttentionMovieName != "":
			return "", nil, s.AttentionMovieName
		case s.AttentionIconName != "":
			return s.AttentionIconName, nil, ""
		default:
			return "", s.AttentionIconPixmap, ""
		}
	}

	if s.IconName != "" {
		return s.IconName, nil, ""
	}

	return "", s.IconPixmap, ""
}
