package trayitem

import (
	"fmt"
	"math"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
)

// ShowMessage shows a desktop notification on behalf of the item. iconName
// is a Freedesktop-compliant icon name. A negative timeout leaves the
// expiration to the notification server.
//
// It returns the notification ID.
func (item *Item) ShowMessage(title, message, iconName string, timeout time.Duration) (uint32, error) {
	item.mustOpen()

	if item.conn == nil {
		return 0, fmt.Errorf("show message: %w", ErrNoBus)
	}

	expire := expireTimeout(timeout)

	hints := map[string]dbus.Variant{}
	if item.cfg.DesktopEntry != "" {
		hints["desktop-entry"] = dbus.MakeVariant(item.cfg.DesktopEntry)
	}

	var id uint32

	err := item.conn.Object(notificationsService, notificationsPath).Call(
		notificationsInterface+".Notify",
		0,
		item.title,
		uint32(0),
		iconName,
		title,
		message,
		[]string{},
		hints,
		expire,
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to show message: %w", err)
	}

	item.log.Debug("Shown message", "id", id, "title", title)

	return id, nil
}

// expireTimeout converts timeout to the expire_timeout argument of Notify in
// milliseconds. Negative timeouts map to -1, long ones saturate.
func expireTimeout(timeout time.Duration) int32 {
	if timeout < 0 {
		return -1
	}
	return int32(min(timeout.Milliseconds(), math.MaxInt32))
}
