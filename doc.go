// Package trayitem publishes an application's presence in the system tray.
// It implements the application side of the [StatusNotifierItem]
// specification and falls back to a legacy tray icon when no
// StatusNotifierWatcher is available.
//
// # Usage
//
// An application creates one [Item] per tray presence:
//   - [Item] holds the icon, tooltip, status and menu and notifies the
//     active presentation whenever one of them changes.
//   - The item registers itself with org.kde.StatusNotifierWatcher. When the
//     watcher is missing, speaks another protocol version or disappears, the
//     item switches to a [Surface] created by a [FallbackProvider], and
//     switches back when the watcher reappears.
//   - Activation toggles the associated [Window]: it is shown when hidden,
//     raised when obscured by another window, and hidden otherwise.
//
// All item state is owned by a single [Dispatcher]. Methods of [Item] must be
// called from functions running on it; bus and X11 events are posted there.
//
// In addition to the base specification, package trayitem exports the item
// menu over com.canonical.dbusmenu.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package trayitem
