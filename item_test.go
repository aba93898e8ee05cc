package trayitem

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ID(t *testing.T) {
	env := newTestItem(t, testEnv{})
	assert.Equal(t, "app", env.item.ID())
	assert.Equal(t, "app", env.item.Title())

	env = newTestItem(t, testEnv{}, WithExtraID("2"))
	assert.Equal(t, "app_2", env.item.ID())
	assert.Equal(t, "app", env.item.Title())
}

func TestNew_Defaults(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	assert.Equal(t, CategoryApplicationStatus, item.Category())
	assert.Equal(t, StatusPassive, item.Status())
	assert.True(t, item.StandardActionsEnabled())
	assert.Nil(t, item.AssociatedWindow())
	assert.Equal(t, StateFallback, item.State(), "watcher is unreachable")

	menu := item.Menu()
	require.NotNil(t, menu)
	require.Len(t, menu.Items(), 1)
	assert.Equal(t, MenuItemSection, menu.Items()[0].Kind())
	assert.Equal(t, "app", menu.Items()[0].Label())

	assert.Equal(t, MenuPath, item.Snapshot().MenuPath)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProbeTimeout = -1

	_, err := New(nil, cfg, WithDispatcher(&manualDispatcher{}), WithLogger(discardLogger()))
	assert.Error(t, err)
}

func TestNew_DisableMenuExport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableMenuExport = true

	item, err := New(nil, cfg,
		WithAppName("app"),
		WithDispatcher(&manualDispatcher{}),
		WithRegistrar(&fakeRegistrar{}),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	assert.Equal(t, NoMenuPath, item.Snapshot().MenuPath)
}

func TestItem_SettersNotifyOnce(t *testing.T) {
	icon := NewImageIcon(solidImage(image.Pt(16, 16), color.White))

	tests := []struct {
		name   string
		signal string
		set    func(item *Item)
	}{
		{"title", "NewTitle", func(item *Item) { item.SetTitle("Mail") }},
		{"status", "NewStatus", func(item *Item) { item.SetStatus(StatusActive) }},
		{"icon name", "NewIcon", func(item *Item) { item.SetIconByName("mail") }},
		{"icon pixmap", "NewIcon", func(item *Item) { item.SetIconByPixmap(icon) }},
		{"overlay name", "NewOverlayIcon", func(item *Item) { item.SetOverlayIconByName("emblem") }},
		{"overlay pixmap", "NewOverlayIcon", func(item *Item) { item.SetOverlayIconByPixmap(icon) }},
		{"attention name", "NewAttentionIcon", func(item *Item) { item.SetAttentionIconByName("mail-unread") }},
		{"attention pixmap", "NewAttentionIcon", func(item *Item) { item.SetAttentionIconByPixmap(icon) }},
		{"attention movie", "NewAttentionIcon", func(item *Item) { item.SetAttentionMovieByName("/tmp/blink.gif") }},
		{"tooltip", "NewToolTip", func(item *Item) { item.SetToolTip("mail", "Mail", "3 unread") }},
		{"tooltip pixmap", "NewToolTip", func(item *Item) { item.SetToolTipWithPixmap(icon, "Mail", "") }},
		{"tooltip icon name", "NewToolTip", func(item *Item) { item.SetToolTipIconByName("mail") }},
		{"tooltip icon pixmap", "NewToolTip", func(item *Item) { item.SetToolTipIconByPixmap(icon) }},
		{"tooltip title", "NewToolTip", func(item *Item) { item.SetToolTipTitle("Mail") }},
		{"tooltip subtitle", "NewToolTip", func(item *Item) { item.SetToolTipSubTitle("3 unread") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestItem(t, testEnv{})

			tt.set(env.item)
			assert.Equal(t, 1, env.notifier.counts[tt.signal])
			assert.Equal(t, 1, env.notifier.total())

			tt.set(env.item)
			assert.Equal(t, 1, env.notifier.total(), "same value must not notify")
		})
	}
}

func TestItem_PropertySetters(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	item.SetCategory(CategoryHardware)
	item.SetCategory(CategoryHardware)
	item.SetIsMenu(true)
	item.SetIsMenu(true)

	assert.Equal(t, CategoryHardware, item.Category())
	assert.True(t, item.IsMenu())
	assert.Equal(t, 2, env.notifier.refreshes)
	assert.Zero(t, env.notifier.total())

	s := item.Snapshot()
	assert.Equal(t, CategoryHardware, s.Category)
	assert.True(t, s.IsMenu)
}

func TestItem_StatusSequence(t *testing.T) {
	env := newTestItem(t, testEnv{})

	env.item.SetStatus(StatusActive)
	env.item.SetStatus(StatusActive)
	env.item.SetStatus(StatusNeedsAttention)

	assert.Equal(t, []Status{StatusActive, StatusNeedsAttention}, env.notifier.statuses)
}

func TestItem_IconNameAndPixmapExclusive(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	icon := NewImageIcon(solidImage(image.Pt(16, 16), color.White))

	item.SetIconByName("mail")
	item.SetIconByPixmap(icon)

	assert.Empty(t, item.IconName())
	assert.Len(t, item.Snapshot().IconPixmap, 1)

	item.SetIconByName("mail")
	assert.Equal(t, "mail", item.IconName())
	assert.Empty(t, item.Snapshot().IconPixmap)
	assert.Nil(t, item.IconPixmap())
	assert.Equal(t, 3, env.notifier.counts["NewIcon"])

	item.SetIconByName("")
	item.SetIconByPixmap(icon)
	assert.Same(t, icon, item.IconPixmap())
	assert.Len(t, item.Snapshot().IconPixmap, 1, "bitmap can be set again after the name is cleared")
	assert.Equal(t, 5, env.notifier.counts["NewIcon"])
}

func TestItem_ToolTipIconExclusive(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	icon := NewImageIcon(solidImage(image.Pt(16, 16), color.White))

	item.SetToolTipWithPixmap(icon, "Mail", "")
	assert.Len(t, item.Snapshot().ToolTip.IconPixmap, 1)

	item.SetToolTip("mail", "Mail", "")
	assert.Nil(t, item.ToolTipIconPixmap())
	assert.Empty(t, item.Snapshot().ToolTip.IconPixmap)

	item.SetToolTip("", "Mail", "")
	item.SetToolTipWithPixmap(icon, "Mail", "")
	assert.Same(t, icon, item.ToolTipIconPixmap())
	assert.Len(t, item.Snapshot().ToolTip.IconPixmap, 1)
	assert.Equal(t, 4, env.notifier.counts["NewToolTip"])
}

func TestItem_ToolTip(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	item.SetToolTip("mail", "Mail", "3 unread")
	assert.Equal(t, "mail", item.ToolTipIconName())
	assert.Equal(t, "Mail", item.ToolTipTitle())
	assert.Equal(t, "3 unread", item.ToolTipSubTitle())

	item.SetToolTipSubTitle("4 unread")
	assert.Equal(t, 2, env.notifier.counts["NewToolTip"])

	tip := item.Snapshot().ToolTip
	assert.Equal(t, ToolTip{IconName: "mail", Title: "Mail", Description: "4 unread"}, tip)
}

func TestItem_ActivateWithoutWindow(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	var active []bool
	var positions []image.Point
	item.OnActivateRequested(func(a bool, pos image.Point) {
		active = append(active, a)
		positions = append(positions, pos)
	})

	item.SetStatus(StatusNeedsAttention)
	env.notifier.reset()

	item.Activate(image.Pt(5, 6))

	assert.Equal(t, StatusActive, item.Status())
	assert.Equal(t, []Status{StatusActive}, env.notifier.statuses)
	assert.Equal(t, []bool{true}, active)
	assert.Equal(t, []image.Point{{5, 6}}, positions)

	item.Activate(image.Pt(5, 6))
	assert.Len(t, env.notifier.statuses, 1, "active status is kept")
}

func TestItem_ActivateHidesMenu(t *testing.T) {
	env := newTestItem(t, testEnv{})

	env.item.Menu().aboutToShow()
	require.True(t, env.item.Menu().Visible())

	env.item.Activate(image.Point{})
	assert.False(t, env.item.Menu().Visible())
}

func TestItem_ActivateTogglesWindow(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	w := shownWindow()
	w.geometry = image.Rect(10, 20, 410, 320)
	item.SetAssociatedWindow(w)
	assert.Equal(t, uint32(1), item.Snapshot().WindowID)

	var active []bool
	item.OnActivateRequested(func(a bool, _ image.Point) { active = append(active, a) })

	item.Activate(image.Point{})
	assert.Equal(t, []string{"Hide"}, w.calls)
	assert.False(t, w.visible)

	w.calls = nil
	item.Activate(image.Point{})
	assert.Equal(t, []string{"SetPosition", "Show", "Raise", "Activate"}, w.calls)
	assert.Equal(t, []image.Point{{10, 20}}, w.positions, "position is restored")
	assert.Equal(t, image.Pt(10, 20), w.Position())

	assert.Equal(t, []bool{false, true}, active)
}

func TestItem_ActivateRaisesCoveredWindow(t *testing.T) {
	query := queryWith(targetInfo(), coveringInfo(2))
	env := newTestItem(t, testEnv{}, WithWindowQuery(query))

	w := shownWindow()
	env.item.SetAssociatedWindow(w)

	var active []bool
	env.item.OnActivateRequested(func(a bool, _ image.Point) { active = append(active, a) })

	env.item.Activate(image.Point{})

	assert.Equal(t, []uint32{1}, query.forced)
	assert.Empty(t, w.calls)
	assert.Equal(t, []bool{true}, active)
}

func TestItem_ActivateSwitchesDesktop(t *testing.T) {
	target := targetInfo()
	target.OnCurrentDesktop = false
	target.Desktop = 3
	query := queryWith(target)

	env := newTestItem(t, testEnv{}, WithWindowQuery(query))
	w := shownWindow()
	env.item.SetAssociatedWindow(w)

	env.item.Activate(image.Point{})
	assert.Equal(t, []string{"Activate"}, w.calls)
}

func TestItem_HideShowKeepsDesktop(t *testing.T) {
	target := targetInfo()
	target.Desktop = 2
	query := queryWith(target)

	env := newTestItem(t, testEnv{}, WithWindowQuery(query))
	w := shownWindow()
	env.item.SetAssociatedWindow(w)

	env.item.HideAssociatedWindow()
	assert.Equal(t, []string{"Hide"}, w.calls)

	env.item.Activate(image.Point{})
	assert.Equal(t, []int{2}, query.desktops)
	assert.Empty(t, query.onAllCalls)

	// Sticky windows stay on all desktops.
	target.OnAllDesktops = true
	query.windows[1] = target
	env.item.HideAssociatedWindow()
	env.item.Activate(image.Point{})
	assert.Equal(t, []bool{true}, query.onAllCalls)
}

func TestItem_SetAssociatedWindow(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	w := shownWindow()

	item.SetAssociatedWindow(w)
	item.SetAssociatedWindow(w)
	assert.Equal(t, 1, env.notifier.refreshes)

	item.Menu().aboutToShow()
	require.True(t, item.Menu().Contains(item.minimizeRestore))

	item.SetAssociatedWindow(nil)
	assert.Nil(t, item.AssociatedWindow())
	assert.False(t, item.Menu().Contains(item.minimizeRestore))
	assert.True(t, item.Menu().Contains(item.quit))
	assert.Zero(t, item.Snapshot().WindowID)
}

func TestItem_StandardActions(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	menu := item.Menu()

	menu.aboutToShow()
	menu.aboutToShow()

	items := menu.Items()
	require.Len(t, items, 3)
	assert.Equal(t, MenuItemSection, items[0].Kind())
	assert.Equal(t, MenuItemSeparator, items[1].Kind())
	assert.Same(t, item.quit, items[2])
	assert.False(t, menu.Contains(item.minimizeRestore), "no window, no minimize")

	item.SetStandardActionsEnabled(false)
	assert.Len(t, menu.Items(), 1)

	menu.aboutToShow()
	assert.Len(t, menu.Items(), 1, "disabled actions are not added back")

	item.SetStandardActionsEnabled(true)
	menu.aboutToShow()
	assert.Len(t, menu.Items(), 3)
}

func TestItem_StandardActionsWindowSetLater(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	menu := item.Menu()

	menu.aboutToShow()
	require.Len(t, menu.Items(), 3)

	item.SetAssociatedWindow(shownWindow())
	menu.aboutToShow()

	items := menu.Items()
	require.Len(t, items, 4)
	assert.Same(t, item.minimizeRestore, items[2])
	assert.Same(t, item.quit, items[3])
}

func TestItem_MinimizeRestoreLabel(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	w := shownWindow()
	item.SetAssociatedWindow(w)

	item.Menu().aboutToShow()
	require.True(t, item.Menu().Contains(item.minimizeRestore))
	assert.Equal(t, "&Minimize", item.minimizeRestore.Label())
	assert.Equal(t, "window-minimize", item.minimizeRestore.IconName())

	w.visible = false
	item.Menu().aboutToShow()
	assert.Equal(t, "&Restore", item.minimizeRestore.Label())
	assert.Equal(t, "window-restore", item.minimizeRestore.IconName())

	item.minimizeRestore.Trigger()
	assert.True(t, w.visible)
}

func TestItem_Quit(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	abort := true
	requested, quit := 0, 0
	item.OnQuitRequested(func() {
		requested++
		if abort {
			item.AbortQuit()
		}
	})
	item.OnQuit(func() { quit++ })

	item.quit.Trigger()
	assert.Equal(t, 1, requested)
	assert.Zero(t, quit)

	abort = false
	item.quit.Trigger()
	assert.Equal(t, 2, requested)
	assert.Equal(t, 1, quit)
}

func TestItem_SetMenu(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	old := item.Menu()

	m := NewMenu("Custom")
	item.SetMenu(m)
	assert.True(t, old.Closed())
	assert.Same(t, m, item.Menu())
	assert.Equal(t, 1, env.notifier.counts["NewMenu"])

	item.SetMenu(m)
	assert.False(t, m.Closed(), "setting the same menu keeps it")
	assert.Equal(t, 1, env.notifier.counts["NewMenu"])

	assert.Panics(t, old.Close, "closing a menu twice")
}

func TestItem_SetMenuResetsStandardActions(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	item.Menu().aboutToShow()

	m := NewMenu("Custom")
	item.SetMenu(m)
	m.aboutToShow()
	assert.True(t, m.Contains(item.quit))
}

func TestItem_ContextMenu(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	var got *Menu
	var pos image.Point
	item.OnContextMenuRequested(func(m *Menu, p image.Point) {
		got, pos = m, p
	})

	item.ContextMenu(image.Pt(3, 4))
	assert.Same(t, item.Menu(), got)
	assert.Equal(t, image.Pt(3, 4), pos)
	assert.True(t, item.Menu().Visible())
	assert.True(t, item.Menu().Contains(item.quit))
}

func TestItem_SecondaryActivateAndScroll(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item

	var secondary image.Point
	item.OnSecondaryActivateRequested(func(p image.Point) { secondary = p })

	var delta int
	var orientation Orientation
	item.OnScrollRequested(func(d int, o Orientation) { delta, orientation = d, o })

	item.SecondaryActivate(image.Pt(7, 8))
	item.Scroll(-120, OrientationHorizontal)

	assert.Equal(t, image.Pt(7, 8), secondary)
	assert.Equal(t, -120, delta)
	assert.Equal(t, OrientationHorizontal, orientation)
}

func TestItem_ActivationToken(t *testing.T) {
	env := newTestItem(t, testEnv{})

	env.item.provideActivationToken("token")
	assert.Equal(t, "token", env.item.ProvidedToken())
}

func TestItem_Close(t *testing.T) {
	env := newTestItem(t, testEnv{})
	item := env.item
	menu := item.Menu()

	require.NoError(t, item.Close())
	assert.True(t, menu.Closed())
	assert.True(t, env.registrar.closed)

	assert.ErrorIs(t, item.Close(), ErrClosed)
	assert.Panics(t, func() { item.SetTitle("late") })

	// Input arriving after close is dropped.
	assert.NotPanics(t, func() { item.Activate(image.Point{}) })
}

func TestItem_ShowMessageWithoutBus(t *testing.T) {
	env := newTestItem(t, testEnv{})

	_, err := env.item.ShowMessage("Title", "Body", "dialog-information", -1)
	assert.ErrorIs(t, err, ErrNoBus)
}

func TestItem_FallbackPresentation(t *testing.T) {
	env := newTestItem(t, testEnv{fallback: &fakeFallback{available: true}})
	item := env.item

	surface := env.fallback.last()
	require.NotNil(t, surface)
	require.NotEmpty(t, surface.menus)
	assert.Same(t, item.Menu(), surface.menus[len(surface.menus)-1])
	require.NotEmpty(t, surface.syncs)

	item.SetStatus(StatusNeedsAttention)
	item.SetAttentionIconByName("mail-unread")

	name, _, _ := surface.lastSync().LegacyIcon()
	assert.Equal(t, "mail-unread", name)

	m := NewMenu("Custom")
	item.SetMenu(m)
	assert.Same(t, m, surface.menus[len(surface.menus)-1])
}

func TestItem_ToolTipSettersRepaintSurface(t *testing.T) {
	icon := NewImageIcon(solidImage(image.Pt(16, 16), color.White))

	tests := map[string]func(item *Item){
		"tooltip":          func(item *Item) { item.SetToolTip("mail", "Mail", "") },
		"tooltip pixmap":   func(item *Item) { item.SetToolTipWithPixmap(icon, "Mail", "") },
		"icon name":        func(item *Item) { item.SetToolTipIconByName("mail") },
		"icon pixmap":      func(item *Item) { item.SetToolTipIconByPixmap(icon) },
		"tooltip title":    func(item *Item) { item.SetToolTipTitle("Mail") },
		"tooltip subtitle": func(item *Item) { item.SetToolTipSubTitle("3 unread") },
	}

	for name, set := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestItem(t, testEnv{fallback: &fakeFallback{available: true}})
			surface := env.fallback.last()
			require.NotNil(t, surface)
			before := len(surface.syncs)

			set(env.item)
			assert.Len(t, surface.syncs, before+1)
		})
	}
}

func TestItem_FallbackInput(t *testing.T) {
	env := newTestItem(t, testEnv{fallback: &fakeFallback{available: true}})
	item := env.item
	h := env.fallback.handler
	require.NotNil(t, h)

	var activated []image.Point
	item.OnActivateRequested(func(_ bool, p image.Point) { activated = append(activated, p) })

	h.Activate(image.Pt(1, 2))
	assert.Empty(t, activated, "input is handled on the dispatcher")

	env.dispatch.drain()
	assert.Equal(t, []image.Point{{1, 2}}, activated)

	h.ContextMenu(image.Pt(1, 2))
	env.dispatch.drain()
	require.True(t, item.Menu().Visible())

	h.MenuDismissed()
	assert.True(t, item.Menu().Visible())
	env.dispatch.drain()
	assert.False(t, item.Menu().Visible())
}

func TestItem_MinimizeRestoreFromSurface(t *testing.T) {
	env := newTestItem(t, testEnv{fallback: &fakeFallback{available: true}})
	item := env.item

	w := shownWindow()
	item.SetAssociatedWindow(w)

	var pos image.Point
	item.OnActivateRequested(func(_ bool, p image.Point) { pos = p })

	item.minimizeRestoreTriggered()
	assert.Equal(t, image.Pt(100, 0), pos, "top left of the tray icon")
}

func TestItem_PresentationSwitch(t *testing.T) {
	registrar := &fakeRegistrar{reachable: true}
	fallback := &fakeFallback{available: true}
	env := newTestItem(t, testEnv{registrar: registrar, fallback: fallback})
	item := env.item

	require.Equal(t, StateProbing, item.State())
	assert.Empty(t, fallback.surfaces)

	registrar.reply(t, ProtocolVersion+1, nil)
	env.dispatch.drain()
	require.Equal(t, StateFallback, item.State())
	surface := fallback.last()
	require.NotNil(t, surface)
	assert.Same(t, item.Menu(), surface.menus[len(surface.menus)-1])
	assert.Zero(t, env.notifier.counts["NewMenu"])

	// The watcher comes back: the menu is exported again.
	registrar.owner("", ":1.7")
	env.dispatch.drain()
	assert.Equal(t, StateProbing, item.State())
	assert.True(t, surface.closed)
	assert.Equal(t, 1, env.notifier.counts["NewMenu"])

	registrar.reply(t, ProtocolVersion, nil)
	env.dispatch.drain()
	assert.Equal(t, StateRegistered, item.State())
}

func TestItem_LateProbeAfterClose(t *testing.T) {
	registrar := &fakeRegistrar{reachable: true}
	env := newTestItem(t, testEnv{registrar: registrar})

	require.NoError(t, env.item.Close())

	registrar.reply(t, ProtocolVersion, nil)
	assert.NotPanics(t, env.dispatch.drain)
	assert.Empty(t, registrar.registered)
}

func TestSameValue(t *testing.T) {
	a, b := shownWindow(), shownWindow()

	assert.True(t, sameValue(a, a))
	assert.False(t, sameValue(a, b))
	assert.True(t, sameValue(nil, nil))

	var nilWindow *fakeWindow
	assert.True(t, sameValue(nil, nilWindow))
	assert.False(t, sameValue([]int{1}, []int{1}), "non-comparable values are never the same")
}
