package app

import (
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
)

// NewMenu builds the application menu for a. Every action is reachable
// through its accelerator; handlers run off the menu thread because dialogs block.
func NewMenu(a *App) *menu.Menu {
	m := menu.NewMenu()

	file := m.AddSubmenu("File")
	file.AddText("Open…", keys.CmdOrCtrl("o"), async(func() { _ = a.Open() }))
	file.AddText("Save", keys.CmdOrCtrl("s"), async(func() { _ = a.Save() }))
	file.AddText("Save As…", keys.Combo("s", keys.CmdOrCtrlKey, keys.ShiftKey), async(func() { _ = a.SaveAs() }))
	file.AddText("Export…", keys.CmdOrCtrl("e"), async(func() { _ = a.Export() }))
	file.AddSeparator()
	file.AddText("Print…", keys.CmdOrCtrl("p"), async(a.Print))
	file.AddSeparator()
	file.AddText("Quit", keys.CmdOrCtrl("q"), async(a.Quit))

	m.Append(menu.EditMenu())

	view := m.AddSubmenu("View")
	view.AddText("Toggle Fullscreen", keys.Key("escape"), async(a.ToggleFullscreen))

	return m
}

func async(fn func()) menu.Callback {
	return func(_ *menu.CallbackData) {
		go fn()
	}
}
