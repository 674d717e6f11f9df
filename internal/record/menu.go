package record

import (
	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
)

// MenuState holds the single open context menu of a session. Menu item
// records address items by position, so they need it.
type MenuState struct {
	current host.Menu
}

// Open makes menu the open menu, destroying any other menu still open.
func (m *MenuState) Open(menu host.Menu) {
	prev := m.current
	m.current = nil
	if prev != nil && prev != menu && prev.IsOpen() {
		prev.Destroy()
	}
	m.current = menu
}

// Close destroys the open menu, if any.
func (m *MenuState) Close() {
	prev := m.current
	m.current = nil
	if prev != nil && prev.IsOpen() {
		prev.Destroy()
	}
}

// Forget drops menu without destroying it; hosts call it once the menu is
// gone.
func (m *MenuState) Forget(menu host.Menu) {
	if m.current == menu {
		m.current = nil
	}
}

// Current returns the open menu, or nil.
func (m *MenuState) Current() host.Menu {
	return m.current
}

func menuHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			if !codec.Bool(data["open"]) || codec.IsFalsy(data["parent"]) {
				return host.Point{}, false
			}
			return ctx.Codec.PointFrom(data["position"])
		},
		Replay: func(ctx *Context, data map[string]any) {
			if ctx.Fast() {
				ctx.Done()
				return
			}
			open := codec.Bool(data["open"])
			if !open {
				ctx.Menus.Close()
				ctx.Done()
				return
			}
			owner, ok := data["parent"].(host.MenuOwner)
			if !ok || owner == nil {
				ctx.Skip("menu parent not found")
				return
			}
			menu := owner.ContextMenu()
			if menu == nil {
				ctx.Skip("no context menu")
				return
			}
			ctx.Menus.Open(menu)
			pos, _ := data["position"].(host.Point)
			menu.Popup(pos)
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

func menuItemHandler() Handler {
	item := func(ctx *Context, data map[string]any) host.MenuItem {
		menu := ctx.Menus.Current()
		if menu == nil {
			return nil
		}
		index, ok := codec.Int(data["index"])
		items := menu.Items()
		if !ok || index < 0 || index >= len(items) {
			return nil
		}
		return items[index]
	}
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			if !codec.Bool(data["highlight"]) {
				return host.Point{}, false
			}
			if it := item(ctx, data); it != nil {
				return it.Center(), true
			}
			return host.Point{}, false
		},
		Replay: func(ctx *Context, data map[string]any) {
			if ctx.Fast() || ctx.Menus.Current() == nil {
				ctx.Done()
				return
			}
			it := item(ctx, data)
			if it == nil {
				ctx.Skip("menu item not found", "index", data["index"])
				return
			}
			if codec.Bool(data["highlight"]) {
				it.MouseEnter()
			} else {
				it.MouseLeave()
			}
			ctx.Done()
		},
	}
}
