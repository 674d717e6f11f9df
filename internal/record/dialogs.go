package record

import (
	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
)

// dialogCursor returns the center of the element pick selects from the
// dialog showing under key.
func dialogCursor(key string, pick func(d host.Dialog, data map[string]any) host.Element) func(*Context, map[string]any) (host.Point, bool) {
	return func(ctx *Context, data map[string]any) (host.Point, bool) {
		d := ctx.Editor.Dialog(key)
		if d == nil {
			return host.Point{}, false
		}
		return center(pick(d, data))
	}
}

func selected(field string) func(host.Dialog, map[string]any) host.Element {
	return func(d host.Dialog, _ map[string]any) host.Element {
		return d.Selected(field)
	}
}

func button(index int) func(host.Dialog, map[string]any) host.Element {
	return func(d host.Dialog, _ map[string]any) host.Element {
		buttons := d.Buttons()
		i := index
		if i < 0 {
			i += len(buttons)
		}
		if i < 0 || i >= len(buttons) {
			return nil
		}
		return buttons[i]
	}
}

// dialogSet replays a picker change on the dialog showing under key.
func dialogSet(key, field string) Handler {
	return Handler{
		Cursor: dialogCursor(key, selected(field)),
		Replay: func(ctx *Context, data map[string]any) {
			d := ctx.Editor.Dialog(key)
			if d == nil {
				ctx.Skip("dialog not showing", "dialog", key)
				return
			}
			d.Set(field, data["value"])
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

// dialogAction replays a button press on the dialog showing under key.
func dialogAction(key, action string, buttonIndex int) Handler {
	return Handler{
		Cursor: dialogCursor(key, button(buttonIndex)),
		Replay: func(ctx *Context, _ map[string]any) {
			d := ctx.Editor.Dialog(key)
			if d == nil {
				ctx.Skip("dialog not showing", "dialog", key)
				return
			}
			ctx.RegisterClick()
			d.Do(action)
			ctx.Done()
		},
	}
}

func newBlockHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, _ map[string]any) (host.Point, bool) {
			return center(ctx.Editor.Button(host.ButtonNewBlock))
		},
		Replay: func(ctx *Context, _ map[string]any) {
			sprite := ctx.Editor.CurrentSprite()
			if sprite == nil {
				ctx.Skip("no current sprite")
				return
			}
			sprite.MakeBlock()
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

func varPromptHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, _ map[string]any) (host.Point, bool) {
			return center(ctx.Editor.Button(host.ButtonVariablePrompt))
		},
		Replay: func(ctx *Context, _ map[string]any) {
			b := ctx.Editor.Button(host.ButtonVariablePrompt)
			if b == nil {
				ctx.Skip("variable button not found")
				return
			}
			b.Click()
			ctx.Done()
		},
	}
}

func blockInputTypeHandler() Handler {
	return Handler{
		Cursor: dialogCursor(host.DialogBlockInput, func(d host.Dialog, data map[string]any) host.Element {
			types := d.TypeButtons()
			i := 0
			if codec.Bool(data["value"]) {
				i = 1
			}
			if i >= len(types) {
				return nil
			}
			return types[i]
		}),
		Replay: dialogSet(host.DialogBlockInput, "type").Replay,
	}
}

var inputDialogs = map[string]string{
	host.InputBlockDialog:     host.DialogMakeBlock,
	host.InputVariableDialog:  host.DialogNewVar,
	host.InputInputSlotDialog: host.DialogBlockInput,
}

func inputTypedHandler() Handler {
	return Handler{
		Replay: func(ctx *Context, data map[string]any) {
			kind := codec.String(data["input"])
			key, ok := inputDialogs[kind]
			if !ok {
				ctx.Skip("unknown input type", "input", kind)
				return
			}
			d := ctx.Editor.Dialog(key)
			if d == nil {
				ctx.Skip("dialog not showing", "dialog", key)
				return
			}
			d.SetText(codec.String(data["value"]))
			ctx.Done()
		},
	}
}

func registerDialogs(r *Registry) {
	r.Register(TypeNewBlock, newBlockHandler())
	r.Register("blockType_changeCategory", dialogSet(host.DialogMakeBlock, "category"))
	r.Register("blockType_setScope", dialogSet(host.DialogMakeBlock, "scope"))
	r.Register("blockType_setType", dialogSet(host.DialogMakeBlock, "type"))
	r.Register("blockType_ok", dialogAction(host.DialogMakeBlock, "ok", 0))
	r.Register("blockType_cancel", dialogAction(host.DialogMakeBlock, "cancel", 1))

	r.Register("varDialog_prompt", varPromptHandler())
	r.Register("varDialog_setType", dialogSet(host.DialogNewVar, "type"))
	r.Register("varDialog_accept", dialogAction(host.DialogNewVar, "accept", 0))
	r.Register("varDialog_cancel", dialogAction(host.DialogNewVar, "cancel", 1))

	r.Register("blockInput_setType", blockInputTypeHandler())
	r.Register("blockInput_accept", dialogAction(host.DialogBlockInput, "accept", 0))
	r.Register("blockInput_cancel", dialogAction(host.DialogBlockInput, "cancel", -1))
	r.Register("blockInput_deleteFragment", dialogAction(host.DialogBlockInput, "deleteFragment", 1))

	r.Register(TypeInputTyped, inputTypedHandler())
}
