package record

import (
	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/identity"
)

func blockEditorStartHandler() Handler {
	return Handler{
		Replay: func(ctx *Context, data map[string]any) {
			guid := codec.String(data["guid"])
			if def := identity.FindCustomBlock(ctx.Editor, guid); guid != "" && def != nil {
				ctx.Editor.OpenBlockEditor(def, ctx.Editor.CurrentSprite())
				ctx.Done()
				return
			}
			// A block created in this session already has its editor open;
			// it only needs the recorded guid.
			spec := codec.String(data["spec"])
			for _, e := range ctx.Editor.ShowingEditors() {
				if def := e.Definition(); def != nil && def.Spec() == spec {
					def.SetGUID(guid)
					ctx.Done()
					return
				}
			}
			ctx.Skip("missing block editor", "spec", spec)
		},
	}
}

// editorAction replays a button of the block editor showing the recorded
// definition.
func editorAction(name string, act func(host.BlockEditor)) Handler {
	return Handler{
		Replay: func(ctx *Context, data map[string]any) {
			guid := codec.String(data["guid"])
			e := identity.FindShowingEditor(ctx.Editor, guid)
			if e == nil {
				ctx.Skip("block editor not showing", "action", name, "guid", guid)
				return
			}
			act(e)
			ctx.Done()
		},
	}
}

func labelFragment(ctx *Context, data map[string]any) host.Clickable {
	def := codec.Map(data["definition"])
	if def == nil {
		return nil
	}
	index, ok := codec.Int(data["index"])
	if !ok || index < 0 {
		return nil
	}
	e := identity.FindShowingEditor(ctx.Editor, codec.String(def["guid"]))
	if e == nil {
		return nil
	}
	return e.LabelFragment(index)
}

func updateBlockLabelHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			if f := labelFragment(ctx, data); f != nil {
				return f.Center(), true
			}
			return host.Point{}, false
		},
		Replay: func(ctx *Context, data map[string]any) {
			f := labelFragment(ctx, data)
			if f == nil {
				ctx.Skip("block editor has no such label", "index", data["index"])
				return
			}
			f.Click()
			ctx.Done()
		},
	}
}

func registerEditor(r *Registry) {
	r.Register("blockEditor_start", blockEditorStartHandler())
	r.Register("blockEditor_ok", editorAction("ok", host.BlockEditor.OK))
	r.Register("blockEditor_apply", editorAction("apply", host.BlockEditor.UpdateDefinition))
	r.Register("blockEditor_cancel", editorAction("cancel", host.BlockEditor.Cancel))
	r.Register("blockEditor_startUpdateBlockLabel", updateBlockLabelHandler())
}
