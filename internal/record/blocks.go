package record

import (
	"strings"

	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/identity"
)

func blockDropHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			target := codec.Map(data["lastDropTarget"])
			if target == nil {
				return host.Point{}, false
			}
			return ctx.Codec.PointFrom(target["point"])
		},
		Replay: func(ctx *Context, data map[string]any) {
			sprite := ctx.Editor.CurrentSprite()
			if sprite == nil || sprite.Scripts() == nil {
				ctx.Skip("no scripts to drop into")
				return
			}
			recoverPrototypeHat(ctx, data, data, "lastDroppedBlock")
			if target := codec.Map(data["lastDropTarget"]); target != nil {
				recoverPrototypeHat(ctx, data, target, "element")
			}
			sprite.Scripts().PlayDropRecord(data, ctx.Done, ctx.Fast())
		},
	}
}

// recoverPrototypeHat fills parent[key] with the prototype hat block of the
// block editor the drop originated from. The hat is created by the editor
// itself and has no descriptor a log could rebuild it from.
func recoverPrototypeHat(ctx *Context, drop, parent map[string]any, key string) {
	if parent == nil || parent[key] != nil {
		return
	}
	situation := codec.Map(drop["situation"])
	if situation == nil || situation["origin"] == nil {
		return
	}
	var editor host.BlockEditor
	switch origin := situation["origin"].(type) {
	case host.Scripts:
		editor = origin.Editor()
	case host.Block:
		if guid := origin.Ref().GUID; guid != "" {
			editor = identity.FindShowingEditor(ctx.Editor, guid)
		}
	case map[string]any:
		if guid := codec.String(origin["guid"]); guid != "" {
			editor = identity.FindShowingEditor(ctx.Editor, guid)
		}
	default:
		ctx.Logger.Warn("unknown drop origin", "key", key)
	}
	if editor == nil {
		return
	}
	if hat := editor.PrototypeHat(); hat != nil {
		parent[key] = hat
	}
}

func inputSlotEditHandler() Handler {
	slotRef := func(data map[string]any) (host.BlockRef, int, bool) {
		id := codec.Map(data["id"])
		if id == nil {
			return host.BlockRef{}, 0, false
		}
		index, ok := codec.Int(id["argIndex"])
		return codec.RefFrom(id), index, ok
	}
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			ref, index, ok := slotRef(data)
			if !ok {
				return host.Point{}, false
			}
			block, found := ctx.IDs.Get(ref.ID)
			if !found {
				return host.Point{}, false
			}
			inputs := block.Inputs()
			if index < 0 || index >= len(inputs) {
				return host.Point{}, false
			}
			return center(inputs[index])
		},
		Replay: func(ctx *Context, data map[string]any) {
			ref, index, ok := slotRef(data)
			if !ok {
				ctx.Skip("input slot edit without slot id")
				return
			}
			block := ctx.IDs.GetOrCreate(ref)
			if block == nil {
				ctx.Skip("cannot find block for input slot", "id", ref.ID, "selector", ref.Selector)
				return
			}
			inputs := block.Inputs()
			if index < 0 || index >= len(inputs) {
				ctx.Skip("input slot index out of range", "id", ref.ID, "argIndex", index)
				return
			}
			switch value := data["value"].(type) {
			case host.Color:
				if slot, ok := inputs[index].(host.ColorSlot); ok {
					slot.SetColor(value)
				}
			default:
				if slot, ok := inputs[index].(host.TextSlot); ok {
					slot.SetContents(value)
				}
			}
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

func runHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			if id, ok := codec.Int(data["id"]); ok && id != 0 {
				block, found := ctx.IDs.Get(id)
				if !found {
					return host.Point{}, false
				}
				return block.Center().Midpoint(block.Position()), true
			}
			return center(ctx.Editor.Button(host.ButtonStart))
		},
		Replay: func(ctx *Context, data map[string]any) {
			threads := ctx.Editor.Threads()
			if threads == nil {
				ctx.Skip("no process manager")
				return
			}
			stepping := ctx.Editor.SingleStepping()
			prepare := func() {
				if !ctx.Fast() {
					return
				}
				if stepping {
					ctx.Editor.ToggleSingleStepping()
				}
				ctx.Editor.StartFastTracking()
			}
			cleanup := func() {
				if ctx.Editor.SingleStepping() != stepping {
					ctx.Editor.ToggleSingleStepping()
				}
				ctx.Editor.StopFastTracking()
			}
			// dead processes are only cleaned up on a step
			threads.Step()

			var finished func() bool
			if id, ok := codec.Int(data["id"]); ok && id != 0 {
				block := ctx.IDs.GetOrCreate(codec.RefFrom(data))
				if block == nil {
					ctx.Skip("cannot find block to run", "id", id)
					return
				}
				receiver := block.ScriptTarget()
				isFinished := func() bool { return !threads.HasProcess(block, receiver) }
				stopping := codec.String(data["message"]) == MsgClickStopRun
				if isFinished() == stopping {
					ctx.Unchanged("script already in requested state")
					return
				}
				prepare()
				threads.ToggleProcess(block, receiver)
				ctx.RegisterClick()
				finished = func() bool { return receiver == nil || isFinished() }
			} else {
				ctx.RegisterClick()
				prepare()
				ctx.Editor.RunScripts()
				finished = func() bool { return threads.Processes() == 0 }
			}
			if !ctx.Fast() {
				ctx.Done()
				return
			}
			ctx.Until(finished, cleanup)
		},
	}
}

func stopHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, _ map[string]any) (host.Point, bool) {
			return center(ctx.Editor.Button(host.ButtonStop))
		},
		Replay: func(ctx *Context, _ map[string]any) {
			ctx.RegisterClick()
			ctx.Editor.StopAllScripts()
			ctx.Done()
		},
	}
}

func changeCategoryHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			category := strings.ToLower(codec.String(data["value"]))
			if category == "" {
				return host.Point{}, false
			}
			return center(ctx.Editor.CategoryButton(category))
		},
		Replay: func(ctx *Context, data map[string]any) {
			ctx.RegisterClick()
			ctx.Editor.ChangeCategory(codec.String(data["value"]))
			ctx.Done()
		},
	}
}

func setBlockScaleHandler() Handler {
	return Handler{
		Replay: func(ctx *Context, data map[string]any) {
			scale := codec.Float(data["scale"])
			if scale <= 0 {
				ctx.Skip("invalid block scale", "scale", data["scale"])
				return
			}
			ctx.Editor.SetBlocksScale(scale)
			ctx.Codec.SetRecordScale(scale)
			ctx.Done()
		},
	}
}
