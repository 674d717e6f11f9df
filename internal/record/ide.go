package record

import (
	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
)

func buttonCursor(name string) func(*Context, map[string]any) (host.Point, bool) {
	return func(ctx *Context, _ map[string]any) (host.Point, bool) {
		return center(ctx.Editor.Button(name))
	}
}

func toggleSteppingHandler() Handler {
	return Handler{
		Cursor: buttonCursor(host.ButtonStepping),
		Replay: func(ctx *Context, data map[string]any) {
			if codec.Bool(data["value"]) == ctx.Editor.SingleStepping() {
				ctx.Unchanged("single stepping already in requested state")
				return
			}
			ctx.RegisterClick()
			ctx.Editor.ToggleSingleStepping()
			ctx.Done()
		},
	}
}

func steppingSliderHandler() Handler {
	return Handler{
		Cursor: buttonCursor(host.ButtonSteppingSlider),
		Replay: func(ctx *Context, data map[string]any) {
			ctx.Editor.SetFlashTime(codec.Float(data["value"]))
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

func pauseHandler(pause bool) Handler {
	return Handler{
		Cursor: buttonCursor(host.ButtonPause),
		Replay: func(ctx *Context, _ map[string]any) {
			threads := ctx.Editor.Threads()
			if threads == nil {
				ctx.Skip("no process manager")
				return
			}
			if threads.Paused() == pause {
				ctx.Unchanged("pause already in requested state")
				return
			}
			ctx.RegisterClick()
			ctx.Editor.TogglePauseResume()
			ctx.Done()
		},
	}
}

// Hue, saturation and lightness components of a sprite color.
const (
	hueComponent        = 0
	saturationComponent = 1
	lightnessComponent  = 2
)

func addSpriteHandler() Handler {
	return Handler{
		Cursor: buttonCursor(host.ButtonAddSprite),
		Replay: func(ctx *Context, data map[string]any) {
			ctx.RegisterClick()
			sprite := ctx.Editor.AddNewSprite()
			if sprite == nil {
				ctx.Skip("host did not add a sprite")
				return
			}
			sprite.GotoXY(codec.Float(data["x"]), codec.Float(data["y"]))
			sprite.SetColorComponent(hueComponent, codec.Float(data["hue"]))
			sprite.SetColorComponent(saturationComponent, 100)
			sprite.SetColorComponent(lightnessComponent, codec.Float(data["lightness"]))
			ctx.Done()
		},
	}
}

func selectSpriteHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			return center(ctx.Editor.SpriteIcon(codec.String(data["value"])))
		},
		Replay: func(ctx *Context, data map[string]any) {
			icon := ctx.Editor.SpriteIcon(codec.String(data["value"]))
			if icon == nil {
				ctx.Skip("sprite icon not found", "sprite", data["value"])
				return
			}
			ctx.RegisterClick()
			icon.Click()
			ctx.Done()
		},
	}
}

func spriteDroppedHandler() Handler {
	return Handler{
		Cursor: func(_ *Context, data map[string]any) (host.Point, bool) {
			return host.Point{X: codec.Float(data["x"]), Y: codec.Float(data["y"])}, true
		},
		Replay: func(ctx *Context, data map[string]any) {
			sprite, ok := data["sprite"].(host.Sprite)
			if !ok || sprite == nil {
				ctx.Skip("dropped sprite not found")
				return
			}
			sprite.GotoXY(codec.Float(data["x"]), codec.Float(data["y"]))
			ctx.Done()
		},
	}
}

func promptEditedHandler() Handler {
	return Handler{
		Replay: func(ctx *Context, data map[string]any) {
			p := ctx.Editor.Prompter()
			if p == nil {
				ctx.Skip("no active prompt")
				return
			}
			p.SetText(codec.String(data["value"]))
			ctx.Done()
		},
	}
}

func promptAcceptHandler() Handler {
	return Handler{
		Cursor: func(ctx *Context, _ map[string]any) (host.Point, bool) {
			p := ctx.Editor.Prompter()
			if p == nil {
				return host.Point{}, false
			}
			return center(p.AcceptButton())
		},
		Replay: func(ctx *Context, _ map[string]any) {
			p := ctx.Editor.Prompter()
			if p == nil {
				ctx.Skip("no active prompt")
				return
			}
			ctx.RegisterClick()
			p.Accept()
			ctx.Done()
		},
	}
}

// findWatcherToggle scans the palette for a toggle immediately followed by
// the block it controls.
func findWatcherToggle(editor host.Editor, name string, isVar bool) host.Toggle {
	palette := editor.Palette()
	if palette == nil {
		return nil
	}
	items := palette.Children()
	for i := 0; i+1 < len(items); i++ {
		toggle, ok := items[i].(host.Toggle)
		if !ok {
			continue
		}
		block, ok := items[i+1].(host.Block)
		if !ok {
			continue
		}
		ref := block.Ref()
		if !isVar && ref.Selector == name || isVar && ref.Spec == name {
			return toggle
		}
	}
	return nil
}

func watcherHandler(field string, isVar bool) Handler {
	return Handler{
		Cursor: func(ctx *Context, data map[string]any) (host.Point, bool) {
			if t := findWatcherToggle(ctx.Editor, codec.String(data[field]), isVar); t != nil {
				return t.Center(), true
			}
			return host.Point{}, false
		},
		Replay: func(ctx *Context, data map[string]any) {
			sprite := ctx.Editor.CurrentSprite()
			if sprite == nil {
				ctx.Skip("no current sprite")
				return
			}
			name := codec.String(data[field])
			var showing bool
			if isVar {
				showing = sprite.ShowingVariableWatcher(name)
			} else {
				showing = sprite.ShowingWatcher(name)
			}
			if showing == codec.Bool(data["visible"]) {
				ctx.Unchanged("watcher already in requested state")
				return
			}
			toggle := findWatcherToggle(ctx.Editor, name, isVar)
			if toggle == nil {
				ctx.Skip("could not find watcher toggle", field, name)
				return
			}
			toggle.Trigger()
			ctx.RegisterClick()
			ctx.Done()
		},
	}
}

func registerIDE(r *Registry) {
	r.Register("IDE_toggleSingleStepping", toggleSteppingHandler())
	r.Register("IDE_updateSteppingSlider", steppingSliderHandler())
	r.Register("IDE_pause", pauseHandler(true))
	r.Register("IDE_unpause", pauseHandler(false))
	r.Register(TypeAddSprite, addSpriteHandler())
	r.Register("IDE_selectSprite", selectSpriteHandler())
	r.Register(TypeSpriteDropped, spriteDroppedHandler())
	r.Register(TypePromptEdited, promptEditedHandler())
	r.Register(TypePromptAccept, promptAcceptHandler())
	r.Register("sprite_toggleWatcher", watcherHandler("selector", false))
	r.Register("sprite_toggleVariableWatcher", watcherHandler("varName", true))
}

// DefaultRegistry returns a registry holding every built-in record type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeBlockDrop, blockDropHandler())
	r.Register(TypeInputSlotEdit, inputSlotEditHandler())
	r.Register(TypeRun, runHandler())
	r.Register(TypeStop, stopHandler())
	r.Register(TypeChangeCat, changeCategoryHandler())
	r.Register(TypeMenu, menuHandler())
	r.Register(TypeMenuItem, menuItemHandler())
	r.Register(TypeSetBlockScale, setBlockScaleHandler())
	registerDialogs(r)
	registerEditor(r)
	registerIDE(r)
	return r
}
