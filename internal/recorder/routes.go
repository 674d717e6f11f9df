package recorder

import (
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/record"
)

// slotEdits are trace events that change an input slot. The renamed field,
// if any, becomes the record's value.
var slotEdits = map[string]string{
	"InputSlot.edited":             "text",
	"InputSlot.menuItemSelected":   "item",
	"ColorArg.changeColor":         "color",
	"InputSlot.sliderInputEdited":  "",
	"BooleanSlotMorph.toggleValue": "",
}

// directRoutes map trace events to record types. The event name is kept as
// the record's message.
var directRoutes = map[string]string{
	"IDE.greenFlag":      record.TypeRun,
	"Block.clickRun":     record.TypeRun,
	"Block.clickStopRun": record.TypeRun,
	"IDE.stop":           record.TypeStop,
	"IDE.changeCategory": record.TypeChangeCat,
}

// groupedRoutes expand to "<Group>.<message>" events recorded as
// "<prefix>_<message>".
var groupedRoutes = []struct {
	group    string
	prefix   string
	messages []string
}{
	{"BlockTypeDialog", "blockType", []string{"changeCategory", "setScope", "setType", "ok", "cancel"}},
	{"BlockEditor", "blockEditor", []string{"start", "ok", "apply", "cancel", "startUpdateBlockLabel"}},
	{"InputSlotDialogMorph", "blockInput", []string{"setType", "accept", "cancel", "deleteFragment"}},
	{"VariableDialogMorph", "varDialog", []string{"setType", "prompt", "accept", "cancel"}},
	{"IDE", "IDE", []string{"toggleSingleStepping", "updateSteppingSlider", "pause", "unpause", "selectSprite"}},
	{"SpriteMorph", "sprite", []string{"toggleVariableWatcher", "toggleWatcher"}},
}

// Attach subscribes the session to feed and returns a function that
// unsubscribes every handler.
func (s *Session) Attach(feed host.Feed) (detach func()) {
	var subs []func()
	on := func(name string, h host.Handler) {
		subs = append(subs, feed.Subscribe(name, h))
	}

	for event, field := range slotEdits {
		field := field
		on(event, func(_ string, payload any) {
			data := toMap(payload)
			if field != "" {
				data["value"] = data[field]
			}
			s.Capture(record.TypeInputSlotEdit, data)
		})
	}
	for event, typ := range directRoutes {
		on(event, s.messageHandler(typ))
	}
	for _, g := range groupedRoutes {
		for _, msg := range g.messages {
			on(g.group+"."+msg, s.messageHandler(g.prefix+"_"+msg))
		}
	}

	on(host.EventBlockCreated, s.onBlockCreated)
	on(host.EventScriptsDrop, s.onDrop)
	on(host.EventMenuOpened, s.onMenu(true))
	on(host.EventMenuClosed, s.onMenu(false))
	on(host.EventMenuItemEnter, s.onMenuItem(true))
	on(host.EventMenuItemLeave, s.onMenuItem(false))
	on(host.EventInputTyped, s.onInputTyped)
	on(host.EventMakeBlock, func(string, any) {
		s.Capture(record.TypeNewBlock, map[string]any{})
	})
	on(host.EventSpriteDropped, s.onSpriteDropped)
	on(host.EventAddSprite, s.onAddSprite)
	on(host.EventPromptEdited, s.onPrompt(record.TypePromptEdited))
	on(host.EventPromptAccept, s.onPrompt(record.TypePromptAccept))

	return func() {
		for _, unsubscribe := range subs {
			unsubscribe()
		}
	}
}

func (s *Session) messageHandler(typ string) host.Handler {
	return func(name string, payload any) {
		data := toMap(payload)
		data["message"] = name
		s.Capture(typ, data)
	}
}

// onBlockCreated registers every block the host creates, recording or not.
func (s *Session) onBlockCreated(_ string, payload any) {
	if b, ok := payload.(host.Block); ok {
		s.env.IDs.Register(b)
	}
}

func (s *Session) onDrop(_ string, payload any) {
	drop, ok := payload.(map[string]any)
	if !ok || drop["lastDroppedBlock"] == nil {
		return
	}
	s.Capture(record.TypeBlockDrop, drop)
}

func (s *Session) onMenu(open bool) host.Handler {
	return func(_ string, payload any) {
		ev, ok := payload.(host.MenuEvent)
		if !ok {
			return
		}
		if open {
			s.env.Menus.Open(ev.Menu)
		} else {
			s.env.Menus.Forget(ev.Menu)
		}
		s.Capture(record.TypeMenu, map[string]any{
			"parent":   ev.Parent,
			"open":     open,
			"position": ev.Position,
		})
	}
}

func (s *Session) onMenuItem(highlight bool) host.Handler {
	return func(_ string, payload any) {
		ev, ok := payload.(host.MenuItemEvent)
		if !ok || ev.Menu == nil {
			return
		}
		for i, item := range ev.Menu.Items() {
			if item == ev.Item {
				s.Capture(record.TypeMenuItem, map[string]any{"index": i, "highlight": highlight})
				return
			}
		}
	}
}

func (s *Session) onInputTyped(_ string, payload any) {
	ev, ok := payload.(host.InputTypedEvent)
	if !ok {
		return
	}
	s.Capture(record.TypeInputTyped, map[string]any{"input": ev.Dialog, "value": ev.Value})
}

func (s *Session) onSpriteDropped(_ string, payload any) {
	sprite, ok := payload.(host.Sprite)
	if !ok {
		return
	}
	pos := sprite.Position()
	s.Capture(record.TypeSpriteDropped, map[string]any{"sprite": sprite, "x": pos.X, "y": pos.Y})
}

func (s *Session) onAddSprite(_ string, payload any) {
	sprite, ok := payload.(host.Sprite)
	if !ok {
		return
	}
	pos := sprite.Position()
	s.Capture(record.TypeAddSprite, map[string]any{
		"name":      sprite.Name(),
		"x":         pos.X,
		"y":         pos.Y,
		"hue":       sprite.ColorComponent(0),
		"lightness": sprite.ColorComponent(2),
	})
}

func (s *Session) onPrompt(typ string) host.Handler {
	return func(_ string, payload any) {
		value, _ := payload.(string)
		s.Capture(typ, map[string]any{"value": value})
	}
}

// toMap flattens an event payload into a fresh mapping. Blocks contribute
// their descriptor; scalars are wrapped as {"value": v}.
func toMap(payload any) map[string]any {
	switch p := payload.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		out := make(map[string]any, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	case host.Block:
		return p.Ref().Fields()
	case host.Fielder:
		return p.Fields()
	default:
		return map[string]any{"value": p}
	}
}
