package host

import "sort"

// Handler receives one semantic event.
type Handler func(name string, payload any)

// Feed is the host's publish/subscribe channel of semantic events, keyed by
// dotted names such as "Block.clickRun".
type Feed interface {
	Subscribe(name string, h Handler) (unsubscribe func())
}

// Bus is an in-process Feed. Hosts embed it and call Publish.
type Bus struct {
	handlers map[string]map[int]Handler
	next     int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name string, h Handler) func() {
	if b.handlers == nil {
		b.handlers = make(map[string]map[int]Handler)
	}
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.handlers[name][id] = h
	return func() { delete(b.handlers[name], id) }
}

// Publish delivers payload to every handler of name in subscription order.
func (b *Bus) Publish(name string, payload any) {
	hs := b.handlers[name]
	ids := make([]int, 0, len(hs))
	for id := range hs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if h, ok := hs[id]; ok {
			h(name, payload)
		}
	}
}

// Names of the hook events a host publishes in addition to its trace events.
const (
	EventBlockCreated  = "Block.created"
	EventScriptsDrop   = "Scripts.drop"
	EventMenuOpened    = "Menu.opened"
	EventMenuClosed    = "Menu.closed"
	EventMenuItemEnter = "MenuItem.entered"
	EventMenuItemLeave = "MenuItem.left"
	EventInputTyped    = "Dialog.inputTyped"
	EventMakeBlock     = "Sprite.makeBlock"
	EventSpriteDropped = "Sprite.dropped"
	EventAddSprite     = "IDE.addSprite"
	EventPromptEdited  = "Prompter.edited"
	EventPromptAccept  = "Prompter.accepted"
)

// MenuEvent is the payload of EventMenuOpened and EventMenuClosed.
type MenuEvent struct {
	// Parent is the Block, Arg or Scripts the menu belongs to.
	Parent   any
	Menu     Menu
	Position Point
}

// MenuItemEvent is the payload of EventMenuItemEnter and EventMenuItemLeave.
type MenuItemEvent struct {
	Menu Menu
	Item MenuItem
}

// InputTypedEvent is the payload of EventInputTyped. Dialog is one of the
// dialog kinds below.
type InputTypedEvent struct {
	Dialog string
	Value  string
}

// Dialog kinds reported by InputTypedEvent.
const (
	InputBlockDialog     = "BlockDialogMorph"
	InputVariableDialog  = "VariableDialogMorph"
	InputInputSlotDialog = "InputSlotDialogMorph"
)
