// Package host defines the contract between the recorder/replayer and a live
// block editor. The editor's object model is not implemented here: a host
// satisfies these interfaces and publishes semantic events on a Feed.
//
// All methods are called from the host's single logical thread.
package host

// Element is anything visible with an on-screen center.
type Element interface {
	Center() Point
}

// Clickable is an element that performs an action when clicked.
type Clickable interface {
	Element
	Click()
}

// Input is one entry of a block's argument list: either an Arg or a nested
// Block that replaced one.
type Input interface {
	Element
}

// BlockRef is the stable descriptor of a block. It is enough to locate the
// block in an identity registry or to rebuild an equivalent block.
type BlockRef struct {
	ID       int    `json:"id"`
	Selector string `json:"selector,omitempty"`
	Spec     string `json:"spec,omitempty"`
	Template bool   `json:"template,omitempty"`
	GUID     string `json:"guid,omitempty"`
}

// Fields returns the descriptor as a plain payload mapping.
func (r BlockRef) Fields() map[string]any {
	m := map[string]any{"id": r.ID}
	if r.Selector != "" {
		m["selector"] = r.Selector
	}
	if r.Spec != "" {
		m["spec"] = r.Spec
	}
	if r.Template {
		m["template"] = true
	}
	if r.GUID != "" {
		m["guid"] = r.GUID
	}
	return m
}

// Fielder is implemented by payload values that flatten to a mapping.
type Fielder interface {
	Fields() map[string]any
}

// Block is a live block handle.
type Block interface {
	Input
	ID() int
	SetID(id int)
	Ref() BlockRef
	Position() Point
	Inputs() []Input
	// ScriptTarget returns the sprite that runs this block's script.
	ScriptTarget() Sprite
	// AttachTo parents a block created during replay to frame and makes it
	// draggable.
	AttachTo(frame Frame)
}

// Arg is a live argument slot handle.
type Arg interface {
	Input
	Owner() Block
	// IndexInParent is the slot's position in Owner().Inputs(), or -1 once
	// the slot has been replaced by a dropped reporter.
	IndexInParent() int
}

// TextSlot is an input or boolean slot.
type TextSlot interface {
	Arg
	SetContents(value any)
}

// ColorSlot is a color picker slot.
type ColorSlot interface {
	Arg
	SetColor(c Color)
}

// MenuOwner is anything that can pop up a context menu.
type MenuOwner interface {
	ContextMenu() Menu
}

// Scripts is a script container: a sprite workspace or a block editor body.
type Scripts interface {
	// Editor returns the block editor hosting this container, or nil when it
	// belongs to a sprite.
	Editor() BlockEditor
	// PlayDropRecord re-applies a block drop and calls done when the drop
	// animation has finished.
	PlayDropRecord(record map[string]any, done func(), fast bool)
}

// Frame is the palette frame or its scroll frame.
type Frame interface {
	Scrollable() bool
	ScrollFrame() Frame
	// Children lists the frame's items top to bottom (toggles, blocks, buttons).
	Children() []any
}

// Toggle is a palette checkbox, e.g. a watcher toggle.
type Toggle interface {
	Element
	Trigger()
}

// Sprite is a named actor.
type Sprite interface {
	Name() string
	Scripts() Scripts
	HasLocalVariable(name string) bool
	VariableBlock(name string, local bool) Block
	BlockForSelector(selector string) Block
	MakeBlock()
	Position() Point
	GotoXY(x, y float64)
	// ColorComponent returns hue (0), saturation (1) or lightness (2).
	ColorComponent(i int) float64
	SetColorComponent(i int, v float64)
	ShowingWatcher(selector string) bool
	ShowingVariableWatcher(name string) bool
}

// Threads is the process manager of the stage.
type Threads interface {
	Step()
	HasProcess(b Block, receiver Sprite) bool
	ToggleProcess(b Block, receiver Sprite)
	Processes() int
	Paused() bool
}

// CustomBlock is a user-defined block definition.
type CustomBlock interface {
	GUID() string
	SetGUID(guid string)
	Spec() string
	BlockInstance() Block
}

// BlockEditor is an open custom block editor.
type BlockEditor interface {
	Definition() CustomBlock
	Scripts() Scripts
	PrototypeHat() Block
	// LabelFragment returns the clickable fragment at index in the prototype
	// block's label, or nil.
	LabelFragment(index int) Clickable
	OK()
	Cancel()
	UpdateDefinition()
}

// Dialog is a modal dialog box identified by a well-known key.
type Dialog interface {
	// Set changes a picker field ("category", "scope", "type").
	Set(field string, value any)
	// Do presses a named action ("ok", "cancel", "accept", "deleteFragment").
	Do(action string)
	// SetText replaces the contents of the dialog's text body.
	SetText(value string)
	// Selected returns the currently selected entry of a picker field.
	Selected(field string) Element
	Buttons() []Element
	TypeButtons() []Element
}

// Menu is a context menu.
type Menu interface {
	Items() []MenuItem
	Popup(at Point)
	// IsOpen reports whether the menu is still attached to the world.
	IsOpen() bool
	Destroy()
}

// MenuItem is one entry of a Menu.
type MenuItem interface {
	Element
	MouseEnter()
	MouseLeave()
}

// Prompter is the stage's "ask" prompt.
type Prompter interface {
	SetText(value string)
	Accept()
	AcceptButton() Element
}

// Well-known button names accepted by Editor.Button.
const (
	ButtonStart          = "start"
	ButtonStop           = "stop"
	ButtonStepping       = "stepping"
	ButtonSteppingSlider = "steppingSlider"
	ButtonPause          = "pause"
	ButtonNewBlock       = "newBlock"
	ButtonAddSprite      = "addSprite"
	ButtonVariablePrompt = "variablePrompt"
)

// Well-known dialog keys accepted by Editor.Dialog.
const (
	DialogMakeBlock  = "makeABlock"
	DialogNewVar     = "newVar"
	DialogBlockInput = "blockInput"
)

// Editor is the mutation surface of the whole editor.
type Editor interface {
	CurrentSprite() Sprite
	Sprites() []Sprite
	Palette() Frame
	Threads() Threads

	// CustomBlocks returns global definitions followed by every sprite's.
	CustomBlocks() []CustomBlock
	ShowingEditors() []BlockEditor
	OpenBlockEditor(def CustomBlock, sprite Sprite)

	// Dialog returns the showing dialog for key, or nil.
	Dialog(key string) Dialog
	CloseDialogs()
	// Prompter returns the active stage prompt, or nil.
	Prompter() Prompter

	// Button returns a named control, or nil when it is not displayed.
	Button(name string) Clickable
	CategoryButton(category string) Element
	SpriteIcon(name string) Clickable

	ChangeCategory(category string)
	RunScripts()
	StopAllScripts()
	SingleStepping() bool
	ToggleSingleStepping()
	SetFlashTime(seconds float64)
	TogglePauseResume()
	AddNewSprite() Sprite
	StartFastTracking()
	StopFastTracking()

	BlocksScale() float64
	SetBlocksScale(scale float64)
	SetNextBlockID(id int)

	Snapshot() (string, error)
	OpenProject(snapshot string) error
	NewProject()
}
