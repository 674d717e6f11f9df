// Package hosttest provides an in-memory editor implementing the host
// interfaces, for tests of the recorder and replayer.
package hosttest

import (
	"fmt"
	"sort"

	"github.com/block-replay/block-replay/internal/host"
)

// Call records a single mutating method invocation on the fake editor.
type Call struct {
	Method string
	Args   []any
}

// Editor is a configurable fake implementing host.Editor. It publishes
// Block.created for every block it creates, like a real host would.
type Editor struct {
	*host.Bus

	SpriteList   []*Sprite
	Current      *Sprite
	PaletteFrame *Frame
	Thread       *Threads
	Definitions  []*CustomBlock
	Editors      []*BlockEditor
	Dialogs      map[string]*Dialog
	Prompt       *Prompter
	Buttons      map[string]*Button
	Categories   map[string]*Button

	Category    string
	Stepping    bool
	FlashTime   float64
	Scale       float64
	NextID      int
	Project     string
	OpenErr     error
	SnapshotErr error

	// Calls tracks method invocations for assertion.
	Calls []Call
}

// NewEditor returns a fake editor with one sprite named "Sprite", every
// well-known button, block ids starting at 1 and a block scale of 1.
func NewEditor() *Editor {
	e := &Editor{
		Bus:        host.NewBus(),
		Dialogs:    make(map[string]*Dialog),
		Buttons:    make(map[string]*Button),
		Categories: make(map[string]*Button),
		Category:   "motion",
		Scale:      1,
		NextID:     1,
		Project:    "<project/>",
	}
	e.PaletteFrame = &Frame{}
	e.PaletteFrame.Scroll = &Frame{IsScroll: true}
	e.Thread = &Threads{running: make(map[*Block]bool)}
	for i, name := range []string{
		host.ButtonStart, host.ButtonStop, host.ButtonStepping, host.ButtonSteppingSlider,
		host.ButtonPause, host.ButtonNewBlock, host.ButtonAddSprite, host.ButtonVariablePrompt,
	} {
		e.Buttons[name] = &Button{Pos: host.Point{X: float64(10 * (i + 1)), Y: 5}}
	}
	e.Current = e.AddSprite("Sprite")
	return e
}

func (e *Editor) record(method string, args ...any) {
	e.Calls = append(e.Calls, Call{Method: method, Args: args})
}

// CallCount returns how many times method was invoked.
func (e *Editor) CallCount(method string) int {
	n := 0
	for _, c := range e.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// AddSprite adds a sprite without selecting it.
func (e *Editor) AddSprite(name string) *Sprite {
	s := &Sprite{
		editor:      e,
		name:        name,
		Locals:      make(map[string]bool),
		Watchers:    make(map[string]bool),
		VarWatchers: make(map[string]bool),
	}
	s.scripts = &Scripts{}
	e.SpriteList = append(e.SpriteList, s)
	return s
}

// NewBlock creates a block with the next host id and publishes Block.created.
func (e *Editor) NewBlock(selector string, args int) *Block {
	b := &Block{editor: e, id: e.NextID, Selector: selector}
	e.NextID++
	for i := 0; i < args; i++ {
		b.InputList = append(b.InputList, &Arg{owner: b, Pos: host.Point{X: float64(i * 20), Y: 0}})
	}
	if e.Current != nil {
		b.Target = e.Current
	}
	e.Publish(host.EventBlockCreated, b)
	return b
}

// AddCustomBlock adds a global custom block definition.
func (e *Editor) AddCustomBlock(guid, spec string) *CustomBlock {
	def := &CustomBlock{editor: e, guid: guid, spec: spec}
	e.Definitions = append(e.Definitions, def)
	return def
}

// ShowDialog makes a dialog visible under key.
func (e *Editor) ShowDialog(key string) *Dialog {
	d := &Dialog{Fields: make(map[string]any)}
	e.Dialogs[key] = d
	return d
}

// CurrentSprite implements host.Editor.
func (e *Editor) CurrentSprite() host.Sprite {
	if e.Current == nil {
		return nil
	}
	return e.Current
}

// Sprites implements host.Editor.
func (e *Editor) Sprites() []host.Sprite {
	out := make([]host.Sprite, 0, len(e.SpriteList))
	for _, s := range e.SpriteList {
		out = append(out, s)
	}
	return out
}

// Palette implements host.Editor.
func (e *Editor) Palette() host.Frame {
	if e.PaletteFrame == nil {
		return nil
	}
	return e.PaletteFrame
}

// Threads implements host.Editor.
func (e *Editor) Threads() host.Threads { return e.Thread }

// CustomBlocks implements host.Editor.
func (e *Editor) CustomBlocks() []host.CustomBlock {
	out := make([]host.CustomBlock, 0, len(e.Definitions))
	for _, d := range e.Definitions {
		out = append(out, d)
	}
	return out
}

// ShowingEditors implements host.Editor.
func (e *Editor) ShowingEditors() []host.BlockEditor {
	out := make([]host.BlockEditor, 0, len(e.Editors))
	for _, be := range e.Editors {
		if !be.Closed {
			out = append(out, be)
		}
	}
	return out
}

// OpenBlockEditor implements host.Editor.
func (e *Editor) OpenBlockEditor(def host.CustomBlock, sprite host.Sprite) {
	e.record("OpenBlockEditor", def.GUID())
	d, _ := def.(*CustomBlock)
	be := &BlockEditor{editor: e, def: d}
	be.scripts = &Scripts{owner: be}
	be.Hat = e.NewBlock("prototypeHatBlock", 0)
	be.Fragments = []*Button{{Pos: host.Point{X: 1, Y: 1}}, {Pos: host.Point{X: 2, Y: 1}}}
	e.Editors = append(e.Editors, be)
}

// Dialog implements host.Editor.
func (e *Editor) Dialog(key string) host.Dialog {
	d, ok := e.Dialogs[key]
	if !ok || d.Closed {
		return nil
	}
	return d
}

// CloseDialogs implements host.Editor.
func (e *Editor) CloseDialogs() {
	e.record("CloseDialogs")
	for _, d := range e.Dialogs {
		d.Closed = true
	}
}

// Prompter implements host.Editor.
func (e *Editor) Prompter() host.Prompter {
	if e.Prompt == nil {
		return nil
	}
	return e.Prompt
}

// Button implements host.Editor.
func (e *Editor) Button(name string) host.Clickable {
	b, ok := e.Buttons[name]
	if !ok {
		return nil
	}
	return b
}

// CategoryButton implements host.Editor.
func (e *Editor) CategoryButton(category string) host.Element {
	b, ok := e.Categories[category]
	if !ok {
		b = &Button{Pos: host.Point{X: 1, Y: float64(10 + len(e.Categories))}}
		e.Categories[category] = b
	}
	return b
}

// SpriteIcon implements host.Editor.
func (e *Editor) SpriteIcon(name string) host.Clickable {
	for i, s := range e.SpriteList {
		if s.name == name {
			sprite := s
			return &Button{
				Pos:     host.Point{X: float64(100 + 40*i), Y: 400},
				OnClick: func() { e.Current = sprite },
			}
		}
	}
	return nil
}

// ChangeCategory implements host.Editor.
func (e *Editor) ChangeCategory(category string) {
	e.record("ChangeCategory", category)
	e.Category = category
}

// RunScripts starts one process per sprite.
func (e *Editor) RunScripts() {
	e.record("RunScripts")
	e.Thread.flag = len(e.SpriteList)
}

// StopAllScripts implements host.Editor.
func (e *Editor) StopAllScripts() {
	e.record("StopAllScripts")
	e.Thread.flag = 0
	clear(e.Thread.running)
}

// SingleStepping implements host.Editor.
func (e *Editor) SingleStepping() bool { return e.Stepping }

// ToggleSingleStepping implements host.Editor.
func (e *Editor) ToggleSingleStepping() {
	e.record("ToggleSingleStepping")
	e.Stepping = !e.Stepping
}

// SetFlashTime implements host.Editor.
func (e *Editor) SetFlashTime(seconds float64) {
	e.record("SetFlashTime", seconds)
	e.FlashTime = seconds
}

// TogglePauseResume implements host.Editor.
func (e *Editor) TogglePauseResume() {
	e.record("TogglePauseResume")
	e.Thread.paused = !e.Thread.paused
}

// AddNewSprite implements host.Editor.
func (e *Editor) AddNewSprite() host.Sprite {
	e.record("AddNewSprite")
	s := e.AddSprite(fmt.Sprintf("Sprite(%d)", len(e.SpriteList)+1))
	e.Current = s
	return s
}

// StartFastTracking implements host.Editor.
func (e *Editor) StartFastTracking() { e.record("StartFastTracking") }

// StopFastTracking implements host.Editor.
func (e *Editor) StopFastTracking() { e.record("StopFastTracking") }

// BlocksScale implements host.Editor.
func (e *Editor) BlocksScale() float64 { return e.Scale }

// SetBlocksScale implements host.Editor.
func (e *Editor) SetBlocksScale(scale float64) {
	e.record("SetBlocksScale", scale)
	e.Scale = scale
}

// SetNextBlockID implements host.Editor.
func (e *Editor) SetNextBlockID(id int) { e.NextID = id }

// Snapshot implements host.Editor.
func (e *Editor) Snapshot() (string, error) {
	if e.SnapshotErr != nil {
		return "", e.SnapshotErr
	}
	return e.Project, nil
}

// OpenProject implements host.Editor.
func (e *Editor) OpenProject(snapshot string) error {
	e.record("OpenProject", snapshot)
	if e.OpenErr != nil {
		return e.OpenErr
	}
	e.Project = snapshot
	return nil
}

// NewProject implements host.Editor.
func (e *Editor) NewProject() {
	e.record("NewProject")
	e.Project = "<project/>"
}

// Block is a fake block.
type Block struct {
	editor    *Editor
	id        int
	Selector  string
	Spec      string
	Template  bool
	GUID      string
	Pos       host.Point
	InputList []host.Input
	Target    *Sprite
	Parent    host.Frame
	Menu      *Menu
}

func (b *Block) Center() host.Point   { return b.Pos }
func (b *Block) ID() int              { return b.id }
func (b *Block) SetID(id int)         { b.id = id }
func (b *Block) Position() host.Point { return b.Pos }
func (b *Block) Inputs() []host.Input { return b.InputList }

func (b *Block) Ref() host.BlockRef {
	return host.BlockRef{ID: b.id, Selector: b.Selector, Spec: b.Spec, Template: b.Template, GUID: b.GUID}
}

func (b *Block) ScriptTarget() host.Sprite {
	if b.Target == nil {
		return nil
	}
	return b.Target
}

func (b *Block) AttachTo(frame host.Frame) { b.Parent = frame }

// ContextMenu implements host.MenuOwner.
func (b *Block) ContextMenu() host.Menu {
	if b.Menu == nil {
		b.Menu = NewMenu(2)
	}
	return b.Menu
}

// Arg returns the i-th input as an *Arg, or nil.
func (b *Block) Arg(i int) *Arg {
	if i < 0 || i >= len(b.InputList) {
		return nil
	}
	a, _ := b.InputList[i].(*Arg)
	return a
}

// ReplaceInput puts nested in place of the i-th slot, as a reporter drop does.
func (b *Block) ReplaceInput(i int, nested *Block) {
	if a, ok := b.InputList[i].(*Arg); ok {
		a.replaced = true
	}
	b.InputList[i] = nested
}

// Arg is a fake argument slot; it is both a text and a color slot.
type Arg struct {
	owner    *Block
	replaced bool
	Pos      host.Point
	Contents any
	Color    host.Color
	Menu     *Menu
}

func (a *Arg) Center() host.Point { return a.Pos }

func (a *Arg) Owner() host.Block {
	if a.owner == nil {
		return nil
	}
	return a.owner
}

func (a *Arg) IndexInParent() int {
	if a.owner == nil || a.replaced {
		return -1
	}
	for i, in := range a.owner.InputList {
		if in == host.Input(a) {
			return i
		}
	}
	return -1
}

func (a *Arg) SetContents(value any) { a.Contents = value }
func (a *Arg) SetColor(c host.Color) { a.Color = c }

// ContextMenu implements host.MenuOwner.
func (a *Arg) ContextMenu() host.Menu {
	if a.Menu == nil {
		a.Menu = NewMenu(3)
	}
	return a.Menu
}

// Scripts is a fake script container that remembers replayed drops.
type Scripts struct {
	owner *BlockEditor
	Drops []map[string]any
	Menu  *Menu
}

func (s *Scripts) Editor() host.BlockEditor {
	if s.owner == nil {
		return nil
	}
	return s.owner
}

func (s *Scripts) PlayDropRecord(record map[string]any, done func(), fast bool) {
	s.Drops = append(s.Drops, record)
	if done != nil {
		done()
	}
}

// ContextMenu implements host.MenuOwner.
func (s *Scripts) ContextMenu() host.Menu {
	if s.Menu == nil {
		s.Menu = NewMenu(4)
	}
	return s.Menu
}

// Frame is a fake palette frame.
type Frame struct {
	IsScroll bool
	Scroll   *Frame
	Items    []any
}

func (f *Frame) Scrollable() bool { return f.IsScroll }
func (f *Frame) Children() []any  { return f.Items }

func (f *Frame) ScrollFrame() host.Frame {
	if f.Scroll == nil {
		return nil
	}
	return f.Scroll
}

// Toggle is a fake palette checkbox.
type Toggle struct {
	Pos       host.Point
	Triggered int
	OnTrigger func()
}

func (t *Toggle) Center() host.Point { return t.Pos }

func (t *Toggle) Trigger() {
	t.Triggered++
	if t.OnTrigger != nil {
		t.OnTrigger()
	}
}

// Sprite is a fake sprite.
type Sprite struct {
	editor      *Editor
	name        string
	scripts     *Scripts
	Pos         host.Point
	Color       [3]float64
	Locals      map[string]bool
	Watchers    map[string]bool
	VarWatchers map[string]bool
	MadeBlocks  int
}

func (s *Sprite) Name() string                         { return s.name }
func (s *Sprite) Scripts() host.Scripts                { return s.scripts }
func (s *Sprite) HasLocalVariable(n string) bool       { return s.Locals[n] }
func (s *Sprite) Position() host.Point                 { return s.Pos }
func (s *Sprite) ColorComponent(i int) float64         { return s.Color[i] }
func (s *Sprite) SetColorComponent(i int, v float64)   { s.Color[i] = v }
func (s *Sprite) ShowingWatcher(sel string) bool       { return s.Watchers[sel] }
func (s *Sprite) ShowingVariableWatcher(n string) bool { return s.VarWatchers[n] }

// ScriptsFake returns the concrete script container.
func (s *Sprite) ScriptsFake() *Scripts { return s.scripts }

func (s *Sprite) VariableBlock(name string, local bool) host.Block {
	b := s.editor.NewBlock("reportGetVar", 0)
	b.Spec = name
	b.Target = s
	return b
}

func (s *Sprite) BlockForSelector(selector string) host.Block {
	b := s.editor.NewBlock(selector, 2)
	b.Target = s
	return b
}

func (s *Sprite) MakeBlock() {
	s.MadeBlocks++
	s.editor.ShowDialog(host.DialogMakeBlock)
}

func (s *Sprite) GotoXY(x, y float64) { s.Pos = host.Point{X: x, Y: y} }

// Threads is a fake process manager. A green-flag run counts as one process
// per sprite until StopAllScripts or Finish.
type Threads struct {
	running map[*Block]bool
	flag    int
	paused  bool
	Steps   int
}

func (t *Threads) Step()        { t.Steps++ }
func (t *Threads) Paused() bool { return t.paused }

func (t *Threads) HasProcess(b host.Block, receiver host.Sprite) bool {
	fb, _ := b.(*Block)
	return t.running[fb]
}

func (t *Threads) ToggleProcess(b host.Block, receiver host.Sprite) {
	fb, _ := b.(*Block)
	if t.running[fb] {
		delete(t.running, fb)
		return
	}
	t.running[fb] = true
}

func (t *Threads) Processes() int { return len(t.running) + t.flag }

// Finish ends every running process.
func (t *Threads) Finish() {
	clear(t.running)
	t.flag = 0
}

// Running lists the blocks with a process, ordered by id.
func (t *Threads) Running() []*Block {
	out := make([]*Block, 0, len(t.running))
	for b := range t.running {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// CustomBlock is a fake custom block definition.
type CustomBlock struct {
	editor *Editor
	guid   string
	spec   string
}

func (c *CustomBlock) GUID() string        { return c.guid }
func (c *CustomBlock) SetGUID(guid string) { c.guid = guid }
func (c *CustomBlock) Spec() string        { return c.spec }

func (c *CustomBlock) BlockInstance() host.Block {
	b := c.editor.NewBlock("evaluateCustomBlock", 1)
	b.GUID = c.guid
	b.Spec = c.spec
	return b
}

// BlockEditor is a fake custom block editor.
type BlockEditor struct {
	editor    *Editor
	def       *CustomBlock
	scripts   *Scripts
	Hat       *Block
	Fragments []*Button
	Closed    bool
	Updates   int
}

func (be *BlockEditor) Definition() host.CustomBlock {
	if be.def == nil {
		return nil
	}
	return be.def
}

func (be *BlockEditor) Scripts() host.Scripts { return be.scripts }

func (be *BlockEditor) PrototypeHat() host.Block {
	if be.Hat == nil {
		return nil
	}
	return be.Hat
}

func (be *BlockEditor) LabelFragment(index int) host.Clickable {
	if index < 0 || index >= len(be.Fragments) {
		return nil
	}
	return be.Fragments[index]
}

func (be *BlockEditor) OK()               { be.Closed = true }
func (be *BlockEditor) Cancel()           { be.Closed = true }
func (be *BlockEditor) UpdateDefinition() { be.Updates++ }

// Dialog is a fake dialog box.
type Dialog struct {
	Fields  map[string]any
	Actions []string
	Text    string
	Closed  bool
}

func (d *Dialog) Set(field string, value any) { d.Fields[field] = value }

func (d *Dialog) Do(action string) {
	d.Actions = append(d.Actions, action)
	if action == "ok" || action == "cancel" || action == "accept" {
		d.Closed = true
	}
}

func (d *Dialog) SetText(value string) { d.Text = value }

func (d *Dialog) Selected(field string) host.Element {
	return &Button{Pos: host.Point{X: 50, Y: float64(len(field))}}
}

func (d *Dialog) Buttons() []host.Element {
	return []host.Element{&Button{Pos: host.Point{X: 60, Y: 90}}, &Button{Pos: host.Point{X: 90, Y: 90}}}
}

func (d *Dialog) TypeButtons() []host.Element {
	out := make([]host.Element, 0, 3)
	for i := 0; i < 3; i++ {
		out = append(out, &Button{Pos: host.Point{X: float64(20 * i), Y: 40}})
	}
	return out
}

// Menu is a fake context menu.
type Menu struct {
	ItemList  []*MenuItem
	Open      bool
	PoppedAt  host.Point
	Destroyed int
}

// NewMenu returns a closed menu with n items.
func NewMenu(n int) *Menu {
	m := &Menu{}
	for i := 0; i < n; i++ {
		m.ItemList = append(m.ItemList, &MenuItem{Pos: host.Point{X: 5, Y: float64(15 * (i + 1))}})
	}
	return m
}

func (m *Menu) Items() []host.MenuItem {
	out := make([]host.MenuItem, 0, len(m.ItemList))
	for _, it := range m.ItemList {
		out = append(out, it)
	}
	return out
}

func (m *Menu) Popup(at host.Point) {
	m.Open = true
	m.PoppedAt = at
}

func (m *Menu) IsOpen() bool { return m.Open }

func (m *Menu) Destroy() {
	m.Open = false
	m.Destroyed++
}

// MenuItem is a fake menu entry.
type MenuItem struct {
	Pos     host.Point
	Entered int
	Left    int
}

func (it *MenuItem) Center() host.Point { return it.Pos }
func (it *MenuItem) MouseEnter()        { it.Entered++ }
func (it *MenuItem) MouseLeave()        { it.Left++ }

// Prompter is a fake stage prompt.
type Prompter struct {
	Text     string
	Accepted bool
}

func (p *Prompter) SetText(value string) { p.Text = value }
func (p *Prompter) Accept()              { p.Accepted = true }
func (p *Prompter) AcceptButton() host.Element {
	return &Button{Pos: host.Point{X: 200, Y: 300}}
}

// Button is a fake clickable control.
type Button struct {
	Pos     host.Point
	Clicks  int
	OnClick func()
}

func (b *Button) Center() host.Point { return b.Pos }

func (b *Button) Click() {
	b.Clicks++
	if b.OnClick != nil {
		b.OnClick()
	}
}
