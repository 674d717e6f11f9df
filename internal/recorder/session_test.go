package recorder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/host/hosttest"
	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/store"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeAudio struct {
	startErr error
	started  int
	stopped  []string
}

func (a *fakeAudio) Start() error {
	a.started++
	return a.startErr
}

func (a *fakeAudio) Stop(name string) error {
	a.stopped = append(a.stopped, name)
	return nil
}

type fixture struct {
	editor *hosttest.Editor
	env    *record.Env
	clock  *fakeClock
	store  *store.FileStore
	audio  *fakeAudio
	logs   *bytes.Buffer
	sess   *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := hosttest.NewEditor()
	env := record.NewEnv(e, logger)
	f := &fixture{
		editor: e,
		env:    env,
		clock:  &fakeClock{now: time.UnixMilli(1700000000000)},
		store:  store.NewFileStore(filepath.Join(t.TempDir(), "sessions")),
		audio:  &fakeAudio{},
		logs:   logs,
	}
	f.sess = New(env, Options{Store: f.store, Audio: f.audio, Clock: f.clock.Now})
	t.Cleanup(f.sess.Attach(e))
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sess.Start(context.Background(), false, false))
}

func (f *fixture) last() record.Record {
	records := f.sess.Records()
	return records[len(records)-1]
}

func TestSession_Start(t *testing.T) {
	f := newFixture(t)
	f.editor.Scale = 1.5
	f.editor.Project = `<project name="demo"/>`

	f.start(t)

	assert.True(t, f.sess.Recording())
	assert.Equal(t, "1700000000000", f.sess.Name())
	assert.Equal(t, `<project name="demo"/>`, f.sess.Snapshot())
	assert.Equal(t, 1, f.audio.started)
	require.Equal(t, 1, f.sess.Len())
	first := f.sess.Records()[0]
	assert.Equal(t, record.TypeSetBlockScale, first.Type)
	assert.Equal(t, 1.5, first.Data["scale"])
	assert.Equal(t, int64(0), first.TimeDelta)
}

func TestSession_StartSnapshotFailure(t *testing.T) {
	f := newFixture(t)
	f.editor.SnapshotErr = errors.New("serializer busy")

	err := f.sess.Start(context.Background(), false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to snapshot project")
	assert.False(t, f.sess.Recording())
}

func TestSession_AudioIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.audio.startErr = errors.New("no microphone")
	f.start(t)
	assert.True(t, f.sess.Recording())
	assert.Contains(t, f.logs.String(), "audio recording unavailable")

	require.NoError(t, f.sess.Stop(context.Background()))
	assert.Empty(t, f.audio.stopped, "audio that never started is not stopped")

	f2 := newFixture(t)
	require.NoError(t, f2.sess.Start(context.Background(), false, true))
	assert.Equal(t, 0, f2.audio.started)
}

func TestSession_AddRecord(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.sess.AddRecord(record.New(record.TypeStop, nil)), "not recording")
	assert.Equal(t, 0, f.sess.Len())

	f.start(t)
	f.clock.Advance(250 * time.Millisecond)
	assert.True(t, f.sess.AddRecord(record.New(record.TypeStop, nil)))
	f.clock.Advance(40 * time.Millisecond)
	assert.True(t, f.sess.Capture(record.TypeChangeCat, map[string]any{"value": "looks"}))

	records := f.sess.Records()
	require.Len(t, records, 3)
	assert.Equal(t, int64(250), records[1].TimeDelta)
	assert.Equal(t, int64(40), records[2].TimeDelta)
}

func TestSession_KeepPreviousInsertsAtCursor(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.sess.Capture(record.TypeStop, nil)
	require.NoError(t, f.sess.Stop(context.Background()))

	f.clock.Advance(time.Second)
	require.NoError(t, f.sess.Start(context.Background(), true, true))
	f.sess.Capture(record.TypeChangeCat, map[string]any{"value": "pen"})

	var types []string
	for _, r := range f.sess.Records() {
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{
		record.TypeSetBlockScale, record.TypeStop, record.TypeSetBlockScale, record.TypeChangeCat,
	}, types)
	assert.Equal(t, "1700000001000", f.sess.Name())
}

func TestSession_StopPersists(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.sess.Capture(record.TypeStop, nil)
	require.NoError(t, f.sess.Stop(context.Background()))

	assert.False(t, f.sess.Recording())
	assert.Equal(t, []string{"1700000000000-audio"}, f.audio.stopped)
	assert.False(t, f.sess.Capture(record.TypeStop, nil))

	saved, err := f.store.Load(context.Background(), "1700000000000")
	require.NoError(t, err)
	assert.Equal(t, f.sess.Records(), saved.Records)
	assert.Equal(t, f.editor.Project, saved.Snapshot)

	other := New(f.env, Options{Store: f.store})
	other.LoadFromCache(context.Background())
	assert.Equal(t, 2, other.Len())
	assert.False(t, other.Recording())
}

func TestSession_LoadFromCacheSwallowsErrors(t *testing.T) {
	f := newFixture(t)
	require.NotPanics(t, func() { f.sess.LoadFromCache(context.Background()) })
	assert.Equal(t, 0, f.sess.Len())

	New(f.env, Options{}).LoadFromCache(context.Background())
}

func TestAttach_Routes(t *testing.T) {
	tests := []struct {
		event   string
		payload any
		typ     string
		message string
	}{
		{event: "IDE.greenFlag", typ: record.TypeRun, message: "IDE.greenFlag"},
		{event: "IDE.stop", typ: record.TypeStop, message: "IDE.stop"},
		{event: "IDE.changeCategory", payload: "looks", typ: record.TypeChangeCat, message: "IDE.changeCategory"},
		{event: "BlockTypeDialog.setScope", payload: "local", typ: "blockType_setScope"},
		{event: "BlockEditor.startUpdateBlockLabel", payload: map[string]any{"index": 1}, typ: "blockEditor_startUpdateBlockLabel"},
		{event: "InputSlotDialogMorph.deleteFragment", typ: "blockInput_deleteFragment"},
		{event: "VariableDialogMorph.prompt", typ: "varDialog_prompt"},
		{event: "IDE.updateSteppingSlider", payload: 0.5, typ: "IDE_updateSteppingSlider"},
		{event: "SpriteMorph.toggleWatcher", payload: map[string]any{"selector": "xPosition"}, typ: "sprite_toggleWatcher"},
		{event: host.EventMakeBlock, typ: record.TypeNewBlock},
		{event: host.EventPromptEdited, payload: "4", typ: record.TypePromptEdited},
		{event: host.EventPromptAccept, payload: "42", typ: record.TypePromptAccept},
		{event: host.EventInputTyped, payload: host.InputTypedEvent{Dialog: host.InputVariableDialog, Value: "score"}, typ: record.TypeInputTyped},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			f := newFixture(t)
			f.start(t)
			f.editor.Publish(tt.event, tt.payload)

			require.Equal(t, 2, f.sess.Len(), "event not recorded")
			got := f.last()
			assert.Equal(t, tt.typ, got.Type)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message())
			}
			require.NoError(t, got.Validate())
		})
	}
}

func TestAttach_RunFromBlock(t *testing.T) {
	f := newFixture(t)
	b := f.editor.NewBlock("forward", 1)
	f.start(t)

	f.editor.Publish("Block.clickRun", b)

	got := f.last()
	assert.Equal(t, record.TypeRun, got.Type)
	assert.Equal(t, record.MsgClickRun, got.Message())
	id, ok := codec.Int(got.Data["id"])
	require.True(t, ok)
	assert.Equal(t, b.ID(), id)
	assert.Equal(t, "forward", got.Data["selector"])
}

func TestAttach_SlotEditsRenameValue(t *testing.T) {
	tests := []struct {
		event string
		field string
		value any
	}{
		{event: "InputSlot.edited", field: "text", value: "10"},
		{event: "InputSlot.menuItemSelected", field: "item", value: "left"},
		{event: "InputSlot.sliderInputEdited", field: "value", value: 3.0},
		{event: "BooleanSlotMorph.toggleValue", field: "value", value: true},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			f := newFixture(t)
			f.start(t)
			slot := map[string]any{"id": 10001, "selector": "forward", "argIndex": 0}
			f.editor.Publish(tt.event, map[string]any{"id": slot, tt.field: tt.value})

			got := f.last()
			assert.Equal(t, record.TypeInputSlotEdit, got.Type)
			assert.Equal(t, tt.value, got.Data["value"])
			assert.Equal(t, codec.TypeObject, codec.Map(got.Data["id"])[codec.TypeKey])
		})
	}

	f := newFixture(t)
	f.start(t)
	f.editor.Publish("ColorArg.changeColor", map[string]any{"color": host.Color{R: 255, A: 1}})
	assert.Equal(t, codec.TypeColor, codec.Map(f.last().Data["value"])[codec.TypeKey])
}

func TestAttach_Menus(t *testing.T) {
	f := newFixture(t)
	b := f.editor.NewBlock("forward", 0)
	f.start(t)

	first := hosttest.NewMenu(2)
	first.Open = true
	f.editor.Publish(host.EventMenuOpened, host.MenuEvent{Parent: b, Menu: first, Position: host.Point{X: 3, Y: 4}})
	second := hosttest.NewMenu(3)
	second.Open = true
	f.editor.Publish(host.EventMenuOpened, host.MenuEvent{Parent: b, Menu: second})

	assert.Equal(t, 1, first.Destroyed, "opening a second menu destroys the first")
	assert.Same(t, second, f.env.Menus.Current())

	f.editor.Publish(host.EventMenuItemEnter, host.MenuItemEvent{Menu: second, Item: second.ItemList[2]})
	item := f.last()
	assert.Equal(t, record.TypeMenuItem, item.Type)
	assert.Equal(t, 2, item.Data["index"])
	assert.Equal(t, true, item.Data["highlight"])

	f.editor.Publish(host.EventMenuItemLeave, host.MenuItemEvent{Menu: second, Item: &hosttest.MenuItem{}})
	assert.Equal(t, record.TypeMenuItem, f.last().Type)
	assert.Equal(t, true, f.last().Data["highlight"], "items outside the menu are ignored")

	f.editor.Publish(host.EventMenuClosed, host.MenuEvent{Parent: b, Menu: second})
	closed := f.last()
	assert.Equal(t, record.TypeMenu, closed.Type)
	assert.Equal(t, false, closed.Data["open"])
	assert.Nil(t, f.env.Menus.Current())

	var opens int
	for _, r := range f.sess.Records() {
		if r.Type == record.TypeMenu && r.Data["open"] == true {
			opens++
			assert.Equal(t, codec.TypeBlock, codec.Map(r.Data["parent"])[codec.TypeKey])
		}
	}
	assert.Equal(t, 2, opens)
}

func TestAttach_Hooks(t *testing.T) {
	f := newFixture(t)
	b := f.editor.NewBlock("forward", 0)
	assert.Equal(t, 1, f.env.IDs.Len(), "blocks register while not recording")
	f.start(t)

	f.editor.Publish(host.EventScriptsDrop, map[string]any{"lastDroppedBlock": nil})
	assert.Equal(t, 1, f.sess.Len(), "drop without a dropped block is ignored")

	f.editor.Publish(host.EventScriptsDrop, map[string]any{
		"lastDroppedBlock": b,
		"lastDropTarget":   map[string]any{"point": host.Point{X: 1, Y: 2}},
	})
	drop := f.last()
	assert.Equal(t, record.TypeBlockDrop, drop.Type)
	assert.Equal(t, codec.TypeBlock, codec.Map(drop.Data["lastDroppedBlock"])[codec.TypeKey])

	sprite := f.editor.AddSprite("Cat")
	sprite.Pos = host.Point{X: 30, Y: -10}
	sprite.Color = [3]float64{0.2, 1, 0.6}
	f.editor.Publish(host.EventSpriteDropped, sprite)
	dropped := f.last()
	assert.Equal(t, record.TypeSpriteDropped, dropped.Type)
	assert.Equal(t, 30.0, dropped.Data["x"])
	assert.Equal(t, "Cat", codec.Map(dropped.Data["sprite"])["name"])

	f.editor.Publish(host.EventAddSprite, sprite)
	added := f.last()
	assert.Equal(t, record.TypeAddSprite, added.Type)
	assert.Equal(t, "Cat", added.Data["name"])
	assert.Equal(t, 0.2, added.Data["hue"])
	assert.Equal(t, 0.6, added.Data["lightness"])
}

func TestAttach_Detach(t *testing.T) {
	f := newFixture(t)
	sess := New(f.env, Options{Clock: f.clock.Now})
	detach := sess.Attach(f.editor)
	require.NoError(t, sess.Start(context.Background(), false, true))
	detach()

	f.editor.Publish("IDE.stop", nil)
	assert.Equal(t, 1, sess.Len())
}
