// Package identity maps stable block identifiers to live block handles for
// the duration of one recording or replay session.
package identity

import (
	"log/slog"

	"github.com/block-replay/block-replay/internal/host"
)

// IDOffset is the first identifier handed out by the host after Reset. Logs
// are captured from a freshly loaded project whose ids stay below it, so
// blocks created during replay never collide with ids found in a log.
const IDOffset = 10000

// Selectors with dedicated reconstruction rules.
const (
	SelectorGetVar      = "reportGetVar"
	SelectorCustomBlock = "evaluateCustomBlock"
)

// Registry is the id -> block map. It is not safe for concurrent use; all
// calls happen on the host thread.
type Registry struct {
	editor host.Editor
	blocks map[int]host.Block
	logger *slog.Logger
}

// New returns an empty registry bound to editor.
func New(editor host.Editor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		editor: editor,
		blocks: make(map[int]host.Block),
		logger: logger,
	}
}

// Register stores b under its current id. Hosts call it (through the
// Block.created event) for every block they create or deserialize.
func (r *Registry) Register(b host.Block) {
	if b == nil {
		return
	}
	r.blocks[b.ID()] = b
}

// Set stores or overwrites the mapping id -> b.
func (r *Registry) Set(id int, b host.Block) {
	r.blocks[id] = b
}

// Get returns the block registered under id.
func (r *Registry) Get(id int) (host.Block, bool) {
	b, ok := r.blocks[id]
	return b, ok
}

// Len returns the number of registered blocks.
func (r *Registry) Len() int {
	return len(r.blocks)
}

// Reset clears every mapping and rebases the host's id counter to IDOffset.
func (r *Registry) Reset() {
	clear(r.blocks)
	if r.editor != nil {
		r.editor.SetNextBlockID(IDOffset)
	}
}

// NextID returns the smallest id at or above IDOffset that is not
// registered. Hosts that keep their own counter may use it after Reset.
func (r *Registry) NextID() int {
	id := IDOffset
	for {
		if _, ok := r.blocks[id]; !ok {
			return id
		}
		id++
	}
}

// GetOrCreate resolves ref, building a fresh block when no block is
// registered under ref.ID. The new block keeps the captured id so that later
// records naming the same id find it. Returns nil when nothing can be built.
func (r *Registry) GetOrCreate(ref host.BlockRef) host.Block {
	if b, ok := r.blocks[ref.ID]; ok {
		return b
	}
	if r.editor == nil {
		return nil
	}
	b := r.build(ref)
	if b == nil {
		return nil
	}
	r.logger.Debug("created block for replay", "id", ref.ID, "selector", ref.Selector)
	b.SetID(ref.ID)
	b.AttachTo(r.editor.Palette())
	// The host's counter is left alone so that the offset keeps ids disjoint.
	r.blocks[ref.ID] = b
	return b
}

func (r *Registry) build(ref host.BlockRef) host.Block {
	sprite := r.editor.CurrentSprite()
	switch {
	case ref.Selector == SelectorGetVar:
		if sprite == nil {
			return nil
		}
		return sprite.VariableBlock(ref.Spec, sprite.HasLocalVariable(ref.Spec))
	case ref.Selector == SelectorCustomBlock && ref.GUID != "":
		def := FindCustomBlock(r.editor, ref.GUID)
		if def == nil {
			r.logger.Error("no custom block definition", "guid", ref.GUID)
			return nil
		}
		return def.BlockInstance()
	default:
		if sprite == nil || ref.Selector == "" {
			return nil
		}
		return sprite.BlockForSelector(ref.Selector)
	}
}

// FindCustomBlock returns the definition with the given guid among global
// and sprite-local definitions.
func FindCustomBlock(editor host.Editor, guid string) host.CustomBlock {
	for _, def := range editor.CustomBlocks() {
		if def.GUID() == guid {
			return def
		}
	}
	return nil
}

// FindShowingEditor returns the open block editor whose definition has guid.
func FindShowingEditor(editor host.Editor, guid string) host.BlockEditor {
	for _, e := range editor.ShowingEditors() {
		if def := e.Definition(); def != nil && def.GUID() == guid {
			return e
		}
	}
	return nil
}

// FindSprite returns the live sprite named name.
func FindSprite(editor host.Editor, name string) host.Sprite {
	for _, s := range editor.Sprites() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
