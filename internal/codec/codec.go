// Package codec converts live event payloads into plain, type-tagged,
// JSON-safe mappings and back.
//
// Serialized objects carry an "objType" tag naming the kind of live object
// they stood for. Deserialization resolves each tag against the current
// editor, which need not be the instance that produced the payload.
package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/identity"
)

// TypeKey is the tag field of serialized objects.
const TypeKey = "objType"

// Object kinds.
const (
	TypeBlock         = "BlockMorph"
	TypeArg           = "ArgMorph"
	TypeScripts       = "ScriptsMorph"
	TypeFrame         = "FrameMorph"
	TypeScrollFrame   = "ScrollFrameMorph"
	TypePoint         = "Point"
	TypeColor         = "Color"
	TypeLabelFragment = "BlockLabelFragment"
	TypeSprite        = "SpriteMorph"
	TypeObject        = "Object"
)

// Sources of serialized script containers.
const (
	SourceSprite  = "Sprite"
	SourceEditor  = "Editor"
	SourcePalette = "Palette"
	SourceUnknown = "Unknown"
)

// cyclicFields link drop records into a list and must never be followed.
var cyclicFields = map[string]bool{
	"nextRecord": true,
	"lastRecord": true,
}

// KnownTypes lists every objType the codec understands.
var KnownTypes = []string{
	TypeBlock, TypeArg, TypeScripts, TypeFrame, TypeScrollFrame,
	TypePoint, TypeColor, TypeLabelFragment, TypeSprite, TypeObject,
}

// Codec serializes and deserializes payloads against one editor.
type Codec struct {
	editor      host.Editor
	ids         *identity.Registry
	logger      *slog.Logger
	recordScale float64
}

// New returns a codec resolving objects through editor and ids.
func New(editor host.Editor, ids *identity.Registry, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{
		editor:      editor,
		ids:         ids,
		logger:      logger,
		recordScale: 1,
	}
}

// SetRecordScale sets the block scale that was active when the log was
// captured. Deserialized points are rescaled by current/recorded scale.
func (c *Codec) SetRecordScale(scale float64) {
	if scale <= 0 {
		return
	}
	c.recordScale = scale
}

// RecordScale returns the scale set by SetRecordScale (1 by default).
func (c *Codec) RecordScale() float64 {
	return c.recordScale
}

// Serialize returns a copy of payload with every live object replaced by its
// tagged descriptor. Falsy values are copied untouched.
func (c *Codec) Serialize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if cyclicFields[key] {
			continue
		}
		if isFalsy(value) {
			out[key] = value
			continue
		}
		out[key] = c.serializeField(payload, key, value)
	}
	return out
}

func (c *Codec) serializeField(parent map[string]any, key string, value any) any {
	switch v := value.(type) {
	case host.Block:
		return c.serializeBlock(v)
	case host.Arg:
		return c.serializeArg(parent, key, v)
	case host.Scripts:
		return c.serializeScripts(v)
	case host.Frame:
		if v.Scrollable() {
			return map[string]any{"source": SourcePalette, TypeKey: TypeScrollFrame}
		}
		return map[string]any{"source": SourcePalette, TypeKey: TypeFrame}
	case host.Point:
		return map[string]any{"x": v.X, "y": v.Y, TypeKey: TypePoint}
	case *host.Point:
		return map[string]any{"x": v.X, "y": v.Y, TypeKey: TypePoint}
	case host.Color:
		return map[string]any{"r": v.R, "g": v.G, "b": v.B, "a": v.A, TypeKey: TypeColor}
	case host.LabelFragment:
		return serializeFragment(v)
	case *host.LabelFragment:
		return serializeFragment(*v)
	case host.Sprite:
		return map[string]any{"name": v.Name(), TypeKey: TypeSprite}
	case host.Fielder:
		m := c.Serialize(v.Fields())
		m[TypeKey] = TypeObject
		return m
	case map[string]any:
		m := c.Serialize(v)
		m[TypeKey] = TypeObject
		return m
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			if isFalsy(elem) {
				out[i] = elem
				continue
			}
			out[i] = c.serializeField(nil, "", elem)
		}
		return out
	case []string, []int, []float64:
		return v
	}
	if isPrimitive(value) {
		return value
	}
	c.logger.Error("unknown object in record", "field", key, "type", fmt.Sprintf("%T", value))
	return value
}

func (c *Codec) serializeBlock(b host.Block) map[string]any {
	m := b.Ref().Fields()
	m[TypeKey] = TypeBlock
	return m
}

func (c *Codec) serializeArg(parent map[string]any, key string, a host.Arg) map[string]any {
	var m map[string]any
	if owner := a.Owner(); owner != nil {
		m = owner.Ref().Fields()
	} else {
		m = map[string]any{}
	}
	index := a.IndexInParent()
	if index == -1 && key == "lastReplacedInput" && parent != nil {
		// The slot was replaced by the dropped block; its position is the
		// dropped block's position in the target's current inputs.
		index = replacedIndex(parent)
	}
	if index == -1 {
		c.logger.Warn("unknown arg index", "field", key)
	}
	m["argIndex"] = index
	m[TypeKey] = TypeArg
	return m
}

func replacedIndex(dropRecord map[string]any) int {
	dropped, ok := dropRecord["lastDroppedBlock"].(host.Block)
	if !ok {
		return -1
	}
	var target host.Block
	switch t := dropRecord["lastDropTarget"].(type) {
	case host.Block:
		target = t
	case map[string]any:
		target, _ = t["element"].(host.Block)
	}
	if target == nil {
		return -1
	}
	for i, in := range target.Inputs() {
		if b, ok := in.(host.Block); ok && b == dropped {
			return i
		}
	}
	return -1
}

func (c *Codec) serializeScripts(s host.Scripts) map[string]any {
	if editor := s.Editor(); editor != nil {
		m := map[string]any{"source": SourceEditor, TypeKey: TypeScripts}
		if def := editor.Definition(); def != nil {
			m["guid"] = def.GUID()
			m["spec"] = def.Spec()
		}
		return m
	}
	if c.editor != nil {
		for _, sprite := range c.editor.Sprites() {
			if sprite.Scripts() == s {
				return map[string]any{
					"source":     SourceSprite,
					"spriteName": sprite.Name(),
					TypeKey:      TypeScripts,
				}
			}
		}
	}
	c.logger.Warn("unknown scripts source")
	return map[string]any{"source": SourceUnknown, TypeKey: TypeScripts}
}

func serializeFragment(f host.LabelFragment) map[string]any {
	m := map[string]any{
		"labelString": f.LabelString,
		TypeKey:       TypeLabelFragment,
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if f.DefaultValue != "" {
		m["defaultValue"] = f.DefaultValue
	}
	if f.Options != "" {
		m["options"] = f.Options
	}
	if f.ReadOnly {
		m["isReadOnly"] = true
	}
	if f.Deleted {
		m["isDeleted"] = true
	}
	return m
}

// isFalsy reports whether v is nil, false, a numeric zero or "".
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case int:
		return x == 0
	case int64:
		return x == 0
	case int32:
		return x == 0
	case float64:
		return x == 0
	case float32:
		return x == 0
	case json.Number:
		return x == "0"
	}
	return false
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}
