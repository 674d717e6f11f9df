package codec

import (
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/identity"
)

// Deserialize returns a copy of data with every tagged descriptor resolved
// to a live object of the current editor. Descriptors that cannot be
// resolved become nil and are logged as warnings.
func (c *Codec) Deserialize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isFalsy(value) {
			out[key] = value
			continue
		}
		out[key] = c.deserializeField(key, value)
	}
	return out
}

func (c *Codec) deserializeField(key string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return c.deserializeObject(key, v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			if isFalsy(elem) {
				out[i] = elem
				continue
			}
			out[i] = c.deserializeField(key, elem)
		}
		return out
	}
	return value
}

func (c *Codec) deserializeObject(key string, v map[string]any) any {
	objType, _ := v[TypeKey].(string)
	switch objType {
	case TypeBlock:
		b := c.resolveBlock(v)
		if b == nil {
			c.logger.Warn("cannot resolve block", "field", key, "id", v["id"], "selector", v["selector"])
			return nil
		}
		return b
	case TypeArg:
		return c.resolveArg(key, v)
	case TypeScripts:
		s := c.resolveScripts(v)
		if s == nil {
			c.logger.Warn("cannot find scripts", "field", key, "source", v["source"])
			return nil
		}
		return s
	case TypeFrame:
		if c.editor == nil {
			return nil
		}
		return c.editor.Palette()
	case TypeScrollFrame:
		if c.editor == nil || c.editor.Palette() == nil {
			return nil
		}
		return c.editor.Palette().ScrollFrame()
	case TypePoint:
		p, _ := c.PointFrom(v)
		return p
	case TypeColor:
		return host.Color{
			R: Float(v["r"]),
			G: Float(v["g"]),
			B: Float(v["b"]),
			A: Float(v["a"]),
		}
	case TypeLabelFragment:
		return host.LabelFragment{
			LabelString:  String(v["labelString"]),
			Type:         String(v["type"]),
			DefaultValue: String(v["defaultValue"]),
			Options:      String(v["options"]),
			ReadOnly:     Bool(v["isReadOnly"]),
			Deleted:      Bool(v["isDeleted"]),
		}
	case TypeSprite:
		name := String(v["name"])
		var sprite host.Sprite
		if c.editor != nil {
			sprite = identity.FindSprite(c.editor, name)
		}
		if sprite == nil {
			c.logger.Warn("could not find sprite", "name", name)
			return nil
		}
		return sprite
	case TypeObject:
		m := c.Deserialize(v)
		delete(m, TypeKey)
		return m
	}
	c.logger.Error("unknown object in record", "field", key, "objType", objType)
	return v
}

func (c *Codec) resolveBlock(v map[string]any) host.Block {
	if c.ids == nil {
		return nil
	}
	return c.ids.GetOrCreate(RefFrom(v))
}

func (c *Codec) resolveArg(key string, v map[string]any) any {
	b := c.resolveBlock(v)
	if b == nil {
		c.logger.Warn("cannot resolve arg owner", "field", key, "id", v["id"])
		return nil
	}
	index, ok := Int(v["argIndex"])
	inputs := b.Inputs()
	if !ok || index < 0 || index >= len(inputs) {
		c.logger.Warn("arg index out of range", "field", key, "id", v["id"], "argIndex", v["argIndex"])
		return nil
	}
	return inputs[index]
}

func (c *Codec) resolveScripts(v map[string]any) host.Scripts {
	if c.editor == nil {
		return nil
	}
	switch String(v["source"]) {
	case SourceSprite:
		if sprite := identity.FindSprite(c.editor, String(v["spriteName"])); sprite != nil {
			return sprite.Scripts()
		}
	case SourceEditor:
		if editor := identity.FindShowingEditor(c.editor, String(v["guid"])); editor != nil {
			return editor.Scripts()
		}
	}
	return nil
}

// PointFrom reads a serialized point and rescales it from the recorded to
// the current block scale.
func (c *Codec) PointFrom(v any) (host.Point, bool) {
	switch p := v.(type) {
	case host.Point:
		return p, true
	case map[string]any:
		if _, ok := p["x"]; !ok {
			return host.Point{}, false
		}
		pt := host.Point{X: Float(p["x"]), Y: Float(p["y"])}
		return pt.Scale(c.rescale()), true
	}
	return host.Point{}, false
}

func (c *Codec) rescale() float64 {
	if c.editor == nil || c.recordScale <= 0 {
		return 1
	}
	current := c.editor.BlocksScale()
	if current <= 0 {
		return 1
	}
	return current / c.recordScale
}
