// Package record defines the event record of a captured session and the
// per-type handlers that replay it against a live editor.
package record

import (
	"errors"
	"fmt"
	"strings"
)

// Record is one entry of a session log.
type Record struct {
	// Type selects the cursor and replay handlers.
	Type string `json:"type" yaml:"type"`

	// Data is the serialized payload. It never holds live host objects.
	Data map[string]any `json:"data" yaml:"data"`

	// TimeDelta is the number of milliseconds since the previous capture.
	TimeDelta int64 `json:"timeDelta" yaml:"timeDelta"`
}

// New returns a record of type typ carrying an already serialized payload.
func New(typ string, data map[string]any) Record {
	if data == nil {
		data = map[string]any{}
	}
	return Record{Type: typ, Data: data}
}

// Validate checks that the record is well-formed.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return errors.New("type must be non-empty")
	}
	if r.TimeDelta < 0 {
		return fmt.Errorf("timeDelta must be >= 0, got %d", r.TimeDelta)
	}
	return nil
}

// Message returns the host event name the record was captured from, if
// the payload carries one.
func (r Record) Message() string {
	s, _ := r.Data["message"].(string)
	return s
}

// Record types understood by DefaultRegistry.
const (
	TypeBlockDrop     = "blockDrop"
	TypeInputSlotEdit = "inputSlotEdit"
	TypeRun           = "run"
	TypeStop          = "stop"
	TypeChangeCat     = "changeCategory"
	TypeMenu          = "menu"
	TypeMenuItem      = "menuItemSelect"
	TypeSetBlockScale = "setBlockScale"
	TypeInputTyped    = "inputTyped"
	TypeNewBlock      = "blockType_newBlock"
	TypeSpriteDropped = "spriteDropped"
	TypePromptEdited  = "inputPromptEdited"
	TypePromptAccept  = "inputPromptAccept"
	TypeAddSprite     = "IDE_addSprite"
)

// Host messages that distinguish run records.
const (
	MsgGreenFlag    = "IDE.greenFlag"
	MsgClickRun     = "Block.clickRun"
	MsgClickStopRun = "Block.clickStopRun"
)
