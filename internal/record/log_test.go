package record

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr string
	}{
		{name: "valid", rec: Record{Type: "stop", TimeDelta: 12}},
		{name: "empty type", rec: Record{Type: " "}, wantErr: "type must be non-empty"},
		{name: "negative delta", rec: Record{Type: "stop", TimeDelta: -1}, wantErr: "timeDelta must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLog_EncodeDecode(t *testing.T) {
	records := []Record{
		{Type: TypeSetBlockScale, Data: map[string]any{"scale": 1.0}},
		{Type: TypeRun, Data: map[string]any{"message": MsgGreenFlag}, TimeDelta: 250},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeLog(&buf, records))
	assert.Contains(t, buf.String(), "\n    {")
	assert.Contains(t, buf.String(), `"timeDelta": 250`)

	got, err := DecodeLog(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TypeRun, got[1].Type)
	assert.Equal(t, MsgGreenFlag, got[1].Message())
	assert.Equal(t, int64(250), got[1].TimeDelta)
}

func TestLog_DecodeErrors(t *testing.T) {
	_, err := DecodeLog(strings.NewReader(`{"type": "run"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log JSON")

	_, err = DecodeLog(strings.NewReader(`[{"type": "run"}, {"type": "", "data": {}}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")

	got, err := DecodeLog(strings.NewReader(`[{"type": "stop"}]`))
	require.NoError(t, err)
	assert.NotNil(t, got[0].Data)
}

func TestReadLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1700000000000-logs.json")
	data, err := MarshalLog([]Record{New(TypeStop, nil)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	got, err := ReadLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Record{{Type: TypeStop, Data: map[string]any{}}}, got)

	_, err = ReadLogFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}
