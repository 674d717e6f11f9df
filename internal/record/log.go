package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// EncodeLog writes records as an indented JSON array.
func EncodeLog(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	return nil
}

// MarshalLog returns the encoded form of records.
func MarshalLog(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode log: %w", err)
	}
	return data, nil
}

// DecodeLog reads a JSON array of records and validates each one.
func DecodeLog(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("invalid log JSON: %w", err)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if records[i].Data == nil {
			records[i].Data = map[string]any{}
		}
	}
	return records, nil
}

// ReadLogFile decodes the log stored at path.
func ReadLogFile(path string) ([]Record, error) {
	f, err := os.Open(path) //nolint:gosec // file path from caller
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file close

	records, err := DecodeLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
