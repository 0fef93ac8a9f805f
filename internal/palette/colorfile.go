package palette

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrEmptyColorFile is returned for colour files with no content.
var ErrEmptyColorFile = errors.New("empty colour file")

// colorRecord is one element of a colour-extraction file.
type colorRecord struct {
	Hue       json.RawMessage `json:"h"`
	Frequency json.Number     `json:"f"`
	Label     string          `json:"t"`
}

// ColorFilePath returns where the colour-extraction output for id lives.
func ColorFilePath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// ParseColorFile parses the JSON array written by the colour extractor,
// e.g. [{"h":"ff0000","f":0.5,"t":"red"}]. Hues may be strings or numbers.
func ParseColorFile(data []byte) ([]Entry, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyColorFile
	}

	var records []colorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse colour file: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for i, r := range records {
		hue, err := decodeHue(r.Hue)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		e := Entry{Hue: hue, Label: r.Label}
		if r.Frequency != "" {
			f, err := r.Frequency.Float64()
			if err != nil {
				return nil, fmt.Errorf("record %d: invalid frequency: %w", i, err)
			}
			e.Frequency = f
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeHue accepts "ff0000", "#ff0000" or a packed integer 16711680.
func decodeHue(raw json.RawMessage) (Color, error) {
	if len(raw) == 0 {
		return "", errors.New("missing hue")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseColor(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid hue %s", raw)
	}
	v, err := strconv.ParseUint(n.String(), 10, 32)
	if err != nil || v > 0xffffff {
		return "", fmt.Errorf("invalid hue %s", raw)
	}
	return Color(fmt.Sprintf("%06x", v)), nil
}
