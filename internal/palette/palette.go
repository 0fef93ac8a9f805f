// Package palette models the dominant-colour palettes extracted for each
// item and resolves an item to the single colour drawn in pixel summaries.
//
// Palettes are sequences of (hue, frequency, label) entries. The store keeps
// them as two delimited text columns; Encode and Decode are the only places
// that know about that format.
package palette

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a six digit lower-case hex RGB value without a leading '#'.
type Color string

// Fallback is drawn for items without a usable palette.
const Fallback Color = "000000"

// Entry is one colour of an item's palette.
type Entry struct {
	Hue       Color
	Frequency float64
	Label     string
}

// ParseColor normalises s into a Color. It accepts an optional leading '#'
// and three or six hex digits.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return "", fmt.Errorf("invalid colour %q: want 6 hex digits", s)
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color(s), nil
}

// RGBA converts the colour for drawing. Malformed values convert to black.
func (c Color) RGBA() color.RGBA {
	v, err := strconv.ParseUint(string(c), 16, 32)
	if err != nil || len(c) != 6 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// Hex returns the colour with a leading '#', as external tools expect it.
func (c Color) Hex() string {
	return "#" + string(c)
}

// First returns the first entry's colour. The boolean is false when the
// palette is empty or its first hue is malformed.
func First(entries []Entry) (Color, bool) {
	if len(entries) == 0 {
		return Fallback, false
	}
	c, err := ParseColor(string(entries[0].Hue))
	if err != nil {
		return Fallback, false
	}
	return c, true
}

// EncodeColors renders the hue/frequency column: "hue:freq,hue:freq".
func EncodeColors(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = string(e.Hue) + ":" + strconv.FormatFloat(e.Frequency, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// EncodeLabels renders the label column: "label,label".
func EncodeLabels(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Label
	}
	return strings.Join(parts, ",")
}

// Decode rebuilds entries from the two stored columns. It is lenient: an
// unparsable frequency decodes as 0 and missing labels decode as empty.
func Decode(colors, labels string) []Entry {
	colors = strings.TrimSpace(colors)
	if colors == "" {
		return nil
	}

	var labelParts []string
	if labels != "" {
		labelParts = strings.Split(labels, ",")
	}

	parts := strings.Split(colors, ",")
	entries := make([]Entry, 0, len(parts))
	for i, part := range parts {
		hue, freq, _ := strings.Cut(strings.TrimSpace(part), ":")
		e := Entry{Hue: Color(hue)}
		if f, err := strconv.ParseFloat(freq, 64); err == nil {
			e.Frequency = f
		}
		if i < len(labelParts) {
			e.Label = labelParts[i]
		}
		entries = append(entries, e)
	}
	return entries
}
