package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects the on-disk layout of the export file.
type Format string

const (
	// FormatJSONL writes one record per line and only ever appends.
	FormatJSONL Format = "jsonl"
	// FormatJSON keeps a single {"vectors": [...]} document, rewritten per batch.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSONL, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath guesses the format from the file extension.
// Anything but .json is treated as jsonl.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatJSONL
}
