package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/poiesic/minutes/core"
)

const maxLineBytes = 64 << 20

// ReadFile loads every record from an export file written in format.
func ReadFile(path string, format Format) ([]core.EmbeddedChunk, error) {
	switch format {
	case FormatJSON:
		raw, err := loadDocument(path)
		if err != nil {
			return nil, err
		}
		chunks := make([]core.EmbeddedChunk, 0, len(raw))
		for i, r := range raw {
			var rec core.ExportRecord
			if err := json.Unmarshal(r, &rec); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			chunks = append(chunks, rec.EmbeddedChunk())
		}
		return chunks, nil

	case FormatJSONL:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening export file: %w", err)
		}
		defer f.Close()

		var chunks []core.EmbeddedChunk
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
		line := 0
		for scanner.Scan() {
			line++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			var rec core.ExportRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			chunks = append(chunks, rec.EmbeddedChunk())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading export file: %w", err)
		}
		return chunks, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
