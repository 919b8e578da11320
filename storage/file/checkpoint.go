// Package file implements storage.CheckpointRepository on a single JSON file.
//
// The file holds {"processed_ids": [...]}. Saves write a temporary file in
// the same directory, fsync it, and rename it over the target, so a crash
// leaves either the old or the new checkpoint on disk and never a torn one.
// Files in the older one-id-per-line format are read transparently and
// rewritten as JSON on the next save.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// DefaultPath is the checkpoint file used when none is configured.
const DefaultPath = "export_checkpoint.json"

type checkpointDoc struct {
	ProcessedIDs []core.TranscriptID `json:"processed_ids"`
}

// CheckpointFile implements storage.CheckpointRepository for a local file.
type CheckpointFile struct {
	path   string
	logger *slog.Logger
}

var _ storage.CheckpointRepository = (*CheckpointFile)(nil)

// Option configures a CheckpointFile.
type Option func(*CheckpointFile) error

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *CheckpointFile) error {
		c.logger = logger
		return nil
	}
}

// NewCheckpointFile creates a repository backed by the file at path.
// The file need not exist yet.
func NewCheckpointFile(path string, opts ...Option) (*CheckpointFile, error) {
	if path == "" {
		return nil, errors.New("checkpoint path is required")
	}
	c := &CheckpointFile{path: path}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "checkpoint-file", "path", path)
	return c, nil
}

// Path returns the checkpoint file location.
func (c *CheckpointFile) Path() string {
	return c.path
}

// LoadCheckpoint reads the checkpoint. A missing file is an empty set.
// An unreadable or corrupt file is logged and also loads as an empty set.
func (c *CheckpointFile) LoadCheckpoint(ctx context.Context) (core.CheckpointSet, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("no checkpoint file, starting fresh")
		return core.NewCheckpointSet(), nil
	}
	if err != nil {
		c.logger.Error("reading checkpoint", "err", fmt.Errorf("%w: %w", storage.ErrCheckpointCorrupt, err))
		return core.NewCheckpointSet(), nil
	}

	ids, err := decode(data)
	if err != nil {
		c.logger.Error("checkpoint unreadable, starting fresh", "err", err)
		return core.NewCheckpointSet(), nil
	}

	set := core.NewCheckpointSet(ids...)
	c.logger.Info("loaded checkpoint", "processed", set.Len())
	return set, nil
}

// SaveCheckpoint atomically replaces the checkpoint file with set.
func (c *CheckpointFile) SaveCheckpoint(ctx context.Context, set core.CheckpointSet) error {
	ids := set.IDs()
	if ids == nil {
		ids = []core.TranscriptID{}
	}
	data, err := json.MarshalIndent(checkpointDoc{ProcessedIDs: ids}, "", "  ")
	if err != nil {
		return err
	}
	if err := WriteAtomic(c.path, data); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	c.logger.Debug("saved checkpoint", "processed", len(ids))
	return nil
}

// Reset deletes the checkpoint file. A missing file is not an error.
func (c *CheckpointFile) Reset() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op; the file is only open during load and save.
func (c *CheckpointFile) Close() error {
	return nil
}

// decode accepts the JSON document or the legacy one-id-per-line form.
func decode(data []byte) ([]core.TranscriptID, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var doc checkpointDoc
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrCheckpointCorrupt, err)
		}
		return doc.ProcessedIDs, nil
	}

	var ids []core.TranscriptID
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.ContainsAny(line, `{}[]"`) {
			return nil, fmt.Errorf("%w: unexpected line %q", storage.ErrCheckpointCorrupt, line)
		}
		ids = append(ids, core.TranscriptID(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCheckpointCorrupt, err)
	}
	return ids, nil
}

// WriteAtomic replaces path with data via a synced temporary file in the
// same directory and a rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
