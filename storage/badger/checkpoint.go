// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
// Each completed transcript is one key, so saving a grown set only writes
// the new ids.
type CheckpointRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
		logger:  backend.logger.With("component", "checkpoint-repository"),
	}
}

// SaveCheckpoint makes the stored set equal to set, writing only the ids
// that changed. The diff goes through a write batch so a first save of a
// large set is not limited by the transaction size. Removals are applied
// before additions: a save cut short can only lose ids, which are then
// exported again, never mark ids that were not completed.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, set core.CheckpointSet) error {
	var stored core.CheckpointSet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		stored, err = r.scan(tx, false)
		return err
	}, false)
	if err != nil {
		return err
	}

	var removed, added []core.TranscriptID
	for id := range stored {
		if !set.Contains(id) {
			removed = append(removed, id)
		}
	}
	for id := range set {
		if !stored.Contains(id) {
			added = append(added, id)
		}
	}
	if len(removed) == 0 && len(added) == 0 {
		return nil
	}

	if len(removed) > 0 {
		err = r.backend.WithBatch(func(wb *badger.WriteBatch) error {
			for _, id := range removed {
				if err := wb.Delete(makeCheckpointKey(id)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("removing checkpoint entries: %w", err)
		}
	}

	now := time.Now().UTC()
	err = r.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, id := range added {
			value := storage.MarshalCheckpointEntry(storage.CheckpointEntry{ID: id, SavedAt: now})
			if err := wb.Set(makeCheckpointKey(id), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("adding checkpoint entries: %w", err)
	}
	r.logger.Debug("saved checkpoint", "added", len(added), "removed", len(removed), "total", set.Len())
	return nil
}

// LoadCheckpoint returns every completed transcript id. A corrupt entry is
// logged and the whole checkpoint loads as empty.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context) (core.CheckpointSet, error) {
	var set core.CheckpointSet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		set, err = r.scan(tx, true)
		return err
	}, false)
	if err != nil {
		if set == nil {
			return nil, err
		}
		r.logger.Error("checkpoint unreadable, starting fresh", "err", err)
		return core.NewCheckpointSet(), nil
	}
	r.logger.Info("loaded checkpoint", "processed", set.Len())
	return set, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *CheckpointRepository) Close() error {
	return nil
}

// scan collects the stored ids. With decode set, each value is checked and
// a bad one yields a non-nil set alongside ErrCheckpointCorrupt.
func (r *CheckpointRepository) scan(tx *badger.Txn, decode bool) (core.CheckpointSet, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(checkpointPrefix)
	opts.PrefetchValues = decode
	iter := tx.NewIterator(opts)
	defer iter.Close()

	set := core.NewCheckpointSet()
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		id := checkpointIDFromKey(item.KeyCopy(nil))
		if decode {
			err := item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalCheckpointEntry(val)
				if err != nil {
					return err
				}
				if entry.ID != id {
					return storage.ErrCheckpointCorrupt
				}
				return nil
			})
			if err != nil {
				return set, errors.Join(storage.ErrCheckpointCorrupt, err)
			}
		}
		set.Add(id)
	}
	return set, nil
}
