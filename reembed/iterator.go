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
package reembed

import (
	"context"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/export"
)

const (
	// DefaultBatchSize is the default number of records embedded per request
	DefaultBatchSize = 100
)

// RecordIterator iterates over the records of an export file in batches.
type RecordIterator struct {
	path      string
	format    export.Format
	batchSize int
	records   []core.EmbeddedChunk
	loaded    bool
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records per batch (must be > 0)
func NewRecordIterator(path string, format export.Format, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		path:      path,
		format:    format,
		batchSize: batchSize,
	}
}

func (it *RecordIterator) load() error {
	if it.loaded {
		return nil
	}
	records, err := export.ReadFile(it.path, it.format)
	if err != nil {
		return err
	}
	it.records = records
	it.loaded = true
	return nil
}

// Count returns the number of records in the file.
func (it *RecordIterator) Count() (int, error) {
	if err := it.load(); err != nil {
		return 0, err
	}
	return len(it.records), nil
}

// ForEach calls fn for each batch of records in file order.
// Iteration stops on first error from fn or when all records are processed.
// Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]core.EmbeddedChunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := it.load(); err != nil {
		return err
	}

	for i := 0; i < len(it.records); i += it.batchSize {
		end := min(i+it.batchSize, len(it.records))
		if err := fn(it.records[i:end]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
