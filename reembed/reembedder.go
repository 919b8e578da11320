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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/export"
	"github.com/poiesic/minutes/progress"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
	}
}

// Writer receives the re-embedded records. *export.Writer implements it.
type Writer interface {
	AppendBatch(ctx context.Context, chunks []core.EmbeddedChunk) error
}

// Reembedder re-embeds every record of an export file into a new writer.
type Reembedder struct {
	iterator  *RecordIterator
	processor *BatchProcessor
	writer    Writer
	config    *Config
	progress  io.Writer
}

// NewReembedder creates a new reembedder reading the export file at input.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(input string, format export.Format, generator *embedding.Generator, writer Writer, config *Config, progress io.Writer) (*Reembedder, error) {
	if input == "" {
		return nil, ErrInputRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if pw, ok := writer.(interface{ Path() string }); ok && samePath(pw.Path(), input) {
		return nil, ErrSameFile
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		iterator:  NewRecordIterator(input, format, config.BatchSize),
		processor: NewBatchProcessor(generator),
		writer:    writer,
		config:    config,
		progress:  progress,
	}, nil
}

// Run re-embeds every record and returns how many were written.
// A failed batch stops the run; the records already written stay written.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	totalRecords, err := r.iterator.Count()
	if err != nil {
		return 0, fmt.Errorf("failed to read records: %w", err)
	}
	if totalRecords == 0 {
		fmt.Fprintf(r.progress, "No records found in export file (0 records)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d)\n",
		totalRecords, r.config.BatchSize)

	tracker := progress.NewTracker(r.progress, "records", r.config.ReportInterval)
	tracker.Start(totalRecords)

	processed := 0
	err = r.iterator.ForEach(ctx, func(records []core.EmbeddedChunk) error {
		updated, err := r.processor.Process(ctx, records)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if err := r.writer.AppendBatch(ctx, updated); err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}

		processed += len(records)
		tracker.Increment(len(records))
		return nil
	})
	tracker.Finish()
	if err != nil {
		return processed, err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		totalRecords, elapsed.Round(time.Millisecond), float64(totalRecords)/max(elapsed.Seconds(), 1e-9))

	return processed, nil
}
