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
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/minutes/chunking"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/source"
)

// Processing stages, reported with every per-transcript failure.
const (
	stageFetch = "fetch"
	stageChunk = "chunk"
	stageEmbed = "embed"
)

// errInterrupted reports that ctx ended before the transcript was fetched.
// The transcript counts as not started and stays unmarked.
var errInterrupted = errors.New("interrupted before fetch completed")

// stageError records where a transcript failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

// processor turns one transcript into embedded chunks.
type processor interface {
	// process fetches, chunks and embeds the transcript. It returns
	// found=false when the source does not know the id.
	process(ctx context.Context, id core.TranscriptID) (chunks []core.EmbeddedChunk, found bool, err error)
}

// transcriptProcessor is the processor used by Pipeline.
type transcriptProcessor struct {
	source    source.Source
	generator *embedding.Generator
	pause     time.Duration
	sleep     func(context.Context, time.Duration)
	logger    *slog.Logger
}

var _ processor = (*transcriptProcessor)(nil)

// process fetches on ctx, so an interrupt during the fetch (including a
// rate-limit retry loop) returns errInterrupted. Once the transcript is in
// hand the embedding calls run on a context that ignores cancellation so the
// transcript always completes.
func (tp *transcriptProcessor) process(ctx context.Context, id core.TranscriptID) (chunks []core.EmbeddedChunk, found bool, err error) {
	stage := stageFetch
	defer func() {
		if r := recover(); r != nil {
			chunks, found = nil, true
			err = &stageError{stage: stage, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	transcript, err := tp.source.GetTranscript(ctx, id)
	if ctx.Err() != nil && (err != nil || transcript == nil) {
		return nil, false, errInterrupted
	}
	tp.sleep(ctx, tp.pause)
	if err != nil {
		return nil, true, &stageError{stage: stage, err: err}
	}
	if transcript == nil {
		return nil, false, nil
	}

	work := context.WithoutCancel(ctx)
	processed := time.Now().UTC()

	stage = stageChunk
	pieces := chunking.Chunk(transcript)
	tp.logger.Debug("chunked transcript", "transcript_id", id, "utterances", len(transcript.Utterances), "chunks", len(pieces))

	stage = stageEmbed
	chunks = make([]core.EmbeddedChunk, 0, len(pieces))
	for _, c := range pieces {
		vector, err := tp.generator.Embed(work, c.Text)
		tp.sleep(ctx, tp.pause)
		if err != nil {
			return nil, true, &stageError{stage: stage, err: fmt.Errorf("chunk %d: %w", c.ChunkIndex, err)}
		}
		chunks = append(chunks, core.EmbeddedChunk{
			VectorID:    core.VectorID(id, c.ChunkIndex),
			Values:      vector,
			Chunk:       c,
			Model:       tp.generator.Model(),
			Dimensions:  tp.generator.Dimensions(),
			ContentHash: core.ContentHash(c.Text),
			ProcessedAt: processed,
		})
	}
	return chunks, true, nil
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
