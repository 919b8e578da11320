package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/export"
	"github.com/poiesic/minutes/progress"
	"github.com/poiesic/minutes/source"
	"github.com/poiesic/minutes/storage"
)

// DefaultBatchSize is the number of transcripts between checkpoint saves.
const DefaultBatchSize = 10

// Writer receives each batch of records. *export.Writer implements it.
type Writer interface {
	AppendBatch(ctx context.Context, chunks []core.EmbeddedChunk) error
}

// Options are the run settings, fixed for the life of a Pipeline.
type Options struct {
	// BatchSize is the number of transcripts per checkpoint save.
	BatchSize int
	// RateLimitPause is slept after every detail fetch and embedding call.
	RateLimitPause time.Duration
	// ResumeFrom starts processing at this id, skipping the ids before it.
	ResumeFrom core.TranscriptID
	// Force reprocesses ids the checkpoint already holds.
	Force bool
	// List narrows the source listing.
	List source.ListOptions
}

// DefaultOptions returns the default run settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:      DefaultBatchSize,
		RateLimitPause: time.Second,
	}
}

// Pipeline exports transcripts from a source to a writer, recording
// progress in a checkpoint.
type Pipeline struct {
	source      source.Source
	writer      Writer
	checkpoints storage.CheckpointRepository
	proc        processor
	opts        Options
	pool        *ants.Pool
	tracker     *progress.Tracker
	logger      *slog.Logger
	state       atomic.Int32
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency processes up to n transcripts of a batch at once on a
// worker pool. Results are still written and checkpointed in list order.
// Default is 1, fully sequential.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if p.pool != nil {
			p.pool.Release()
			p.pool = nil
		}
		if n <= 1 {
			return nil
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithProgress reports progress through tracker.
func WithProgress(tracker *progress.Tracker) Option {
	return func(p *Pipeline) error {
		p.tracker = tracker
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline for one set of run options.
func NewPipeline(
	src source.Source,
	generator *embedding.Generator,
	writer Writer,
	checkpoints storage.CheckpointRepository,
	opts Options,
	options ...Option,
) (*Pipeline, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	if opts.RateLimitPause < 0 {
		opts.RateLimitPause = 0
	}

	p := &Pipeline{
		source:      src,
		writer:      writer,
		checkpoints: checkpoints,
		opts:        opts,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")
	if p.tracker == nil {
		p.tracker = progress.NewTracker(nil, "transcripts", 1)
	}

	p.proc = &transcriptProcessor{
		source:    src,
		generator: generator,
		pause:     opts.RateLimitPause,
		sleep:     sleep,
		logger:    p.logger,
	}
	return p, nil
}

// State returns the step the current or last run reached.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) transition(s State) {
	p.state.Store(int32(s))
	p.logger.Info("pipeline state", "state", s.String())
}

// outcome is the result of processing one transcript.
type outcome struct {
	id      core.TranscriptID
	started bool
	found   bool
	chunks  []core.EmbeddedChunk
	err     error
}

// Run performs one export. Per-transcript failures are logged and counted
// in the summary. An error is returned only when the checkpoint cannot be
// loaded at all. Cancelling ctx stops the run between transcripts after the
// completed work has been written and checkpointed.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{}

	p.transition(StateStart)

	p.transition(StateListing)
	ids := p.list(ctx)
	summary.Found = len(ids)
	if len(ids) == 0 {
		p.logger.Info("no transcripts to export")
		p.finish(summary, started)
		return summary, nil
	}

	p.transition(StateFiltering)
	// Loading is not cancellable: the checkpoint must be known before
	// anything is written.
	done, err := p.checkpoints.LoadCheckpoint(context.WithoutCancel(ctx))
	if err != nil {
		summary.Elapsed = time.Since(started)
		p.transition(StateDone)
		return summary, fmt.Errorf("loading checkpoint: %w", err)
	}
	todo := p.filter(ids, done, summary)

	p.transition(StateProcessing)
	p.tracker.Start(len(todo))
	for start := 0; start < len(todo); start += p.opts.BatchSize {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		end := min(start+p.opts.BatchSize, len(todo))
		outcomes := p.processBatch(ctx, todo[start:end])
		p.flush(ctx, outcomes, done, summary)
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
	}
	p.tracker.Finish()

	if w, ok := p.writer.(interface{ Stats() export.Stats }); ok {
		summary.SinkFailures = w.Stats().FailedUpserts
	}
	p.finish(summary, started)
	return summary, nil
}

func (p *Pipeline) finish(summary *Summary, started time.Time) {
	summary.Elapsed = time.Since(started)
	p.transition(StateDone)
	if summary.Interrupted {
		p.logger.Warn("run interrupted, completed batches are checkpointed")
	}
	summary.log(p.logger)
}

// list returns the distinct listed ids in listing order. A listing error
// keeps whatever ids arrived before it.
func (p *Pipeline) list(ctx context.Context) []core.TranscriptID {
	listing, err := p.source.ListTranscripts(ctx, p.opts.List)
	if err != nil {
		p.logger.Error("listing transcripts failed", "stage", "list", "err", err)
	}
	if listing == nil {
		return nil
	}
	if err != nil && len(listing.IDs) > 0 {
		p.logger.Warn("continuing with partial listing", "ids", len(listing.IDs))
	}

	seen := make(map[core.TranscriptID]struct{}, len(listing.IDs))
	ids := make([]core.TranscriptID, 0, len(listing.IDs))
	for _, id := range listing.IDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	p.logger.Info("listed transcripts", "count", len(ids), "reported_total", listing.Total)
	return ids
}

// filter drops checkpointed ids unless Force is set, then applies ResumeFrom.
func (p *Pipeline) filter(ids []core.TranscriptID, done core.CheckpointSet, summary *Summary) []core.TranscriptID {
	todo := make([]core.TranscriptID, 0, len(ids))
	for _, id := range ids {
		if done.Contains(id) {
			summary.AlreadyDone++
			if !p.opts.Force {
				continue
			}
		}
		todo = append(todo, id)
	}
	p.logger.Info("filtered transcripts", "remaining", len(todo), "already_done", summary.AlreadyDone, "force", p.opts.Force)

	if p.opts.ResumeFrom == "" {
		return todo
	}
	for i, id := range todo {
		if id == p.opts.ResumeFrom {
			p.logger.Info("resuming", "transcript_id", id, "skipped", i)
			return todo[i:]
		}
	}
	p.logger.Warn("resume id not in remaining transcripts, processing all", "transcript_id", p.opts.ResumeFrom)
	return todo
}

// processBatch processes ids and returns their outcomes in list order.
// Transcripts not started before ctx is cancelled have started=false.
func (p *Pipeline) processBatch(ctx context.Context, ids []core.TranscriptID) []outcome {
	outcomes := make([]outcome, len(ids))
	for i, id := range ids {
		outcomes[i].id = id
	}

	if p.pool == nil {
		for i := range outcomes {
			if ctx.Err() != nil {
				break
			}
			p.processOne(ctx, &outcomes[i])
		}
		return outcomes
	}

	var wg sync.WaitGroup
	for i := range outcomes {
		if ctx.Err() != nil {
			break
		}
		o := &outcomes[i]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			p.processOne(ctx, o)
		})
		if err != nil {
			wg.Done()
			o.started = true
			o.found = true
			o.err = fmt.Errorf("submitting to worker pool: %w", err)
		}
	}
	wg.Wait()
	return outcomes
}

func (p *Pipeline) processOne(ctx context.Context, o *outcome) {
	chunks, found, err := p.proc.process(ctx, o.id)
	if errors.Is(err, errInterrupted) {
		p.logger.Debug("fetch interrupted, leaving transcript unmarked", "transcript_id", o.id)
		return
	}
	o.started = true
	o.chunks, o.found, o.err = chunks, found, err
	p.tracker.Increment(1)
}

// flush writes the batch's records and then checkpoints the transcripts
// that completed. Writes and saves ignore cancellation so completed work
// is never lost to an interrupt.
func (p *Pipeline) flush(ctx context.Context, outcomes []outcome, done core.CheckpointSet, summary *Summary) {
	flushCtx := context.WithoutCancel(ctx)

	var records []core.EmbeddedChunk
	var completed []core.TranscriptID
	for _, o := range outcomes {
		switch {
		case !o.started:
			continue
		case o.err != nil:
			summary.Failed++
			var se *stageError
			stage := "process"
			if errors.As(o.err, &se) {
				stage = se.stage
			}
			p.logger.Error("transcript failed, skipping", "transcript_id", o.id, "stage", stage, "err", o.err)
		case !o.found:
			summary.NotFound++
			p.logger.Warn("transcript not found, skipping", "transcript_id", o.id)
		default:
			if len(o.chunks) == 0 {
				p.logger.Info("transcript has no utterances", "transcript_id", o.id)
			}
			records = append(records, o.chunks...)
			completed = append(completed, o.id)
		}
	}
	if len(completed) == 0 {
		return
	}

	if err := p.writer.AppendBatch(flushCtx, records); err != nil {
		summary.Failed += len(completed)
		p.logger.Error("writing batch failed, transcripts left unmarked",
			"stage", "write", "transcripts", len(completed), "records", len(records), "err", err)
		return
	}
	summary.Chunks += len(records)

	for _, id := range completed {
		done.Add(id)
	}
	summary.Processed += len(completed)
	if err := p.checkpoints.SaveCheckpoint(flushCtx, done); err != nil {
		p.logger.Error("saving checkpoint failed", "stage", "checkpoint", "processed", done.Len(), "err", err)
		return
	}
	p.logger.Info("batch complete", "transcripts", len(completed), "records", len(records), "checkpointed", done.Len())
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
