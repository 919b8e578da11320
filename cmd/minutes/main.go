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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/minutes"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/export"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/progress"
	"github.com/poiesic/minutes/reembed"
	"github.com/poiesic/minutes/source"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/badger"
	"github.com/poiesic/minutes/storage/file"
	"github.com/urfave/cli/v2"
)

const (
	sinkNone     = "none"
	sinkPinecone = "pinecone"
	sinkBadger   = "badger"

	backendFile   = "file"
	backendBadger = "badger"
)

// logFile is the --log-file target, closed in the After hook.
var logFile *os.File

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "minutes",
		Usage: "Export meeting transcripts as embedded chunks for vector search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also append log output to this file",
			},
		},
		Before: setupLogger,
		After:  closeLogFile,
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Fetch, chunk and embed transcripts into an export file",
				Action: exportCommand,
				Flags:  exportFlags(),
			},
			{
				Name:  "checkpoint",
				Usage: "Inspect or clear the export checkpoint",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the ids of completed transcripts",
						Action: checkpointShowCommand,
						Flags:  checkpointFlags(),
					},
					{
						Name:   "reset",
						Usage:  "Forget every completed transcript",
						Action: checkpointResetCommand,
						Flags:  checkpointFlags(),
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed an existing export file with a new model or dimensions",
				Action: reembedCommand,
				Flags:  reembedFlags(),
			},
		},
	}
}

func checkpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "checkpoint",
			Usage: "Checkpoint file, or BadgerDB directory with --checkpoint-backend badger",
			Value: file.DefaultPath,
		},
		&cli.StringFlag{
			Name:  "checkpoint-backend",
			Usage: "Checkpoint store (file, badger)",
			Value: backendFile,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (default from EMBEDDING_HOST)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (default from EMBEDDING_MODEL)",
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Embedding vector length (default from EMBEDDING_DIMENSIONS)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per embedding call",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
		&cli.BoolFlag{
			Name:    "normalize",
			Usage:   "Scale embeddings to unit length before writing",
			EnvVars: []string{"EMBEDDING_NORMALIZE"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Read settings from this file instead of .env",
		},
	}
}

func sinkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sink",
			Usage: "Also upsert records into a vector index (none, pinecone, badger)",
			Value: sinkNone,
		},
		&cli.StringFlag{
			Name:  "sink-path",
			Usage: "BadgerDB directory for --sink badger",
			Value: "vectors.db",
		},
		&cli.StringFlag{
			Name:  "namespace",
			Usage: "Vector index namespace (default from PINECONE_NAMESPACE)",
		},
	}
}

func exportFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Export file path",
			Value:   "fireflies_vectors.jsonl",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Export format (jsonl, json); inferred from --output when empty",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Transcripts per checkpoint save",
			Value: ingestion.DefaultBatchSize,
		},
		&cli.DurationFlag{
			Name:  "rate-limit-pause",
			Usage: "Pause after every transcript fetch and embedding call",
			Value: 1 * time.Second,
		},
		&cli.StringFlag{
			Name:  "start-date",
			Usage: "Earliest recording date (YYYY-MM-DD or RFC3339)",
		},
		&cli.StringFlag{
			Name:  "end-date",
			Usage: "Latest recording date, inclusive (YYYY-MM-DD or RFC3339)",
		},
		&cli.StringFlag{
			Name:  "resume-from",
			Usage: "Skip listed transcripts before this id",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Reprocess transcripts the checkpoint already holds",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Transcript API (rest, graphql); default from FIREFLIES_API",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Process at most this many listed transcripts",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Transcripts fetched and embedded in parallel",
			Value: 1,
		},
	}
	flags = append(flags, checkpointFlags()...)
	flags = append(flags, sinkFlags()...)
	return append(flags, embeddingFlags()...)
}

func reembedFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Existing export file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "New export file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Format of both files (jsonl, json); inferred from --input when empty",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Records per embedding call",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N records",
			Value: 100,
		},
	}
	flags = append(flags, sinkFlags()...)
	return append(flags, embeddingFlags()...)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(config.Overrides{
		EnvFile:        c.String("env-file"),
		FirefliesAPI:   c.String("source"),
		EmbeddingHost:  c.String("embedding-host"),
		EmbeddingModel: c.String("embedding-model"),
		Dimensions:     c.Int("dimensions"),
		Namespace:      c.String("namespace"),
	})
}

func formatFlag(c *cli.Context, path string) (export.Format, error) {
	if f := c.String("format"); f != "" {
		return export.ParseFormat(f)
	}
	return export.FormatFromPath(path), nil
}

// workspaceOptions translates the shared flags into workspace options.
func workspaceOptions(c *cli.Context, cfg *config.Config) ([]minutes.Option, error) {
	aiConfig, err := cfg.AIConfig()
	if err != nil {
		return nil, err
	}
	opts := []minutes.Option{
		minutes.WithAIConfig(aiConfig),
		minutes.WithNamespace(cfg.PineconeNamespace),
		minutes.WithLogger(slog.Default()),
		minutes.WithEmbeddingOptions(
			embedding.WithMaxAttempts(c.Int("max-retries")),
			embedding.WithBaseDelay(c.Duration("retry-delay")),
			embedding.WithNormalize(c.Bool("normalize")),
		),
	}

	switch c.String("checkpoint-backend") {
	case backendFile, "":
		opts = append(opts, minutes.WithCheckpointFile(c.String("checkpoint")))
	case backendBadger:
		opts = append(opts, minutes.WithBadgerCheckpoints(c.String("checkpoint")))
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q: must be file or badger", c.String("checkpoint-backend"))
	}

	switch strings.ToLower(c.String("sink")) {
	case sinkNone, "":
	case sinkBadger:
		opts = append(opts, minutes.WithBadgerSink(c.String("sink-path")))
	case sinkPinecone:
		if err := cfg.Require(config.KeyPineconeAPIKey, config.KeyPineconeHost); err != nil {
			return nil, err
		}
		opts = append(opts, minutes.WithPineconeSink(cfg.PineconeAPIKey, cfg.PineconeHost))
	default:
		return nil, fmt.Errorf("unknown sink %q: must be none, pinecone or badger", c.String("sink"))
	}
	return opts, nil
}

func newSource(cfg *config.Config) (source.Source, error) {
	opts := []source.Option{source.WithLogger(slog.Default())}
	switch strings.ToLower(cfg.FirefliesAPI) {
	case "rest", "":
		return source.NewRESTClient(cfg.FirefliesAPIKey, opts...)
	case "graphql":
		return source.NewGraphQLClient(cfg.FirefliesAPIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown source %q: must be rest or graphql", cfg.FirefliesAPI)
	}
}

func runOptions(c *cli.Context) (ingestion.Options, error) {
	opts := ingestion.DefaultOptions()
	opts.BatchSize = c.Int("batch-size")
	opts.RateLimitPause = c.Duration("rate-limit-pause")
	opts.ResumeFrom = core.TranscriptID(strings.TrimSpace(c.String("resume-from")))
	opts.Force = c.Bool("force")
	opts.List.Limit = c.Int("limit")

	if s := c.String("start-date"); s != "" {
		start, err := source.ParseDate(s)
		if err != nil {
			return opts, fmt.Errorf("--start-date: %w", err)
		}
		opts.List.Start = &start
	}
	if s := c.String("end-date"); s != "" {
		end, err := source.ParseDate(s)
		if err != nil {
			return opts, fmt.Errorf("--end-date: %w", err)
		}
		opts.List.End = &end
	}
	if opts.List.Start != nil && opts.List.End != nil && opts.List.End.Before(*opts.List.Start) {
		return opts, errors.New("--end-date is before --start-date")
	}
	if opts.BatchSize <= 0 {
		return opts, fmt.Errorf("batch-size must be greater than 0")
	}
	if opts.List.Limit < 0 {
		return opts, fmt.Errorf("limit must not be negative")
	}
	return opts, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. The pipeline then
// finishes its current batch, saves the checkpoint and returns.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func exportCommand(c *cli.Context) error {
	runOpts, err := runOptions(c)
	if err != nil {
		return err
	}
	output := c.String("output")
	format, err := formatFlag(c, output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Require(config.KeyFirefliesAPIKey, config.KeyOpenAIAPIKey); err != nil {
		return err
	}
	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	wsOpts, err := workspaceOptions(c, cfg)
	if err != nil {
		return err
	}

	ws, err := minutes.Open(wsOpts...)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	writer, err := ws.NewExportWriter(output, format)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer writer.Close()

	pipeline, err := ws.NewPipeline(src, writer, runOpts,
		ingestion.WithConcurrency(c.Int("concurrency")),
		ingestion.WithProgress(progress.NewTracker(c.App.ErrWriter, "transcripts", 1)),
	)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", cfg.FirefliesAPI)
	fmt.Fprintf(c.App.ErrWriter, "Output: %s (%s)\n", output, format)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s (%d dimensions)\n", cfg.EmbeddingModel, cfg.Dimensions)
	fmt.Fprintln(c.App.ErrWriter)

	ctx, stop := signalContext()
	defer stop()

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	printSummary(c.App.Writer, summary)
	return nil
}

func printSummary(w io.Writer, s *ingestion.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Transcripts found:     %d\n", s.Found)
	fmt.Fprintf(w, "Already processed:     %d\n", s.AlreadyDone)
	fmt.Fprintf(w, "Newly processed:       %d\n", s.Processed)
	if s.NotFound > 0 {
		fmt.Fprintf(w, "Not found:             %d\n", s.NotFound)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed:                %d\n", s.Failed)
	}
	fmt.Fprintf(w, "Chunks written:        %d\n", s.Chunks)
	if s.SinkFailures > 0 {
		fmt.Fprintf(w, "Vector sink failures:  %d\n", s.SinkFailures)
	}
	fmt.Fprintf(w, "Elapsed:               %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Interrupted {
		fmt.Fprintln(w, "Interrupted; rerun to continue from the checkpoint.")
	}
}

// openCheckpoints opens only the checkpoint store, without the embedding
// backend the other commands need.
func openCheckpoints(c *cli.Context) (storage.CheckpointRepository, func(), error) {
	path := c.String("checkpoint")
	switch c.String("checkpoint-backend") {
	case backendFile, "":
		repo, err := file.NewCheckpointFile(path)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	case backendBadger:
		backend, err := badger.OpenBackend(path, false)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		repo := badger.NewCheckpointRepository(backend)
		return repo, func() {
			repo.Close()
			backend.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q: must be file or badger", c.String("checkpoint-backend"))
	}
}

func checkpointShowCommand(c *cli.Context) error {
	repo, closeRepo, err := openCheckpoints(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	set, err := repo.LoadCheckpoint(c.Context)
	if err != nil {
		return err
	}
	for _, id := range set.IDs() {
		fmt.Fprintln(c.App.Writer, id)
	}
	fmt.Fprintf(c.App.ErrWriter, "%d transcripts completed\n", set.Len())
	return nil
}

func checkpointResetCommand(c *cli.Context) error {
	repo, closeRepo, err := openCheckpoints(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	if f, ok := repo.(*file.CheckpointFile); ok {
		err = f.Reset()
	} else {
		err = repo.SaveCheckpoint(c.Context, core.NewCheckpointSet())
	}
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	fmt.Fprintln(c.App.ErrWriter, "Checkpoint cleared")
	return nil
}

func reembedCommand(c *cli.Context) error {
	input := c.String("input")
	format, err := formatFlag(c, input)
	if err != nil {
		return err
	}
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Require(config.KeyOpenAIAPIKey); err != nil {
		return err
	}
	wsOpts, err := workspaceOptions(c, cfg)
	if err != nil {
		return err
	}
	ws, err := minutes.Open(wsOpts...)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	writer, err := ws.NewExportWriter(c.String("output"), format)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer writer.Close()

	reembedder, err := ws.NewReembedder(input, format, writer, reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Input: %s\n", input)
	fmt.Fprintf(c.App.ErrWriter, "Output: %s\n", c.String("output"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	ctx, stop := signalContext()
	defer stop()

	count, err := reembedder.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d records: %w", count, err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d records into %s\n", count, c.String("output"))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	var out io.Writer = c.App.ErrWriter
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(out, f)
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func closeLogFile(c *cli.Context) error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
