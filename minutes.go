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
// Package minutes opens the stores and clients a command needs and builds the
// export pipeline, search and re-embedding on top of them.
package minutes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/ai/openai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/export"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/reembed"
	"github.com/poiesic/minutes/search"
	"github.com/poiesic/minutes/source"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/badger"
	"github.com/poiesic/minutes/storage/file"
	"github.com/poiesic/minutes/storage/pinecone"
)

// ErrNoVectorSink is returned by operations that need a vector sink when
// none is configured.
var ErrNoVectorSink = errors.New("no vector sink configured")

// Workspace owns the local state and clients for one command.
type Workspace struct {
	backends    map[string]*badger.Backend
	checkpoints storage.CheckpointRepository
	vectors     storage.VectorRepository
	provider    ai.AIProvider
	generator   *embedding.Generator
	namespace   string
	logger      *slog.Logger
}

// Option configures a Workspace.
type Option func(*options)

type options struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	checkpointFile string
	checkpointDir  string
	badgerSinkDir  string
	pineconeKey    string
	pineconeHost   string
	namespace      string
	embeddingOpts  []embedding.Option
	logger         *slog.Logger
}

// WithAIConfig sets the embedding backend configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of creating an OpenAI-compatible one.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithCheckpointFile keeps the checkpoint in a JSON file. This is the default.
func WithCheckpointFile(path string) Option {
	return func(o *options) {
		o.checkpointFile = path
		o.checkpointDir = ""
	}
}

// WithBadgerCheckpoints keeps the checkpoint in a BadgerDB directory.
func WithBadgerCheckpoints(dir string) Option {
	return func(o *options) {
		o.checkpointDir = dir
		o.checkpointFile = ""
	}
}

// WithBadgerSink upserts records into a local vector index in dir.
// It may share a directory with WithBadgerCheckpoints.
func WithBadgerSink(dir string) Option {
	return func(o *options) {
		o.badgerSinkDir = dir
		o.pineconeKey, o.pineconeHost = "", ""
	}
}

// WithPineconeSink upserts records into the Pinecone index at host.
func WithPineconeSink(apiKey, host string) Option {
	return func(o *options) {
		o.pineconeKey, o.pineconeHost = apiKey, host
		o.badgerSinkDir = ""
	}
}

// WithNamespace sets the vector sink namespace.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithEmbeddingOptions passes options to the embedding generator.
func WithEmbeddingOptions(opts ...embedding.Option) Option {
	return func(o *options) {
		o.embeddingOpts = append(o.embeddingOpts, opts...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open creates the workspace's stores and clients.
func Open(opts ...Option) (*Workspace, error) {
	o := &options{
		aiConfig:       ai.DefaultConfig(),
		checkpointFile: file.DefaultPath,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	w := &Workspace{
		backends:  make(map[string]*badger.Backend),
		namespace: o.namespace,
		logger:    o.logger,
	}
	if err := w.open(o); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Workspace) open(o *options) error {
	if o.checkpointDir != "" {
		backend, err := w.backend(o.checkpointDir)
		if err != nil {
			return fmt.Errorf("opening checkpoint store: %w", err)
		}
		w.checkpoints = badger.NewCheckpointRepository(backend)
	} else {
		c, err := file.NewCheckpointFile(o.checkpointFile, file.WithLogger(o.logger))
		if err != nil {
			return err
		}
		w.checkpoints = c
	}

	switch {
	case o.badgerSinkDir != "":
		backend, err := w.backend(o.badgerSinkDir)
		if err != nil {
			return fmt.Errorf("opening vector index: %w", err)
		}
		w.vectors = badger.NewVectorRepository(backend)
	case o.pineconeHost != "" || o.pineconeKey != "":
		repo, err := pinecone.NewRepository(o.pineconeKey, o.pineconeHost, pinecone.WithLogger(o.logger))
		if err != nil {
			return err
		}
		w.vectors = repo
	}

	provider := o.provider
	if provider == nil {
		if err := o.aiConfig.Validate(); err != nil {
			return err
		}
		p, err := openai.NewProvider(o.aiConfig)
		if err != nil {
			return err
		}
		provider = p
	}
	w.provider = provider

	genOpts := append([]embedding.Option{embedding.WithLogger(o.logger)}, o.embeddingOpts...)
	generator, err := embedding.NewGenerator(provider.Embedder(), o.aiConfig.EmbeddingModel, o.aiConfig.Dimensions, genOpts...)
	if err != nil {
		return err
	}
	w.generator = generator
	return nil
}

func (w *Workspace) backend(dir string) (*badger.Backend, error) {
	if b, ok := w.backends[dir]; ok {
		return b, nil
	}
	b, err := badger.OpenBackend(dir, false)
	if err != nil {
		return nil, err
	}
	w.backends[dir] = b
	return b, nil
}

// Close releases every store and client. It is safe on a partly opened
// workspace.
func (w *Workspace) Close() error {
	var errs []error
	if w.provider != nil {
		if err := w.provider.Close(); err != nil {
			w.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if w.vectors != nil {
		if err := w.vectors.Close(); err != nil {
			w.logger.Error("error closing vector sink", "err", err)
			errs = append(errs, err)
		}
	}
	if w.checkpoints != nil {
		if err := w.checkpoints.Close(); err != nil {
			w.logger.Error("error closing checkpoint store", "err", err)
			errs = append(errs, err)
		}
	}
	for dir, b := range w.backends {
		if err := b.Close(); err != nil {
			w.logger.Error("error closing backend storage", "dir", dir, "err", err)
			errs = append(errs, err)
		}
	}
	w.backends = nil
	return errors.Join(errs...)
}

func (w *Workspace) CheckpointRepository() storage.CheckpointRepository {
	return w.checkpoints
}

// VectorRepository returns the configured sink, or nil if there is none.
func (w *Workspace) VectorRepository() storage.VectorRepository {
	return w.vectors
}

func (w *Workspace) Generator() *embedding.Generator {
	return w.generator
}

// ResetCheckpoint forgets every completed transcript.
func (w *Workspace) ResetCheckpoint(ctx context.Context) error {
	if f, ok := w.checkpoints.(*file.CheckpointFile); ok {
		return f.Reset()
	}
	return w.checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet())
}

// NewExportWriter opens an export file that also feeds the vector sink.
func (w *Workspace) NewExportWriter(path string, format export.Format) (*export.Writer, error) {
	opts := []export.Option{
		export.WithFormat(format),
		export.WithNamespace(w.namespace),
		export.WithLogger(w.logger),
	}
	if w.vectors != nil {
		opts = append(opts, export.WithSink(w.vectors))
	}
	return export.NewWriter(path, opts...)
}

func (w *Workspace) NewPipeline(src source.Source, writer ingestion.Writer, opts ingestion.Options, options ...ingestion.Option) (*ingestion.Pipeline, error) {
	options = append([]ingestion.Option{ingestion.WithLogger(w.logger)}, options...)
	return ingestion.NewPipeline(src, w.generator, writer, w.checkpoints, opts, options...)
}

func (w *Workspace) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	if w.vectors == nil {
		return nil, ErrNoVectorSink
	}
	opts = append([]search.Option{search.WithNamespace(w.namespace), search.WithLogger(w.logger)}, opts...)
	return search.NewSearcher(w.vectors, w.generator, opts...)
}

func (w *Workspace) NewReembedder(input string, format export.Format, writer reembed.Writer, config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(input, format, w.generator, writer, config, progress)
}
