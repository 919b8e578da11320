package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
	"github.com/poiesic/minutes/storage"
)

const (
	// verbatimBoost is added when every query word appears in the chunk.
	verbatimBoost = 0.3

	// overfetch is how many extra matches per wanted hit are pulled when a
	// filter will discard some of them.
	overfetch = 5
)

// Result is one ranked search hit.
type Result struct {
	core.Match
	// Rank is the similarity score plus any verbatim boost.
	Rank float32
	// Verbatim is set when every query word appears in the chunk text.
	Verbatim bool
}

// Filter narrows results by metadata. Empty fields match everything.
type Filter struct {
	TranscriptID core.TranscriptID
	Speaker      string
}

func (f Filter) empty() bool {
	return f.TranscriptID == "" && f.Speaker == ""
}

func (f Filter) matches(m core.Match) bool {
	if f.TranscriptID != "" && m.Metadata["transcript_id"] != string(f.TranscriptID) {
		return false
	}
	if f.Speaker != "" && m.Metadata["speaker"] != f.Speaker {
		return false
	}
	return true
}

// Searcher answers free-text queries against exported transcript chunks.
type Searcher struct {
	vectors   storage.VectorRepository
	generator *embedding.Generator
	namespace string
	minScore  float32
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithNamespace queries the given vector sink namespace.
func WithNamespace(namespace string) Option {
	return func(s *Searcher) error {
		s.namespace = namespace
		return nil
	}
}

// WithMinScore drops matches whose similarity is below score.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		s.minScore = score
		return nil
	}
}

// NewSearcher creates a new searcher. The generator must use the model and
// dimensions the vectors were exported with.
func NewSearcher(vectors storage.VectorRepository, generator *embedding.Generator, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	s := &Searcher{
		vectors:   vectors,
		generator: generator,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to maxHits chunks related to query, best first.
func (s *Searcher) Search(ctx context.Context, query string, maxHits int, filter Filter) ([]Result, error) {
	return s.SearchWithMonitor(ctx, query, maxHits, filter, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, maxHits int, filter Filter, monitor SearchMonitor) ([]Result, error) {
	if maxHits <= 0 {
		return nil, ErrInvalidMaxHits
	}
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	vector, err := s.generator.Embed(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	topK := maxHits
	if !filter.empty() {
		topK = maxHits * overfetch
	}
	matches, err := s.vectors.Query(ctx, s.namespace, vector, topK)
	if err != nil {
		s.logger.Error("error querying vectors", "namespace", s.namespace, "err", err)
		return nil, err
	}
	monitor.AfterVectorQuery(matches)

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.minScore || !filter.matches(m) {
			continue
		}
		r := Result{Match: m, Rank: m.Score}
		if containsAllQueryWords(m.Text, query) {
			r.Verbatim = true
			r.Rank += verbatimBoost
			monitor.VerbatimHit(m)
		}
		results = append(results, r)
	}

	// Sort by rank descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank > results[j].Rank
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
