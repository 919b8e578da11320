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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/minutes"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/search"
)

const (
	defaultQuery = "action items"
	maxHits      = 5
	snippetWidth = 160
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	slog.SetDefault(slog.New(handler))
}

// Searches the vector sink configured in the environment: Pinecone when
// PINECONE_HOST is set, otherwise the local index in SEARCH_DB or ./vectors.db.
func main() {
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		panic(err)
	}
	aiConfig, err := cfg.AIConfig()
	if err != nil {
		panic(err)
	}

	opts := []minutes.Option{
		minutes.WithAIConfig(aiConfig),
		minutes.WithNamespace(cfg.PineconeNamespace),
	}
	if cfg.PineconeHost != "" {
		opts = append(opts, minutes.WithPineconeSink(cfg.PineconeAPIKey, cfg.PineconeHost))
	} else {
		dir := os.Getenv("SEARCH_DB")
		if dir == "" {
			dir = "./vectors.db"
		}
		opts = append(opts, minutes.WithBadgerSink(dir))
	}

	ws, err := minutes.Open(opts...)
	if err != nil {
		panic(err)
	}
	defer ws.Close()
	searcher, err := ws.NewSearcher()
	if err != nil {
		panic(err)
	}

	query := defaultQuery
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}
	results, err := searcher.Search(context.Background(), query, maxHits, search.Filter{})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: [%0.3f] %v (%v, %v)\n", i, hit.Rank, hit.Metadata["title"], hit.Metadata["speaker"], hit.Metadata["recording_date"])
		fmt.Printf("   %s\n", search.Snippet(hit.Text, query, snippetWidth))
	}
}
