package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/minutes/core"
)

const (
	DefaultGraphQLURL      = "https://api.fireflies.ai/graphql"
	DefaultGraphQLPageSize = 50

	codeObjectNotFound = "object_not_found"
)

const listQuery = `query Transcripts($limit: Int, $skip: Int) {
  transcripts(limit: $limit, skip: $skip) {
    id
    title
    date
  }
}`

const detailQuery = `query Transcript($id: String!) {
  transcript(id: $id) {
    id
    title
    date
    duration
    participants
    summary {
      overview
    }
    sentences {
      text
      speaker_id
      speaker_name
      start_time
      end_time
    }
  }
}`

// GraphQLClient reads transcripts from the GraphQL endpoint.
// The endpoint has no date filter, so listings are filtered locally.
type GraphQLClient struct {
	url       string
	pageSize  int
	pagePause time.Duration
	client    *jsonClient
	logger    *slog.Logger
}

var _ Source = (*GraphQLClient)(nil)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

func (e graphqlError) code() string {
	if e.Extensions.Code != "" {
		return e.Extensions.Code
	}
	return e.Code
}

type graphqlErrors []graphqlError

func (errs graphqlErrors) has(code string) bool {
	for _, e := range errs {
		if e.code() == code {
			return true
		}
	}
	return false
}

func (errs graphqlErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
		if c := e.code(); c != "" {
			msgs[i] += " (" + c + ")"
		}
	}
	return strings.Join(msgs, "; ")
}

type graphqlListResponse struct {
	Data struct {
		Transcripts []restSummary `json:"transcripts"`
	} `json:"data"`
	Errors graphqlErrors `json:"errors"`
}

type graphqlTranscript struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Date         flexTime    `json:"date"`
	Duration     float64     `json:"duration"`
	Participants []string    `json:"participants"`
	Summary      summaryText `json:"summary"`
	Sentences    []sentence  `json:"sentences"`
}

type graphqlDetailResponse struct {
	Data struct {
		Transcript *graphqlTranscript `json:"transcript"`
	} `json:"data"`
	Errors graphqlErrors `json:"errors"`
}

// NewGraphQLClient creates a GraphQL client authenticated with apiKey.
func NewGraphQLClient(apiKey string, opts ...Option) (*GraphQLClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	o, err := buildOptions(DefaultGraphQLURL, DefaultGraphQLPageSize, opts)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "graphql-source")

	return &GraphQLClient{
		url:       o.baseURL,
		pageSize:  o.pageSize,
		pagePause: o.pagePause,
		client: &jsonClient{
			apiKey:         apiKey,
			httpClient:     o.httpClient,
			rateLimitPause: o.rateLimitPause,
			logger:         logger,
		},
		logger: logger,
	}, nil
}

// ListTranscripts pages with limit/skip until a short page, keeping the
// transcripts whose recording date falls inside opts.
func (c *GraphQLClient) ListTranscripts(ctx context.Context, opts ListOptions) (*Listing, error) {
	listing := &Listing{}
	seen := 0

	for skip := 0; ; skip += c.pageSize {
		req := graphqlRequest{
			Query:     listQuery,
			Variables: map[string]any{"limit": c.pageSize, "skip": skip},
		}

		var resp graphqlListResponse
		err := c.client.doJSON(ctx, http.MethodPost, c.url, req, &resp)
		if err == nil && len(resp.Errors) > 0 {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, resp.Errors)
		}
		if errors.Is(err, errNotFound) {
			err = fmt.Errorf("%w: graphql endpoint returned 404", ErrSourceUnavailable)
		}
		if err != nil {
			c.logger.Error("listing failed", "skip", skip, "fetched", len(listing.IDs), "err", err)
			return c.finish(listing, opts), err
		}

		page := resp.Data.Transcripts
		seen += len(page)
		for _, s := range page {
			if opts.Contains(s.Date.Time) {
				listing.IDs = append(listing.IDs, core.TranscriptID(s.ID))
			}
		}
		c.logger.Info("fetched transcript page", "skip", skip, "seen", seen, "matched", len(listing.IDs))

		if len(page) < c.pageSize {
			return c.finish(listing, opts), nil
		}
		if err := sleep(ctx, c.pagePause); err != nil {
			return c.finish(listing, opts), err
		}
	}
}

func (c *GraphQLClient) finish(listing *Listing, opts ListOptions) *Listing {
	listing.Total = len(listing.IDs)
	if opts.Limit > 0 && len(listing.IDs) > opts.Limit {
		listing.IDs = listing.IDs[:opts.Limit]
	}
	return listing
}

// GetTranscript fetches one transcript with its sentences.
// A null transcript or an object_not_found error returns nil, nil.
func (c *GraphQLClient) GetTranscript(ctx context.Context, id core.TranscriptID) (*core.Transcript, error) {
	req := graphqlRequest{
		Query:     detailQuery,
		Variables: map[string]any{"id": string(id)},
	}

	var resp graphqlDetailResponse
	err := c.client.doJSON(ctx, http.MethodPost, c.url, req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Errors.has(codeObjectNotFound) {
		return nil, nil
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, resp.Errors)
	}

	d := resp.Data.Transcript
	if d == nil {
		return nil, nil
	}
	if d.ID == "" {
		d.ID = string(id)
	}

	participants := make([]core.Participant, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, participantFromAddress(p))
	}

	return buildTranscript(detail{
		id:           core.TranscriptID(d.ID),
		title:        d.Title,
		summary:      d.Summary,
		date:         d.Date,
		duration:     d.Duration,
		participants: participants,
		sentences:    d.Sentences,
	})
}

// participantFromAddress builds a participant from the bare strings the
// GraphQL API returns, which are usually email addresses.
func participantFromAddress(s string) core.Participant {
	s = strings.TrimSpace(s)
	if at := strings.IndexByte(s, '@'); at > 0 {
		return core.Participant{Name: s[:at], Email: s}
	}
	return core.Participant{Name: s}
}

