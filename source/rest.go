package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/minutes/core"
)

const (
	DefaultRESTBaseURL  = "https://api.fireflies.ai/v1"
	DefaultRESTPageSize = 100
)

// RESTClient reads transcripts from the paged REST API.
// Date filtering is done by the service.
type RESTClient struct {
	baseURL   string
	pageSize  int
	pagePause time.Duration
	client    *jsonClient
	logger    *slog.Logger
}

var _ Source = (*RESTClient)(nil)

type restSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Date  flexTime `json:"date"`
}

type restListResponse struct {
	Data []restSummary `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

type restTranscript struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Summary   summaryText `json:"summary"`
	Date      flexTime    `json:"date"`
	Duration  float64     `json:"duration"`
	Sentences []sentence  `json:"sentences"`
}

type restDetailResponse struct {
	Data *restTranscript `json:"data"`
}

type restParticipantsResponse struct {
	Data []core.Participant `json:"data"`
}

// NewRESTClient creates a REST client authenticated with apiKey.
func NewRESTClient(apiKey string, opts ...Option) (*RESTClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	o, err := buildOptions(DefaultRESTBaseURL, DefaultRESTPageSize, opts)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "rest-source")

	return &RESTClient{
		baseURL:   strings.TrimSuffix(o.baseURL, "/"),
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

// ListTranscripts pages through /transcripts until the reported total is
// reached or a page comes back empty.
func (c *RESTClient) ListTranscripts(ctx context.Context, opts ListOptions) (*Listing, error) {
	listing := &Listing{}

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("page", strconv.Itoa(page))
		if opts.Start != nil {
			params.Set("start_date", formatDateParam(*opts.Start))
		}
		if opts.End != nil {
			params.Set("end_date", formatDateParam(*opts.End))
		}

		var resp restListResponse
		if err := c.client.doJSON(ctx, http.MethodGet, c.baseURL+"/transcripts?"+params.Encode(), nil, &resp); err != nil {
			if errors.Is(err, errNotFound) {
				err = fmt.Errorf("%w: transcript listing returned 404", ErrSourceUnavailable)
			}
			c.logger.Error("listing failed", "page", page, "fetched", len(listing.IDs), "err", err)
			return listing, err
		}

		listing.Total = resp.Meta.Total
		for _, s := range resp.Data {
			listing.IDs = append(listing.IDs, core.TranscriptID(s.ID))
		}
		c.logger.Info("fetched transcript page", "page", page, "fetched", len(listing.IDs), "total", listing.Total)

		if opts.Limit > 0 && len(listing.IDs) >= opts.Limit {
			listing.IDs = listing.IDs[:opts.Limit]
			return listing, nil
		}
		if len(listing.IDs) >= listing.Total || len(resp.Data) == 0 {
			return listing, nil
		}
		if err := sleep(ctx, c.pagePause); err != nil {
			return listing, err
		}
	}
}

// GetTranscript fetches the transcript and its participants.
// A participants failure is logged and yields an empty participant list.
func (c *RESTClient) GetTranscript(ctx context.Context, id core.TranscriptID) (*core.Transcript, error) {
	var resp restDetailResponse
	err := c.client.doJSON(ctx, http.MethodGet, c.transcriptURL(id), nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	participants, err := c.participants(ctx, id)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		c.logger.Warn("participants unavailable", "transcript_id", id, "err", err)
		participants = []core.Participant{}
	}

	d := resp.Data
	if d.ID == "" {
		d.ID = string(id)
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

func (c *RESTClient) participants(ctx context.Context, id core.TranscriptID) ([]core.Participant, error) {
	var resp restParticipantsResponse
	if err := c.client.doJSON(ctx, http.MethodGet, c.transcriptURL(id)+"/participants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *RESTClient) transcriptURL(id core.TranscriptID) string {
	return c.baseURL + "/transcripts/" + url.PathEscape(string(id))
}
