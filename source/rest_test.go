package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestREST(t *testing.T, handler http.Handler, opts ...Option) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithRateLimitPause(time.Millisecond),
	}, opts...)
	c, err := NewRESTClient("test-key", opts...)
	require.NoError(t, err)
	return c
}

// pagedHandler serves total transcripts ids t0..t(total-1) in pages.
func pagedHandler(t *testing.T, total int, seen *[]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			*seen = append(*seen, r.URL.RawQuery)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		from := (page - 1) * limit

		items := ""
		for i := from; i < from+limit && i < total; i++ {
			if items != "" {
				items += ","
			}
			items += fmt.Sprintf(`{"id":"t%d","title":"Meeting %d","date":"2024-01-0%dT10:00:00Z"}`, i, i, 1+i%9)
		}
		fmt.Fprintf(w, `{"data":[%s],"meta":{"total":%d}}`, items, total)
	}
}

func TestRESTClient_ListTranscripts(t *testing.T) {
	t.Run("pages until total reached", func(t *testing.T) {
		var queries []string
		c := newTestREST(t, pagedHandler(t, 5, &queries), WithPageSize(2))

		listing, err := c.ListTranscripts(context.Background(), ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []core.TranscriptID{"t0", "t1", "t2", "t3", "t4"}, listing.IDs)
		assert.Equal(t, 5, listing.Total)
		assert.Len(t, queries, 3)
	})

	t.Run("passes date filters to the service", func(t *testing.T) {
		var queries []string
		c := newTestREST(t, pagedHandler(t, 1, &queries))

		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		_, err := c.ListTranscripts(context.Background(), ListOptions{Start: &start, End: &end})
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Contains(t, queries[0], "start_date=2024-01-01")
		assert.Contains(t, queries[0], "end_date=2024-01-31")
	})

	t.Run("limit truncates", func(t *testing.T) {
		c := newTestREST(t, pagedHandler(t, 10, nil), WithPageSize(4))

		listing, err := c.ListTranscripts(context.Background(), ListOptions{Limit: 3})
		require.NoError(t, err)
		assert.Len(t, listing.IDs, 3)
		assert.Equal(t, 10, listing.Total)
	})

	t.Run("empty page stops paging", func(t *testing.T) {
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[],"meta":{"total":50}}`)
		}))

		listing, err := c.ListTranscripts(context.Background(), ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, listing.IDs)
	})

	t.Run("429 waits and retries the same page", func(t *testing.T) {
		var calls atomic.Int32
		inner := pagedHandler(t, 2, nil)
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			inner(w, r)
		}))

		listing, err := c.ListTranscripts(context.Background(), ListOptions{})
		require.NoError(t, err)
		assert.Len(t, listing.IDs, 2)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("failure mid-listing returns partial ids", func(t *testing.T) {
		inner := pagedHandler(t, 6, nil)
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			inner(w, r)
		}), WithPageSize(3))

		listing, err := c.ListTranscripts(context.Background(), ListOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnavailable)
		assert.Equal(t, []core.TranscriptID{"t0", "t1", "t2"}, listing.IDs)
	})

	t.Run("cancelled during rate limit pause", func(t *testing.T) {
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}), WithRateLimitPause(time.Hour))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.ListTranscripts(ctx, ListOptions{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRESTClient_GetTranscript(t *testing.T) {
	detail := `{"data":{
		"id":"abc","title":"Planning","date":"2024-04-15","duration":1800,
		"sentences":[
			{"text":"second","speaker_id":2,"start_time":5,"end_time":6},
			{"text":"first","speaker_id":1,"speaker_name":"Ada","start_time":1,"end_time":2}
		]}}`

	t.Run("decodes and normalises", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/transcripts/abc", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, detail)
		})
		mux.HandleFunc("/transcripts/abc/participants", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[{"name":"Ada","email":"ada@example.com","role":"host"}]}`)
		})
		c := newTestREST(t, mux)

		tr, err := c.GetTranscript(context.Background(), "abc")
		require.NoError(t, err)
		require.NotNil(t, tr)

		assert.Equal(t, core.TranscriptID("abc"), tr.ID)
		assert.Equal(t, "Planning", tr.Title)
		assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), tr.Date)
		assert.Equal(t, 1800.0, tr.Duration)
		require.Len(t, tr.Utterances, 2)
		assert.Equal(t, "first", tr.Utterances[0].Text, "utterances are sorted by start time")
		assert.Equal(t, "Ada", tr.Utterances[0].SpeakerName)
		assert.Equal(t, []core.Participant{{Name: "Ada", Email: "ada@example.com", Role: "host"}}, tr.Participants)
	})

	t.Run("participants failure yields empty list", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/transcripts/abc", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, detail)
		})
		mux.HandleFunc("/transcripts/abc/participants", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		})
		c := newTestREST(t, mux)

		tr, err := c.GetTranscript(context.Background(), "abc")
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Empty(t, tr.Participants)
		assert.NotNil(t, tr.Participants)
	})

	t.Run("404 is not found", func(t *testing.T) {
		c := newTestREST(t, http.NotFoundHandler())

		tr, err := c.GetTranscript(context.Background(), "missing")
		assert.NoError(t, err)
		assert.Nil(t, tr)
	})

	t.Run("null data is not found", func(t *testing.T) {
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":null}`)
		}))

		tr, err := c.GetTranscript(context.Background(), "gone")
		assert.NoError(t, err)
		assert.Nil(t, tr)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))

		_, err := c.GetTranscript(context.Background(), "abc")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("schema mismatch fails fast", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"data":{"id":"abc","sentences":"not a list"}}`)
		}))

		_, err := c.GetTranscript(context.Background(), "abc")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid timing is rejected", func(t *testing.T) {
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/transcripts/abc" {
				fmt.Fprint(w, `{"data":{"id":"abc","sentences":[{"text":"x","start_time":9,"end_time":1}]}}`)
				return
			}
			fmt.Fprint(w, `{"data":[]}`)
		}))

		_, err := c.GetTranscript(context.Background(), "abc")
		assert.ErrorIs(t, err, core.ErrInvalidUtteranceTiming)
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("summary as string or object", func(t *testing.T) {
		for body, want := range map[string]string{
			`"Discussed the roadmap."`:            "Discussed the roadmap.",
			`{"overview":"Talked about hiring."}`: "Talked about hiring.",
			`null`:                                "",
		} {
			c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/transcripts/abc" {
					fmt.Fprintf(w, `{"data":{"id":"abc","title":"T","summary":%s,"sentences":[]}}`, body)
					return
				}
				fmt.Fprint(w, `{"data":[]}`)
			}))

			tr, err := c.GetTranscript(context.Background(), "abc")
			require.NoError(t, err, body)
			assert.Equal(t, want, tr.Summary, body)
		}
	})

	t.Run("cancelled while fetching participants", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c := newTestREST(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/transcripts/abc" {
				fmt.Fprint(w, detail)
				return
			}
			cancel()
			w.WriteHeader(http.StatusTooManyRequests)
		}), WithRateLimitPause(time.Hour))

		tr, err := c.GetTranscript(ctx, "abc")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, tr)
	})
}

func TestNewRESTClient_Validation(t *testing.T) {
	_, err := NewRESTClient("")
	assert.Error(t, err)

	_, err = NewRESTClient("k", WithPageSize(0))
	assert.Error(t, err)

	_, err = NewRESTClient("k", WithRateLimitPause(-time.Second))
	assert.Error(t, err)
}
