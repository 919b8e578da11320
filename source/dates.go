package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

// ParseDate parses a user-supplied date as RFC3339 or YYYY-MM-DD (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q: want YYYY-MM-DD or RFC3339", s)
}

// flexTime decodes the date shapes the service is known to send:
// RFC3339 strings, bare YYYY-MM-DD strings, and epoch milliseconds either as
// a JSON number or a numeric string. Null decodes as the zero time.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			f.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		t, err := ParseDate(s)
		if err != nil {
			return err
		}
		f.Time = t
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("unrecognised date %s", data)
	}
	f.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// formatDateParam renders t for a query string. Midnight values use the
// bare date form the REST API documents.
func formatDateParam(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dateOnly)
	}
	return t.Format(time.RFC3339)
}
