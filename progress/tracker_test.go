package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "transcripts", 10)

	tracker.Start(100)
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 100, tracker.Current())
	output := buf.String()
	assert.Contains(t, output, "100/100 transcripts", "should show completion")
	assert.Contains(t, output, "100.0%", "should show 100%")
}

func TestTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "items", 10)

	tracker.Start(100)
	tracker.Increment(5)
	assert.Empty(t, buf.String(), "below the interval")

	tracker.Increment(5)
	assert.Contains(t, buf.String(), "10/100")
}

func TestTracker_FinishKeepsReachedCount(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "transcripts", 100)

	tracker.Start(100)
	tracker.Increment(40)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "40/100", "interrupted run reports what it reached")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "transcripts", 10)

	tracker.Start(0)
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0")
}

func TestTracker_IncrementBeyondTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "transcripts", 10)

	tracker.Start(100)
	tracker.Increment(150)

	assert.Equal(t, 100, tracker.Current())
	assert.Contains(t, buf.String(), "100/100")
}

func TestTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "transcripts", 1)

	tracker.Increment(5)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

func TestTracker_NilWriter(t *testing.T) {
	tracker := NewTracker(nil, "transcripts", 0)
	tracker.Start(2)
	tracker.Increment(2)
	tracker.Finish()
	assert.Equal(t, 2, tracker.Current())
}
