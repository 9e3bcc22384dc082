package common

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerStopFreezesTotal(t *testing.T) {
	timer := NewNamedTimer("scan")
	assert.Equal(t, "scan", timer.Name())

	time.Sleep(5 * time.Millisecond)
	first := timer.Stop()
	assert.GreaterOrEqual(t, first, 5*time.Millisecond)

	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, first, timer.Stop())
	assert.Equal(t, first, timer.Elapsed())
}

func TestTimerLaps(t *testing.T) {
	timer := NewNamedTimer("batch")
	time.Sleep(2 * time.Millisecond)
	discover := timer.Lap("discover")
	time.Sleep(2 * time.Millisecond)
	decode := timer.Lap("decode")
	total := timer.Stop()

	laps := timer.Laps()
	require.Len(t, laps, 2)
	assert.Equal(t, "discover", laps[0].Name)
	assert.Equal(t, discover, laps[0].Duration)
	assert.Equal(t, "decode", laps[1].Name)
	assert.LessOrEqual(t, discover+decode, total)

	str := timer.String()
	assert.Contains(t, str, "batch: ")
	assert.Contains(t, str, "discover=")
	assert.Contains(t, str, "decode=")
}

func TestTimerLogValue(t *testing.T) {
	timer := NewNamedTimer("")
	timer.Lap("load")
	timer.Stop()
	assert.NotContains(t, timer.String(), ": ")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("done", "timing", timer)
	assert.Contains(t, buf.String(), "timing.total=")
	assert.Contains(t, buf.String(), "timing.load=")
}
