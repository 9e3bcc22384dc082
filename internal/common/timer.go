// Package common provides timing and memory reporting shared by the commands.
package common

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Lap is one named phase measured by a Timer.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Timer measures a run and optionally its phases. It is not safe for
// concurrent use.
type Timer struct {
	name    string
	start   time.Time
	lapFrom time.Time
	laps    []Lap
	total   time.Duration
	stopped bool
}

// NewNamedTimer starts a timer labelled name.
func NewNamedTimer(name string) *Timer {
	now := time.Now()
	return &Timer{name: name, start: now, lapFrom: now}
}

// Lap closes the current phase under name and returns its duration.
func (t *Timer) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.lapFrom)
	t.laps = append(t.laps, Lap{Name: name, Duration: d})
	t.lapFrom = now
	return d
}

// Stop freezes the total. Later calls return the same value.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.total = time.Since(t.start)
		t.stopped = true
	}
	return t.total
}

// Elapsed returns the frozen total after Stop, the running total before.
func (t *Timer) Elapsed() time.Duration {
	if t.stopped {
		return t.total
	}
	return time.Since(t.start)
}

// Name returns the timer label.
func (t *Timer) Name() string { return t.name }

// Laps returns the recorded phases in order.
func (t *Timer) Laps() []Lap {
	out := make([]Lap, len(t.laps))
	copy(out, t.laps)
	return out
}

// String renders "name: total (lap=d, ...)".
func (t *Timer) String() string {
	var b strings.Builder
	if t.name != "" {
		b.WriteString(t.name)
		b.WriteString(": ")
	}
	b.WriteString(t.Elapsed().String())
	if len(t.laps) > 0 {
		parts := make([]string, len(t.laps))
		for i, l := range t.laps {
			parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// LogValue groups the total and laps for structured logs.
func (t *Timer) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(t.laps)+1)
	attrs = append(attrs, slog.Duration("total", t.Elapsed()))
	for _, l := range t.laps {
		attrs = append(attrs, slog.Duration(l.Name, l.Duration))
	}
	return slog.GroupValue(attrs...)
}
