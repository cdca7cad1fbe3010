package arbor

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTickStatsAdd(t *testing.T) {
	var acc tickStats
	acc.add(tickStats{input: time.Millisecond, render: 2 * time.Millisecond, events: 3, nodes: 5, items: 4})
	acc.add(tickStats{input: time.Millisecond, events: 1, nodes: 6, items: 5})
	if acc.ticks != 2 || acc.events != 4 {
		t.Errorf("ticks/events = %d/%d", acc.ticks, acc.events)
	}
	if acc.nodes != 6 || acc.items != 5 {
		t.Errorf("nodes/items should hold the latest tick: %d/%d", acc.nodes, acc.items)
	}
	if acc.total() != 4*time.Millisecond {
		t.Errorf("total = %v", acc.total())
	}
}

func TestDebugLogOncePerInterval(t *testing.T) {
	var buf bytes.Buffer
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)), withClock(clock.Now))
	wm.SetDebugMode(true)

	for range 10 {
		clock.Advance(50 * time.Millisecond)
		wm.Tick()
	}
	if strings.Contains(buf.String(), "tick stats") {
		t.Fatal("stats logged before the interval elapsed")
	}
	for range 10 {
		clock.Advance(60 * time.Millisecond)
		wm.Tick()
	}

	var found map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if rec["message"] == "tick stats" {
			if found != nil {
				t.Fatal("stats logged twice in one interval")
			}
			found = rec
		}
	}
	if found == nil {
		t.Fatal("no tick stats logged")
	}
	if found["component"] != "window_manager" || found["level"] != "debug" {
		t.Errorf("record = %v", found)
	}
	if ticks, _ := found["ticks"].(float64); ticks < 10 {
		t.Errorf("ticks = %v", found["ticks"])
	}
}

func TestDebugLogDisabled(t *testing.T) {
	var buf bytes.Buffer
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)), withClock(clock.Now))
	for range 30 {
		clock.Advance(100 * time.Millisecond)
		wm.Tick()
	}
	if strings.Contains(buf.String(), "tick stats") {
		t.Error("stats logged without debug mode")
	}
}
