package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		r.Add(Entry{Message: msg})
	}

	var got []string
	for _, e := range r.Entries() {
		got = append(got, e.Message)
	}
	if strings.Join(got, "") != "cde" {
		t.Fatalf("entries = %v", got)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestHandlerRecordsAttrs(t *testing.T) {
	ring := NewRing(10)
	log := slog.New(NewHandler(ring, slog.LevelInfo, nil))

	log.With("slot", "search").WithGroup("req").Info("retrying", "attempt", 2)
	log.Debug("hidden")

	entries := ring.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "retrying" || e.Attrs != "slot=search req.attempt=2" {
		t.Fatalf("entry = %+v", e)
	}
	if !strings.Contains(e.String(), "INFO  retrying slot=search") {
		t.Fatalf("string = %q", e.String())
	}
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notetree.log")
	log, ring, closer, err := Setup(Options{Debug: true, File: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	log.Debug("fetched children", "note", "root")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "fetched children") || !strings.Contains(string(data), "note=root") {
		t.Fatalf("log file = %q", data)
	}
	if ring.Len() != 1 {
		t.Fatalf("ring len = %d", ring.Len())
	}
}

func TestDefaultPathUsesStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	if got := DefaultPath(); got != "/tmp/state/notetree/notetree.log" {
		t.Fatalf("path = %q", got)
	}
}
