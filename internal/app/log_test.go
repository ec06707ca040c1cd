package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReelHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "version recorded",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tversion recorded\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "claim refused",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tclaim refused\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "job enqueued",
			attrs:   []slog.Attr{slog.String("type", "image"), slog.Int("target", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tjob enqueued\ttype=image\ttarget=3\n",
		},
		{
			name:    "group attr is flattened",
			opID:    "op-1",
			level:   slog.LevelWarn,
			message: "sync skipped",
			attrs:   []slog.Attr{slog.Group("summary", slog.Int("pushed", 2), slog.Int("pulled", 0))},
			want:    "2024-06-15T14:30:45Z\tWARN\top-1\tsync skipped\tsummary.pushed=2\tsummary.pulled=0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &reelHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestReelHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &reelHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "worker")}).(*reelHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "job completed", 0)
	r.AddAttrs(slog.String("job", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=worker") {
		t.Errorf("expected pre-set attr component=worker, got: %q", got)
	}
	if !strings.Contains(got, "job=abc") {
		t.Errorf("expected record attr job=abc, got: %q", got)
	}
}

func TestReelHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &reelHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*reelHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestReelHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&reelHandler{w: &buf, opID: "op-1"})

	logger.WithGroup("sync").Info("done", "pulled", 1)

	if got := buf.String(); !strings.HasSuffix(got, "\tdone\tsync.pulled=1\n") {
		t.Errorf("output = %q, want grouped key sync.pulled", got)
	}
}

func TestReelHandler_Enabled(t *testing.T) {
	h := &reelHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}

	h = &reelHandler{level: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(INFO) with WARN threshold = true, want false")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(ERROR) with WARN threshold = false, want true")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
	if _, err := os.Stat(filepath.Join(dir, "reel.log")); err != nil {
		t.Errorf("reel.log not created: %v", err)
	}
}
