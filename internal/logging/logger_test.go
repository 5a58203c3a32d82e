package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kozaktomas/face-sorter/internal/events"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face-sorter.log")
	logger, err := New(Options{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hello", zap.String("k", "v"))
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"msg":"hello"`) || !strings.Contains(content, `"k":"v"`) {
		t.Errorf("log file missing entry: %s", content)
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug entry should be filtered at info level: %s", content)
	}
}

func TestQueueCore(t *testing.T) {
	q := events.NewQueue[events.LogLine]()
	logger := WithSession(zap.New(NewQueueCore(q, zapcore.InfoLevel)), "abc")

	logger.Info("copied", zap.String("folder", "alice"), zap.Int("index", 3))
	logger.Debug("ignored")
	logger.Warn("skipped")

	lines := q.Drain()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0].Message != "copied folder=alice index=3" {
		t.Errorf("lines[0].Message = %q, want %q", lines[0].Message, "copied folder=alice index=3")
	}
	if lines[0].Level != "info" {
		t.Errorf("lines[0].Level = %q, want info", lines[0].Level)
	}
	if lines[1].Level != "warn" || lines[1].Message != "skipped" {
		t.Errorf("unexpected second line: %+v", lines[1])
	}
}
