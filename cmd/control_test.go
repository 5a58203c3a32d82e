package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/facematch/mock"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
		ok   bool
	}{
		{"p", commandPause, true},
		{"pause\n", commandPause, true},
		{" R ", commandResume, true},
		{"resume", commandResume, true},
		{"c", commandCancel, true},
		{"CANCEL", commandCancel, true},
		{"", 0, false},
		{"quit", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseCommand(tt.line)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseCommand(%q) = %v, %v, want %v, %v", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestController_InterruptWhileIdleCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := sorter.New(facematch.Collaborator{Embedder: mock.NewMockEmbedder()}, sorter.Options{}, nil)
	c := &controller{sorter: s, cancel: cancel}

	c.readCommands(ctx, strings.NewReader("x\nc\n"))

	if ctx.Err() == nil {
		t.Error("expected context to be cancelled when the sorter cannot be")
	}
}
