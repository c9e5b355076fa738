package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libra-ai-worker/internal/llm"
)

func TestBuildOrdersSystemHistoryUser(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}
	got := Build("sys", history, llm.Message{Role: "user", Content: "third"})

	want := []llm.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildWithEmptyHistory(t *testing.T) {
	got := Build("sys", nil, llm.Message{Role: "user", Content: "hello"})
	if len(got) != 2 || got[0].Role != "system" || got[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", got)
	}
}

func TestPersonaFallsBackToDefault(t *testing.T) {
	if p := Persona(""); !strings.Contains(p, "Libra") {
		t.Fatalf("default persona missing: %q", p)
	}
	if p := Persona("/nonexistent/prompt.txt"); !strings.Contains(p, "Libra") {
		t.Fatalf("unreadable path did not fall back: %q", p)
	}
}

func TestPersonaReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("custom persona\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if p := Persona(path); p != "custom persona" {
		t.Fatalf("unexpected persona: %q", p)
	}
}

func TestComposeJoinsBlocks(t *testing.T) {
	got := Compose("persona", "directives")
	if got != "persona\n\ndirectives" {
		t.Fatalf("unexpected compose output: %q", got)
	}
}
