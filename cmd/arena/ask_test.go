package main

import (
	"strings"
	"testing"

	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
)

func TestPrintAnswers(t *testing.T) {
	snap := store.SessionSnapshot{
		Question: "why is the sky blue?",
		Answers: []store.AnswerView{
			{
				ID: "A", ProviderID: "A", Content: "scattering", IsComplete: true,
				Citations: []stream.Citation{{Summary: "rayleigh"}},
			},
			{ID: "C", ProviderID: "C", Error: "connect refused", Content: "partial text"},
		},
		VotedAnswerID: "A",
	}

	var sb strings.Builder
	printAnswers(&sb, snap)
	out := sb.String()

	if !strings.Contains(out, "Q: why is the sky blue?") {
		t.Errorf("output missing question:\n%s", out)
	}
	if !strings.Contains(out, "[A] (ALPHA) *voted*") {
		t.Errorf("output missing voted marker on A:\n%s", out)
	}
	if !strings.Contains(out, "error: connect refused") {
		t.Errorf("output missing C's error:\n%s", out)
	}
	if !strings.Contains(out, "partial: partial text") {
		t.Errorf("output missing C's partial content:\n%s", out)
	}
	if !strings.Contains(out, "- rayleigh") {
		t.Errorf("output missing citation:\n%s", out)
	}
}

func TestIndent(t *testing.T) {
	got := indent("a\nb", "  ")
	want := "  a\n  b"
	if got != want {
		t.Errorf("indent() = %q, want %q", got, want)
	}
}
