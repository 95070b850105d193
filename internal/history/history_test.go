package history

import (
	"strings"
	"testing"

	"github.com/arenalab/arena/internal/db"
	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	conn, err := db.ConnectMemory()
	if err != nil {
		t.Fatalf("ConnectMemory() error = %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	return NewArchive(conn)
}

func finishedSnapshot() store.SessionSnapshot {
	return store.SessionSnapshot{
		ID:       "srv-1",
		TaskID:   "task-1",
		Title:    "why is the sky blue",
		Question: "why is the sky blue?",
		Answers: []store.AnswerView{
			{
				ID: "p-a", ProviderID: "A", Content: "scattering", IsComplete: true,
				Citations: []stream.Citation{{RefID: "r1", Summary: "rayleigh", Labels: []string{"physics"}}},
			},
			{ID: "p-b", ProviderID: "B", Error: "stream failed"},
		},
		VotedAnswerID: "p-a",
	}
}

func TestSaveAndLoad(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(finishedSnapshot(), 2048); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	sess, err := a.Load("srv-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Question != "why is the sky blue?" {
		t.Errorf("Question = %q, want the saved question", sess.Question)
	}
	if sess.VotedAnswerID != "p-a" {
		t.Errorf("VotedAnswerID = %q, want p-a", sess.VotedAnswerID)
	}
	if len(sess.Answers) != 2 {
		t.Fatalf("len(Answers) = %d, want 2", len(sess.Answers))
	}

	var voted int = -1
	for i, ans := range sess.Answers {
		if ans.AnswerID == "p-a" {
			voted = i
		}
	}
	if voted < 0 {
		t.Fatal("answer p-a not found in archive")
	}
	cits := Citations(sess.Answers[voted])
	if len(cits) != 1 || cits[0].Summary != "rayleigh" {
		t.Fatalf("Citations() = %+v, want one rayleigh citation", cits)
	}
	if len(cits[0].Labels) != 1 || cits[0].Labels[0] != "physics" {
		t.Errorf("Labels = %v, want [physics]", cits[0].Labels)
	}
}

func TestSave_RejectsUnsettledAnswers(t *testing.T) {
	a := newTestArchive(t)
	snap := finishedSnapshot()
	snap.Answers = append(snap.Answers, store.AnswerView{ID: "p-c", ProviderID: "C", Content: "still going"})

	err := a.Save(snap, 2048)
	if err == nil {
		t.Fatal("Save() error = nil, want unsettled-answers error")
	}
	if !strings.Contains(err.Error(), "unsettled") {
		t.Errorf("error = %v, want mention of unsettled answers", err)
	}
}

func TestSave_ReplacesExisting(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(finishedSnapshot(), 2048); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	snap := finishedSnapshot()
	snap.Answers = snap.Answers[:1]
	snap.VotedAnswerID = ""
	if err := a.Save(snap, 2048); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	sess, err := a.Load("srv-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sess.Answers) != 1 {
		t.Errorf("len(Answers) = %d after replace, want 1", len(sess.Answers))
	}
	if sess.VotedAnswerID != "" {
		t.Errorf("VotedAnswerID = %q after replace, want empty", sess.VotedAnswerID)
	}
}

func TestSave_MarksTruncated(t *testing.T) {
	a := newTestArchive(t)
	snap := store.SessionSnapshot{
		ID:     "srv-2",
		TaskID: "task-1",
		Answers: []store.AnswerView{
			{ID: "p-a", ProviderID: "A", Content: strings.Repeat("中", 10), IsComplete: true},
		},
	}
	if err := a.Save(snap, 10); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	sess, err := a.Load("srv-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !sess.Answers[0].Truncated {
		t.Error("Truncated = false, want true at budget 10")
	}
}

func TestList_NewestFirst(t *testing.T) {
	a := newTestArchive(t)
	for _, id := range []string{"srv-1", "srv-2", "srv-3"} {
		snap := finishedSnapshot()
		snap.ID = id
		if err := a.Save(snap, 2048); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	sessions, err := a.List(2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(List(2)) = %d, want 2", len(sessions))
	}
}

func TestDelete(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(finishedSnapshot(), 2048); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.Delete("srv-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := a.Load("srv-1"); err == nil {
		t.Fatal("Load() after delete succeeded, want error")
	}

	// Deleting a missing session is not an error.
	if err := a.Delete("srv-404"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}
