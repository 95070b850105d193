package store

import (
	"sort"
	"strings"

	"github.com/arenalab/arena/internal/mask"
	"github.com/arenalab/arena/internal/stream"
	"github.com/arenalab/arena/internal/truncate"
)

// StartSessionWithQuestion is the single junction deciding "continue this
// session" vs "fork a new one". A committed active session — one that already
// carries a question, answers, or a vote — is left untouched and a fresh
// session takes the question; an empty active session is mutated in place.
// Returns the id of the session now carrying the question.
func (s *Store) StartSessionWithQuestion(question string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	task := s.ensureTask()
	question = strings.TrimSpace(question)
	active := s.activeSession()

	if active == nil || active.committed() {
		sess := s.newEmptySession(task.ID, question)
		s.insertSession(sess)
		s.activeSessionID = sess.ID
		s.touchTask(task.ID)
		return sess.ID
	}

	// In-place update keeps the private id mapping from an earlier create.
	active.Question = question
	active.Title = sessionTitle(question)
	active.UpdatedAt = s.now()
	active.ServerQuestionID = ""
	active.Answers = nil
	active.VotedAnswerID = ""
	s.touchTask(task.ID)
	return active.ID
}

// SetServerQuestionID records the backend's question id on the active
// session once a round-trip returns it. Empty clears it.
func (s *Store) SetServerQuestionID(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	defer s.touch()
	sess.ServerQuestionID = questionID
	sess.UpdatedAt = s.now()
}

// SetAnswers installs the answer placeholders on the active session, in
// canonical provider order. Called before the first streamed byte so the
// consumer sees a stable N-wide answer list from the first render.
func (s *Store) SetAnswers(answers []Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	defer s.touch()

	sorted := make([]Answer, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return mask.OrderIndex(sorted[i].ProviderID) < mask.OrderIndex(sorted[j].ProviderID)
	})
	sess.Answers = sorted
	sess.UpdatedAt = s.now()
}

// AppendAnswerDelta grows one answer's content. Growth stops silently once
// the truncation guard has flagged the answer, and a settled answer is never
// mutated. The stored content can never exceed the budget, even transiently.
func (s *Store) AppendAnswerDelta(answerID, delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	for i := range sess.Answers {
		a := &sess.Answers[i]
		if a.ID != answerID {
			continue
		}
		if a.IsComplete || a.Err != "" {
			return
		}
		if truncate.IsTruncated(a.Content, s.budget) {
			return
		}
		a.Content = truncate.Truncate(a.Content+delta, s.budget)
		sess.UpdatedAt = s.now()
		s.touch()
		return
	}
}

// AnswerPatch carries the fields FinalizeAnswer may update.
type AnswerPatch struct {
	Content   *string
	Citations []stream.Citation
}

// FinalizeAnswer applies the completion patch and marks the answer complete.
// Completion wins over a previously recorded soft error for the same answer.
func (s *Store) FinalizeAnswer(answerID string, patch AnswerPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	for i := range sess.Answers {
		a := &sess.Answers[i]
		if a.ID != answerID {
			continue
		}
		if patch.Content != nil {
			a.Content = *patch.Content
		}
		if patch.Citations != nil {
			a.Citations = patch.Citations
		}
		a.IsComplete = true
		a.Err = ""
		sess.UpdatedAt = s.now()
		s.touch()
		return
	}
}

// SetAnswerError records a failure for one answer. Content already
// accumulated stays visible alongside the error.
func (s *Store) SetAnswerError(answerID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	for i := range sess.Answers {
		a := &sess.Answers[i]
		if a.ID != answerID {
			continue
		}
		a.Err = message
		sess.UpdatedAt = s.now()
		s.touch()
		return
	}
}

// SetVotedAnswerID records the session's single vote. Empty clears it.
func (s *Store) SetVotedAnswerID(answerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeSession()
	if sess == nil {
		return
	}
	defer s.touch()
	sess.VotedAnswerID = answerID
	sess.UpdatedAt = s.now()
}
