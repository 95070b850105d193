package store

import (
	"sort"
	"time"

	"github.com/arenalab/arena/internal/stream"
)

// SessionSummary is the sidebar-level view of a session.
type SessionSummary struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskSummary is the sidebar-level view of a task with its sessions, most
// recently updated first.
type TaskSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Expanded  bool             `json:"expanded"`
	Sessions  []SessionSummary `json:"sessions"`
}

// AnswerView is an immutable copy of one answer.
type AnswerView struct {
	ID         string            `json:"id"`
	ProviderID string            `json:"providerId"`
	Content    string            `json:"content"`
	Citations  []stream.Citation `json:"citations,omitempty"`
	Error      string            `json:"error,omitempty"`
	IsComplete bool              `json:"isComplete"`
}

// SessionSnapshot is an immutable copy of one session's full state.
type SessionSnapshot struct {
	ID               string       `json:"id"`
	TaskID           string       `json:"taskId"`
	Title            string       `json:"title"`
	Question         string       `json:"question"`
	ServerQuestionID string       `json:"serverQuestionId,omitempty"`
	Answers          []AnswerView `json:"answers"`
	VotedAnswerID    string       `json:"votedAnswerId,omitempty"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func snapshotSession(sess *Session) SessionSnapshot {
	snap := SessionSnapshot{
		ID:               sess.ID,
		TaskID:           sess.TaskID,
		Title:            sess.Title,
		Question:         sess.Question,
		ServerQuestionID: sess.ServerQuestionID,
		VotedAnswerID:    sess.VotedAnswerID,
		UpdatedAt:        sess.UpdatedAt,
	}
	snap.Answers = make([]AnswerView, len(sess.Answers))
	for i, a := range sess.Answers {
		view := AnswerView{
			ID:         a.ID,
			ProviderID: a.ProviderID,
			Content:    a.Content,
			Error:      a.Err,
			IsComplete: a.IsComplete,
		}
		if a.Citations != nil {
			view.Citations = make([]stream.Citation, len(a.Citations))
			copy(view.Citations, a.Citations)
		}
		snap.Answers[i] = view
	}
	return snap
}

// Tasks returns all tasks with their session summaries, tasks and sessions
// both ordered most recently updated first.
func (s *Store) Tasks() []TaskSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskSummary, 0, len(s.tasks))
	for _, t := range s.tasks {
		summary := TaskSummary{
			ID:        t.ID,
			Title:     t.Title,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
			Expanded:  t.Expanded,
		}
		for _, sess := range s.taskSessions(t.ID) {
			summary.Sessions = append(summary.Sessions, SessionSummary{
				ID:        sess.ID,
				TaskID:    sess.TaskID,
				Title:     sess.Title,
				UpdatedAt: sess.UpdatedAt,
			})
		}
		sort.SliceStable(summary.Sessions, func(i, j int) bool {
			return summary.Sessions[i].UpdatedAt.After(summary.Sessions[j].UpdatedAt)
		})
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Session returns an immutable snapshot of one session.
func (s *Store) Session(sessionID string) (SessionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return SessionSnapshot{}, false
	}
	return snapshotSession(sess), true
}

// ActiveSession returns a snapshot of the active session, if any.
func (s *Store) ActiveSession() (SessionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.activeSession()
	if sess == nil {
		return SessionSnapshot{}, false
	}
	return snapshotSession(sess), true
}

// Active returns the active task and session ids.
func (s *Store) Active() (taskID, sessionID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTaskID, s.activeSessionID
}

// PriIDMapping returns a copy of a session's mask code → private id mapping,
// or nil if the session has none yet.
func (s *Store) PriIDMapping(sessionID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessionByID(sessionID)
	if sess == nil || sess.PriIDMapping == nil {
		return nil
	}
	out := make(map[string]string, len(sess.PriIDMapping))
	for k, v := range sess.PriIDMapping {
		out[k] = v
	}
	return out
}

// Revision returns a counter bumped by every mutation. The dashboard feed
// polls it to detect change without diffing snapshots.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}
