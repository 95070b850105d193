// Package store owns the task → session → answer state tree. It is the
// single writer for all conversation state: every mutation goes through a
// transition method under one lock, and readers get deep-copied snapshots,
// so a consumer never observes a half-applied delta.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/arenalab/arena/internal/stream"
	"github.com/arenalab/arena/internal/truncate"
)

// Default caps, matching the deployed configuration.
const (
	DefaultMaxTasks           = 20
	DefaultMaxSessionsPerTask = 50
)

// sessionTitleLimit is the display length a question is cut to for a title.
const sessionTitleLimit = 24

const (
	defaultTaskTitle    = "New task"
	defaultSessionTitle = "New session"
)

// Task is a top-level grouping of sessions.
type Task struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Expanded  bool
}

// Answer is one backend's response within a session. The ID is the provider
// label while streaming and becomes the backend private id for sessions
// loaded from history.
type Answer struct {
	ID         string
	ProviderID string
	Content    string
	Citations  []stream.Citation
	Err        string
	IsComplete bool
}

// Session is one question-and-multi-answer exchange.
type Session struct {
	ID               string
	TaskID           string
	Title            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Question         string
	ServerQuestionID string
	Answers          []Answer
	VotedAnswerID    string
	PriIDMapping     map[string]string
}

// committed reports whether the session carries content that must not be
// clobbered by a new question: a question, any answers, or a vote.
func (s *Session) committed() bool {
	return strings.TrimSpace(s.Question) != "" || len(s.Answers) > 0 || s.VotedAnswerID != ""
}

// Options configures a Store. Zero values take the documented defaults; Now
// and NewID are injectable for deterministic tests.
type Options struct {
	MaxTasks           int
	MaxSessionsPerTask int
	TruncateBudget     int
	Now                func() time.Time
	NewID              func() string
}

// Store is the conversation state tree. All fields are guarded by mu.
type Store struct {
	mu sync.RWMutex

	tasks    []*Task
	sessions []*Session

	activeTaskID    string
	activeSessionID string

	maxTasks           int
	maxSessionsPerTask int
	budget             int

	now   func() time.Time
	newID func() string
	rev   uint64
}

// New creates an empty Store.
func New(opts Options) *Store {
	s := &Store{
		maxTasks:           opts.MaxTasks,
		maxSessionsPerTask: opts.MaxSessionsPerTask,
		budget:             opts.TruncateBudget,
		now:                opts.Now,
		newID:              opts.NewID,
	}
	if s.maxTasks <= 0 {
		s.maxTasks = DefaultMaxTasks
	}
	if s.maxSessionsPerTask <= 0 {
		s.maxSessionsPerTask = DefaultMaxSessionsPerTask
	}
	if s.budget <= 0 {
		s.budget = truncate.DefaultBudget
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = randomID
	}
	return s
}

// randomID generates an opaque local identifier.
func randomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Timestamp fallback keeps local-only usage working.
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(b)
}

// sessionTitle derives a display title from a question.
func sessionTitle(question string) string {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return defaultSessionTitle
	}
	runes := []rune(trimmed)
	if len(runes) > sessionTitleLimit {
		return string(runes[:sessionTitleLimit]) + "…"
	}
	return trimmed
}

// --- internal helpers, caller holds mu ---

func (s *Store) touch() { s.rev++ }

func (s *Store) taskByID(id string) *Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Store) sessionByID(id string) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *Store) activeSession() *Session {
	if s.activeSessionID == "" {
		return nil
	}
	return s.sessionByID(s.activeSessionID)
}

// taskSessions returns the sessions under one task, in list order.
func (s *Store) taskSessions(taskID string) []*Session {
	var out []*Session
	for _, sess := range s.sessions {
		if sess.TaskID == taskID {
			out = append(out, sess)
		}
	}
	return out
}

// latestSession returns the most recently updated session under a task.
func (s *Store) latestSession(taskID string) *Session {
	var best *Session
	for _, sess := range s.taskSessions(taskID) {
		if best == nil || sess.UpdatedAt.After(best.UpdatedAt) {
			best = sess
		}
	}
	return best
}

// oldestSession returns the least recently updated session under a task,
// the eviction victim when the per-task cap is exceeded.
func (s *Store) oldestSession(taskID string) *Session {
	var worst *Session
	for _, sess := range s.taskSessions(taskID) {
		if worst == nil || sess.UpdatedAt.Before(worst.UpdatedAt) {
			worst = sess
		}
	}
	return worst
}

// touchTask bumps a task's UpdatedAt when a child session changes.
func (s *Store) touchTask(taskID string) {
	if t := s.taskByID(taskID); t != nil {
		t.UpdatedAt = s.now()
	}
}

func (s *Store) newEmptyTask(title string) *Task {
	now := s.now()
	if title == "" {
		title = defaultTaskTitle
	}
	return &Task{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Expanded:  true,
	}
}

func (s *Store) newEmptySession(taskID, question string) *Session {
	now := s.now()
	return &Session{
		ID:        s.newID(),
		TaskID:    taskID,
		Title:     sessionTitle(question),
		CreatedAt: now,
		UpdatedAt: now,
		Question:  strings.TrimSpace(question),
	}
}

// ensureTask guarantees an active task exists, synthesizing a default one
// for a store that has never had any.
func (s *Store) ensureTask() *Task {
	if t := s.taskByID(s.activeTaskID); t != nil {
		return t
	}
	if len(s.tasks) > 0 {
		s.activeTaskID = s.tasks[0].ID
		return s.tasks[0]
	}
	t := s.newEmptyTask("")
	s.tasks = []*Task{t}
	s.activeTaskID = t.ID
	return t
}

// insertSession adds a session at the head and enforces the per-task cap by
// evicting the least recently updated session in that task.
func (s *Store) insertSession(sess *Session) {
	if len(s.taskSessions(sess.TaskID)) >= s.maxSessionsPerTask {
		if victim := s.oldestSession(sess.TaskID); victim != nil {
			s.removeSession(victim.ID)
		}
	}
	s.sessions = append([]*Session{sess}, s.sessions...)
}

func (s *Store) removeSession(id string) {
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return
		}
	}
}

func (s *Store) removeTask(id string) {
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	var kept []*Session
	for _, sess := range s.sessions {
		if sess.TaskID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
}
