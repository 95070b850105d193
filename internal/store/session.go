package store

// StartNewSession creates an empty session under the active task and
// activates it, synthesizing a default task for a store that has none.
func (s *Store) StartNewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	task := s.ensureTask()
	sess := s.newEmptySession(task.ID, "")
	s.insertSession(sess)
	s.activeSessionID = sess.ID
	s.touchTask(task.ID)
	return sess.ID
}

// SetActiveSession activates a session, switches to its task, and expands
// that task. Unknown ids are ignored.
func (s *Store) SetActiveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return
	}
	defer s.touch()

	s.activeSessionID = sessionID
	s.activeTaskID = sess.TaskID
	if t := s.taskByID(sess.TaskID); t != nil {
		t.Expanded = true
	}
}

// DeleteSession removes a session. Deleting the last session under a task
// synthesizes a fresh empty one so the task is never session-less.
func (s *Store) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return
	}
	defer s.touch()

	taskID := sess.TaskID
	s.removeSession(sessionID)

	if len(s.taskSessions(taskID)) == 0 {
		fresh := s.newEmptySession(taskID, "")
		s.sessions = append(s.sessions, fresh)
		if s.activeSessionID == sessionID {
			s.activeSessionID = fresh.ID
		}
		return
	}

	if s.activeSessionID != sessionID {
		return
	}
	s.activeSessionID = ""
	if latest := s.latestSession(taskID); latest != nil {
		s.activeSessionID = latest.ID
	}
}

// RenameSession sets a session's title. Unknown ids are ignored.
func (s *Store) RenameSession(sessionID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return
	}
	defer s.touch()
	sess.Title = title
	sess.UpdatedAt = s.now()
}

// SessionHasContent reports whether a session already carries a question or
// answers. History loading is skipped for such sessions.
func (s *Store) SessionHasContent(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessionByID(sessionID)
	return sess != nil && (len(sess.Answers) > 0 || len(sess.Question) > 0)
}

// ApplySessionHistory replaces a session's content with a server-loaded
// exchange: question, settled answers, private id mapping, and prior vote.
func (s *Store) ApplySessionHistory(sessionID, question, serverQuestionID string, answers []Answer, priIDMapping map[string]string, votedAnswerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return
	}
	defer s.touch()

	sess.Question = question
	sess.ServerQuestionID = serverQuestionID
	sess.Answers = answers
	sess.PriIDMapping = priIDMapping
	sess.VotedAnswerID = votedAnswerID
	sess.UpdatedAt = s.now()
}

// SetSessionConversationInfo atomically swaps a session's local id for the
// server-issued one and records the private id mapping established by
// conversation creation. The question survives; answers and vote reset. A
// pre-existing session already holding the server id is dropped to avoid a
// duplicate.
func (s *Store) SetSessionConversationInfo(localSessionID, serverSessionID string, priIDMapping map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionByID(localSessionID) == nil {
		return
	}
	defer s.touch()

	var next []*Session
	for _, sess := range s.sessions {
		if sess.ID == localSessionID {
			sess.ID = serverSessionID
			sess.PriIDMapping = priIDMapping
			sess.ServerQuestionID = ""
			sess.Answers = nil
			sess.VotedAnswerID = ""
			sess.UpdatedAt = s.now()
			next = append(next, sess)
			continue
		}
		if sess.ID == serverSessionID {
			continue
		}
		next = append(next, sess)
	}
	s.sessions = next

	if s.activeSessionID == localSessionID {
		s.activeSessionID = serverSessionID
	}
}
