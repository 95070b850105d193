package store

// CreateTask adds a task at the head of the list and activates it. Beyond
// the cap the least recently updated task is evicted along with its sessions;
// eviction is by staleness, not list position, so an old-but-active task is
// never silently dropped in favor of an idle one.
func (s *Store) CreateTask(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	t := s.newEmptyTask(title)
	s.tasks = append([]*Task{t}, s.tasks...)

	if len(s.tasks) > s.maxTasks {
		var victim *Task
		for _, cand := range s.tasks {
			if cand.ID == t.ID {
				continue
			}
			if victim == nil || cand.UpdatedAt.Before(victim.UpdatedAt) {
				victim = cand
			}
		}
		if victim != nil {
			s.removeTask(victim.ID)
		}
	}

	s.activeTaskID = t.ID
	s.activeSessionID = ""
	return t.ID
}

// DeleteTask removes a task and cascades to its sessions. Deleting the last
// task synthesizes a fresh default task with no sessions.
func (s *Store) DeleteTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskByID(taskID) == nil {
		return
	}
	defer s.touch()

	s.removeTask(taskID)

	if len(s.tasks) == 0 {
		t := s.newEmptyTask("")
		s.tasks = []*Task{t}
		s.activeTaskID = t.ID
		s.activeSessionID = ""
		return
	}

	if s.activeTaskID != taskID {
		// Active task survives; the active session may not have.
		if s.sessionByID(s.activeSessionID) == nil {
			s.activeSessionID = ""
		}
		return
	}

	next := s.tasks[0]
	s.activeTaskID = next.ID
	s.activeSessionID = ""
	if sessions := s.taskSessions(next.ID); len(sessions) > 0 {
		s.activeSessionID = sessions[0].ID
	}
}

// RenameTask sets a task's title. Unknown ids are ignored.
func (s *Store) RenameTask(taskID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.taskByID(taskID)
	if t == nil {
		return
	}
	defer s.touch()
	t.Title = title
	t.UpdatedAt = s.now()
}

// ToggleTaskExpanded flips a task's sidebar expansion state.
func (s *Store) ToggleTaskExpanded(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.taskByID(taskID)
	if t == nil {
		return
	}
	defer s.touch()
	t.Expanded = !t.Expanded
}

// SetActiveTask activates a task and its most recently updated session.
func (s *Store) SetActiveTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskByID(taskID) == nil {
		return
	}
	defer s.touch()

	s.activeTaskID = taskID
	s.activeSessionID = ""
	if latest := s.latestSession(taskID); latest != nil {
		s.activeSessionID = latest.ID
	}
}
