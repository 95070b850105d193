package store

// TaskNode is one node of the server-provided task forest: internal nodes
// are tasks, leaves are sessions.
type TaskNode struct {
	ID       string     `json:"id"`
	Val      string     `json:"val"`
	Leaf     bool       `json:"leaf"`
	Children []TaskNode `json:"children,omitempty"`
}

// ApplyTaskList reconciles a server task forest into the local collections.
// A server node matching a local id keeps all local mutable state (question,
// answers, vote, private id mapping) and only refreshes title and timestamps;
// unmatched server nodes become new empty entities; local-only entities are
// dropped. An empty snapshot synthesizes a single default task. Active ids
// survive only if the entities they point at do, so a background refresh
// never silently discards an in-progress conversation.
func (s *Store) ApplyTaskList(forest []TaskNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	prevTasks := make(map[string]*Task, len(s.tasks))
	for _, t := range s.tasks {
		prevTasks[t.ID] = t
	}
	prevSessions := make(map[string]*Session, len(s.sessions))
	for _, sess := range s.sessions {
		prevSessions[sess.ID] = sess
	}

	var nextTasks []*Task
	var nextSessions []*Session

	for _, node := range forest {
		if node.Leaf {
			// Sessions only appear as children of a task node.
			continue
		}

		if existing, ok := prevTasks[node.ID]; ok {
			existing.Title = node.Val
			existing.UpdatedAt = s.now()
			nextTasks = append(nextTasks, existing)
		} else {
			t := s.newEmptyTask(node.Val)
			t.ID = node.ID
			nextTasks = append(nextTasks, t)
		}

		for _, child := range node.Children {
			if !child.Leaf {
				continue
			}
			if existing, ok := prevSessions[child.ID]; ok {
				existing.TaskID = node.ID
				existing.Title = child.Val
				existing.UpdatedAt = s.now()
				nextSessions = append(nextSessions, existing)
			} else {
				sess := s.newEmptySession(node.ID, "")
				sess.ID = child.ID
				sess.Title = child.Val
				nextSessions = append(nextSessions, sess)
			}
		}
	}

	if len(nextTasks) == 0 {
		t := s.newEmptyTask("")
		s.tasks = []*Task{t}
		s.sessions = nil
		s.activeTaskID = t.ID
		s.activeSessionID = ""
		return
	}

	s.tasks = nextTasks
	s.sessions = nextSessions

	if s.taskByID(s.activeTaskID) == nil {
		s.activeTaskID = ""
		s.activeSessionID = ""
		return
	}
	if s.sessionByID(s.activeSessionID) == nil {
		s.activeSessionID = ""
		if sessions := s.taskSessions(s.activeTaskID); len(sessions) > 0 {
			s.activeSessionID = sessions[0].ID
		}
	}
}
