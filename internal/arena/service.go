// Package arena wires the conversation store, stream orchestrator, delta
// coalescer, and backend client into the ask / vote / history flows.
package arena

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/arenalab/arena/internal/backend"
	"github.com/arenalab/arena/internal/coalesce"
	"github.com/arenalab/arena/internal/history"
	"github.com/arenalab/arena/internal/mask"
	"github.com/arenalab/arena/internal/notify"
	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
	"github.com/arenalab/arena/internal/truncate"
)

// Backend is the subset of the API client the service uses. *backend.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	CreateConversation(ctx context.Context, taskID string) (backend.ConversationInfo, error)
	History(ctx context.Context, sessionID string) (backend.History, error)
	Like(ctx context.Context, priID string) (bool, error)
	Rename(ctx context.Context, sessionID, title string) error
	Delete(ctx context.Context, sessionID string) error
	VoteFeedback(ctx context.Context, questionID, answerID string, reasons []string) error
}

// Service runs one question round at a time against N answer backends.
type Service struct {
	store    *store.Store
	api      Backend
	orch     *stream.Orchestrator
	archive  *history.Archive
	notifier notify.Notifier
	budget   int
	interval time.Duration
}

// Opts holds parameters for creating a Service. Archive and Notifier are
// optional; everything else is required.
type Opts struct {
	Store            *store.Store
	API              Backend
	Transport        stream.Transport
	Archive          *history.Archive
	Notifier         notify.Notifier
	TruncateBudget   int
	CoalesceInterval time.Duration
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("arena: store is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("arena: backend client is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("arena: stream transport is required")
	}
	budget := opts.TruncateBudget
	if budget <= 0 {
		budget = truncate.DefaultBudget
	}
	interval := opts.CoalesceInterval
	if interval <= 0 {
		interval = coalesce.DefaultInterval
	}
	return &Service{
		store:    opts.Store,
		api:      opts.API,
		orch:     stream.NewOrchestrator(opts.Transport),
		archive:  opts.Archive,
		notifier: opts.Notifier,
		budget:   budget,
		interval: interval,
	}, nil
}

// Store exposes the conversation state for read-side consumers.
func (s *Service) Store() *store.Store { return s.store }

// Ask runs one full question round: place the question, register the
// conversation when needed, stream every backend to completion, then archive
// and announce the settled session. It returns the id of the session that
// carried the round. A blank question is ignored.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil
	}

	sessionID := s.store.StartSessionWithQuestion(question)
	taskID, _ := s.store.Active()

	mapping := s.store.PriIDMapping(sessionID)
	if len(mapping) == 0 {
		// First round for this session: the backend issues the server
		// session id and the per-provider private ids. Failure here
		// aborts the round before any placeholder exists.
		info, err := s.api.CreateConversation(ctx, taskID)
		if err != nil {
			return "", fmt.Errorf("arena: create conversation: %w", err)
		}
		s.store.SetSessionConversationInfo(sessionID, info.SessionID, info.PriIDMapping)
		sessionID = info.SessionID
		mapping = info.PriIDMapping
	}

	placeholders := make([]store.Answer, 0, len(mask.Ordered))
	for _, maskCode := range mask.Ordered {
		if _, ok := mapping[maskCode]; !ok {
			continue
		}
		pid := mask.ProviderID(maskCode)
		placeholders = append(placeholders, store.Answer{ID: pid, ProviderID: pid})
	}
	s.store.SetAnswers(placeholders)

	buf := coalesce.NewBuffer(func(answerID, content string) {
		s.store.AppendAnswerDelta(answerID, content)
	})
	coalesceCtx, stopCoalesce := context.WithCancel(ctx)
	go buf.Start(coalesceCtx, s.interval)

	req := stream.Request{
		TaskID:    taskID,
		SessionID: sessionID,
		Messages:  []stream.Message{{Role: "user", Content: question}},
	}
	handlers := stream.Handlers{
		OnDelta: func(maskCode, content string) {
			buf.Add(mask.ProviderID(maskCode), content)
		},
		OnDone: func(maskCode string, citations []stream.Citation) {
			buf.Flush()
			s.store.FinalizeAnswer(mask.ProviderID(maskCode), store.AnswerPatch{Citations: citations})
		},
		OnError: func(maskCode string, err error) {
			buf.Flush()
			s.store.SetAnswerError(mask.ProviderID(maskCode), err.Error())
		},
	}

	err := s.orch.Run(ctx, req, mapping, handlers)
	stopCoalesce()
	if err != nil {
		return sessionID, fmt.Errorf("arena: ask: %w", err)
	}

	s.settle(ctx, sessionID)
	return sessionID, nil
}

// settle archives and announces a finished session. Both sinks are
// best-effort and never fail the round.
func (s *Service) settle(ctx context.Context, sessionID string) {
	snap, ok := s.store.Session(sessionID)
	if !ok {
		return
	}
	if s.archive != nil {
		if err := s.archive.Save(snap, s.budget); err != nil {
			log.Printf("arena: archive session %s: %v", sessionID, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notify.EventFromSnapshot(snap)); err != nil {
			log.Printf("arena: notify session %s: %v", sessionID, err)
		}
	}
}

// Vote records the single vote on the active session. Voting the already
// voted answer clears the vote locally; a new vote is confirmed with the
// backend before it lands in the store.
func (s *Service) Vote(ctx context.Context, answerID string) error {
	snap, ok := s.store.ActiveSession()
	if !ok {
		return fmt.Errorf("arena: no active session")
	}
	if snap.VotedAnswerID == answerID {
		s.store.SetVotedAnswerID("")
		return nil
	}

	priID, err := s.resolvePriID(snap, answerID)
	if err != nil {
		return err
	}
	accepted, err := s.api.Like(ctx, priID)
	if err != nil {
		return fmt.Errorf("arena: vote: %w", err)
	}
	if !accepted {
		return fmt.Errorf("arena: vote for %s rejected by backend", answerID)
	}
	s.store.SetVotedAnswerID(answerID)
	return nil
}

// resolvePriID maps a local answer id to the backend private id. Live
// placeholders carry the provider id, so the session mapping supplies the
// private id; history-loaded answers already carry it.
func (s *Service) resolvePriID(snap store.SessionSnapshot, answerID string) (string, error) {
	for _, ans := range snap.Answers {
		if ans.ID != answerID {
			continue
		}
		mapping := s.store.PriIDMapping(snap.ID)
		if priID, ok := mapping[mask.MaskCode(ans.ProviderID)]; ok && priID != "" {
			return priID, nil
		}
		return ans.ID, nil
	}
	return "", fmt.Errorf("arena: answer %s not found in session %s", answerID, snap.ID)
}

// SubmitVoteFeedback forwards the optional post-vote reasons.
func (s *Service) SubmitVoteFeedback(ctx context.Context, answerID string, reasons []string) error {
	snap, ok := s.store.ActiveSession()
	if !ok {
		return fmt.Errorf("arena: no active session")
	}
	if err := s.api.VoteFeedback(ctx, snap.ServerQuestionID, answerID, reasons); err != nil {
		return fmt.Errorf("arena: vote feedback: %w", err)
	}
	return nil
}

// LoadSessionHistory fills a hydrated-but-empty session from the server's
// stored conversation. A session that already has local content is left
// alone.
func (s *Service) LoadSessionHistory(ctx context.Context, sessionID string) error {
	if s.store.SessionHasContent(sessionID) {
		return nil
	}

	h, err := s.api.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("arena: load history for %s: %w", sessionID, err)
	}

	var (
		answers  []store.Answer
		mapping  = make(map[string]string)
		votedFor string
		question = h.Question
	)
	for _, maskCode := range mask.Ordered {
		chats := h.ChatMap[maskCode]
		if len(chats) == 0 {
			continue
		}
		last := chats[len(chats)-1]
		if question == "" {
			question = last.Question
		}
		content := truncate.Truncate(stream.FoldNewlines(last.Content()), s.budget)
		answers = append(answers, store.Answer{
			ID:         last.PrivateID,
			ProviderID: mask.ProviderID(maskCode),
			Content:    content,
			Citations:  last.Citations,
			IsComplete: true,
		})
		mapping[maskCode] = last.PrivateID
		if last.Liked {
			votedFor = last.PrivateID
		}
	}

	s.store.ApplySessionHistory(sessionID, question, h.QuestionID, answers, mapping, votedFor)
	return nil
}

// RenameSession renames locally and mirrors the title to the server on a
// best-effort basis.
func (s *Service) RenameSession(ctx context.Context, sessionID, title string) {
	s.store.RenameSession(sessionID, title)
	if err := s.api.Rename(ctx, sessionID, title); err != nil {
		log.Printf("arena: rename session %s on server: %v", sessionID, err)
	}
}

// DeleteSession removes the session locally and on the server.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) {
	s.store.DeleteSession(sessionID)
	if err := s.api.Delete(ctx, sessionID); err != nil {
		log.Printf("arena: delete session %s on server: %v", sessionID, err)
	}
}
