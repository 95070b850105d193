package arena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/arenalab/arena/internal/backend"
	"github.com/arenalab/arena/internal/db"
	"github.com/arenalab/arena/internal/history"
	"github.com/arenalab/arena/internal/notify"
	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
)

// fakeAPI scripts the backend client.
type fakeAPI struct {
	createInfo backend.ConversationInfo
	createErr  error
	createN    int

	likeAccepted bool
	likeErr      error
	likeCalls    []string

	hist    backend.History
	histErr error

	renameErr error
	deleteErr error

	feedbackQ  string
	feedbackA  string
	feedbackRs []string
}

func (f *fakeAPI) CreateConversation(ctx context.Context, taskID string) (backend.ConversationInfo, error) {
	f.createN++
	return f.createInfo, f.createErr
}

func (f *fakeAPI) History(ctx context.Context, sessionID string) (backend.History, error) {
	return f.hist, f.histErr
}

func (f *fakeAPI) Like(ctx context.Context, priID string) (bool, error) {
	f.likeCalls = append(f.likeCalls, priID)
	return f.likeAccepted, f.likeErr
}

func (f *fakeAPI) Rename(ctx context.Context, sessionID, title string) error { return f.renameErr }
func (f *fakeAPI) Delete(ctx context.Context, sessionID string) error        { return f.deleteErr }

func (f *fakeAPI) VoteFeedback(ctx context.Context, questionID, answerID string, reasons []string) error {
	f.feedbackQ, f.feedbackA, f.feedbackRs = questionID, answerID, reasons
	return nil
}

// fakeTransport scripts per-private-id frame sequences.
type fakeTransport struct {
	frames  map[string][]stream.Frame
	openErr map[string]error
}

func (t *fakeTransport) Open(ctx context.Context, req stream.Request) (stream.FrameReader, error) {
	if err := t.openErr[req.PriID]; err != nil {
		return nil, err
	}
	return &scriptedReader{frames: t.frames[req.PriID]}, nil
}

type scriptedReader struct {
	frames []stream.Frame
	pos    int
}

func (r *scriptedReader) Next() (stream.Frame, error) {
	if r.pos >= len(r.frames) {
		return stream.Frame{}, io.EOF
	}
	f := r.frames[r.pos]
	r.pos++
	return f, nil
}

func (r *scriptedReader) Close() error { return nil }

func deltaFrame(content string) stream.Frame {
	data := fmt.Sprintf(`{"choices":[{"delta":{"content":%q},"finish_reason":""}]}`, content)
	return stream.Frame{Event: "message", Data: []byte(data)}
}

func finishFrame() stream.Frame {
	return stream.Frame{Event: "message", Data: []byte(`{"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}`)}
}

func citationsFrame(summary string) stream.Frame {
	data := fmt.Sprintf(`{"citations":[{"summary":%q}]}`, summary)
	return stream.Frame{Event: "message", Data: []byte(data)}
}

func answeredStream(text, citation string) []stream.Frame {
	return []stream.Frame{deltaFrame(text), finishFrame(), citationsFrame(citation)}
}

var fullMapping = map[string]string{
	"ALPHA": "p-a", "BRAVO": "p-b", "CHARLIE": "p-c", "DELTA": "p-d",
}

type countingNotifier struct {
	events []notify.Event
}

func (c *countingNotifier) Send(ctx context.Context, ev notify.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *countingNotifier) Close() error { return nil }

func newTestService(t *testing.T, api *fakeAPI, transport stream.Transport) (*Service, *store.Store, *history.Archive, *countingNotifier) {
	t.Helper()
	conn, err := db.ConnectMemory()
	if err != nil {
		t.Fatalf("ConnectMemory() error = %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	arch := history.NewArchive(conn)
	notifier := &countingNotifier{}
	st := store.New(store.Options{})
	svc, err := New(Opts{
		Store:     st,
		API:       api,
		Transport: transport,
		Archive:   arch,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, st, arch, notifier
}

// One backend failing at open must not disturb the other three, and the
// finished round is archived, announced, and votable.
func TestAsk_FullRoundWithOneFailure(t *testing.T) {
	api := &fakeAPI{
		createInfo:   backend.ConversationInfo{SessionID: "srv-1", PriIDMapping: fullMapping},
		likeAccepted: true,
	}
	transport := &fakeTransport{
		frames: map[string][]stream.Frame{
			"p-a": answeredStream("alpha answer", "source a"),
			"p-b": answeredStream("bravo answer", "source b"),
			"p-d": answeredStream("delta answer", "source d"),
		},
		openErr: map[string]error{"p-c": errors.New("connect refused")},
	}
	svc, st, arch, notifier := newTestService(t, api, transport)

	sessionID, err := svc.Ask(context.Background(), "  why is the sky blue?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if sessionID != "srv-1" {
		t.Errorf("Ask() sessionID = %q, want srv-1", sessionID)
	}

	snap, ok := st.Session("srv-1")
	if !ok {
		t.Fatal("session srv-1 not in store")
	}
	if snap.Question != "why is the sky blue?" {
		t.Errorf("Question = %q, want trimmed question", snap.Question)
	}
	if len(snap.Answers) != 4 {
		t.Fatalf("len(Answers) = %d, want 4 placeholders", len(snap.Answers))
	}

	wantProviders := []string{"A", "B", "C", "D"}
	for i, want := range wantProviders {
		if snap.Answers[i].ProviderID != want {
			t.Errorf("Answers[%d].ProviderID = %q, want %q", i, snap.Answers[i].ProviderID, want)
		}
	}
	for _, ans := range snap.Answers {
		switch ans.ProviderID {
		case "C":
			if ans.IsComplete || ans.Error == "" {
				t.Errorf("C: IsComplete=%v Error=%q, want errored and not complete", ans.IsComplete, ans.Error)
			}
		default:
			if !ans.IsComplete || ans.Error != "" {
				t.Errorf("%s: IsComplete=%v Error=%q, want complete", ans.ProviderID, ans.IsComplete, ans.Error)
			}
			if len(ans.Citations) != 1 {
				t.Errorf("%s: %d citations, want 1", ans.ProviderID, len(ans.Citations))
			}
		}
	}

	// The settled session is archived and announced.
	if _, err := arch.Load("srv-1"); err != nil {
		t.Errorf("archive Load() error = %v, want archived session", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifier.events))
	}
	if notifier.events[0].Answered != 3 || notifier.events[0].Failed != 1 {
		t.Errorf("event = %+v, want 3 answered 1 failed", notifier.events[0])
	}

	// The session is still votable after the partial failure.
	if err := svc.Vote(context.Background(), "A"); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	snap, _ = st.Session("srv-1")
	if snap.VotedAnswerID != "A" {
		t.Errorf("VotedAnswerID = %q, want A", snap.VotedAnswerID)
	}
	if len(api.likeCalls) != 1 || api.likeCalls[0] != "p-a" {
		t.Errorf("likeCalls = %v, want [p-a]", api.likeCalls)
	}
}

func TestAsk_EmptyQuestionIgnored(t *testing.T) {
	api := &fakeAPI{}
	svc, st, _, _ := newTestService(t, api, &fakeTransport{})

	sessionID, err := svc.Ask(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if sessionID != "" {
		t.Errorf("Ask() sessionID = %q, want empty", sessionID)
	}
	if api.createN != 0 {
		t.Errorf("CreateConversation called %d times, want 0", api.createN)
	}
	if _, ok := st.ActiveSession(); ok {
		t.Error("active session exists after ignored blank question")
	}
}

func TestAsk_CreateConversationFailureAborts(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("backend down")}
	svc, st, _, notifier := newTestService(t, api, &fakeTransport{})

	_, err := svc.Ask(context.Background(), "why?")
	if err == nil {
		t.Fatal("Ask() error = nil, want create failure")
	}

	// The question landed locally but no placeholders exist.
	snap, ok := st.ActiveSession()
	if !ok {
		t.Fatal("no active session")
	}
	if snap.Question != "why?" {
		t.Errorf("Question = %q, want why?", snap.Question)
	}
	if len(snap.Answers) != 0 {
		t.Errorf("len(Answers) = %d, want 0", len(snap.Answers))
	}
	if len(notifier.events) != 0 {
		t.Errorf("got %d notifications, want 0 for an aborted round", len(notifier.events))
	}
}

func TestVote_RevoteClearsWithoutBackendCall(t *testing.T) {
	api := &fakeAPI{
		createInfo:   backend.ConversationInfo{SessionID: "srv-1", PriIDMapping: fullMapping},
		likeAccepted: true,
	}
	transport := &fakeTransport{frames: map[string][]stream.Frame{
		"p-a": answeredStream("a", "s"), "p-b": answeredStream("b", "s"),
		"p-c": answeredStream("c", "s"), "p-d": answeredStream("d", "s"),
	}}
	svc, st, _, _ := newTestService(t, api, transport)

	if _, err := svc.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if err := svc.Vote(context.Background(), "B"); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	calls := len(api.likeCalls)

	if err := svc.Vote(context.Background(), "B"); err != nil {
		t.Fatalf("re-Vote() error = %v", err)
	}
	if len(api.likeCalls) != calls {
		t.Errorf("re-vote hit the backend (%d calls, want %d)", len(api.likeCalls), calls)
	}
	snap, _ := st.ActiveSession()
	if snap.VotedAnswerID != "" {
		t.Errorf("VotedAnswerID = %q after re-vote, want cleared", snap.VotedAnswerID)
	}
}

func TestVote_RejectedLeavesStoreUntouched(t *testing.T) {
	api := &fakeAPI{
		createInfo: backend.ConversationInfo{SessionID: "srv-1", PriIDMapping: fullMapping},
	}
	transport := &fakeTransport{frames: map[string][]stream.Frame{
		"p-a": answeredStream("a", "s"), "p-b": answeredStream("b", "s"),
		"p-c": answeredStream("c", "s"), "p-d": answeredStream("d", "s"),
	}}
	svc, st, _, _ := newTestService(t, api, transport)

	if _, err := svc.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if err := svc.Vote(context.Background(), "A"); err == nil {
		t.Fatal("Vote() error = nil, want rejection")
	}
	snap, _ := st.ActiveSession()
	if snap.VotedAnswerID != "" {
		t.Errorf("VotedAnswerID = %q after rejected vote, want empty", snap.VotedAnswerID)
	}
}

func TestVote_UnknownAnswer(t *testing.T) {
	api := &fakeAPI{
		createInfo:   backend.ConversationInfo{SessionID: "srv-1", PriIDMapping: fullMapping},
		likeAccepted: true,
	}
	transport := &fakeTransport{frames: map[string][]stream.Frame{
		"p-a": answeredStream("a", "s"), "p-b": answeredStream("b", "s"),
		"p-c": answeredStream("c", "s"), "p-d": answeredStream("d", "s"),
	}}
	svc, _, _, _ := newTestService(t, api, transport)

	if _, err := svc.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if err := svc.Vote(context.Background(), "Z"); err == nil {
		t.Fatal("Vote() error = nil, want unknown-answer error")
	}
}

func TestLoadSessionHistory(t *testing.T) {
	api := &fakeAPI{
		hist: backend.History{
			SessionID:  "srv-9",
			QuestionID: "q-77",
			Question:   "what is rain?",
			ChatMap: map[string][]backend.HistoryChat{
				"BRAVO": {historyChat("what is rain?", "p-old-b", "old", false), historyChat("what is rain?", "p-b", "condensed water", true)},
				"ALPHA": {historyChat("what is rain?", "p-a", "falling drops\r\nfrom clouds", false)},
			},
		},
	}
	svc, st, _, _ := newTestService(t, api, &fakeTransport{})

	// Hydrated shell: the session exists with no content.
	st.ApplyTaskList([]store.TaskNode{
		{ID: "t1", Val: "Task", Children: []store.TaskNode{{ID: "srv-9", Val: "Session", Leaf: true}}},
	})

	if err := svc.LoadSessionHistory(context.Background(), "srv-9"); err != nil {
		t.Fatalf("LoadSessionHistory() error = %v", err)
	}

	snap, ok := st.Session("srv-9")
	if !ok {
		t.Fatal("session srv-9 not in store")
	}
	if snap.Question != "what is rain?" {
		t.Errorf("Question = %q, want the server question", snap.Question)
	}
	if snap.ServerQuestionID != "q-77" {
		t.Errorf("ServerQuestionID = %q, want q-77", snap.ServerQuestionID)
	}
	if len(snap.Answers) != 2 {
		t.Fatalf("len(Answers) = %d, want 2", len(snap.Answers))
	}
	// Canonical order, ids from the last chat's private id.
	if snap.Answers[0].ID != "p-a" || snap.Answers[0].ProviderID != "A" {
		t.Errorf("Answers[0] = %+v, want ALPHA's last chat", snap.Answers[0])
	}
	if snap.Answers[1].ID != "p-b" || snap.Answers[1].Content != "condensed water" {
		t.Errorf("Answers[1] = %+v, want BRAVO's last chat", snap.Answers[1])
	}
	if strings.Contains(snap.Answers[0].Content, "\r") {
		t.Errorf("Answers[0].Content = %q, want folded newlines", snap.Answers[0].Content)
	}
	if snap.VotedAnswerID != "p-b" {
		t.Errorf("VotedAnswerID = %q, want the liked answer", snap.VotedAnswerID)
	}

	mapping := st.PriIDMapping("srv-9")
	if mapping["ALPHA"] != "p-a" || mapping["BRAVO"] != "p-b" {
		t.Errorf("PriIDMapping = %v, want last private ids", mapping)
	}
}

func TestLoadSessionHistory_SkipsSessionWithContent(t *testing.T) {
	api := &fakeAPI{histErr: errors.New("should not be called")}
	svc, st, _, _ := newTestService(t, api, &fakeTransport{})

	st.StartSessionWithQuestion("already asked")
	_, sessionID := st.Active()

	if err := svc.LoadSessionHistory(context.Background(), sessionID); err != nil {
		t.Fatalf("LoadSessionHistory() error = %v, want nil for committed session", err)
	}
}

func TestRenameSession_BestEffortServerFailure(t *testing.T) {
	api := &fakeAPI{renameErr: errors.New("server down")}
	svc, st, _, _ := newTestService(t, api, &fakeTransport{})

	st.StartSessionWithQuestion("q")
	_, sessionID := st.Active()

	svc.RenameSession(context.Background(), sessionID, "better title")
	snap, _ := st.Session(sessionID)
	if snap.Title != "better title" {
		t.Errorf("Title = %q, want local rename despite server failure", snap.Title)
	}
}

func historyChat(question, priID, content string, liked bool) backend.HistoryChat {
	var chat backend.HistoryChat
	chat.Question = question
	chat.PrivateID = priID
	chat.Liked = liked
	chat.Choices = append(chat.Choices, struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	}{})
	chat.Choices[0].Delta.Content = content
	return chat
}
