// Package notify announces finished question rounds to chat platforms.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/arenalab/arena/internal/mask"
	"github.com/arenalab/arena/internal/store"
)

// Event describes one settled session.
type Event struct {
	TaskID    string
	SessionID string
	Title     string
	Question  string
	Answered  int    // answers that completed
	Failed    int    // answers that errored
	VotedFor  string // provider id of the voted answer, empty if none
}

// Notifier delivers events to one platform.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// EventFromSnapshot summarizes a finished session for announcement.
func EventFromSnapshot(snap store.SessionSnapshot) Event {
	ev := Event{
		TaskID:    snap.TaskID,
		SessionID: snap.ID,
		Title:     snap.Title,
		Question:  snap.Question,
	}
	for _, ans := range snap.Answers {
		switch {
		case ans.IsComplete:
			ev.Answered++
		case ans.Error != "":
			ev.Failed++
		}
		if snap.VotedAnswerID != "" && ans.ID == snap.VotedAnswerID {
			ev.VotedFor = ans.ProviderID
		}
	}
	return ev
}

// Headline renders the one-line summary used by every platform.
func (ev Event) Headline() string {
	title := ev.Title
	if title == "" {
		title = ev.SessionID
	}
	return fmt.Sprintf("Session %q settled: %d answered, %d failed", title, ev.Answered, ev.Failed)
}

// Body renders the detail text.
func (ev Event) Body() string {
	var b strings.Builder
	if ev.Question != "" {
		b.WriteString("Q: ")
		b.WriteString(ev.Question)
	}
	if ev.VotedFor != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Voted: %s (%s)", mask.MaskCode(ev.VotedFor), ev.VotedFor)
	}
	return b.String()
}

// Multi fans one event out to several notifiers. A failing platform is
// logged and does not block the others.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Send delivers ev to every notifier, returning the first error seen.
func (m *Multi) Send(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, ev); err != nil {
			log.Printf("notify: send failed: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close shuts down every notifier.
func (m *Multi) Close() error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
