// Package stream opens one answer stream per backend in parallel and decodes
// backend framing into canonical delta/done/error events. Nothing downstream
// of this package inspects raw frame shape.
package stream

import "context"

// Citation is an opaque evidence reference attached to a completed answer.
type Citation struct {
	RefID     string   `json:"refId,omitempty"`
	Summary   string   `json:"summary"`
	StartTime string   `json:"startTime,omitempty"`
	EndTime   string   `json:"endTime,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// Message is one turn of conversation context sent with a stream request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the payload for opening one backend answer stream.
type Request struct {
	TaskID    string    `json:"taskId"`
	SessionID string    `json:"session_id"`
	PriID     string    `json:"priId,omitempty"`
	Messages  []Message `json:"messages"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
}

// Frame is one discrete server-sent message: an event name plus raw payload.
type Frame struct {
	Event string
	Data  []byte
}

// FrameReader yields successive frames from one open stream. Next returns
// io.EOF when the stream ends normally and any other error on transport
// failure. Close releases the underlying connection.
type FrameReader interface {
	Next() (Frame, error)
	Close() error
}

// Transport opens a framed message stream for a request. The production
// implementation speaks SSE over HTTP; tests substitute scripted readers.
type Transport interface {
	Open(ctx context.Context, req Request) (FrameReader, error)
}

// Handlers receive canonical events for one mask code's stream. Within one
// stream the order is delta* then exactly one done or error; events for
// different mask codes arrive concurrently.
type Handlers struct {
	OnDelta func(maskCode, content string)
	OnDone  func(maskCode string, citations []Citation)
	OnError func(maskCode string, err error)
}
