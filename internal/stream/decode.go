package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// chatFrame is the backend frame shape for a single answer stream.
type chatFrame struct {
	SessionID string     `json:"session_id"`
	PrivateID string     `json:"privateId"`
	MaskCode  string     `json:"maskCode"`
	Citations []Citation `json:"citations"`
	Choices   []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// newlineFolder collapses backend line-ending variants to a single \n
// convention: raw CRLF plus the two literal escaped forms some backends leak.
var newlineFolder = strings.NewReplacer(
	"\r\n", "\n",
	`\r\n`, "\n",
	"/r/n", "\n",
)

// FoldNewlines applies the same line-ending normalization the decoder uses,
// for content that arrives outside a live stream (stored history).
func FoldNewlines(s string) string {
	return newlineFolder.Replace(s)
}

// Event is the canonical tagged union emitted by the decoder.
type Event struct {
	Kind      EventKind
	Content   string     // Kind == EventDelta
	Citations []Citation // Kind == EventDone
}

// EventKind discriminates decoder events.
type EventKind int

const (
	EventDelta EventKind = iota
	EventDone
)

// decoderState tracks the per-stream completion protocol.
type decoderState int

const (
	awaitingContent decoderState = iota
	awaitingCitations
	streamDone
)

// Decoder translates one stream's frames into canonical events. A frame with
// finish_reason is not itself completion: citations, when present, trail in
// the next frame, so the decoder holds done until that frame (or stream end)
// arrives.
type Decoder struct {
	state decoderState
}

// Feed decodes one frame payload. It returns the events the frame produced;
// a malformed payload is an error and the stream must not be fed further.
func (d *Decoder) Feed(data []byte) ([]Event, error) {
	if d.state == streamDone {
		return nil, nil
	}

	var f chatFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("stream: decode frame: %w", err)
	}

	if d.state == awaitingCitations {
		d.state = streamDone
		return []Event{{Kind: EventDone, Citations: f.Citations}}, nil
	}

	var events []Event
	if len(f.Choices) > 0 {
		choice := f.Choices[0]
		if choice.Delta.Content != "" {
			events = append(events, Event{
				Kind:    EventDelta,
				Content: newlineFolder.Replace(choice.Delta.Content),
			})
		}
		if choice.FinishReason != "" {
			d.state = awaitingCitations
		}
	}
	return events, nil
}

// Close handles end of stream. If the decoder was still waiting for the
// trailing citations frame, completion is synthesized without citations.
func (d *Decoder) Close() []Event {
	if d.state == awaitingCitations {
		d.state = streamDone
		return []Event{{Kind: EventDone}}
	}
	d.state = streamDone
	return nil
}

// Finished reports whether the stream reached completion.
func (d *Decoder) Finished() bool {
	return d.state == streamDone
}
