package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTransport opens answer streams with POST {BaseURL}/conv/chat/single and
// decodes the SSE response body into frames.
type HTTPTransport struct {
	BaseURL string
	UserID  string
	Client  *http.Client
}

// NewHTTPTransport creates a transport for the given backend base URL. The
// client deliberately has no overall timeout: streams are long-lived and are
// bounded by the caller's context instead.
func NewHTTPTransport(baseURL, userID string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  userID,
		Client:  &http.Client{},
	}
}

// Open implements Transport.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (FrameReader, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/conv/chat/single", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.UserID != "" {
		httpReq.Header.Set("userId", t.UserID)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream: open: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("stream: open: %s", msg)
	}

	return newSSEReader(resp.Body), nil
}

// newSSEReader wraps a response body in a frame reader with a line buffer
// large enough for single-frame payloads up to 1 MiB.
func newSSEReader(body io.ReadCloser) *sseReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseReader{body: body, scanner: sc}
}

// sseReader parses a text/event-stream body into frames.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next reads lines until a blank line terminates one SSE message. Multiple
// data: lines within one message are joined with newlines per the SSE spec.
func (r *sseReader) Next() (Frame, error) {
	var (
		event     string
		dataLines []string
		seen      bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if seen {
				return Frame{Event: event, Data: []byte(strings.Join(dataLines, "\n"))}, nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, ":"):
			// comment/keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			seen = true
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			seen = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("stream: read: %w", err)
	}
	if seen {
		// Stream ended without a trailing blank line; deliver the tail.
		return Frame{Event: event, Data: []byte(strings.Join(dataLines, "\n"))}, nil
	}
	return Frame{}, io.EOF
}

func (r *sseReader) Close() error {
	return r.body.Close()
}

// WriteFrame writes one SSE message in the framing Next understands. Shared
// with the dashboard feed and with test fixtures.
func WriteFrame(w io.Writer, event string, data []byte) error {
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// Keepalive writes an SSE comment line, used by long-lived feeds to hold
// intermediaries open.
func Keepalive(w io.Writer) error {
	_, err := fmt.Fprintf(w, ": keepalive %s\n\n", time.Now().UTC().Format(time.RFC3339))
	return err
}
