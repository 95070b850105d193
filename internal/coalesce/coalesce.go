// Package coalesce batches high-rate streaming deltas into bounded-cadence
// flushes. Raw per-token events can arrive far faster than a consumer can
// usefully apply them; the buffer caps the apply rate to one flush per tick
// while preserving per-answer byte order.
package coalesce

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultInterval is the default flush cadence.
const DefaultInterval = 50 * time.Millisecond

// ApplyFunc receives one answer's pending text at flush time. A flush calls
// it once per answer with pending data; all calls within one flush happen
// under the same critical section, so a reader never observes a half-applied
// batch.
type ApplyFunc func(answerID, delta string)

// Buffer accumulates deltas keyed by answer id.
type Buffer struct {
	mu      sync.Mutex
	pending map[string]*strings.Builder
	order   []string // flush applies keys in first-Add order
	apply   ApplyFunc
}

// NewBuffer creates a Buffer that applies flushed batches through apply.
func NewBuffer(apply ApplyFunc) *Buffer {
	return &Buffer{
		pending: make(map[string]*strings.Builder),
		apply:   apply,
	}
}

// Add appends delta to the answer's pending buffer. It never blocks on the
// apply callback.
func (b *Buffer) Add(answerID, delta string) {
	if delta == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.pending[answerID]
	if !ok {
		sb = &strings.Builder{}
		b.pending[answerID] = sb
		b.order = append(b.order, answerID)
	}
	sb.WriteString(delta)
}

// Flush applies all pending buffers atomically and clears them. Call it
// synchronously before applying a done/error transition so every delta for
// that answer is visible first. Flushing an empty buffer is a no-op.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.order {
		if sb := b.pending[id]; sb != nil && sb.Len() > 0 {
			b.apply(id, sb.String())
		}
	}
	b.pending = make(map[string]*strings.Builder)
	b.order = nil
}

// Clear discards pending, unflushed buffers. Used when a session resets.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[string]*strings.Builder)
	b.order = nil
}

// Start runs a background flush loop at the given interval until ctx is
// cancelled. A final flush runs on shutdown so buffered tails are not lost.
// Interval <= 0 falls back to DefaultInterval.
func (b *Buffer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
