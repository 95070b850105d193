package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/arenalab/arena/internal/mask"
)

// Orchestrator fans one question out to every mapped backend in parallel.
// It holds no state across Run calls.
type Orchestrator struct {
	transport Transport
}

// NewOrchestrator creates an Orchestrator over the given transport.
func NewOrchestrator(t Transport) *Orchestrator {
	return &Orchestrator{transport: t}
}

// Run opens one stream per mask code with a private id, in canonical order,
// all in parallel, and blocks until every stream settles. An empty mapping is
// a hard failure before any stream opens; a mask code without a private id is
// skipped with a warning. Failures inside one stream surface only as that
// mask code's OnError — sibling streams are unaffected.
func (o *Orchestrator) Run(ctx context.Context, base Request, priIDs map[string]string, h Handlers) error {
	if len(priIDs) == 0 {
		return fmt.Errorf("stream: private id mapping is empty")
	}

	var wg sync.WaitGroup
	for _, maskCode := range mask.Ordered {
		priID, ok := priIDs[maskCode]
		if !ok || priID == "" {
			log.Printf("stream: no private id for %s, skipping", maskCode)
			continue
		}
		wg.Add(1)
		go func(maskCode, priID string) {
			defer wg.Done()
			o.runOne(ctx, maskCode, priID, base, h)
		}(maskCode, priID)
	}
	wg.Wait()
	return nil
}

// runOne drives a single backend stream to completion, translating frames
// into handler calls through the two-state decoder.
func (o *Orchestrator) runOne(ctx context.Context, maskCode, priID string, base Request, h Handlers) {
	req := base
	req.PriID = priID

	reader, err := o.transport.Open(ctx, req)
	if err != nil {
		h.OnError(maskCode, err)
		return
	}
	defer reader.Close()

	var dec Decoder
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			for _, ev := range dec.Close() {
				dispatch(maskCode, ev, h)
			}
			return
		}
		if err != nil {
			h.OnError(maskCode, err)
			return
		}

		events, err := dec.Feed(frame.Data)
		if err != nil {
			// A malformed frame poisons this stream only.
			h.OnError(maskCode, err)
			return
		}
		for _, ev := range events {
			dispatch(maskCode, ev, h)
		}
		if dec.Finished() {
			return
		}
	}
}

func dispatch(maskCode string, ev Event, h Handlers) {
	switch ev.Kind {
	case EventDelta:
		h.OnDelta(maskCode, ev.Content)
	case EventDone:
		h.OnDone(maskCode, ev.Citations)
	}
}
