package dashboard

import (
	"encoding/json"
	"io"
	"time"

	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
	"github.com/gin-gonic/gin"
)

const (
	// pollInterval bounds how quickly a store change reaches clients.
	pollInterval = 250 * time.Millisecond
	// heartbeatInterval keeps idle connections alive through proxies.
	heartbeatInterval = 15 * time.Second
)

// changeEvent announces that the store advanced to a new revision.
type changeEvent struct {
	Revision        uint64 `json:"revision"`
	ActiveTaskID    string `json:"activeTaskId"`
	ActiveSessionID string `json:"activeSessionId"`
}

// handleEvents streams store revision bumps as SSE until the client hangs up.
func handleEvents(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		lastRev := st.Revision()
		writeEvent(c.Writer, "connected", changeEventAt(st, lastRev))
		c.Writer.Flush()

		ctx := c.Request.Context()
		ticker := time.NewTicker(pollInterval)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				stream.Keepalive(c.Writer)
				c.Writer.Flush()
			case <-ticker.C:
				rev := st.Revision()
				if rev == lastRev {
					continue
				}
				lastRev = rev
				writeEvent(c.Writer, "change", changeEventAt(st, rev))
				c.Writer.Flush()
			}
		}
	}
}

func changeEventAt(st *store.Store, rev uint64) changeEvent {
	taskID, sessionID := st.Active()
	return changeEvent{Revision: rev, ActiveTaskID: taskID, ActiveSessionID: sessionID}
}

// writeEvent marshals data and writes one SSE frame.
func writeEvent(w io.Writer, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	stream.WriteFrame(w, event, raw)
}
