// Package dashboard serves a read-only HTTP view of the conversation state:
// task list, session snapshots, and a live change feed.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/arenalab/arena/internal/store"
	"github.com/gin-gonic/gin"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store *store.Store
	Port  int
	Out   io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8642
	}

	router := NewRouter(opts.Store)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(st *store.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, st)
	return router
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, st *store.Store) {
	router.GET("/api/tasks", handleTasks(st))
	router.GET("/api/sessions/:id", handleSession(st))
	router.GET("/api/events", handleEvents(st))
}

func handleTasks(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeTask, activeSession := st.Active()
		c.JSON(http.StatusOK, gin.H{
			"tasks":           st.Tasks(),
			"activeTaskId":    activeTask,
			"activeSessionId": activeSession,
		})
	}
}

func handleSession(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := st.Session(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
