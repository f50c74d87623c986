package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/recurrence"
	"taskboard/internal/services/task"
	"taskboard/internal/storage/sqlite"
)

// Server provides HTTP handlers for the task board backend.
type Server struct {
	engine    *gin.Engine
	store     *sqlite.Store
	tasks     task.Service
	logger    *slog.Logger
	staticDir string
	now       func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, tasks task.Service, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:    router,
		store:     store,
		tasks:     tasks,
		logger:    logger,
		staticDir: staticDir,
		now:       time.Now,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		columns := api.Group("/columns")
		{
			columns.GET("", s.handleListColumns)
			columns.POST("", s.handleCreateColumn)
			columns.PUT("/reorder", s.handleReorderColumns)
			columns.PUT("/:id", s.handleUpdateColumn)
			columns.DELETE("/:id", s.handleDeleteColumn)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.POST("/generate-recurring", s.handleGenerateRecurring)
			tasks.GET("/:id", s.handleGetTask)
			tasks.PUT("/:id", s.handleUpdateTask)
			tasks.DELETE("/:id", s.handleDeleteTask)
			tasks.POST("/:id/complete", s.handleCompleteTask)
			tasks.GET("/:id/occurrences", s.handleOccurrences)
			tasks.POST("/:id/materialize", s.handleMaterialize)
		}

		api.POST("/recurrence/preview", s.handlePreview)
		api.GET("/export", s.handleExport)
		api.GET("/calendar.ics", s.handleCalendar)
	}

	s.mountStatic()
}

// handleHealth reports readiness, including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID reads a non-empty identifier path parameter.
func parseID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return "", false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *recurrence.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, recurrence.ErrNotRecurring),
		errors.Is(err, task.ErrEmptyTitle),
		errors.Is(err, task.ErrInvalidPriority),
		errors.Is(err, task.ErrInvalidDuration),
		errors.Is(err, task.ErrInvalidSchedule),
		errors.Is(err, task.ErrOccurrenceCannotRecur),
		errors.Is(err, sqlite.ErrInvalidColumn):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrTaskNotFound),
		errors.Is(err, sqlite.ErrColumnNotFound),
		errors.Is(err, sqlite.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrColumnHasTasks):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status matching err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	attrs := []any{slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error())}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
