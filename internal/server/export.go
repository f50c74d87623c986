package server

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/calendar"
	"taskboard/internal/storage/sqlite"
)

// handleExport dumps the whole board as JSON.
func (s *Server) handleExport(c *gin.Context) {
	ctx := c.Request.Context()

	columns, err := s.store.ListColumns(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	tasks, err := s.tasks.ListTasks(ctx, sqlite.TaskFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"columns":     columns,
		"tasks":       nonNilTasks(tasks),
		"export_date": s.now().UTC(),
	})
}

// handleCalendar serves every task as an iCalendar feed.
func (s *Server) handleCalendar(c *gin.Context) {
	tasks, err := s.tasks.ListTasks(c.Request.Context(), sqlite.TaskFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := calendar.Encode(&buf, tasks, s.now()); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="taskboard.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
