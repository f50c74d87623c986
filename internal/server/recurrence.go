package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/recurrence"
)

type previewRequest struct {
	Base       string       `json:"base" binding:"required"`
	Recurrence *ruleRequest `json:"recurrence" binding:"required"`
	From       string       `json:"from"`
	To         string       `json:"to"`
}

// handleOccurrences previews the occurrences of a stored recurring task.
func (s *Server) handleOccurrences(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	window, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	dates, err := s.tasks.Occurrences(c.Request.Context(), id, window)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task_id": id, "occurrences": nonNil(dates)})
}

// handlePreview expands a rule that has not been saved yet, for the editor
// and calendar views.
func (s *Server) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	base, err := models.ParseDate(req.Base)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("base: %w", err))
		return
	}
	window, err := parseWindow(req.From, req.To)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	in, err := req.Recurrence.input()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	rule := in.Rule("")
	if err := recurrence.ValidateRule(rule); err != nil {
		s.fail(c, err)
		return
	}
	out := gin.H{"occurrences": nonNil(recurrence.Generate(base, rule, window))}
	if series, ok := recurrence.SeriesOf(base, rule, true); ok {
		out["dtstart"] = series.Start
		out["rrule"] = series.Rule
		out["rdates"] = nonNil(series.Dates)
	}
	respondSuccess(c, http.StatusOK, out)
}

// handleGenerateRecurring materializes due occurrences of every recurring task.
func (s *Server) handleGenerateRecurring(c *gin.Context) {
	asOf, err := s.parseAsOf(c.Query("as_of"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	created, err := s.tasks.MaterializeAll(c.Request.Context(), asOf)
	if err != nil {
		s.logger.Error("recurring generation incomplete", "count", len(created), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"count": len(created),
			"tasks": nonNilTasks(created),
		})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"message": fmt.Sprintf("Generated %d recurring tasks", len(created)),
		"count":   len(created),
		"tasks":   nonNilTasks(created),
	})
}

// handleMaterialize materializes due occurrences of one recurring task.
func (s *Server) handleMaterialize(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	asOf, err := s.parseAsOf(c.Query("as_of"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	created, err := s.tasks.MaterializeDue(c.Request.Context(), id, asOf)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"count": len(created), "tasks": nonNilTasks(created)})
}

func nonNil(dates []time.Time) []time.Time {
	if dates == nil {
		return []time.Time{}
	}
	return dates
}

func nonNilTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	return tasks
}
