package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/services/task"
	"taskboard/internal/storage/sqlite"
)

type ruleRequest struct {
	Unit           models.Unit `json:"unit"`
	Interval       *int        `json:"interval"`
	Weekdays       []int       `json:"weekdays"`
	MonthDays      []int       `json:"month_days"`
	EndDate        *string     `json:"end_date"`
	MaxOccurrences *int        `json:"max_occurrences"`
}

func (r ruleRequest) input() (task.RuleInput, error) {
	end, err := parseOptionalDate(r.EndDate)
	if err != nil {
		return task.RuleInput{}, fmt.Errorf("end_date: %w", err)
	}
	return task.RuleInput{
		Unit:           r.Unit,
		Interval:       r.Interval,
		Weekdays:       r.Weekdays,
		MonthDays:      r.MonthDays,
		EndDate:        end,
		MaxOccurrences: r.MaxOccurrences,
	}, nil
}

func (r taskRequest) schedule() task.Schedule {
	return task.Schedule{
		DurationHours:   r.DurationHours,
		DurationMinutes: r.DurationMinutes,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
	}
}

type taskRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	ColumnID    *string          `json:"column_id"`
	DueDate     *string          `json:"due_date"`
	Priority    *models.Priority `json:"priority"`
	// Zero durations and empty times clear the field on update.
	DurationHours   *int         `json:"duration_hours"`
	DurationMinutes *int         `json:"duration_minutes"`
	StartTime       *string      `json:"start_time"`
	EndTime         *string      `json:"end_time"`
	Recurrence      *ruleRequest `json:"recurrence"`
	// StopRecurring turns a recurring task back into a plain one on update.
	StopRecurring bool `json:"stop_recurring"`
}

// handleListTasks returns tasks, optionally narrowed by column, parent or recurrence.
func (s *Server) handleListTasks(c *gin.Context) {
	filter := sqlite.TaskFilter{
		ColumnID:     c.Query("column"),
		ParentTaskID: c.Query("parent"),
	}
	if raw := c.Query("recurring"); raw != "" {
		recurring, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("recurring: %w", err))
			return
		}
		filter.RecurringOnly = recurring
	}

	tasks, err := s.tasks.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": nonNilTasks(tasks)})
}

// handleGetTask returns a single task with its recurrence rule.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

// handleCreateTask inserts a new task, recurring when a rule is attached.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("due_date: %w", err))
		return
	}
	create := task.CreateTaskRequest{
		Title:       getString(req.Title),
		Description: getString(req.Description),
		ColumnID:    getString(req.ColumnID),
		DueDate:     due,
		Schedule:    req.schedule(),
	}
	if req.Priority != nil {
		create.Priority = *req.Priority
	}
	if req.Recurrence != nil {
		in, err := req.Recurrence.input()
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		create.Recurrence = &in
	}

	created, err := s.tasks.CreateTask(c.Request.Context(), create)
	if err != nil {
		s.failTaskWrite(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": created})
}

// handleUpdateTask applies a partial update. An empty due_date clears it.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	update := task.UpdateTaskRequest{
		Title:         req.Title,
		Description:   req.Description,
		ColumnID:      req.ColumnID,
		Priority:      req.Priority,
		Schedule:      req.schedule(),
		StopRecurring: req.StopRecurring,
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			update.ClearDueDate = true
		} else {
			due, err := models.ParseDate(*req.DueDate)
			if err != nil {
				s.respondError(c, http.StatusBadRequest, fmt.Errorf("due_date: %w", err))
				return
			}
			update.DueDate = &due
		}
	}
	if req.Recurrence != nil {
		in, err := req.Recurrence.input()
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		update.Recurrence = &in
	}

	updated, err := s.tasks.UpdateTask(c.Request.Context(), id, update)
	if err != nil {
		s.failTaskWrite(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": updated})
}

// handleCompleteTask marks a task done.
func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	done, err := s.tasks.CompleteTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": done})
}

// handleDeleteTask removes a task together with its recurrence rule.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// failTaskWrite reports an unknown target column as a bad request rather
// than a missing resource.
func (s *Server) failTaskWrite(c *gin.Context, err error) {
	if errors.Is(err, sqlite.ErrColumnNotFound) {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	s.fail(c, err)
}
