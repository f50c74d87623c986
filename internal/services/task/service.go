package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/models"
	"taskboard/internal/recurrence"
	"taskboard/internal/storage/sqlite"
)

// Service defines all task-related business operations
type Service interface {
	// Read operations
	ListTasks(ctx context.Context, filter sqlite.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	Occurrences(ctx context.Context, id string, window recurrence.Window) ([]time.Time, error)

	// Write operations
	CreateTask(ctx context.Context, req CreateTaskRequest) (models.Task, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (models.Task, error)
	CompleteTask(ctx context.Context, id string) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Recurrence
	MaterializeDue(ctx context.Context, id string, asOf time.Time) ([]models.Task, error)
	MaterializeAll(ctx context.Context, asOf time.Time) ([]models.Task, error)
}

// RuleInput is a recurrence rule as submitted by a client. A nil Interval
// means every single unit.
type RuleInput struct {
	Unit           models.Unit
	Interval       *int
	Weekdays       []int
	MonthDays      []int
	EndDate        *time.Time
	MaxOccurrences *int
}

// Rule converts the input into a rule owned by taskID.
func (in RuleInput) Rule(taskID string) models.RecurrenceRule {
	interval := 1
	if in.Interval != nil {
		interval = *in.Interval
	}
	return models.RecurrenceRule{
		TaskID:         taskID,
		Unit:           in.Unit,
		Interval:       interval,
		Weekdays:       in.Weekdays,
		MonthDays:      in.MonthDays,
		EndDate:        in.EndDate,
		MaxOccurrences: in.MaxOccurrences,
	}
}

// CreateTaskRequest encapsulates data for creating a task. A non-nil
// Recurrence makes the task recurring.
type CreateTaskRequest struct {
	Title       string
	Description string
	ColumnID    string
	DueDate     *time.Time
	Priority    models.Priority
	Schedule    Schedule
	Recurrence  *RuleInput
}

// Schedule carries the optional effort estimate and time slot of a task. On
// update a nil field is left unchanged, while a zero duration or an empty time
// clears it.
type Schedule struct {
	DurationHours   *int
	DurationMinutes *int
	StartTime       *string
	EndTime         *string
}

// UpdateTaskRequest carries a partial update; nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title        *string
	Description  *string
	ColumnID     *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *models.Priority
	Schedule     Schedule
	// Recurrence replaces the rule (and makes the task recurring).
	Recurrence *RuleInput
	// StopRecurring drops the rule and the watermark.
	StopRecurring bool
}

// Options configures the service.
type Options struct {
	// DoneColumnID is where CompleteTask moves tasks. Empty or missing keeps
	// the task in its column.
	DoneColumnID string
	// DefaultColumnID is used when a task is created without a column.
	DefaultColumnID string
	Now             func() time.Time
}

// service implements Service on top of the SQLite store
type service struct {
	store        *sqlite.Store
	materializer *recurrence.Materializer
	logger       *slog.Logger
	opts         Options
}

// NewService creates a new task service
func NewService(store *sqlite.Store, logger *slog.Logger, opts Options) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultColumnID == "" {
		opts.DefaultColumnID = models.DefaultColumns[0].ID
	}
	return &service{
		store:        store,
		materializer: recurrence.NewMaterializer(txStore{store}, logger),
		logger:       logger,
		opts:         opts,
	}
}

// txStore adapts the SQLite store to the materializer's Store.
type txStore struct {
	store *sqlite.Store
}

func (s txStore) Transaction(ctx context.Context, fn func(tx recurrence.Tx) error) error {
	return s.store.Transaction(ctx, func(tx *sqlite.Tx) error { return fn(tx) })
}

// ListTasks returns tasks matching filter
func (s *service) ListTasks(ctx context.Context, filter sqlite.TaskFilter) ([]models.Task, error) {
	return s.store.ListTasks(ctx, filter)
}

// GetTask retrieves a task with its recurrence rule
func (s *service) GetTask(ctx context.Context, id string) (models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// CreateTask validates and persists a task, together with its rule when recurring
func (s *service) CreateTask(ctx context.Context, req CreateTaskRequest) (models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.Task{}, ErrEmptyTitle
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return models.Task{}, ErrInvalidPriority
	}
	columnID := req.ColumnID
	if columnID == "" {
		columnID = s.opts.DefaultColumnID
	}

	now := s.opts.Now().UTC()
	task := models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		ColumnID:    columnID,
		DueDate:     req.DueDate,
		Priority:    priority,
		IsRecurring: req.Recurrence != nil,
		CreatedAt:   now,
	}
	req.Schedule.applyTo(&task)
	if err := validateSchedule(task); err != nil {
		return models.Task{}, err
	}

	var rule *models.RecurrenceRule
	if req.Recurrence != nil {
		r := req.Recurrence.Rule(task.ID)
		if err := recurrence.ValidateRule(r); err != nil {
			return models.Task{}, err
		}
		r.CreatedAt = now
		rule = &r
	}

	err := s.store.Transaction(ctx, func(tx *sqlite.Tx) error {
		if _, err := tx.ReadColumn(ctx, columnID); err != nil {
			return err
		}
		if err := tx.WriteTask(ctx, task); err != nil {
			return err
		}
		if rule != nil {
			return tx.WriteRule(ctx, *rule)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.logger.Debug("task created", slog.String("task_id", task.ID), slog.Bool("recurring", task.IsRecurring))
	return s.store.GetTask(ctx, task.ID)
}

// UpdateTask applies a partial update, including recurrence changes, atomically
func (s *service) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (models.Task, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return models.Task{}, ErrEmptyTitle
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return models.Task{}, ErrInvalidPriority
	}

	err := s.store.Transaction(ctx, func(tx *sqlite.Tx) error {
		task, err := tx.ReadTask(ctx, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			task.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			task.Description = strings.TrimSpace(*req.Description)
		}
		if req.ColumnID != nil && *req.ColumnID != task.ColumnID {
			if _, err := tx.ReadColumn(ctx, *req.ColumnID); err != nil {
				return err
			}
			task.ColumnID = *req.ColumnID
		}
		if req.ClearDueDate {
			task.DueDate = nil
		} else if req.DueDate != nil {
			task.DueDate = req.DueDate
		}
		if req.Priority != nil {
			task.Priority = *req.Priority
		}
		req.Schedule.applyTo(&task)
		if err := validateSchedule(task); err != nil {
			return err
		}

		switch {
		case req.StopRecurring:
			if err := tx.DeleteRule(ctx, id); err != nil {
				return err
			}
			task.IsRecurring = false
			task.LastGenerated = nil
		case req.Recurrence != nil:
			if task.ParentTaskID != nil {
				return ErrOccurrenceCannotRecur
			}
			rule := req.Recurrence.Rule(id)
			if err := recurrence.ValidateRule(rule); err != nil {
				return err
			}
			rule.CreatedAt = s.opts.Now().UTC()
			if err := tx.WriteRule(ctx, rule); err != nil {
				return err
			}
			task.IsRecurring = true
		}

		return tx.WriteTask(ctx, task)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.store.GetTask(ctx, id)
}

// CompleteTask stamps the completion time and moves the task to the done column
func (s *service) CompleteTask(ctx context.Context, id string) (models.Task, error) {
	err := s.store.Transaction(ctx, func(tx *sqlite.Tx) error {
		task, err := tx.ReadTask(ctx, id)
		if err != nil {
			return err
		}
		if task.CompletedAt == nil {
			now := s.opts.Now().UTC()
			task.CompletedAt = &now
		}
		if s.opts.DoneColumnID != "" {
			_, err := tx.ReadColumn(ctx, s.opts.DoneColumnID)
			switch {
			case err == nil:
				task.ColumnID = s.opts.DoneColumnID
			case !errors.Is(err, sqlite.ErrColumnNotFound):
				return err
			}
		}
		return tx.WriteTask(ctx, task)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.store.GetTask(ctx, id)
}

// DeleteTask removes the task and its rule in one transaction. Occurrences
// already materialized from it are kept.
func (s *service) DeleteTask(ctx context.Context, id string) error {
	return s.store.Transaction(ctx, func(tx *sqlite.Tx) error {
		if err := tx.DeleteRule(ctx, id); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, id)
	})
}

// Occurrences previews the occurrences of a stored recurring task inside window
func (s *service) Occurrences(ctx context.Context, id string, window recurrence.Window) ([]time.Time, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsRecurring || task.Recurrence == nil {
		return nil, fmt.Errorf("%w: %s", recurrence.ErrNotRecurring, id)
	}

	origin := task.CreatedAt
	if task.DueDate != nil {
		origin = *task.DueDate
	}
	return recurrence.Generate(origin, *task.Recurrence, window), nil
}

// MaterializeDue materializes the due occurrences of one recurring task
func (s *service) MaterializeDue(ctx context.Context, id string, asOf time.Time) ([]models.Task, error) {
	return s.materializer.MaterializeDue(ctx, id, asOf)
}

// MaterializeAll materializes due occurrences of every recurring task. A
// failing task does not stop the others; all failures are returned joined.
func (s *service) MaterializeAll(ctx context.Context, asOf time.Time) ([]models.Task, error) {
	recurring, err := s.store.ListRecurringTasks(ctx)
	if err != nil {
		return nil, err
	}

	created := []models.Task{}
	var errs []error
	for _, t := range recurring {
		tasks, err := s.materializer.MaterializeDue(ctx, t.ID, asOf)
		if err != nil {
			s.logger.Error("materialization failed", slog.String("task_id", t.ID), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		created = append(created, tasks...)
	}
	return created, errors.Join(errs...)
}

// applyTo copies the set fields of sc onto t.
func (sc Schedule) applyTo(t *models.Task) {
	if sc.DurationHours != nil {
		t.DurationHours = nonZero(*sc.DurationHours)
	}
	if sc.DurationMinutes != nil {
		t.DurationMinutes = nonZero(*sc.DurationMinutes)
	}
	if sc.StartTime != nil {
		t.StartTime = nonEmpty(*sc.StartTime)
	}
	if sc.EndTime != nil {
		t.EndTime = nonEmpty(*sc.EndTime)
	}
}

func validateSchedule(t models.Task) error {
	if t.DurationHours != nil && *t.DurationHours < 0 {
		return ErrInvalidDuration
	}
	if t.DurationMinutes != nil && (*t.DurationMinutes < 0 || *t.DurationMinutes >= 60) {
		return ErrInvalidDuration
	}

	var start, end time.Duration
	var err error
	if t.StartTime != nil {
		if start, err = models.ParseTimeOfDay(*t.StartTime); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	if t.EndTime != nil {
		if end, err = models.ParseTimeOfDay(*t.EndTime); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	if t.StartTime != nil && t.EndTime != nil && end <= start {
		return ErrInvalidSchedule
	}
	return nil
}

func nonZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
