package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"taskboard/internal/models"
)

// Tx is the slice of the task store the materializer needs inside a transaction.
type Tx interface {
	ReadTask(ctx context.Context, id string) (models.Task, error)
	WriteTask(ctx context.Context, task models.Task) error
	ReadRule(ctx context.Context, taskID string) (models.RecurrenceRule, error)
}

// Store runs fn atomically: everything fn writes is committed together or not
// at all.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Materializer turns due occurrences of recurring tasks into standalone tasks.
type Materializer struct {
	store  Store
	logger *slog.Logger
	newID  func() string
}

// NewMaterializer constructs a materializer writing through store.
func NewMaterializer(store Store, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		store:  store,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
}

// MaterializeDue creates a task for every occurrence of the recurring task
// taskID that falls after its watermark and on or before asOf, then moves the
// watermark to asOf. The reads, the inserts and the watermark update share one
// transaction, so a failed call leaves nothing behind and can be retried.
//
// The series is anchored at the task's due date, or its creation time when it
// has none; the watermark only bounds which occurrences are still pending.
// Calling again with the same or an earlier asOf creates nothing.
func (m *Materializer) MaterializeDue(ctx context.Context, taskID string, asOf time.Time) ([]models.Task, error) {
	var created []models.Task
	err := m.store.Transaction(ctx, func(tx Tx) error {
		created = nil

		task, err := tx.ReadTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !task.IsRecurring {
			return fmt.Errorf("%w: %s", ErrNotRecurring, taskID)
		}
		if task.LastGenerated != nil && !asOf.After(*task.LastGenerated) {
			return nil
		}
		rule, err := tx.ReadRule(ctx, taskID)
		if err != nil {
			return err
		}

		origin := task.CreatedAt
		if task.DueDate != nil {
			origin = *task.DueDate
		}
		window := Until(asOf)
		if task.LastGenerated != nil {
			// The watermark itself was covered by the previous batch.
			window.Start = mo.Some(task.LastGenerated.Add(time.Nanosecond))
		}

		for _, due := range Generate(origin, rule, window) {
			occurrence := occurrenceOf(task, due, asOf)
			occurrence.ID = m.newID()
			if err := tx.WriteTask(ctx, occurrence); err != nil {
				return fmt.Errorf("write occurrence of %s: %w", taskID, err)
			}
			created = append(created, occurrence)
		}

		watermark := asOf
		task.LastGenerated = &watermark
		if err := tx.WriteTask(ctx, task); err != nil {
			return fmt.Errorf("advance watermark of %s: %w", taskID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		m.logger.Info("materialized occurrences",
			slog.String("task_id", taskID),
			slog.Int("count", len(created)),
			slog.Time("as_of", asOf))
	}
	return created, nil
}

// occurrenceOf copies parent into a standalone, non-recurring task due at due.
func occurrenceOf(parent models.Task, due, createdAt time.Time) models.Task {
	parentID := parent.ID
	dueDate := due
	return models.Task{
		Title:       parent.Title,
		Description: parent.Description,
		ColumnID:    parent.ColumnID,
		DueDate:     &dueDate,
		Priority:    parent.Priority,
		// Occurrences keep the parent's effort estimate and time slot.
		DurationHours:   parent.DurationHours,
		DurationMinutes: parent.DurationMinutes,
		StartTime:       parent.StartTime,
		EndTime:         parent.EndTime,
		IsRecurring:     false,
		ParentTaskID:    &parentID,
		CreatedAt:       createdAt,
	}
}
