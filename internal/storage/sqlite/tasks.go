package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/models"
)

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	ColumnID      string
	ParentTaskID  string
	RecurringOnly bool
}

const taskFields = `id, title, description, column_id, due_date, priority,
        duration_hours, duration_minutes, start_time, end_time, is_recurring,
        parent_task_id, last_generated, completed_at, created_at`

const ruleFields = `task_id, unit, interval_value, weekdays, month_days, end_date, max_occurrences, created_at`

// GetTask retrieves a task by id, with its recurrence rule when it has one.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	return s.reader().ReadTask(ctx, id)
}

// GetRule retrieves the recurrence rule owned by taskID.
func (s *Store) GetRule(ctx context.Context, taskID string) (models.RecurrenceRule, error) {
	return s.reader().ReadRule(ctx, taskID)
}

// ListTasks returns the tasks matching filter, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	return s.reader().ListTasks(ctx, filter)
}

// ListRecurringTasks returns every task that carries a recurrence rule.
func (s *Store) ListRecurringTasks(ctx context.Context) ([]models.Task, error) {
	return s.reader().ListTasks(ctx, TaskFilter{RecurringOnly: true})
}

// ReadTask retrieves a task by id, with its recurrence rule when it has one.
func (tx *Tx) ReadTask(ctx context.Context, id string) (models.Task, error) {
	t, err := scanTask(tx.q.QueryRowContext(ctx, `SELECT `+taskFields+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return models.Task{}, err
	}

	if t.IsRecurring {
		rule, err := tx.ReadRule(ctx, id)
		switch {
		case err == nil:
			t.Recurrence = &rule
		case !errors.Is(err, ErrRuleNotFound):
			return models.Task{}, err
		}
	}
	return t, nil
}

// ListTasks returns the tasks matching filter, newest first.
func (tx *Tx) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.ColumnID != "" {
		where = append(where, "column_id = ?")
		args = append(args, filter.ColumnID)
	}
	if filter.ParentTaskID != "" {
		where = append(where, "parent_task_id = ?")
		args = append(args, filter.ParentTaskID)
	}
	if filter.RecurringOnly {
		where = append(where, "is_recurring = 1")
	}

	query := `SELECT ` + taskFields + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	recurring := false
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		recurring = recurring || t.IsRecurring
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !recurring {
		return tasks, nil
	}

	rules, err := tx.listRules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if rule, ok := rules[tasks[i].ID]; ok && tasks[i].IsRecurring {
			tasks[i].Recurrence = &rule
		}
	}
	return tasks, nil
}

// WriteTask inserts the task or, when its id already exists, overwrites every
// field except the creation time.
func (tx *Tx) WriteTask(ctx context.Context, t models.Task) error {
	if t.ID == "" {
		return fmt.Errorf("write task: empty id")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("write task: title must not be empty")
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = tx.now()
	}

	parent := nullString(t.ParentTaskID)

	_, err := tx.q.ExecContext(ctx, `INSERT INTO tasks(`+taskFields+`)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            column_id = excluded.column_id,
            due_date = excluded.due_date,
            priority = excluded.priority,
            duration_hours = excluded.duration_hours,
            duration_minutes = excluded.duration_minutes,
            start_time = excluded.start_time,
            end_time = excluded.end_time,
            is_recurring = excluded.is_recurring,
            parent_task_id = excluded.parent_task_id,
            last_generated = excluded.last_generated,
            completed_at = excluded.completed_at`,
		t.ID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), t.ColumnID, nullTime(t.DueDate),
		string(t.Priority), nullInt(t.DurationHours), nullInt(t.DurationMinutes),
		nullString(t.StartTime), nullString(t.EndTime), t.IsRecurring, parent, nullTime(t.LastGenerated), nullTime(t.CompletedAt),
		formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("write task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask removes a single task row. Its rule must be deleted first.
func (tx *Tx) DeleteTask(ctx context.Context, id string) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// ReadRule retrieves the recurrence rule owned by taskID.
func (tx *Tx) ReadRule(ctx context.Context, taskID string) (models.RecurrenceRule, error) {
	r, err := scanRule(tx.q.QueryRowContext(ctx, `SELECT `+ruleFields+` FROM task_recurrence WHERE task_id = ?`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.RecurrenceRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, taskID)
	}
	return r, err
}

// WriteRule inserts or replaces the rule of r.TaskID.
func (tx *Tx) WriteRule(ctx context.Context, r models.RecurrenceRule) error {
	weekdays, err := encodeDays(r.Weekdays)
	if err != nil {
		return err
	}
	monthDays, err := encodeDays(r.MonthDays)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tx.now()
	}

	_, err = tx.q.ExecContext(ctx, `INSERT INTO task_recurrence(`+ruleFields+`)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(task_id) DO UPDATE SET
            unit = excluded.unit,
            interval_value = excluded.interval_value,
            weekdays = excluded.weekdays,
            month_days = excluded.month_days,
            end_date = excluded.end_date,
            max_occurrences = excluded.max_occurrences`,
		r.TaskID, string(r.Unit), r.Interval, weekdays, monthDays, nullTime(r.EndDate), nullInt(r.MaxOccurrences),
		formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("write rule %s: %w", r.TaskID, err)
	}
	return nil
}

// DeleteRule removes the rule of taskID. Deleting a missing rule is not an error.
func (tx *Tx) DeleteRule(ctx context.Context, taskID string) error {
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM task_recurrence WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete rule %s: %w", taskID, err)
	}
	return nil
}

func (tx *Tx) listRules(ctx context.Context) (map[string]models.RecurrenceRule, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT `+ruleFields+` FROM task_recurrence`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules := map[string]models.RecurrenceRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules[r.TaskID] = r
	}
	return rules, rows.Err()
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t                                     models.Task
		priority, created                     string
		due, parent, lastGenerated, completed sql.NullString
		startTime, endTime                    sql.NullString
		hours, minutes                        sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ColumnID, &due, &priority,
		&hours, &minutes, &startTime, &endTime, &t.IsRecurring,
		&parent, &lastGenerated, &completed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, err
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}

	t.Priority = models.Priority(priority)
	t.ParentTaskID = stringPtr(parent)
	t.StartTime = stringPtr(startTime)
	t.EndTime = stringPtr(endTime)
	t.DurationHours = intPtr(hours)
	t.DurationMinutes = intPtr(minutes)
	if t.CreatedAt, err = parseTime(created); err != nil {
		return models.Task{}, err
	}
	if t.DueDate, err = parseNullTime(due); err != nil {
		return models.Task{}, err
	}
	if t.LastGenerated, err = parseNullTime(lastGenerated); err != nil {
		return models.Task{}, err
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func scanRule(row rowScanner) (models.RecurrenceRule, error) {
	var (
		r                   models.RecurrenceRule
		unit, created       string
		weekdays, monthDays sql.NullString
		endDate             sql.NullString
		maxOccurrences      sql.NullInt64
	)
	err := row.Scan(&r.TaskID, &unit, &r.Interval, &weekdays, &monthDays, &endDate, &maxOccurrences, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RecurrenceRule{}, err
	}
	if err != nil {
		return models.RecurrenceRule{}, fmt.Errorf("scan rule: %w", err)
	}

	r.Unit = models.Unit(unit)
	if r.Weekdays, err = decodeDays(weekdays); err != nil {
		return models.RecurrenceRule{}, err
	}
	if r.MonthDays, err = decodeDays(monthDays); err != nil {
		return models.RecurrenceRule{}, err
	}
	if r.EndDate, err = parseNullTime(endDate); err != nil {
		return models.RecurrenceRule{}, err
	}
	r.MaxOccurrences = intPtr(maxOccurrences)
	if r.CreatedAt, err = parseTime(created); err != nil {
		return models.RecurrenceRule{}, err
	}
	return r, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// Day sets are stored as JSON arrays; NULL means no set.
func encodeDays(days []int) (sql.NullString, error) {
	if days == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode days: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeDays(raw sql.NullString) ([]int, error) {
	if !raw.Valid {
		return nil, nil
	}
	var days []int
	if err := json.Unmarshal([]byte(raw.String), &days); err != nil {
		return nil, fmt.Errorf("decode days %q: %w", raw.String, err)
	}
	return days, nil
}
