package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskboard/internal/models"
)

// ColumnUpdate carries the column fields to change; nil leaves a field as is.
type ColumnUpdate struct {
	Name  *string
	Color *string
}

// ColumnOrder assigns a new order index to a column.
type ColumnOrder struct {
	ID         string `json:"id"`
	OrderIndex int64  `json:"order_index"`
}

const columnFields = `id, name, color, order_index, created_at`

// ListColumns returns all columns in display order.
func (s *Store) ListColumns(ctx context.Context) ([]models.Column, error) {
	return s.reader().listColumns(ctx)
}

// GetColumn fetches a single column by id.
func (s *Store) GetColumn(ctx context.Context, id string) (models.Column, error) {
	return s.reader().ReadColumn(ctx, id)
}

// ReadColumn fetches a single column by id.
func (tx *Tx) ReadColumn(ctx context.Context, id string) (models.Column, error) {
	c, err := scanColumn(tx.q.QueryRowContext(ctx, `SELECT `+columnFields+` FROM columns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, ErrColumnNotFound
	}
	return c, err
}

// CreateColumn persists a new column. A nil order appends it after the last column.
func (s *Store) CreateColumn(ctx context.Context, name, color string, order *int64) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, fmt.Errorf("%w: name must not be empty", ErrInvalidColumn)
	}
	if color == "" {
		color = models.DefaultColumnColor
	}

	column := models.Column{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: s.now().UTC(),
	}

	err := s.Transaction(ctx, func(tx *Tx) error {
		if order == nil {
			next, err := tx.nextOrderIndex(ctx)
			if err != nil {
				return err
			}
			column.OrderIndex = next
		} else {
			if *order < 0 {
				return fmt.Errorf("%w: order index %d is negative", ErrInvalidColumn, *order)
			}
			taken, err := tx.orderIndexTaken(ctx, *order)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: order index %d already in use", ErrInvalidColumn, *order)
			}
			column.OrderIndex = *order
		}

		_, err := tx.q.ExecContext(ctx, `INSERT INTO columns(id, name, color, order_index, created_at) VALUES(?, ?, ?, ?, ?)`,
			column.ID, column.Name, column.Color, column.OrderIndex, formatTime(column.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Column{}, err
	}
	return column, nil
}

// UpdateColumn renames or recolors an existing column.
func (s *Store) UpdateColumn(ctx context.Context, id string, changes ColumnUpdate) (models.Column, error) {
	current, err := s.GetColumn(ctx, id)
	if err != nil {
		return models.Column{}, err
	}

	if changes.Name != nil {
		name := strings.TrimSpace(*changes.Name)
		if name == "" {
			return models.Column{}, fmt.Errorf("%w: name must not be empty", ErrInvalidColumn)
		}
		current.Name = name
	}
	if changes.Color != nil && *changes.Color != "" {
		current.Color = *changes.Color
	}

	_, err = s.db.ExecContext(ctx, `UPDATE columns SET name = ?, color = ? WHERE id = ?`, current.Name, current.Color, id)
	if err != nil {
		return models.Column{}, fmt.Errorf("update column: %w", err)
	}
	return current, nil
}

// DeleteColumn removes a column that no task references.
func (s *Store) DeleteColumn(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx *Tx) error {
		var count int
		if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE column_id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("count column tasks: %w", err)
		}
		if count > 0 {
			return ErrColumnHasTasks
		}

		res, err := tx.q.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrColumnNotFound
		}
		return nil
	})
}

// ReorderColumns assigns new order indexes atomically. Columns not listed keep
// their index; the resulting indexes must stay unique and non-negative.
func (s *Store) ReorderColumns(ctx context.Context, orders []ColumnOrder) ([]models.Column, error) {
	err := s.Transaction(ctx, func(tx *Tx) error {
		current, err := tx.listColumns(ctx)
		if err != nil {
			return err
		}

		final := make(map[string]int64, len(current))
		for _, c := range current {
			final[c.ID] = c.OrderIndex
		}
		for _, o := range orders {
			if o.OrderIndex < 0 {
				return fmt.Errorf("%w: order index %d of %s is negative", ErrInvalidColumn, o.OrderIndex, o.ID)
			}
			if _, ok := final[o.ID]; !ok {
				return fmt.Errorf("%w: %s", ErrColumnNotFound, o.ID)
			}
			final[o.ID] = o.OrderIndex
		}
		seen := make(map[int64]string, len(final))
		for id, idx := range final {
			if other, dup := seen[idx]; dup {
				return fmt.Errorf("%w: columns %s and %s share order index %d", ErrInvalidColumn, id, other, idx)
			}
			seen[idx] = id
		}

		// Park the moved columns on negative indexes first so intermediate
		// states never collide on the unique index.
		for i, o := range orders {
			if _, err := tx.q.ExecContext(ctx, `UPDATE columns SET order_index = ? WHERE id = ?`, -int64(i)-1, o.ID); err != nil {
				return fmt.Errorf("park column %s: %w", o.ID, err)
			}
		}
		for _, o := range orders {
			if _, err := tx.q.ExecContext(ctx, `UPDATE columns SET order_index = ? WHERE id = ?`, o.OrderIndex, o.ID); err != nil {
				return fmt.Errorf("reorder column %s: %w", o.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListColumns(ctx)
}

func (tx *Tx) listColumns(ctx context.Context) ([]models.Column, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT `+columnFields+` FROM columns ORDER BY order_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := []models.Column{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (tx *Tx) nextOrderIndex(ctx context.Context) (int64, error) {
	var position sql.NullInt64
	err := tx.q.QueryRowContext(ctx, `SELECT MAX(order_index) FROM columns`).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("select order index: %w", err)
	}
	if position.Valid {
		return position.Int64 + 1, nil
	}
	return 0, nil
}

func (tx *Tx) orderIndexTaken(ctx context.Context, idx int64) (bool, error) {
	var count int
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM columns WHERE order_index = ?`, idx).Scan(&count); err != nil {
		return false, fmt.Errorf("check order index: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanColumn(row rowScanner) (models.Column, error) {
	var (
		c       models.Column
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.OrderIndex, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Column{}, err
		}
		return models.Column{}, fmt.Errorf("scan column: %w", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return models.Column{}, err
	}
	c.CreatedAt = t
	return c, nil
}
