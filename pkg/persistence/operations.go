package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"estimator/pkg/estimate"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UpsertTask inserts or updates a task record.
func (s *Store) UpsertTask(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO tasks (id, title, requirements, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			requirements = excluded.requirements,
			language = excluded.language,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Requirements, task.Language, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask loads one task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*Task, error) {
	query := `SELECT id, title, requirements, language, created_at, updated_at FROM tasks WHERE id = ?`

	var task Task
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&task.ID, &task.Title, &task.Requirements, &task.Language, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return &task, nil
}

// SaveDeliverables replaces a task's deliverable list, preserving order.
func (s *Store) SaveDeliverables(ctx context.Context, taskID string, deliverables []estimate.Deliverable) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM deliverables WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear deliverables: %w", err)
		}
		for i, d := range deliverables {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO deliverables (id, task_id, name, description, position) VALUES (?, ?, ?, ?, ?)",
				d.ID, taskID, d.Name, d.Description, i)
			if err != nil {
				return fmt.Errorf("failed to insert deliverable %s: %w", d.Name, err)
			}
		}
		return nil
	})
}

// DeliverablesByTask loads a task's deliverables in saved order.
func (s *Store) DeliverablesByTask(ctx context.Context, taskID string) ([]estimate.Deliverable, error) {
	query := `SELECT id, name, description FROM deliverables WHERE task_id = ? ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliverables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []estimate.Deliverable
	for rows.Next() {
		var d estimate.Deliverable
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, fmt.Errorf("failed to scan deliverable: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deliverable rows error: %w", err)
	}
	return out, nil
}

// SaveQAPairs replaces a task's question/answer context.
func (s *Store) SaveQAPairs(ctx context.Context, taskID string, pairs []estimate.QAPair) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM qa_pairs WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear qa pairs: %w", err)
		}
		for i, p := range pairs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO qa_pairs (task_id, question, answer, position) VALUES (?, ?, ?, ?)",
				taskID, p.Question, p.Answer, i)
			if err != nil {
				return fmt.Errorf("failed to insert qa pair: %w", err)
			}
		}
		return nil
	})
}

// QAPairsByTask loads a task's Q&A context in saved order.
func (s *Store) QAPairsByTask(ctx context.Context, taskID string) ([]estimate.QAPair, error) {
	query := `SELECT question, answer FROM qa_pairs WHERE task_id = ? ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query qa pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []estimate.QAPair
	for rows.Next() {
		var p estimate.QAPair
		if err := rows.Scan(&p.Question, &p.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan qa pair: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("qa pair rows error: %w", err)
	}
	return out, nil
}

// SaveEstimates replaces a task's estimate set, preserving order.
func (s *Store) SaveEstimates(ctx context.Context, taskID string, estimates []estimate.Estimate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM estimates WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear estimates: %w", err)
		}
		for i, est := range estimates {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO estimates (
					task_id, deliverable_id, deliverable_name, deliverable_description,
					person_days, amount, reasoning, reasoning_breakdown, reasoning_notes, position
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				taskID, est.DeliverableID, est.DeliverableName, est.DeliverableDescription,
				est.PersonDays, est.Amount, est.Reasoning, est.ReasoningBreakdown, est.ReasoningNotes, i)
			if err != nil {
				return fmt.Errorf("failed to insert estimate for %s: %w", est.DeliverableName, err)
			}
		}
		return nil
	})
}

// EstimatesByTask loads a task's estimate set in saved order.
func (s *Store) EstimatesByTask(ctx context.Context, taskID string) ([]estimate.Estimate, error) {
	query := `
		SELECT deliverable_id, deliverable_name, deliverable_description,
		       person_days, amount, reasoning, reasoning_breakdown, reasoning_notes
		FROM estimates WHERE task_id = ? ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []estimate.Estimate
	for rows.Next() {
		var est estimate.Estimate
		var deliverableID sql.NullString
		err := rows.Scan(&deliverableID, &est.DeliverableName, &est.DeliverableDescription,
			&est.PersonDays, &est.Amount, &est.Reasoning, &est.ReasoningBreakdown, &est.ReasoningNotes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		est.DeliverableID = deliverableID.String
		out = append(out, est)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate rows error: %w", err)
	}
	return out, nil
}

// SaveMessage appends one conversation message.
func (s *Store) SaveMessage(ctx context.Context, taskID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, task_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), taskID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save %s message for task %s: %w", role, taskID, err)
	}
	return nil
}

// MessagesByTask loads a task's conversation history, oldest first.
func (s *Store) MessagesByTask(ctx context.Context, taskID string) ([]Message, error) {
	query := `SELECT id, task_id, role, content, created_at FROM messages WHERE task_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message rows error: %w", err)
	}
	return out, nil
}

// DeleteTask removes a task and, via cascading foreign keys, everything
// attached to it.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
