package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tidytasks/backend/internal/models"
)

// ErrTaskNotFound はタスクが存在しない、または他のユーザーの所有であることを表します。
var ErrTaskNotFound = errors.New("task not found")

// TaskStore はタスクの永続化を抽象化します。すべての操作は所有者で絞り込まれます。
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	ListByOwner(ctx context.Context, ownerID string, opts models.TaskListOptions) ([]models.Task, error)
	FindByID(ctx context.Context, ownerID, id string) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, ownerID, id string) error
}

// TaskRepository は TaskStore のSQL実装です。
type TaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, user_id, title, detail, due_date, due_time, status, created_at, updated_at"

// Create は新しいタスクを挿入します。
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := r.db.Rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.Title, t.Detail, t.DueDate, t.DueTime, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("could not insert task: %w", err)
	}
	return nil
}

// ListByOwner は所有者のタスクを返します。
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, opts models.TaskListOptions) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{ownerID}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	switch opts.Sort {
	case models.SortByCreatedAt:
		query += ` ORDER BY created_at ASC, id ASC`
	default:
		query += ` ORDER BY due_date ASC, due_time ASC, created_at ASC`
	}

	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	return tasks, nil
}

// FindByID は所有者のタスクを1件取得します。
func (r *TaskRepository) FindByID(ctx context.Context, ownerID, id string) (*models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`)
	var t models.Task
	if err := r.db.GetContext(ctx, &t, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}
	return &t, nil
}

// Update は所有者を除く全フィールドを書き換えます。
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	query := r.db.Rebind(`UPDATE tasks SET title = ?, detail = ?, due_date = ?, due_time = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		t.Title, t.Detail, t.DueDate, t.DueTime, string(t.Status), t.UpdatedAt, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	return expectOneRow(res, ErrTaskNotFound)
}

// Delete は所有者のタスクを削除します。
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}
	return expectOneRow(res, ErrTaskNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
