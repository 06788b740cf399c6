package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tidytasks/backend/internal/models"
	"tidytasks/backend/internal/repositories"
)

const (
	titleRules   = "required,max=50"
	detailRules  = "max=500"
	dueDateRules = "required,datetime=2006-01-02"
	dueTimeRules = "omitempty,datetime=15:04"
	statusRules  = "required,oneof=todo doing done"
)

// TaskService はタスク関連のビジネスロジックを扱います。
// 所有者IDは常に認証済みのコンテキストから渡され、リクエスト本文からは受け取りません。
type TaskService struct {
	tasks repositories.TaskStore
	now   func() time.Time
}

// NewTaskService は新しいTaskServiceを作成します。
func NewTaskService(tasks repositories.TaskStore) *TaskService {
	return &TaskService{tasks: tasks, now: time.Now}
}

// Create は新しいタスクを作成します。
func (s *TaskService) Create(ctx context.Context, ownerID string, req models.TaskCreateRequest) (*models.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.DueDate = strings.TrimSpace(req.DueDate)
	req.DueTime = strings.TrimSpace(req.DueTime)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = models.TaskStatusTodo
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	task := &models.Task{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     req.Title,
		Detail:    req.Detail,
		DueDate:   req.DueDate,
		DueTime:   req.DueTime,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// ListForOwner は所有者のタスク一覧を返します。既定は期日の昇順です。
func (s *TaskService) ListForOwner(ctx context.Context, ownerID string, opts models.TaskListOptions) ([]models.Task, error) {
	if err := validateStruct(opts); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetByID は所有者のタスクを取得します。他人のタスクは存在しないものとして扱います。
func (s *TaskService) GetByID(ctx context.Context, ownerID, id string) (*models.Task, error) {
	taskID, ok := canonicalTaskID(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	task, err := s.tasks.FindByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, mapTaskErr("get task", err)
	}
	return task, nil
}

// Update は指定されたフィールドだけを検証して置き換えます。
func (s *TaskService) Update(ctx context.Context, ownerID, id string, req models.TaskUpdateRequest) (*models.Task, error) {
	if err := validateTaskUpdate(&req); err != nil {
		return nil, err
	}

	task, err := s.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Detail != nil {
		task.Detail = *req.Detail
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if req.DueTime != nil {
		task.DueTime = *req.DueTime
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	task.UpdatedAt = s.nextUpdatedAt(task.UpdatedAt)

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, mapTaskErr("update task", err)
	}
	return task, nil
}

// Delete は所有者のタスクを削除します。
func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	taskID, ok := canonicalTaskID(id)
	if !ok {
		return ErrTaskNotFound
	}
	if err := s.tasks.Delete(ctx, ownerID, taskID); err != nil {
		return mapTaskErr("delete task", err)
	}
	return nil
}

// canonicalTaskID は urn:uuid: や波括弧付きの表記も小文字のハイフン区切りに揃えます。
func canonicalTaskID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// nextUpdatedAt は前回の更新日時より必ず後になる時刻を返します。
func (s *TaskService) nextUpdatedAt(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func validateTaskUpdate(req *models.TaskUpdateRequest) error {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
		if err := validateField("title", trimmed, titleRules); err != nil {
			return err
		}
	}
	if req.Detail != nil {
		if err := validateField("detail", *req.Detail, detailRules); err != nil {
			return err
		}
	}
	if req.DueDate != nil {
		trimmed := strings.TrimSpace(*req.DueDate)
		req.DueDate = &trimmed
		if err := validateField("dueDate", trimmed, dueDateRules); err != nil {
			return err
		}
	}
	if req.DueTime != nil {
		trimmed := strings.TrimSpace(*req.DueTime)
		req.DueTime = &trimmed
		if err := validateField("dueTime", trimmed, dueTimeRules); err != nil {
			return err
		}
	}
	if req.Status != nil {
		if err := validateField("status", string(*req.Status), statusRules); err != nil {
			return err
		}
	}
	return nil
}

func mapTaskErr(op string, err error) error {
	if errors.Is(err, repositories.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
