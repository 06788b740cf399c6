// Package models はAPIとストレージで共有するデータ構造を定義します。
package models

import "time"

// TaskStatus はタスクの進捗状態です。表示用のラベルはフロントエンド側で持ちます。
type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "todo"
	TaskStatusDoing TaskStatus = "doing"
	TaskStatusDone  TaskStatus = "done"
)

// Valid は既知のステータスかどうかを返します。
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"` // 所有者 (作成時に固定)
	Title     string     `json:"title" db:"title"`
	Detail    string     `json:"detail" db:"detail"`
	DueDate   string     `json:"dueDate" db:"due_date"` // YYYY-MM-DD
	DueTime   string     `json:"dueTime" db:"due_time"` // HH:MM, 空なら未指定
	Status    TaskStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

type TaskCreateRequest struct {
	Title   string     `json:"title" validate:"required,max=50"`
	Detail  string     `json:"detail" validate:"max=500"`
	DueDate string     `json:"dueDate" validate:"required,datetime=2006-01-02"`
	DueTime string     `json:"dueTime" validate:"omitempty,datetime=15:04"`
	Status  TaskStatus `json:"status" validate:"omitempty,oneof=todo doing done"`
}

// TaskUpdateRequest は部分更新用です。nil のフィールドは変更しません。
type TaskUpdateRequest struct {
	Title   *string     `json:"title"`
	Detail  *string     `json:"detail"`
	DueDate *string     `json:"dueDate"`
	DueTime *string     `json:"dueTime"`
	Status  *TaskStatus `json:"status"`
}

// TaskSort は一覧の並び順です。
type TaskSort string

const (
	SortByDueDate   TaskSort = "dueDate"
	SortByCreatedAt TaskSort = "createdAt"
)

type TaskListOptions struct {
	Sort   TaskSort   `form:"sort" validate:"omitempty,oneof=dueDate createdAt"`
	Status TaskStatus `form:"status" validate:"omitempty,oneof=todo doing done"`
}
