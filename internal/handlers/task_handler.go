package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tidytasks/backend/internal/models"
	"tidytasks/backend/internal/services"
)

// TaskHandler はタスク関連のハンドラーを管理します。
type TaskHandler struct {
	taskService *services.TaskService
	logger      *zap.Logger
}

// NewTaskHandler は新しいTaskHandlerを作成します。
func NewTaskHandler(taskService *services.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

func (h *TaskHandler) owner(c *gin.Context) (string, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
	}
	return userID, ok
}

// CreateTaskHandler は新しいタスクを作成します。
func (h *TaskHandler) CreateTaskHandler(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}
	var req models.TaskCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTasksHandler はタスク一覧を取得します。?sort= と ?status= を受け付けます。
func (h *TaskHandler) GetTasksHandler(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}
	var opts models.TaskListOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	tasks, err := h.taskService.ListForOwner(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTaskByIDHandler は指定IDのタスクを取得します。
func (h *TaskHandler) GetTaskByIDHandler(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTaskHandler はタスクを部分更新します。
func (h *TaskHandler) UpdateTaskHandler(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}
	var req models.TaskUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTaskHandler はタスクを削除します。
func (h *TaskHandler) DeleteTaskHandler(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
