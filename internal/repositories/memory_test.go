package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidytasks/backend/internal/models"
)

func TestMemoryStores_ReturnCopies(t *testing.T) {
	ctx := context.Background()
	tasks := NewMemoryTaskStore()
	task := &models.Task{ID: "t1", UserID: "u1", Title: "Buy milk", DueDate: "2024-01-01", Status: models.TaskStatusTodo}
	require.NoError(t, tasks.Create(ctx, task))

	got, err := tasks.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := tasks.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", again.Title)
}

func TestMemoryResetTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryResetTokenStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, &models.PasswordResetToken{TokenHash: "h", UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}))

	_, err := store.Consume(ctx, "h", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrResetTokenNotFound)

	id, err := store.Consume(ctx, "h", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = store.Consume(ctx, "h", now)
	assert.ErrorIs(t, err, ErrResetTokenNotFound)

	require.NoError(t, store.Release(ctx, "h"))
	id, err = store.Consume(ctx, "h", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.NoError(t, store.Release(ctx, "missing"))
}
