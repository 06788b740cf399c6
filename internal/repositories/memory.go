package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"tidytasks/backend/internal/models"
)

// MemoryUserStore はテスト用のインメモリ UserStore です。
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return nil
}

// MemoryTaskStore はテスト用のインメモリ TaskStore です。
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]models.Task)}
}

func (s *MemoryTaskStore) Create(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemoryTaskStore) ListByOwner(_ context.Context, ownerID string, opts models.TaskListOptions) ([]models.Task, error) {
	s.mu.RLock()
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.UserID != ownerID {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		tasks = append(tasks, t)
	}
	s.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if opts.Sort != models.SortByCreatedAt {
			if a.DueDate != b.DueDate {
				return a.DueDate < b.DueDate
			}
			if a.DueTime != b.DueTime {
				return a.DueTime < b.DueTime
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return tasks, nil
}

func (s *MemoryTaskStore) FindByID(_ context.Context, ownerID, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != ownerID {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

func (s *MemoryTaskStore) Update(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return ErrTaskNotFound
	}
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemoryTaskStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != ownerID {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// MemoryResetTokenStore はテスト用のインメモリ ResetTokenStore です。
type MemoryResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]models.PasswordResetToken
}

func NewMemoryResetTokenStore() *MemoryResetTokenStore {
	return &MemoryResetTokenStore{tokens: make(map[string]models.PasswordResetToken)}
}

func (s *MemoryResetTokenStore) Save(_ context.Context, t *models.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.TokenHash] = *t
	return nil
}

func (s *MemoryResetTokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return "", ErrResetTokenNotFound
	}
	t.UsedAt = &now
	s.tokens[tokenHash] = t
	return t.UserID, nil
}

func (s *MemoryResetTokenStore) Release(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok {
		t.UsedAt = nil
		s.tokens[tokenHash] = t
	}
	return nil
}

// Len は保存済みトークン数を返します。
func (s *MemoryResetTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
