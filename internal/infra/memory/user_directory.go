package memory

import (
	"context"
	"sync"

	"quiz-sync-service/internal/domain"
)

// UserDirectory resolves user ids to identities; used when no database is configured.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.Identity
}

func NewUserDirectory(users ...domain.Identity) *UserDirectory {
	d := &UserDirectory{users: make(map[string]domain.Identity, len(users))}
	for _, user := range users {
		d.users[user.UserID] = user
	}
	return d
}

func (d *UserDirectory) Add(user domain.Identity) {
	d.mu.Lock()
	d.users[user.UserID] = user
	d.mu.Unlock()
}

func (d *UserDirectory) FindUser(_ context.Context, userID string) (domain.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound
	}
	return user, nil
}
