package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-sync-service/internal/domain"
)

// UserDirectory resolves token subjects against the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) FindUser(ctx context.Context, userID string) (domain.Identity, error) {
	identity := domain.Identity{UserID: userID}
	err := d.pool.QueryRow(ctx, `SELECT display_name, role FROM users WHERE id=$1`, userID).
		Scan(&identity.DisplayName, &identity.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("find user: %w", err)
	}
	return identity, nil
}

// SaveUser inserts or updates a directory entry. Used for seeding.
func (d *UserDirectory) SaveUser(ctx context.Context, identity domain.Identity) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name, role=EXCLUDED.role`,
		identity.UserID, identity.DisplayName, identity.Role)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
