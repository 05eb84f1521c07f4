// Package membership answers who administers a group.
package membership

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Roles a member can hold in a group.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Membership links a principal to a group.
type Membership struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
	JoinedAt time.Time `json:"joined_at"`
}

// Repository persists group memberships.
type Repository interface {
	Add(ctx context.Context, m Membership) error
	IsGroupAdmin(ctx context.Context, principal, groupID string) (bool, error)
	IsMember(ctx context.Context, principal, groupID string) (bool, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed membership repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add inserts or refreshes a membership.
func (r *PostgresRepository) Add(ctx context.Context, m Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO group_memberships (group_id, user_id, role, is_active, joined_at)
        VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5)
        ON CONFLICT (group_id, user_id) DO UPDATE SET role = EXCLUDED.role, is_active = EXCLUDED.is_active`,
		m.GroupID, m.UserID, m.Role, m.IsActive, m.JoinedAt.UTC())
	return err
}

// IsGroupAdmin reports whether principal holds an active admin membership.
func (r *PostgresRepository) IsGroupAdmin(ctx context.Context, principal, groupID string) (bool, error) {
	return r.lookup(ctx, `SELECT role = 'admin' FROM group_memberships
        WHERE group_id = $1::text::uuid AND user_id = $2::text::uuid AND is_active`, groupID, principal)
}

// IsMember reports whether principal holds any active membership.
func (r *PostgresRepository) IsMember(ctx context.Context, principal, groupID string) (bool, error) {
	return r.lookup(ctx, `SELECT TRUE FROM group_memberships
        WHERE group_id = $1::text::uuid AND user_id = $2::text::uuid AND is_active`, groupID, principal)
}

func (r *PostgresRepository) lookup(ctx context.Context, sql, groupID, principal string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, sql, groupID, principal).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return ok, err
}

type memoryRepository struct {
	mu      sync.RWMutex
	members map[string]Membership
}

// NewMemoryRepository builds an in-memory membership store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{members: make(map[string]Membership)}
}

func (r *memoryRepository) Add(_ context.Context, m Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.GroupID+"/"+m.UserID] = m
	return nil
}

func (r *memoryRepository) IsGroupAdmin(_ context.Context, principal, groupID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[groupID+"/"+principal]
	return ok && m.IsActive && m.Role == RoleAdmin, nil
}

func (r *memoryRepository) IsMember(_ context.Context, principal, groupID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[groupID+"/"+principal]
	return ok && m.IsActive, nil
}
