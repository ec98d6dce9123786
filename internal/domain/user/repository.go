package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
)

// Repository defines profile data access
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts a mirrored profile. Used by the ops CLI and tests.
func (r *repository) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, email, full_name, role, is_banned)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query, p.ID, p.Email, p.FullName, p.Role, p.IsBanned).Scan(&p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("user repository create: %w", err)
	}
	return nil
}

// GetByID returns profile by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `SELECT id, email, full_name, role, is_banned, created_at FROM users WHERE id = $1`

	var p Profile
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository get: %w", err)
	}
	return &p, nil
}

// GetByEmail returns profile by email
func (r *repository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT id, email, full_name, role, is_banned, created_at FROM users WHERE email = $1`

	var p Profile
	if err := r.db.GetContext(ctx, &p, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository get by email: %w", err)
	}
	return &p, nil
}

const profileCacheTTL = 30 * time.Second

// CachedRepository keeps profiles in the shared cache for a short TTL. Role
// and ban changes therefore apply within profileCacheTTL on regular routes.
// Admin routes read through the plain Repository.
type CachedRepository struct {
	Repository
	cache cache.Cache
}

func NewCachedRepository(repo Repository, c cache.Cache) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: c}
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func (r *CachedRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := r.cache.Get(ctx, profileKey(id), &p); err == nil {
		return &p, nil
	}

	profile, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, profileKey(id), profile, profileCacheTTL)
	return profile, nil
}

// Invalidate drops the cached profile of id.
func (r *CachedRepository) Invalidate(ctx context.Context, id uuid.UUID) error {
	return r.cache.Delete(ctx, profileKey(id))
}
