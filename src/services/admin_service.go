package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pageforge/pageforge/src/models"
	"golang.org/x/crypto/bcrypt"
)

// AdminService handles operator accounts for the management API
type AdminService struct {
	pool *pgxpool.Pool
}

// NewAdminService creates a new admin service
func NewAdminService(pool *pgxpool.Pool) *AdminService {
	return &AdminService{pool: pool}
}

// CreateAdminUser creates a new admin user with a bcrypt password hash
func (as *AdminService) CreateAdminUser(ctx context.Context, username, password string) (*models.AdminUser, error) {
	if len(username) < 1 || len(username) > 255 {
		return nil, errors.New("username must be between 1 and 255 characters")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.AdminUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		IsActive:     true,
	}

	_, err = as.pool.Exec(ctx, `
		INSERT INTO admin_users (id, username, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, true)
	`, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	return admin, nil
}

// Authenticate verifies admin credentials and records the login time
func (as *AdminService) Authenticate(ctx context.Context, username, password string) (*models.AdminUser, error) {
	admin := &models.AdminUser{}
	err := as.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at, last_login, is_active
		FROM admin_users WHERE username = $1 AND is_active = true
	`, username).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt, &admin.LastLogin, &admin.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up admin user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	_, err = as.pool.Exec(ctx, `UPDATE admin_users SET last_login = NOW() WHERE id = $1`, admin.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return admin, nil
}

// HasAdmins reports whether any admin user exists (for first-run seeding)
func (as *AdminService) HasAdmins(ctx context.Context) (bool, error) {
	var count int
	if err := as.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count admin users: %w", err)
	}
	return count > 0, nil
}
