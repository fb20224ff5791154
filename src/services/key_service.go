package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pageforge/pageforge/src/models"
)

const (
	// secretPrefix makes raw secrets recognizable to operators
	secretPrefix = "pf_"
	// secretEntropyBytes is the random entropy behind each secret
	secretEntropyBytes = 32
	// previewLength is how much of the raw secret is retained for display
	previewLength = 8
)

// KeyService owns API key lifecycle: generation, validation, revocation.
// Raw secrets exist only in the return value of Generate; the database holds
// a SHA-256 hash and an 8-character preview.
type KeyService struct {
	pool *pgxpool.Pool
}

// NewKeyService creates a new key service
func NewKeyService(pool *pgxpool.Pool) *KeyService {
	return &KeyService{pool: pool}
}

// hashSecret computes the hex SHA-256 of a raw secret. Lookup by hash keeps
// raw secrets out of the database and allows an indexed O(1) match.
func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateSecret returns a new raw secret with the pf_ prefix
func generateSecret() (string, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

// Generate creates a new API key and returns the raw secret exactly once.
// The secret is never persisted or logged in recoverable form.
func (ks *KeyService) Generate(ctx context.Context, name string, expiresAt *time.Time, createdBy string) (string, *models.APIKey, error) {
	if name == "" {
		return "", nil, ErrNameRequired
	}

	raw, err := generateSecret()
	if err != nil {
		return "", nil, err
	}

	key := &models.APIKey{
		ID:         uuid.New(),
		Name:       name,
		SecretHash: hashSecret(raw),
		Preview:    raw[:previewLength],
		Status:     string(models.KeyStatusActive),
		ExpiresAt:  expiresAt,
		CreatedBy:  createdBy,
	}

	err = ks.pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, name, secret_hash, preview, status, expires_at, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		RETURNING created_at
	`, key.ID, key.Name, key.SecretHash, key.Preview, key.Status, key.ExpiresAt, key.CreatedBy).Scan(&key.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store api key: %w", err)
	}

	return raw, key, nil
}

// Validate looks up a key by the hash of the presented secret. It returns
// ErrKeyNotFound, ErrKeyRevoked or ErrKeyExpired when the secret does not
// identify a usable key. On success last_used_at and usage_count are bumped
// in a single atomic UPDATE, so concurrent validations never lose counts.
func (ks *KeyService) Validate(ctx context.Context, rawSecret string) (*models.APIKey, error) {
	if rawSecret == "" {
		return nil, ErrKeyNotFound
	}

	presented := hashSecret(rawSecret)

	var key models.APIKey
	err := ks.pool.QueryRow(ctx, `
		SELECT id, name, secret_hash, preview, status, expires_at, last_used_at, usage_count, created_at, created_by
		FROM api_keys WHERE secret_hash = $1
	`, presented).Scan(
		&key.ID, &key.Name, &key.SecretHash, &key.Preview, &key.Status,
		&key.ExpiresAt, &key.LastUsedAt, &key.UsageCount, &key.CreatedAt, &key.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	// Timing-safe recheck of the stored hash against the presented one
	if !hmac.Equal([]byte(key.SecretHash), []byte(presented)) {
		return nil, ErrKeyNotFound
	}

	if !key.IsActive() {
		return nil, ErrKeyRevoked
	}
	if key.IsExpired(time.Now()) {
		return nil, ErrKeyExpired
	}

	now := time.Now()
	_, err = ks.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = NOW(), usage_count = usage_count + 1 WHERE id = $1
	`, key.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update key usage stats: %w", err)
	}
	key.LastUsedAt = &now
	key.UsageCount++

	return &key, nil
}

// Revoke marks a key revoked. Idempotent: revoking an already-revoked key
// succeeds and returns true as long as the row exists.
func (ks *KeyService) Revoke(ctx context.Context, keyID uuid.UUID) (bool, error) {
	result, err := ks.pool.Exec(ctx, `
		UPDATE api_keys SET status = $1 WHERE id = $2
	`, string(models.KeyStatusRevoked), keyID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke api key: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Get retrieves a key by id
func (ks *KeyService) Get(ctx context.Context, keyID uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	err := ks.pool.QueryRow(ctx, `
		SELECT id, name, secret_hash, preview, status, expires_at, last_used_at, usage_count, created_at, created_by
		FROM api_keys WHERE id = $1
	`, keyID).Scan(
		&key.ID, &key.Name, &key.SecretHash, &key.Preview, &key.Status,
		&key.ExpiresAt, &key.LastUsedAt, &key.UsageCount, &key.CreatedAt, &key.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &key, nil
}

// List returns keys newest first, optionally filtered by status
// ("active", "revoked", or "" for all).
func (ks *KeyService) List(ctx context.Context, status string) ([]*models.APIKey, error) {
	query := `
		SELECT id, name, secret_hash, preview, status, expires_at, last_used_at, usage_count, created_at, created_by
		FROM api_keys
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := ks.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key := &models.APIKey{}
		if err := rows.Scan(
			&key.ID, &key.Name, &key.SecretHash, &key.Preview, &key.Status,
			&key.ExpiresAt, &key.LastUsedAt, &key.UsageCount, &key.CreatedAt, &key.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
