// Package storage holds the page-creation engine behind its interface
// boundary. The service treats page creation as an opaque call that returns
// an identifier or fails; everything else about the engine is replaceable.
package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPage is the input to the creation engine
type NewPage struct {
	Title    string
	Content  string
	Status   string // defaults to "publish"
	Slug     string
	Template string
}

// CreatedPage is the engine's answer for one created page
type CreatedPage struct {
	ID     string
	Title  string
	URL    string
	Status string
}

// PageStore is the external page-creation collaborator
type PageStore interface {
	CreatePage(ctx context.Context, page NewPage) (*CreatedPage, error)
}

// PostgresPageStore is the built-in engine backed by the pages table
type PostgresPageStore struct {
	pool    *pgxpool.Pool
	baseURL string
}

// NewPostgresPageStore creates a page store. baseURL prefixes generated page
// URLs, e.g. "https://example.com".
func NewPostgresPageStore(pool *pgxpool.Pool, baseURL string) *PostgresPageStore {
	return &PostgresPageStore{pool: pool, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// CreatePage persists one page and returns its identifier and URL
func (ps *PostgresPageStore) CreatePage(ctx context.Context, page NewPage) (*CreatedPage, error) {
	if page.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	status := page.Status
	if status == "" {
		status = "publish"
	}
	slug := page.Slug
	if slug == "" {
		slug = Slugify(page.Title)
	}

	id := uuid.New()
	if slug == "" {
		// Titles with no alphanumeric content slugify to nothing
		slug = id.String()
	}
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO pages (id, title, slug, content, status, template, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, id, page.Title, slug, page.Content, status, nullableString(page.Template))
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &CreatedPage{
		ID:     id.String(),
		Title:  page.Title,
		URL:    fmt.Sprintf("%s/pages/%s", ps.baseURL, slug),
		Status: status,
	}, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Slugify lowercases the title and collapses everything non-alphanumeric
// into single dashes.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
