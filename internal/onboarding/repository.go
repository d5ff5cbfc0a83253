package onboarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"portfolio-slides/slide-service/pkg/workflows"
)

// Repository persists submissions
type Repository interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	UpdateSubmission(ctx context.Context, s *Submission) error
	// ClaimSubmission moves a submission in one of the from statuses to
	// processing and counts the attempt, atomically. It returns
	// workflows.ErrInvalidTransition when the submission is in another status.
	ClaimSubmission(ctx context.Context, id uuid.UUID, from []SubmissionStatus, now time.Time) (*Submission, error)
	ListSubmissions(ctx context.Context, filters SubmissionFilters) ([]*Submission, error)
}

// Schema creates the submissions table
const Schema = `
CREATE TABLE IF NOT EXISTS onboarding_submissions (
	id             UUID PRIMARY KEY,
	company_name   TEXT NOT NULL,
	payload        JSONB,
	status         TEXT NOT NULL,
	attempts       INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT NOT NULL DEFAULT '',
	drive_link     TEXT NOT NULL DEFAULT '',
	docsend_link   TEXT NOT NULL DEFAULT '',
	notion_page_id TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_onboarding_submissions_status ON onboarding_submissions (status, updated_at);
`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies Schema
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate submissions table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateSubmission(ctx context.Context, s *Submission) error {
	query := `
		INSERT INTO onboarding_submissions (
			id, company_name, payload, status, attempts, last_error,
			drive_link, docsend_link, notion_page_id, created_at, updated_at
		) VALUES (
			:id, :company_name, :payload, :status, :attempts, :last_error,
			:drive_link, :docsend_link, :notion_page_id, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	query := `
		SELECT id, company_name, payload, status, attempts, last_error,
			   drive_link, docsend_link, notion_page_id, created_at, updated_at
		FROM onboarding_submissions
		WHERE id = $1
	`
	var s Submission
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) UpdateSubmission(ctx context.Context, s *Submission) error {
	query := `
		UPDATE onboarding_submissions SET
			company_name = :company_name, status = :status, attempts = :attempts,
			last_error = :last_error, drive_link = :drive_link, docsend_link = :docsend_link,
			notion_page_id = :notion_page_id, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (r *PostgresRepository) ClaimSubmission(ctx context.Context, id uuid.UUID, from []SubmissionStatus, now time.Time) (*Submission, error) {
	query := `
		UPDATE onboarding_submissions SET
			status = $2, attempts = attempts + 1, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING id, company_name, payload, status, attempts, last_error,
			drive_link, docsend_link, notion_page_id, created_at, updated_at
	`
	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}

	var s Submission
	err := r.db.GetContext(ctx, &s, query, id, StatusProcessing, now, pq.Array(statuses))
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}

	current, err := r.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s -> %s", workflows.ErrInvalidTransition, current.Status, StatusProcessing)
}

func (r *PostgresRepository) ListSubmissions(ctx context.Context, filters SubmissionFilters) ([]*Submission, error) {
	query := `
		SELECT id, company_name, payload, status, attempts, last_error,
			   drive_link, docsend_link, notion_page_id, created_at, updated_at
		FROM onboarding_submissions
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR attempts < $2)
		ORDER BY updated_at ASC
		LIMIT $3
	`
	status := ""
	if filters.Status != nil {
		status = string(*filters.Status)
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []*Submission
	if err := r.db.SelectContext(ctx, &out, query, status, filters.MaxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}

// MemoryRepository keeps submissions in process, for runs without a database
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]Submission
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]Submission)}
}

func (r *MemoryRepository) CreateSubmission(ctx context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; ok {
		return fmt.Errorf("submission %s already exists", s.ID)
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *MemoryRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) UpdateSubmission(ctx context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; !ok {
		return ErrSubmissionNotFound
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *MemoryRepository) ClaimSubmission(ctx context.Context, id uuid.UUID, from []SubmissionStatus, now time.Time) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	if !slices.Contains(from, s.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", workflows.ErrInvalidTransition, s.Status, StatusProcessing)
	}
	s.Status = StatusProcessing
	s.Attempts++
	s.UpdatedAt = now
	r.rows[id] = s
	return &s, nil
}

func (r *MemoryRepository) ListSubmissions(ctx context.Context, filters SubmissionFilters) ([]*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Submission, 0)
	for _, s := range r.rows {
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		if filters.MaxAttempts > 0 && s.Attempts >= filters.MaxAttempts {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// newSubmission starts a pending submission for a payload
func newSubmission(company string, payload []byte, now time.Time) *Submission {
	return &Submission{
		ID:          uuid.New(),
		CompanyName: company,
		Payload:     RawJSON(payload),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
