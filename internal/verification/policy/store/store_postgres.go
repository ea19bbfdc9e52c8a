package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"docverify/internal/verification/policy"
	"docverify/pkg/platform/sentinel"
	txcontext "docverify/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresStore persists policy documents as JSON in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed policy store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Save inserts a new policy version. Versions are immutable.
func (s *PostgresStore) Save(ctx context.Context, p *policy.Policy) error {
	if err := prepare(p); err != nil {
		return err
	}
	doc, err := policy.Encode(p, policy.FormatJSON)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	query := `
		INSERT INTO policies (id, version, document, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query, p.ID, p.Version, doc, s.now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("policy %s: %w", p.Ref(), sentinel.ErrConflict)
		}
		return fmt.Errorf("insert policy: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id, version string) (*policy.Policy, error) {
	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT document FROM policies WHERE id = $1 AND version = $2`, id, version).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s@%s: %w", id, version, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select policy: %w: %w", sentinel.ErrUnavailable, err)
	}
	return decodeStored(doc)
}

// Latest selects the greatest semantic version. Ordering is done with semver
// rather than SQL so "1.10.0" sorts after "1.9.0".
func (s *PostgresStore) Latest(ctx context.Context, id string) (*policy.Policy, error) {
	versions, err := s.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, ok := policy.Latest(versions)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	return s.Get(ctx, id, latest)
}

// Versions lists the stored versions of id.
func (s *PostgresStore) Versions(ctx context.Context, id string) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT version FROM policies WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list policy versions: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan policy version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy versions: %w: %w", sentinel.ErrUnavailable, err)
	}
	return versions, nil
}

// decodeStored parses a stored document. A stored document that no longer
// validates is reported as invalid state alongside the policy error.
func decodeStored(doc []byte) (*policy.Policy, error) {
	p, err := policy.Parse(doc, policy.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decode stored policy: %w: %w", sentinel.ErrInvalidState, err)
	}
	return p, nil
}
