// Package store persists review items and integration state in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zen-systems/cepho/pkg/review"
	"github.com/zen-systems/cepho/pkg/state"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const (
	timeLayout      = "2006-01-02T15:04:05.000000000Z07:00"
	integrationsKey = "integrations"
)

// SQLiteStore implements review.Store and state.Port.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

var (
	_ review.Store = (*SQLiteStore)(nil)
	_ state.Port   = (*SQLiteStore)(nil)
)

// Open creates or opens the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logger.Debug("failed to set sqlite journal_mode", zap.Error(err))
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const itemColumns = `id, title, description, state, first_score, first_feedback, first_reviewer,
	second_score, second_feedback, second_reviewer, revision_of, revision, created_at, updated_at`

func (s *SQLiteStore) Create(ctx context.Context, item *review.Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, string(item.State),
		nullScore(item.FirstScore), item.FirstFeedback, item.FirstReviewer,
		nullScore(item.SecondScore), item.SecondFeedback, item.SecondReviewer,
		item.RevisionOf, item.Revision,
		item.CreatedAt.UTC().Format(timeLayout), item.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert review item %s: %w", item.ID, err)
	}
	s.logger.Debug("review item stored", zap.String("item", item.ID))
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*review.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM review_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load review item %s: %w", id, err)
	}
	return item, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter review.Filter) ([]*review.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM review_items`
	var args []any
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []*review.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes item only while the stored state still equals expected.
func (s *SQLiteStore) Update(ctx context.Context, item *review.Item, expected review.State) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_items SET
			title = ?, description = ?, state = ?,
			first_score = ?, first_feedback = ?, first_reviewer = ?,
			second_score = ?, second_feedback = ?, second_reviewer = ?,
			revision_of = ?, revision = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		item.Title, item.Description, string(item.State),
		nullScore(item.FirstScore), item.FirstFeedback, item.FirstReviewer,
		nullScore(item.SecondScore), item.SecondFeedback, item.SecondReviewer,
		item.RevisionOf, item.Revision, item.UpdatedAt.UTC().Format(timeLayout),
		item.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update review item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review item %s: %w", item.ID, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM review_items WHERE id = ?`, item.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check review item %s: %w", item.ID, err)
	}
	if exists == 0 {
		return review.ErrNotFound
	}
	s.logger.Debug("stale review state", zap.String("item", item.ID), zap.String("expected", string(expected)))
	return review.ErrStateConflict
}

// Load returns the saved integrations, or nil if none were saved.
func (s *SQLiteStore) Load(ctx context.Context) (*state.Integrations, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM integrations WHERE key = ?`, integrationsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load integrations: %w", err)
	}
	var i state.Integrations
	if err := json.Unmarshal([]byte(value), &i); err != nil {
		return nil, fmt.Errorf("decode integrations: %w", err)
	}
	return &i, nil
}

func (s *SQLiteStore) Save(ctx context.Context, integrations *state.Integrations) error {
	if integrations == nil {
		return fmt.Errorf("integrations is nil")
	}
	data, err := json.Marshal(integrations)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO integrations (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		integrationsKey, string(data), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save integrations: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*review.Item, error) {
	var (
		item                 review.Item
		st                   string
		first, second        sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &st,
		&first, &item.FirstFeedback, &item.FirstReviewer,
		&second, &item.SecondFeedback, &item.SecondReviewer,
		&item.RevisionOf, &item.Revision, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.State = review.State(st)
	item.FirstScore = scoreFromNull(first)
	item.SecondScore = scoreFromNull(second)
	if item.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &item, nil
}

func nullScore(score *int) sql.NullInt64 {
	if score == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*score), Valid: true}
}

func scoreFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
