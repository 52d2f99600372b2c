package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"copydesk/internal/cms"
)

// Record is one persisted content item row.
type Record struct {
	ID               string
	State            string
	Workflow         string
	ContentType      string
	CheckedOutBy     string
	Revision         int
	PublicRevision   int
	RevisionLocked   bool
	PublishStartDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewItem describes an item to insert.
type NewItem struct {
	ID               string
	State            string
	Workflow         string
	ContentType      string
	PublishStartDate *time.Time
}

// AddItem inserts a content item. The id must be unique.
func (s *Store) AddItem(ctx context.Context, item NewItem) (*Record, error) {
	if strings.TrimSpace(item.ID) == "" {
		return nil, cms.Wrap(cms.ErrValidation, "store", "add item", "blank item id", nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, state, workflow, content_type, publish_start_date, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.State, item.Workflow, item.ContentType,
		nullableTime(item.PublishStartDate), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.Get(ctx, item.ID)
}

// Get fetches an item row by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, workflow, content_type, checked_out_by, revision,
                public_revision, revision_locked, publish_start_date, created_at, updated_at
         FROM items WHERE id = ?`, id)
	return scanRecord(row)
}

// List returns every item ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, workflow, content_type, checked_out_by, revision,
                public_revision, revision_locked, publish_start_date, created_at, updated_at
         FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary implements cms.Gateway.
func (s *Store) Summary(ctx context.Context, id string) (cms.Summary, error) {
	if strings.TrimSpace(id) == "" {
		return cms.Summary{}, cms.Wrap(cms.ErrValidation, "store", "summary", "blank item id", nil)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return cms.Summary{}, err
	}
	return cms.Summary{
		ID:               rec.ID,
		State:            rec.State,
		Workflow:         rec.Workflow,
		ContentType:      rec.ContentType,
		CheckedOutBy:     rec.CheckedOutBy,
		Revision:         rec.Revision,
		PublicRevision:   rec.PublicRevision,
		RevisionLocked:   rec.RevisionLocked,
		PublishStartDate: rec.PublishStartDate,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var locked int
	var publishStart, createdAt, updatedAt sql.NullString
	err := row.Scan(&rec.ID, &rec.State, &rec.Workflow, &rec.ContentType,
		&rec.CheckedOutBy, &rec.Revision, &rec.PublicRevision, &locked,
		&publishStart, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cms.Wrap(cms.ErrNotFound, "store", "get item", "no such item", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	rec.RevisionLocked = locked != 0
	if t, ok := parseTime(publishStart); ok {
		rec.PublishStartDate = &t
	}
	if t, ok := parseTime(createdAt); ok {
		rec.CreatedAt = t
	}
	if t, ok := parseTime(updatedAt); ok {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func parseTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
