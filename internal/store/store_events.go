package store

import (
	"context"
	"fmt"
)

// EventPendingToLive is the change event recorded when an item is scheduled
// to move from pending to live on a site.
const EventPendingToLive = "pending_to_live"

// RecordPendingToLive records a pending-to-live change event for a
// site/item pair. Recording the same pair twice is a no-op.
func (s *Store) RecordPendingToLive(ctx context.Context, site, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_events (site, item_id, event, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (site, item_id, event) DO NOTHING`,
		site, id, EventPendingToLive, nowString())
	if err != nil {
		return fmt.Errorf("record change event: %w", err)
	}
	return nil
}

// ClearPendingToLive implements cms.ChangeEvents.
func (s *Store) ClearPendingToLive(ctx context.Context, site, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM change_events WHERE site = ? AND item_id = ? AND event = ?",
		site, id, EventPendingToLive)
	if err != nil {
		return fmt.Errorf("clear change event: %w", err)
	}
	return nil
}

// HasPendingToLive reports whether a pending-to-live event remains recorded.
func (s *Store) HasPendingToLive(ctx context.Context, site, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM change_events WHERE site = ? AND item_id = ? AND event = ?",
		site, id, EventPendingToLive).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query change event: %w", err)
	}
	return count > 0, nil
}

// RestrictSites replaces the allowed-sites restriction for an item's root
// folder. An item with no rows is unrestricted.
func (s *Store) RestrictSites(ctx context.Context, id string, sites ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restrict tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM folder_sites WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("clear folder sites: %w", err)
	}
	for _, site := range sites {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO folder_sites (item_id, site) VALUES (?, ?)", id, site); err != nil {
			return fmt.Errorf("insert folder site: %w", err)
		}
	}
	return tx.Commit()
}

// AllowedSites implements cms.FolderPolicy; nil means unrestricted.
func (s *Store) AllowedSites(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT site FROM folder_sites WHERE item_id = ? ORDER BY site", id)
	if err != nil {
		return nil, fmt.Errorf("query folder sites: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("scan folder site: %w", err)
		}
		out = append(out, site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
