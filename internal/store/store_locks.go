package store

import (
	"context"
	"fmt"
	"strings"

	"copydesk/internal/cms"
)

// CheckOut implements cms.Locks. Acquiring the hold opens a new editable
// revision; items whose revision is locked can no longer be revised and
// refuse the hold.
func (s *Store) CheckOut(ctx context.Context, id, user string) error {
	if strings.TrimSpace(user) == "" {
		return cms.Wrap(cms.ErrValidation, "store", "checkout", "blank user", nil)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.RevisionLocked {
		return cms.Wrap(cms.ErrConflict, "store", "checkout",
			fmt.Sprintf("item %s revision is locked", id), nil)
	}
	if rec.CheckedOutBy != "" && !strings.EqualFold(rec.CheckedOutBy, user) {
		return cms.Wrap(cms.ErrConflict, "store", "checkout",
			fmt.Sprintf("item %s held by %s", id, rec.CheckedOutBy), nil)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET checked_out_by = ?, revision = revision + 1, updated_at = ?
         WHERE id = ? AND revision = ?`,
		user, nowString(), id, rec.Revision)
	if err != nil {
		return fmt.Errorf("checkout item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checkout rows affected: %w", err)
	}
	if affected == 0 {
		return cms.Wrap(cms.ErrConflict, "store", "checkout",
			fmt.Sprintf("item %s modified concurrently", id), nil)
	}
	return nil
}

// CheckIn implements cms.Locks. Without ignoreRevisionCheck the release is
// rejected when the row's revision moved since the caller last read it,
// mirroring the repository's optimistic locking.
func (s *Store) CheckIn(ctx context.Context, id string, ignoreRevisionCheck bool) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.CheckedOutBy == "" {
		return nil
	}
	query := "UPDATE items SET checked_out_by = '', updated_at = ? WHERE id = ?"
	args := []any{nowString(), id}
	if !ignoreRevisionCheck {
		query += " AND revision = ?"
		args = append(args, rec.Revision)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("checkin item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checkin rows affected: %w", err)
	}
	if affected == 0 {
		return cms.Wrap(cms.ErrConflict, "store", "checkin",
			fmt.Sprintf("item %s modified concurrently", id), nil)
	}
	return nil
}

// ForceCheckIn implements cms.Locks.
func (s *Store) ForceCheckIn(ctx context.Context, id string) error {
	return s.CheckIn(ctx, id, true)
}

// LockRevision implements cms.Locks. The lock never unsets here; there is
// no unlock operation in this subsystem.
func (s *Store) LockRevision(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET revision_locked = 1, updated_at = ? WHERE id = ?",
		nowString(), id)
	if err != nil {
		return fmt.Errorf("lock revision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock revision rows affected: %w", err)
	}
	if affected == 0 {
		return cms.Wrap(cms.ErrNotFound, "store", "lock revision", fmt.Sprintf("no item %s", id), nil)
	}
	return nil
}
