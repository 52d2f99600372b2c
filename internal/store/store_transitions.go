package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"copydesk/internal/cms"
	"copydesk/internal/workflow"
)

// TransitionEntry is one persisted workflow transition of an item.
type TransitionEntry struct {
	ItemID    string
	Trigger   string
	Comment   string
	Actor     string
	FromState string
	ToState   string
	CreatedAt time.Time
}

// Transition implements cms.Executor. The trigger is validated against the
// item's workflow definition and the actor's roles, then applied with an
// optimistic revision check; a row changed underneath the caller surfaces
// as ErrConflict. Reaching a public state promotes the current revision to
// the public revision. Every applied transition is recorded in the
// transition log with its comment and actor.
func (s *Store) Transition(ctx context.Context, id, trigger, comment string, actor cms.Identity) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	def, ok := s.registry.Definition(rec.Workflow)
	if !ok {
		return cms.Wrap(cms.ErrTransition, "store", "transition",
			fmt.Sprintf("unknown workflow %s", rec.Workflow), nil)
	}
	state, ok := def.State(workflow.StateName(rec.State))
	if !ok {
		return cms.Wrap(cms.ErrTransition, "store", "transition",
			fmt.Sprintf("unknown state %s in workflow %s", rec.State, rec.Workflow), nil)
	}
	tr, ok := state.TransitionFor(workflow.TriggerName(trigger))
	if !ok {
		return cms.Wrap(cms.ErrTransition, "store", "transition",
			fmt.Sprintf("no transition %s from state %s", trigger, rec.State), nil)
	}
	// Server-initiated transitions run under a system identity and bypass
	// role assignment.
	if !actor.System && !tr.Permits(actor.Roles) {
		return cms.Wrap(cms.ErrPermission, "store", "transition",
			fmt.Sprintf("roles [%s] may not fire %s from state %s",
				strings.Join(actor.Roles, ", "), trigger, rec.State), nil)
	}

	target, ok := def.State(tr.To)
	if !ok {
		return cms.Wrap(cms.ErrTransition, "store", "transition",
			fmt.Sprintf("transition %s targets unknown state %s", trigger, tr.To), nil)
	}

	publicRevision := rec.PublicRevision
	if target.Public {
		publicRevision = rec.Revision
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET state = ?, public_revision = ?, updated_at = ?
         WHERE id = ? AND revision = ? AND state = ?`,
		string(target.Name), publicRevision, nowString(), id, rec.Revision, rec.State)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 0 {
		return cms.Wrap(cms.ErrConflict, "store", "transition",
			fmt.Sprintf("item %s modified concurrently", id), nil)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO transition_log (item_id, trigger_name, comment, actor, from_state, to_state, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(tr.Trigger), comment, actor.User, rec.State, string(target.Name), nowString()); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// TransitionHistory returns the item's applied transitions, oldest first.
func (s *Store) TransitionHistory(ctx context.Context, id string) ([]TransitionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, trigger_name, comment, actor, from_state, to_state, created_at
         FROM transition_log WHERE item_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query transition log: %w", err)
	}
	defer rows.Close()

	var out []TransitionEntry
	for rows.Next() {
		var entry TransitionEntry
		var createdAt string
		if err := rows.Scan(&entry.ItemID, &entry.Trigger, &entry.Comment, &entry.Actor,
			&entry.FromState, &entry.ToState, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transition log: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			entry.CreatedAt = t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition log: %w", err)
	}
	return out, nil
}
