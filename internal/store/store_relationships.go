package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copydesk/internal/cms"
)

// Relationship kinds persisted in the relationships table.
const (
	RelLocal  = "local"
	RelShared = "shared"
	RelLinked = "linked"
)

// Link records a relationship from owner to dependent of the given kind,
// pinned at the dependent's current revision.
func (s *Store) Link(ctx context.Context, ownerID, dependentID, kind string) error {
	switch kind {
	case RelLocal, RelShared, RelLinked:
	default:
		return cms.Wrap(cms.ErrValidation, "store", "link", fmt.Sprintf("unknown relationship kind %s", kind), nil)
	}
	dep, err := s.Get(ctx, dependentID)
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, ownerID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO relationships (owner_id, dependent_id, kind, dependent_revision)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (owner_id, dependent_id, kind) DO NOTHING`,
		ownerID, dependentID, kind, dep.Revision)
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (s *Store) dependents(ctx context.Context, ownerID, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT dependent_id FROM relationships WHERE owner_id = ? AND kind = ? ORDER BY rowid",
		ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LocalAssets implements cms.Relationships.
func (s *Store) LocalAssets(ctx context.Context, pageID string) ([]string, error) {
	return s.dependents(ctx, pageID, RelLocal)
}

// SharedAssets implements cms.Relationships.
func (s *Store) SharedAssets(ctx context.Context, ownerID string) ([]string, error) {
	return s.dependents(ctx, ownerID, RelShared)
}

// LinkedAssets implements cms.Relationships.
func (s *Store) LinkedAssets(ctx context.Context, pageID string) ([]string, error) {
	return s.dependents(ctx, pageID, RelLinked)
}

// Owners implements cms.Relationships.
func (s *Store) Owners(ctx context.Context, assetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT owner_id FROM relationships WHERE dependent_id = ? ORDER BY owner_id",
		assetID)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// NavigationNode implements cms.Relationships; "" means no node linked.
func (s *Store) NavigationNode(ctx context.Context, id string) (string, error) {
	var nodeID string
	err := s.db.QueryRowContext(ctx,
		"SELECT node_id FROM nav_nodes WHERE item_id = ?", id).Scan(&nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query navigation node: %w", err)
	}
	return nodeID, nil
}

// SetNavigationNode links a navigation node to an item.
func (s *Store) SetNavigationNode(ctx context.Context, id, nodeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nav_nodes (item_id, node_id) VALUES (?, ?)
         ON CONFLICT (item_id) DO UPDATE SET node_id = excluded.node_id`,
		id, nodeID)
	if err != nil {
		return fmt.Errorf("set navigation node: %w", err)
	}
	return nil
}

// TemplateOf implements cms.Relationships.
func (s *Store) TemplateOf(ctx context.Context, pageID string) (string, error) {
	var templateID string
	err := s.db.QueryRowContext(ctx,
		"SELECT template_id FROM page_templates WHERE page_id = ?", pageID).Scan(&templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query page template: %w", err)
	}
	return templateID, nil
}

// SetTemplate records the template a page renders with.
func (s *Store) SetTemplate(ctx context.Context, pageID, templateID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_templates (page_id, template_id) VALUES (?, ?)
         ON CONFLICT (page_id) DO UPDATE SET template_id = excluded.template_id`,
		pageID, templateID)
	if err != nil {
		return fmt.Errorf("set page template: %w", err)
	}
	return nil
}

// FixupAssetRevision implements cms.Relationships: the owner's relationship
// rows are repointed at the dependent's tip revision.
func (s *Store) FixupAssetRevision(ctx context.Context, ownerID, assetID string) error {
	dep, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE relationships SET dependent_revision = ? WHERE owner_id = ? AND dependent_id = ?",
		dep.Revision, ownerID, assetID)
	if err != nil {
		return fmt.Errorf("fixup relationship revision: %w", err)
	}
	return nil
}
