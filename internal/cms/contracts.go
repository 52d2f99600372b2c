package cms

import (
	"context"
	"strings"
	"time"
)

// Well-known content type names used for asset classification.
const (
	ContentTypePage       = "page"
	ContentTypeTemplate   = "template"
	ContentTypeFolder     = "folder"
	ContentTypeNavigation = "navigation"
)

// Summary is the item metadata record returned by the gateway. It is a
// point-in-time snapshot; callers re-fetch rather than cache across
// operations.
type Summary struct {
	ID               string
	State            string
	Workflow         string
	ContentType      string
	CheckedOutBy     string
	Revision         int
	PublicRevision   int
	RevisionLocked   bool
	PublishStartDate *time.Time
}

// CheckedOut reports whether any user currently holds the item for edit.
func (s Summary) CheckedOut() bool {
	return strings.TrimSpace(s.CheckedOutBy) != ""
}

// Identity is the acting identity threaded explicitly through every
// operation. System identities act on behalf of OriginalUser, the user
// authenticated on the originating request.
type Identity struct {
	User         string
	OriginalUser string
	System       bool
	Roles        []string
}

// SystemIdentity returns an elevated identity with the given user name,
// acting on behalf of the user authenticated on the originating request.
// Server-initiated transitions and forced check-ins of local content run
// under this identity. A blank user falls back to "system".
func SystemIdentity(user, onBehalfOf string) Identity {
	if strings.TrimSpace(user) == "" {
		user = "system"
	}
	return Identity{User: user, OriginalUser: onBehalfOf, System: true}
}

// Gateway supplies item metadata. Summary fails with ErrNotFound for
// unknown ids and ErrValidation for blank ids.
type Gateway interface {
	Summary(ctx context.Context, id string) (Summary, error)
}

// Executor performs and persists a workflow transition. It fails with
// ErrTransition (invalid state or persistence failure), ErrPermission, or
// ErrConflict; it never partially applies a transition.
type Executor interface {
	Transition(ctx context.Context, id, trigger, comment string, actor Identity) error
}

// Relationships resolves the dependency graph around pages and templates.
// NavigationNode returns an empty id, not an error, when no node is linked.
type Relationships interface {
	LocalAssets(ctx context.Context, pageID string) ([]string, error)
	SharedAssets(ctx context.Context, ownerID string) ([]string, error)
	LinkedAssets(ctx context.Context, pageID string) ([]string, error)
	Owners(ctx context.Context, assetID string) ([]string, error)
	NavigationNode(ctx context.Context, id string) (string, error)
	// TemplateOf returns the template a page renders with, or "" when the
	// page has none recorded.
	TemplateOf(ctx context.Context, pageID string) (string, error)
	// FixupAssetRevision repoints the owner relationship at the dependent's
	// tip revision before check-in.
	FixupAssetRevision(ctx context.Context, ownerID, assetID string) error
}

// FolderPolicy reports site restrictions on an item's root folder. A nil
// slice means the folder is unrestricted.
type FolderPolicy interface {
	AllowedSites(ctx context.Context, id string) ([]string, error)
}

// Locks exposes the checkout and revision-lock primitives of the underlying
// repository. CheckIn with ignoreRevisionCheck releases the hold even when
// the revision pointer is stale. LockRevision is a one-way latch.
type Locks interface {
	CheckOut(ctx context.Context, id, user string) error
	CheckIn(ctx context.Context, id string, ignoreRevisionCheck bool) error
	ForceCheckIn(ctx context.Context, id string) error
	LockRevision(ctx context.Context, id string) error
}

// ChangeEvents clears pending-to-live change tracking recorded for a
// site/item pair once publish-time processing finishes.
type ChangeEvents interface {
	ClearPendingToLive(ctx context.Context, site, id string) error
}

// Repository is the full collaborator surface the workflow services consume.
// Both the SQLite store and the in-memory backend satisfy it.
type Repository interface {
	Gateway
	Executor
	Relationships
	FolderPolicy
	Locks
	ChangeEvents
}
