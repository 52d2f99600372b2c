// Package inmem provides a map-backed implementation of the cms contracts.
// It backs unit tests and small demos; the persistent implementation lives
// in internal/store.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"copydesk/internal/cms"
	"copydesk/internal/workflow"
)

// Item seeds one content item into the backend.
type Item struct {
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

// Backend is an in-memory CMS repository. All methods are safe for
// concurrent use. The Fail* hooks inject errors for specific item ids so
// tests can exercise partial-failure paths.
type Backend struct {
	registry *workflow.Registry

	mu           sync.Mutex
	items        map[string]*Item
	local        map[string][]string
	shared       map[string][]string
	linked       map[string][]string
	navNodes     map[string]string
	templates    map[string]string
	allowedSites map[string][]string
	pendingLive  map[string]struct{}

	transitionLog []TransitionRecord

	FailTransition map[string]error
	FailLock       map[string]error
	FailCheckIn    map[string]error
}

// TransitionRecord captures one executed transition for test assertions.
type TransitionRecord struct {
	ID      string
	Trigger string
	Comment string
	Actor   string
}

// New builds an empty backend validating transitions against the registry.
func New(registry *workflow.Registry) *Backend {
	return &Backend{
		registry:       registry,
		items:          make(map[string]*Item),
		local:          make(map[string][]string),
		shared:         make(map[string][]string),
		linked:         make(map[string][]string),
		navNodes:       make(map[string]string),
		templates:      make(map[string]string),
		allowedSites:   make(map[string][]string),
		pendingLive:    make(map[string]struct{}),
		FailTransition: make(map[string]error),
		FailLock:       make(map[string]error),
		FailCheckIn:    make(map[string]error),
	}
}

// Add seeds an item, replacing any existing record with the same id.
func (b *Backend) Add(item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := item
	b.items[item.ID] = &cp
}

// LinkLocal records pageID's local assets.
func (b *Backend) LinkLocal(pageID string, assetIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local[pageID] = append(b.local[pageID], assetIDs...)
}

// LinkShared records ownerID's shared assets (owner may be a page or template).
func (b *Backend) LinkShared(ownerID string, assetIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shared[ownerID] = append(b.shared[ownerID], assetIDs...)
}

// LinkAssets records pageID's linked assets.
func (b *Backend) LinkAssets(pageID string, assetIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.linked[pageID] = append(b.linked[pageID], assetIDs...)
}

// SetNavigationNode links a navigation node to an item.
func (b *Backend) SetNavigationNode(id, nodeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navNodes[id] = nodeID
}

// SetTemplate records the template a page renders with.
func (b *Backend) SetTemplate(pageID, templateID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates[pageID] = templateID
}

// RestrictSites restricts the item's root folder to the given sites.
func (b *Backend) RestrictSites(id string, sites ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowedSites[id] = sites
}

// RecordPendingToLive seeds a pending-to-live change event for test setup.
func (b *Backend) RecordPendingToLive(site, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingLive[site+"\x00"+id] = struct{}{}
}

// HasPendingToLive reports whether a pending-to-live event remains recorded.
func (b *Backend) HasPendingToLive(site, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pendingLive[site+"\x00"+id]
	return ok
}

// Transitions returns the executed transition log in order.
func (b *Backend) Transitions() []TransitionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TransitionRecord, len(b.transitionLog))
	copy(out, b.transitionLog)
	return out
}

// TransitionCount returns how many transitions executed against the id.
func (b *Backend) TransitionCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, rec := range b.transitionLog {
		if rec.ID == id {
			count++
		}
	}
	return count
}

// Summary implements cms.Gateway.
func (b *Backend) Summary(ctx context.Context, id string) (cms.Summary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.items[id]
	if !ok {
		return cms.Summary{}, cms.Wrap(cms.ErrNotFound, "inmem", "summary", fmt.Sprintf("no item %s", id), nil)
	}
	return cms.Summary{
		ID:               item.ID,
		State:            item.State,
		Workflow:         item.Workflow,
		ContentType:      item.ContentType,
		CheckedOutBy:     item.CheckedOutBy,
		Revision:         item.Revision,
		PublicRevision:   item.PublicRevision,
		RevisionLocked:   item.RevisionLocked,
		PublishStartDate: item.PublishStartDate,
	}, nil
}

// Transition implements cms.Executor. It validates the trigger against the
// item's workflow definition and applies the target state.
func (b *Backend) Transition(ctx context.Context, id, trigger, comment string, actor cms.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailTransition[id]; err != nil {
		return err
	}
	item, ok := b.items[id]
	if !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "transition", fmt.Sprintf("no item %s", id), nil)
	}
	def, ok := b.registry.Definition(item.Workflow)
	if !ok {
		return cms.Wrap(cms.ErrTransition, "inmem", "transition", fmt.Sprintf("unknown workflow %s", item.Workflow), nil)
	}
	state, ok := def.State(workflow.StateName(item.State))
	if !ok {
		return cms.Wrap(cms.ErrTransition, "inmem", "transition", fmt.Sprintf("unknown state %s", item.State), nil)
	}
	tr, ok := state.TransitionFor(workflow.TriggerName(trigger))
	if !ok {
		return cms.Wrap(cms.ErrTransition, "inmem", "transition",
			fmt.Sprintf("no transition %s from %s", trigger, item.State), nil)
	}
	item.State = string(tr.To)
	if workflow.StateName(item.State).Equals(workflow.StateLive) {
		item.PublicRevision = item.Revision
	}
	b.transitionLog = append(b.transitionLog, TransitionRecord{ID: id, Trigger: trigger, Comment: comment, Actor: actor.User})
	return nil
}

// LocalAssets implements cms.Relationships.
func (b *Backend) LocalAssets(ctx context.Context, pageID string) ([]string, error) {
	return b.related(b.local, pageID), nil
}

// SharedAssets implements cms.Relationships.
func (b *Backend) SharedAssets(ctx context.Context, ownerID string) ([]string, error) {
	return b.related(b.shared, ownerID), nil
}

// LinkedAssets implements cms.Relationships.
func (b *Backend) LinkedAssets(ctx context.Context, pageID string) ([]string, error) {
	return b.related(b.linked, pageID), nil
}

// Owners implements cms.Relationships.
func (b *Backend) Owners(ctx context.Context, assetID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for owner, deps := range b.local {
		for _, dep := range deps {
			if dep == assetID {
				out = append(out, owner)
			}
		}
	}
	for owner, deps := range b.shared {
		for _, dep := range deps {
			if dep == assetID {
				out = append(out, owner)
			}
		}
	}
	return out, nil
}

// NavigationNode implements cms.Relationships; "" means no node linked.
func (b *Backend) NavigationNode(ctx context.Context, id string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.navNodes[id], nil
}

// TemplateOf implements cms.Relationships.
func (b *Backend) TemplateOf(ctx context.Context, pageID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.templates[pageID], nil
}

// FixupAssetRevision implements cms.Relationships. The in-memory graph
// stores no per-relationship revision pointer, so this only verifies both
// ends exist.
func (b *Backend) FixupAssetRevision(ctx context.Context, ownerID, assetID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[ownerID]; !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "fixup revision", fmt.Sprintf("no item %s", ownerID), nil)
	}
	if _, ok := b.items[assetID]; !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "fixup revision", fmt.Sprintf("no item %s", assetID), nil)
	}
	return nil
}

// AllowedSites implements cms.FolderPolicy; nil means unrestricted.
func (b *Backend) AllowedSites(ctx context.Context, id string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sites, ok := b.allowedSites[id]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(sites))
	copy(out, sites)
	return out, nil
}

// CheckOut implements cms.Locks.
func (b *Backend) CheckOut(ctx context.Context, id, user string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.items[id]
	if !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "checkout", fmt.Sprintf("no item %s", id), nil)
	}
	if item.RevisionLocked {
		return cms.Wrap(cms.ErrConflict, "inmem", "checkout",
			fmt.Sprintf("item %s revision is locked", id), nil)
	}
	if item.CheckedOutBy != "" && item.CheckedOutBy != user {
		return cms.Wrap(cms.ErrConflict, "inmem", "checkout",
			fmt.Sprintf("item %s held by %s", id, item.CheckedOutBy), nil)
	}
	item.CheckedOutBy = user
	item.Revision++
	return nil
}

// CheckIn implements cms.Locks.
func (b *Backend) CheckIn(ctx context.Context, id string, ignoreRevisionCheck bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailCheckIn[id]; err != nil {
		return err
	}
	item, ok := b.items[id]
	if !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "checkin", fmt.Sprintf("no item %s", id), nil)
	}
	item.CheckedOutBy = ""
	return nil
}

// ForceCheckIn implements cms.Locks.
func (b *Backend) ForceCheckIn(ctx context.Context, id string) error {
	return b.CheckIn(ctx, id, true)
}

// LockRevision implements cms.Locks. The lock is a one-way latch.
func (b *Backend) LockRevision(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailLock[id]; err != nil {
		return err
	}
	item, ok := b.items[id]
	if !ok {
		return cms.Wrap(cms.ErrNotFound, "inmem", "lock revision", fmt.Sprintf("no item %s", id), nil)
	}
	item.RevisionLocked = true
	return nil
}

// ClearPendingToLive implements cms.ChangeEvents.
func (b *Backend) ClearPendingToLive(ctx context.Context, site, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pendingLive, site+"\x00"+id)
	return nil
}

func (b *Backend) related(set map[string][]string, id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	deps := set[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}
