package workflow

import (
	"context"
	"strings"

	"copydesk/internal/cms"
	"copydesk/internal/items"
)

// AssignmentType is the computed access level of a user for an item's
// current state.
type AssignmentType int

const (
	AssignmentNone AssignmentType = iota
	AssignmentReader
	AssignmentAssignee
	AssignmentAdmin
)

// AdminRole is the role granting Admin assignment everywhere.
const AdminRole = "Admin"

// Classifier derives side-effect-free predicates from gateway summaries and
// workflow definitions. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	gateway  cms.Gateway
	registry *Registry
}

// NewClassifier builds a classifier over the given gateway and registry.
func NewClassifier(gateway cms.Gateway, registry *Registry) *Classifier {
	return &Classifier{gateway: gateway, registry: registry}
}

// Registry exposes the workflow definitions the classifier resolves against.
func (c *Classifier) Registry() *Registry {
	return c.registry
}

func (c *Classifier) summary(ctx context.Context, id string) (cms.Summary, error) {
	if strings.TrimSpace(id) == "" {
		return cms.Summary{}, cms.Wrap(cms.ErrValidation, "classifier", "summary", "blank item id", nil)
	}
	return c.gateway.Summary(ctx, id)
}

func (c *Classifier) stateIs(ctx context.Context, id string, name StateName) (bool, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return false, err
	}
	return StateName(sum.State).Equals(name), nil
}

// IsPending reports whether the item sits in the Pending state.
func (c *Classifier) IsPending(ctx context.Context, id string) (bool, error) {
	return c.stateIs(ctx, id, StatePending)
}

// IsLive reports whether the item sits in the Live state.
func (c *Classifier) IsLive(ctx context.Context, id string) (bool, error) {
	return c.stateIs(ctx, id, StateLive)
}

// IsQuickEdit reports whether the item sits in the Quick Edit state.
func (c *Classifier) IsQuickEdit(ctx context.Context, id string) (bool, error) {
	return c.stateIs(ctx, id, StateQuickEdit)
}

// IsArchived reports whether the item sits in the Archive state.
func (c *Classifier) IsArchived(ctx context.Context, id string) (bool, error) {
	return c.stateIs(ctx, id, StateArchive)
}

// IsApproved reports whether the item is in Pending, Live, or Quick Edit.
func (c *Classifier) IsApproved(ctx context.Context, id string) (bool, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return false, err
	}
	return ApprovedState(StateName(sum.State)), nil
}

// IsInApproveState reports whether the item is in Pending or Live. Quick
// Edit is deliberately excluded here; call sites that count in-flight edits
// as approved use IsApproved instead.
func (c *Classifier) IsInApproveState(ctx context.Context, id string) (bool, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return false, err
	}
	return InApproveState(StateName(sum.State)), nil
}

// IsInStagingState reports whether the item is in Review or in one of its
// workflow's public states.
func (c *Classifier) IsInStagingState(ctx context.Context, id string) (bool, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return false, err
	}
	state := StateName(sum.State)
	if state.Equals(StateReview) {
		return true, nil
	}
	def, ok := c.registry.Definition(sum.Workflow)
	if !ok {
		return false, nil
	}
	for _, public := range def.PublicStates() {
		if state.Equals(public) {
			return true, nil
		}
	}
	return false, nil
}

// IsPublishable reports whether the summary's current revision may be
// served: the item sits in one of its workflow's public states, or in the
// Review staging state when staging mode is on.
func (c *Classifier) IsPublishable(sum cms.Summary, stagingMode bool) bool {
	state := StateName(sum.State)
	if stagingMode && state.Equals(StateReview) {
		return true
	}
	def, ok := c.registry.Definition(sum.Workflow)
	if !ok {
		return false
	}
	for _, public := range def.PublicStates() {
		if state.Equals(public) {
			return true
		}
	}
	return false
}

// ApprovedState reports whether a state counts as approved: Pending, Live,
// or Quick Edit.
func ApprovedState(state StateName) bool {
	return state.Equals(StatePending) || state.Equals(StateLive) || state.Equals(StateQuickEdit)
}

// InApproveState reports whether a state is Pending or Live.
func InApproveState(state StateName) bool {
	return state.Equals(StatePending) || state.Equals(StateLive)
}

// IsCheckedOutToUser reports whether the summary's checkout owner matches
// the acting identity. System identities also match on the original
// authenticated user carried with the request.
func IsCheckedOutToUser(sum cms.Summary, actor cms.Identity) bool {
	owner := strings.TrimSpace(sum.CheckedOutBy)
	if owner == "" {
		return false
	}
	if strings.EqualFold(owner, strings.TrimSpace(actor.User)) {
		return true
	}
	if actor.System && strings.EqualFold(owner, strings.TrimSpace(actor.OriginalUser)) {
		return true
	}
	return false
}

// IsCheckedOutToSomeoneElse reports whether another user holds the item.
func IsCheckedOutToSomeoneElse(sum cms.Summary, actor cms.Identity) bool {
	return sum.CheckedOut() && !IsCheckedOutToUser(sum, actor)
}

// ClassifyAssetType classifies a summary for coordination: the page content
// type is a Page, items in the local-content workflow are Local, and
// everything else is Shared.
func (c *Classifier) ClassifyAssetType(sum cms.Summary) items.AssetType {
	if IsPage(sum) {
		return items.AssetPage
	}
	if c.registry.IsLocalContent(sum.Workflow) {
		return items.AssetLocal
	}
	return items.AssetShared
}

// IsPage reports whether the summary's content type is the page type.
func IsPage(sum cms.Summary) bool {
	return strings.EqualFold(sum.ContentType, cms.ContentTypePage)
}

// IsTemplate reports whether the summary's content type is the template type.
func IsTemplate(sum cms.Summary) bool {
	return strings.EqualFold(sum.ContentType, cms.ContentTypeTemplate)
}

// IsAsset reports whether the summary is an asset: not a page, template,
// folder, or navigation node.
func IsAsset(sum cms.Summary) bool {
	switch {
	case IsPage(sum), IsTemplate(sum):
		return false
	case strings.EqualFold(sum.ContentType, cms.ContentTypeFolder):
		return false
	case strings.EqualFold(sum.ContentType, cms.ContentTypeNavigation):
		return false
	}
	return true
}

// IsLocalAsset reports whether the summary is an asset in the local-content
// workflow.
func (c *Classifier) IsLocalAsset(sum cms.Summary) bool {
	return IsAsset(sum) && c.registry.IsLocalContent(sum.Workflow)
}

// AvailableTriggers returns the ordered transition triggers the actor may
// fire from the item's current state, default trigger first. An unknown
// workflow or state yields an empty list, not an error.
func (c *Classifier) AvailableTriggers(ctx context.Context, id string, actor cms.Identity) ([]TriggerName, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return nil, err
	}
	def, ok := c.registry.Definition(sum.Workflow)
	if !ok {
		return nil, nil
	}
	state, ok := def.State(StateName(sum.State))
	if !ok {
		return nil, nil
	}
	return state.AvailableTriggers(actor.Roles), nil
}

// Assignment computes the actor's assignment type for the item's current
// state: Admin for the admin role, Assignee when any outgoing transition is
// open to the actor, Reader otherwise.
func (c *Classifier) Assignment(ctx context.Context, id string, actor cms.Identity) (AssignmentType, error) {
	sum, err := c.summary(ctx, id)
	if err != nil {
		return AssignmentNone, err
	}
	for _, role := range actor.Roles {
		if strings.EqualFold(role, AdminRole) {
			return AssignmentAdmin, nil
		}
	}
	def, ok := c.registry.Definition(sum.Workflow)
	if !ok {
		return AssignmentReader, nil
	}
	state, ok := def.State(StateName(sum.State))
	if !ok {
		return AssignmentReader, nil
	}
	if len(state.AvailableTriggers(actor.Roles)) > 0 {
		return AssignmentAssignee, nil
	}
	return AssignmentReader, nil
}

// CanFire reports whether the actor may fire the trigger from the item's
// current state.
func (c *Classifier) CanFire(ctx context.Context, id string, trigger TriggerName, actor cms.Identity) (bool, error) {
	triggers, err := c.AvailableTriggers(ctx, id, actor)
	if err != nil {
		return false, err
	}
	for _, t := range triggers {
		if t.Equals(trigger) {
			return true, nil
		}
	}
	return false, nil
}
