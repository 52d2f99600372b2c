package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"copydesk/internal/cms"
	"copydesk/internal/items"
	"copydesk/internal/logging"
	"copydesk/internal/publish"
	"copydesk/internal/workflow"
)

// Approve performs the cascade approval of a page: every shared and linked
// asset must be approvable before the page itself is touched. When any
// asset cannot be transitioned the page approval is aborted and the failed
// assets are returned on the result; the page and already-approved assets
// are left as they were found.
func (s *Service) Approve(ctx context.Context, id, comment, site string, actor cms.Identity) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldUser, actor.User),
		logging.String(logging.FieldSite, site),
	)

	sum, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	canPublish, err := s.classifier.CanFire(ctx, id, workflow.TriggerPublish, actor)
	if err != nil {
		return nil, err
	}
	if !canPublish && futurePublishScheduled(sum) {
		// Approving now would sidestep the publish-permission gate on the
		// scheduled publish.
		return nil, cms.Wrap(cms.ErrPermission, "approval", "approve",
			fmt.Sprintf("item %s has a scheduled publish and user %s lacks the publish trigger", id, actor.User), nil)
	}

	canApprove, err := s.classifier.CanFire(ctx, id, workflow.TriggerApprove, actor)
	if err != nil {
		return nil, err
	}
	if !canApprove {
		return nil, cms.Wrap(cms.ErrPermission, "approval", "approve",
			fmt.Sprintf("user %s cannot approve item %s from state %s", actor.User, id, sum.State), nil)
	}

	assetIDs, err := s.cascadeAssets(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkSiteScope(ctx, id, assetIDs, site); err != nil {
		return nil, err
	}

	var failed []*items.Item
	for _, assetID := range assetIDs {
		asset, ok := s.approveAsset(ctx, logger, assetID, comment, actor)
		if !ok {
			continue
		}
		if asset.Status == items.StatusFailed {
			failed = append(failed, asset)
		}
	}
	if len(failed) > 0 {
		logger.Warn("approval blocked by dependent assets", logging.Int("failed_assets", len(failed)))
		return &Result{ID: id, State: sum.State, Failed: failed}, nil
	}

	if err := s.approveNavigationNode(ctx, id, comment, actor); err != nil {
		return nil, err
	}
	if err := s.checkIn(ctx, id, actor, false); err != nil {
		return nil, err
	}
	if err := s.repo.Transition(ctx, id, string(workflow.TriggerApprove), comment, actor); err != nil {
		return nil, err
	}

	after, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("item approved", logging.String(logging.FieldState, after.State))
	return &Result{ID: id, State: after.State}, nil
}

func futurePublishScheduled(sum cms.Summary) bool {
	return sum.PublishStartDate != nil && sum.PublishStartDate.After(time.Now())
}

// cascadeAssets gathers the shared and linked assets of a page, deduplicated
// in discovery order.
func (s *Service) cascadeAssets(ctx context.Context, pageID string) ([]string, error) {
	shared, err := s.repo.SharedAssets(ctx, pageID)
	if err != nil {
		return nil, err
	}
	linked, err := s.repo.LinkedAssets(ctx, pageID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(shared)+len(linked))
	out := make([]string, 0, len(shared)+len(linked))
	for _, id := range append(shared, linked...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// checkSiteScope rejects the approval when the page or any cascade asset
// lives under a root folder whose allowed sites exclude the page's site.
func (s *Service) checkSiteScope(ctx context.Context, pageID string, assetIDs []string, site string) error {
	check := func(id string) error {
		ok, err := publish.SiteAllowed(ctx, s.repo, id, site)
		if err != nil {
			return err
		}
		if !ok {
			return cms.Wrap(cms.ErrConflict, "approval", "approve",
				fmt.Sprintf("item %s is not available to site %s", id, site), nil)
		}
		return nil
	}
	if err := check(pageID); err != nil {
		return err
	}
	for _, assetID := range assetIDs {
		if err := check(assetID); err != nil {
			return err
		}
	}
	return nil
}

// approveAsset attempts to approve one cascade asset. The second return is
// false for assets that need no approval: recycled items and items whose
// current state defines no approve transition. Anything else that cannot be
// transitioned comes back with StatusFailed.
func (s *Service) approveAsset(ctx context.Context, logger *slog.Logger, assetID, comment string, actor cms.Identity) (*items.Item, bool) {
	assetLogger := logger.With(logging.String("asset_id", assetID))

	sum, err := s.repo.Summary(ctx, assetID)
	if err != nil {
		item := &items.Item{ID: assetID, Status: items.StatusStarted}
		item.MarkFailed(err)
		return item, true
	}
	asset := items.FromSummary(sum)
	asset.AssetType = s.classifier.ClassifyAssetType(sum)

	if workflow.StateName(sum.State).Equals(workflow.StateRecycled) {
		return nil, false
	}
	if !s.hasApproveTransition(sum) {
		// Already approved or otherwise outside the approval path.
		return nil, false
	}

	canApprove, err := s.classifier.CanFire(ctx, assetID, workflow.TriggerApprove, actor)
	if err != nil {
		asset.MarkFailed(err)
		return asset, true
	}
	if !canApprove {
		asset.MarkFailed(cms.Wrap(cms.ErrPermission, "approval", "approve asset",
			fmt.Sprintf("user %s cannot approve asset %s", actor.User, assetID), nil))
		return asset, true
	}

	if sum.CheckedOut() {
		if !workflow.IsCheckedOutToUser(sum, actor) {
			asset.MarkFailed(cms.Wrap(cms.ErrConflict, "approval", "approve asset",
				fmt.Sprintf("asset %s checked out to %s", assetID, sum.CheckedOutBy), nil))
			return asset, true
		}
		if err := s.repo.CheckIn(ctx, assetID, false); err != nil {
			asset.MarkFailed(err)
			return asset, true
		}
	}

	if err := s.repo.Transition(ctx, assetID, string(workflow.TriggerApprove), comment, actor); err != nil {
		asset.MarkFailed(err)
		assetLogger.Error("asset approval failed", logging.Error(err))
		return asset, true
	}
	asset.MarkProcessed()
	return asset, true
}

func (s *Service) hasApproveTransition(sum cms.Summary) bool {
	def, ok := s.classifier.Registry().Definition(sum.Workflow)
	if !ok {
		return false
	}
	state, ok := def.State(workflow.StateName(sum.State))
	if !ok {
		return false
	}
	_, ok = state.TransitionFor(workflow.TriggerApprove)
	return ok
}

// approveNavigationNode moves the related navigation node along with the
// page so landing-page navigation stays in step.
func (s *Service) approveNavigationNode(ctx context.Context, id, comment string, actor cms.Identity) error {
	nodeID, err := s.repo.NavigationNode(ctx, id)
	if err != nil {
		return err
	}
	if nodeID == "" {
		return nil
	}
	sum, err := s.repo.Summary(ctx, nodeID)
	if err != nil {
		return err
	}
	if !s.hasApproveTransition(sum) {
		return nil
	}
	return s.repo.Transition(ctx, nodeID, string(workflow.TriggerApprove), comment, actor)
}
