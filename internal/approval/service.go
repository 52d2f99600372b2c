package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"copydesk/internal/cms"
	"copydesk/internal/config"
	"copydesk/internal/items"
	"copydesk/internal/jobs"
	"copydesk/internal/logging"
	"copydesk/internal/workflow"
)

// CheckoutInfo reports who holds an item after a checkout attempt, letting
// callers distinguish "I got it" from "already held by X" without an error.
type CheckoutInfo struct {
	ID           string
	CheckedOutBy string
	Acquired     bool
}

// Result is the structured outcome of a transition or cascade approval.
type Result struct {
	ID    string
	State string
	// Failed lists the dependent assets that blocked a cascade approval.
	// When non-empty the primary item was not transitioned.
	Failed []*items.Item
}

// Blocked reports whether a cascade approval was aborted by failed assets.
func (r *Result) Blocked() bool {
	return len(r.Failed) > 0
}

// Service implements the interactive and bulk transition operations.
type Service struct {
	cfg        *config.Config
	repo       cms.Repository
	classifier *workflow.Classifier
	runner     *jobs.Runner
	logger     *slog.Logger

	mu   sync.Mutex
	bulk map[string]*bulkProgress
}

// NewService constructs the approval service.
func NewService(cfg *config.Config, repo cms.Repository, classifier *workflow.Classifier, runner *jobs.Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:        cfg,
		repo:       repo,
		classifier: classifier,
		runner:     runner,
		logger:     logger.With(logging.String(logging.FieldComponent, "approval-service")),
		bulk:       make(map[string]*bulkProgress),
	}
}

// CheckIn checks the item in. For a page, its local assets are checked in
// first: relationship revision pointers are repointed at each asset's tip
// revision, and an asset held by another user is force-checked-in under the
// system identity, since local content belongs to the page's editing
// session. Per-asset failures are logged and do not abort the page's own
// check-in.
func (s *Service) CheckIn(ctx context.Context, id string, actor cms.Identity) error {
	return s.checkIn(ctx, id, actor, false)
}

func (s *Service) checkIn(ctx context.Context, id string, actor cms.Identity, ignoreRevisionCheck bool) error {
	if strings.TrimSpace(id) == "" {
		return cms.Wrap(cms.ErrValidation, "approval", "checkin", "blank item id", nil)
	}
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldUser, actor.User),
	)

	sum, err := s.repo.Summary(ctx, id)
	if err != nil {
		return err
	}

	if workflow.IsPage(sum) {
		s.checkInLocalAssets(ctx, logger, id, actor)
	}

	if !sum.CheckedOut() {
		return nil
	}
	if err := s.repo.CheckIn(ctx, id, ignoreRevisionCheck); err != nil {
		return err
	}
	logger.Info("item checked in")
	return nil
}

func (s *Service) checkInLocalAssets(ctx context.Context, logger *slog.Logger, pageID string, actor cms.Identity) {
	assetIDs, err := s.repo.LocalAssets(ctx, pageID)
	if err != nil {
		logger.Error("failed to resolve local assets for checkin", logging.Error(err))
		return
	}
	for _, assetID := range assetIDs {
		assetLogger := logger.With(logging.String("asset_id", assetID))
		if err := s.repo.FixupAssetRevision(ctx, pageID, assetID); err != nil {
			assetLogger.Error("failed to fix up asset relationship revision", logging.Error(err))
		}
		sum, err := s.repo.Summary(ctx, assetID)
		if err != nil {
			assetLogger.Error("failed to resolve local asset", logging.Error(err))
			continue
		}
		if !sum.CheckedOut() {
			continue
		}
		if workflow.IsCheckedOutToSomeoneElse(sum, actor) {
			// Local content follows the page, not whoever last touched it.
			if err := s.repo.ForceCheckIn(ctx, assetID); err != nil {
				assetLogger.Error("failed to force-check-in local asset",
					logging.String("held_by", sum.CheckedOutBy), logging.Error(err))
			}
			continue
		}
		if err := s.repo.CheckIn(ctx, assetID, false); err != nil {
			assetLogger.Error("failed to check in local asset", logging.Error(err))
		}
	}
}

// CheckOut acquires the edit hold on the item for the actor. It requires
// Assignee or Admin assignment for the item's current state. Local content
// held by someone else is force-checked-in first and then acquired; any
// other item held by someone else is left alone and the holder is reported.
func (s *Service) CheckOut(ctx context.Context, id string, actor cms.Identity) (CheckoutInfo, error) {
	if strings.TrimSpace(id) == "" {
		return CheckoutInfo{}, cms.Wrap(cms.ErrValidation, "approval", "checkout", "blank item id", nil)
	}
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldUser, actor.User),
	)

	sum, err := s.repo.Summary(ctx, id)
	if err != nil {
		return CheckoutInfo{}, err
	}
	info := CheckoutInfo{ID: id, CheckedOutBy: sum.CheckedOutBy}

	assignment, err := s.classifier.Assignment(ctx, id, actor)
	if err != nil {
		return info, err
	}
	if assignment < workflow.AssignmentAssignee {
		return info, cms.Wrap(cms.ErrPermission, "approval", "checkout",
			fmt.Sprintf("user %s is not an assignee for state %s", actor.User, sum.State), nil)
	}

	if workflow.IsCheckedOutToSomeoneElse(sum, actor) {
		if !s.classifier.IsLocalAsset(sum) {
			return info, nil
		}
		logger.Info("transferring local content checkout", logging.String("held_by", sum.CheckedOutBy))
		if err := s.repo.ForceCheckIn(ctx, id); err != nil {
			return info, err
		}
	}

	if workflow.IsCheckedOutToUser(sum, actor) {
		info.Acquired = true
		return info, nil
	}

	if err := s.repo.CheckOut(ctx, id, actor.User); err != nil {
		return info, err
	}
	info.CheckedOutBy = actor.User
	info.Acquired = true
	logger.Info("item checked out")
	return info, nil
}

// ForceCheckOut releases any existing hold (ignoring the revision check)
// and then performs a normal checkout.
func (s *Service) ForceCheckOut(ctx context.Context, id string, actor cms.Identity) (CheckoutInfo, error) {
	sum, err := s.repo.Summary(ctx, id)
	if err != nil {
		return CheckoutInfo{}, err
	}
	if sum.CheckedOut() {
		if err := s.repo.CheckIn(ctx, id, true); err != nil {
			return CheckoutInfo{ID: id, CheckedOutBy: sum.CheckedOutBy}, err
		}
	}
	return s.CheckOut(ctx, id, actor)
}

// Transition fires the named trigger on the item. The Approve trigger
// delegates to the cascade-approve gate; every other trigger checks the
// item in first, then executes directly.
func (s *Service) Transition(ctx context.Context, id, trigger, comment, site string, actor cms.Identity) (*Result, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(trigger) == "" {
		return nil, cms.Wrap(cms.ErrValidation, "approval", "transition", "blank item id or trigger", nil)
	}
	if workflow.TriggerName(trigger).Equals(workflow.TriggerApprove) {
		return s.Approve(ctx, id, comment, site, actor)
	}

	if err := s.checkIn(ctx, id, actor, false); err != nil {
		return nil, err
	}
	if err := s.repo.Transition(ctx, id, trigger, comment, actor); err != nil {
		return nil, err
	}
	sum, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{ID: id, State: sum.State}, nil
}
