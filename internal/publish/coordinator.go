package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"copydesk/internal/cms"
	"copydesk/internal/config"
	"copydesk/internal/items"
	"copydesk/internal/logging"
	"copydesk/internal/workflow"
)

// StatusSuccess is the upstream publish status that allows post-publish
// processing. Any other status is logged and skipped.
const StatusSuccess = "success"

// Event describes one published item delivered by the publish pipeline.
type Event struct {
	ItemID string
	// Revision is the revision that was published.
	Revision int
	// Status is the upstream publish outcome for the item.
	Status string
	Site   string
	// DefaultServer is set when the event came from the site's default
	// publish server; only then is change-event cleanup performed.
	DefaultServer bool
}

// Action describes a workflow-action trigger firing on a single item.
type Action struct {
	ItemID string
	// State the item is entering; local-asset locking only happens on entry
	// to the pending state.
	ToState workflow.StateName
}

// Coordinator orchestrates one coordination run. Its run state (seen
// templates, successfully transitioned ids) belongs exclusively to this
// instance; construct a new Coordinator per run.
type Coordinator struct {
	cfg        *config.Config
	repo       cms.Repository
	classifier *workflow.Classifier
	logger     *slog.Logger
	actor      cms.Identity

	runID         string
	seenTemplates map[string]struct{}
	transitioned  map[string]struct{}
	report        items.Report
}

// NewRun constructs a coordinator with fresh run state.
func NewRun(cfg *config.Config, repo cms.Repository, classifier *workflow.Classifier, logger *slog.Logger, actor cms.Identity) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	runID := uuid.NewString()
	return &Coordinator{
		cfg:           cfg,
		repo:          repo,
		classifier:    classifier,
		logger:        logger.With(logging.String(logging.FieldComponent, "publish-coordinator"), logging.String(logging.FieldRunID, runID)),
		actor:         actor,
		runID:         runID,
		seenTemplates: make(map[string]struct{}),
		transitioned:  make(map[string]struct{}),
	}
}

// RunID identifies this coordination run in logs.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Report returns the per-item outcomes recorded so far, in discovery order.
func (c *Coordinator) Report() *items.Report {
	return &c.report
}

// ProcessPublishedItem handles one publish-completion event. It returns true
// when the event was handled (processed or deliberately ignored) and false
// when the publish status did not warrant processing. Failures of dependent
// items are captured in the report, never returned; only an unresolvable
// primary item surfaces as an error.
func (c *Coordinator) ProcessPublishedItem(ctx context.Context, event Event) (bool, error) {
	logger := c.logger.With(
		logging.String(logging.FieldItemID, event.ItemID),
		logging.String(logging.FieldSite, event.Site),
	)

	if !strings.EqualFold(strings.TrimSpace(event.Status), StatusSuccess) {
		logger.Info("skipping item with unsuccessful publish status",
			logging.String("publish_status", event.Status))
		return false, nil
	}

	if event.Site != "" && event.DefaultServer {
		defer func() {
			if err := c.repo.ClearPendingToLive(ctx, event.Site, event.ItemID); err != nil {
				logger.Warn("failed to clear pending-to-live events", logging.Error(err))
			}
		}()
	}

	item, err := c.resolve(ctx, event.ItemID)
	if err != nil {
		return false, err
	}
	c.report.Add(item)

	if event.Revision != 0 && event.Revision != item.Revision {
		// The item was revised after this publish was scheduled; a later
		// publish run owns the current revision.
		logger.Info("ignoring stale publish revision",
			logging.Int("published_revision", event.Revision),
			logging.Int("current_revision", item.Revision))
		item.MarkIgnored()
		return true, nil
	}

	if c.alreadyTransitioned(item.ID) {
		logger.Debug("item already transitioned this run")
		item.MarkIgnored()
		return true, nil
	}

	if item.AssetType == items.AssetPage || item.AssetType == items.AssetResource {
		c.transitionItem(ctx, logger, item)
	}

	if item.Status == items.StatusProcessed && item.AssetType == items.AssetPage {
		c.lockLocalAssets(ctx, item.ID)
		c.transitionSharedAssets(ctx, item.ID, event.Site)
	}
	return true, nil
}

// ProcessWorkflowAction handles a workflow action firing interactively on an
// item. Entering the pending state freezes a page's local content so edits
// made during review cannot leak into the published page.
func (c *Coordinator) ProcessWorkflowAction(ctx context.Context, action Action) error {
	if !action.ToState.Equals(workflow.StateName(c.cfg.Workflow.RequiredState)) {
		return nil
	}
	sum, err := c.repo.Summary(ctx, action.ItemID)
	if err != nil {
		return err
	}
	if !workflow.IsPage(sum) {
		return nil
	}
	c.lockLocalAssets(ctx, sum.ID)
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, id string) (*items.Item, error) {
	sum, err := c.repo.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	item := items.FromSummary(sum)
	item.Publishable = c.classifier.IsPublishable(sum, c.cfg.Workflow.StagingMode)
	switch {
	case workflow.IsPage(sum):
		item.AssetType = items.AssetPage
	case !workflow.IsAsset(sum):
		item.AssetType = items.AssetResource
	default:
		item.AssetType = c.classifier.ClassifyAssetType(sum)
	}
	return item, nil
}

// refresh reloads the report entry after a transition so callers see the
// post-transition state. A failed reload keeps the resolve-time snapshot.
func (c *Coordinator) refresh(ctx context.Context, item *items.Item) {
	sum, err := c.repo.Summary(ctx, item.ID)
	if err != nil {
		return
	}
	item.State = sum.State
	item.Revision = sum.Revision
	item.PublicRevision = sum.PublicRevision
	item.Publishable = c.classifier.IsPublishable(sum, c.cfg.Workflow.StagingMode)
}

func (c *Coordinator) alreadyTransitioned(id string) bool {
	_, ok := c.transitioned[id]
	return ok
}

// transitionItem attempts the configured publish transition for one item and
// advances it to a terminal run status. Errors are captured on the item;
// nothing propagates to siblings.
func (c *Coordinator) transitionItem(ctx context.Context, logger *slog.Logger, item *items.Item) {
	if c.alreadyTransitioned(item.ID) {
		item.MarkIgnored()
		return
	}

	required := workflow.StateName(c.cfg.Workflow.RequiredState)
	if !workflow.StateName(item.State).Equals(required) {
		item.MarkFailed(cms.Wrap(cms.ErrTransition, "publish", "transition",
			fmt.Sprintf("item %s in state %s, requires %s", item.ID, item.State, required), nil))
		logger.Warn("item not in required state",
			logging.String(logging.FieldState, item.State),
			logging.String("required_state", string(required)))
		return
	}
	if strings.TrimSpace(item.CheckedOutBy) != "" {
		item.MarkFailed(cms.Wrap(cms.ErrConflict, "publish", "transition",
			fmt.Sprintf("item %s checked out to %s", item.ID, item.CheckedOutBy), nil))
		logger.Warn("item checked out, skipping transition", logging.String("checked_out_by", item.CheckedOutBy))
		return
	}

	trigger := c.cfg.Workflow.PublishTrigger
	if err := c.repo.Transition(ctx, item.ID, trigger, "", c.actor); err != nil {
		item.MarkFailed(err)
		logger.Error("transition failed", logging.String(logging.FieldTrigger, trigger), logging.Error(err))
		return
	}
	c.transitioned[item.ID] = struct{}{}
	c.refresh(ctx, item)

	if err := c.transitionNavigationNode(ctx, item.ID); err != nil {
		item.MarkFailed(err)
		logger.Error("navigation node transition failed", logging.Error(err))
		return
	}

	item.MarkProcessed()
	logger.Info("item transitioned", logging.String(logging.FieldTrigger, trigger))
}

// transitionNavigationNode keeps landing-page navigation in sync with the
// item it points at. An absent node is a normal empty result.
func (c *Coordinator) transitionNavigationNode(ctx context.Context, id string) error {
	nodeID, err := c.repo.NavigationNode(ctx, id)
	if err != nil {
		return err
	}
	if nodeID == "" {
		return nil
	}
	if c.alreadyTransitioned(nodeID) {
		return nil
	}
	sum, err := c.repo.Summary(ctx, nodeID)
	if err != nil {
		return err
	}
	required := workflow.StateName(c.cfg.Workflow.RequiredState)
	if !workflow.StateName(sum.State).Equals(required) || sum.CheckedOut() {
		return nil
	}
	if err := c.repo.Transition(ctx, nodeID, c.cfg.Workflow.PublishTrigger, "", c.actor); err != nil {
		return err
	}
	c.transitioned[nodeID] = struct{}{}
	return nil
}

// lockLocalAssets revision-locks every local asset of a page that is not
// already locked. Individual lock failures are captured per asset and do
// not abort the remaining assets.
func (c *Coordinator) lockLocalAssets(ctx context.Context, pageID string) {
	logger := c.logger.With(logging.String(logging.FieldItemID, pageID))
	assetIDs, err := c.repo.LocalAssets(ctx, pageID)
	if err != nil {
		logger.Error("failed to resolve local assets", logging.Error(err))
		return
	}
	for _, assetID := range assetIDs {
		asset, err := c.resolve(ctx, assetID)
		if err != nil {
			failed := &items.Item{ID: assetID, AssetType: items.AssetLocal, Status: items.StatusStarted}
			failed.MarkFailed(err)
			c.report.Add(failed)
			logger.Error("failed to resolve local asset", logging.String("asset_id", assetID), logging.Error(err))
			continue
		}
		c.report.Add(asset)
		if asset.RevisionLocked {
			asset.MarkIgnored()
			continue
		}
		if err := c.repo.LockRevision(ctx, assetID); err != nil {
			asset.MarkFailed(err)
			logger.Error("failed to lock local asset revision", logging.String("asset_id", assetID), logging.Error(err))
			continue
		}
		asset.RevisionLocked = true
		asset.MarkProcessed()
	}
}

// transitionSharedAssets cascades the publish transition to the shared
// assets reachable from the page and its template. Templates already
// scanned this run are skipped so pages sharing a template do not rediscover
// the same assets. Assets whose root folder restricts sites that exclude
// the current site are skipped outright.
func (c *Coordinator) transitionSharedAssets(ctx context.Context, pageID, site string) {
	logger := c.logger.With(logging.String(logging.FieldItemID, pageID))

	assetIDs, err := c.repo.SharedAssets(ctx, pageID)
	if err != nil {
		logger.Error("failed to resolve shared assets", logging.Error(err))
		return
	}

	if templateID, err := c.repo.TemplateOf(ctx, pageID); err != nil {
		logger.Error("failed to resolve page template", logging.Error(err))
	} else if templateID != "" {
		if _, seen := c.seenTemplates[templateID]; !seen {
			c.seenTemplates[templateID] = struct{}{}
			templateAssets, err := c.repo.SharedAssets(ctx, templateID)
			if err != nil {
				logger.Error("failed to resolve template shared assets",
					logging.String("template_id", templateID), logging.Error(err))
			} else {
				assetIDs = append(assetIDs, templateAssets...)
			}
		}
	}

	seen := make(map[string]struct{}, len(assetIDs))
	for _, assetID := range assetIDs {
		if _, dup := seen[assetID]; dup {
			continue
		}
		seen[assetID] = struct{}{}

		allowed, err := SiteAllowed(ctx, c.repo, assetID, site)
		if err != nil {
			failed := &items.Item{ID: assetID, AssetType: items.AssetShared, Status: items.StatusStarted}
			failed.MarkFailed(err)
			c.report.Add(failed)
			logger.Error("failed to resolve allowed sites", logging.String("asset_id", assetID), logging.Error(err))
			continue
		}
		if !allowed {
			// Published from another site's page; this site must not move it.
			logger.Debug("shared asset outside allowed sites", logging.String("asset_id", assetID))
			continue
		}

		asset, err := c.resolve(ctx, assetID)
		if err != nil {
			failed := &items.Item{ID: assetID, AssetType: items.AssetShared, Status: items.StatusStarted}
			failed.MarkFailed(err)
			c.report.Add(failed)
			logger.Error("failed to resolve shared asset", logging.String("asset_id", assetID), logging.Error(err))
			continue
		}
		c.report.Add(asset)
		c.transitionItem(ctx, logger.With(logging.String("asset_id", assetID)), asset)
	}
}

// SiteAllowed reports whether the item's root folder permits the given
// site. An unrestricted folder (nil policy result) allows every site.
func SiteAllowed(ctx context.Context, policy cms.FolderPolicy, id, site string) (bool, error) {
	sites, err := policy.AllowedSites(ctx, id)
	if err != nil {
		return false, err
	}
	if sites == nil || site == "" {
		return true, nil
	}
	for _, s := range sites {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(site)) {
			return true, nil
		}
	}
	return false, nil
}
