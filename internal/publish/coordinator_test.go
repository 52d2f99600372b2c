package publish_test

import (
	"context"
	"errors"
	"testing"

	"copydesk/internal/cms"
	"copydesk/internal/cms/inmem"
	"copydesk/internal/config"
	"copydesk/internal/items"
	"copydesk/internal/publish"
	"copydesk/internal/workflow"
)

var editor = cms.Identity{User: "rxserver", Roles: []string{"Editor"}}

func newRun(t *testing.T) (*publish.Coordinator, *inmem.Backend) {
	t.Helper()
	cfg := config.Default()
	registry := workflow.DefaultRegistry()
	backend := inmem.New(registry)
	classifier := workflow.NewClassifier(backend, registry)
	return publish.NewRun(&cfg, backend, classifier, nil, editor), backend
}

func pendingPage(id string) inmem.Item {
	return inmem.Item{ID: id, State: "Pending", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage, Revision: 3}
}

func pendingAsset(id string) inmem.Item {
	return inmem.Item{ID: id, State: "Pending", Workflow: workflow.DefaultWorkflowName, ContentType: "image", Revision: 1}
}

func successEvent(id string) publish.Event {
	return publish.Event{ItemID: id, Status: publish.StatusSuccess}
}

func mustState(t *testing.T, backend *inmem.Backend, id, want string) {
	t.Helper()
	sum, err := backend.Summary(context.Background(), id)
	if err != nil {
		t.Fatalf("Summary(%s): %v", id, err)
	}
	if sum.State != want {
		t.Fatalf("item %s in state %s, want %s", id, sum.State, want)
	}
}

func TestPublishedPageCascade(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(inmem.Item{ID: "local-1", State: "Pending", Workflow: workflow.LocalContentWorkflow, ContentType: "image", Revision: 2})
	backend.Add(inmem.Item{ID: "local-2", State: "Pending", Workflow: workflow.LocalContentWorkflow, ContentType: "image", Revision: 2, RevisionLocked: true})
	backend.Add(pendingAsset("shared-1"))
	backend.Add(pendingAsset("tpl-asset"))
	backend.Add(inmem.Item{ID: "nav-1", State: "Pending", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypeNavigation})
	backend.LinkLocal("page-1", "local-1", "local-2")
	backend.LinkShared("page-1", "shared-1")
	backend.SetTemplate("page-1", "tpl-1")
	backend.LinkShared("tpl-1", "tpl-asset")
	backend.SetNavigationNode("page-1", "nav-1")

	handled, err := run.ProcessPublishedItem(ctx, publish.Event{ItemID: "page-1", Revision: 3, Status: "success"})
	if err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	if !handled {
		t.Fatal("successful event must be handled")
	}

	mustState(t, backend, "page-1", "Live")
	mustState(t, backend, "nav-1", "Live")
	mustState(t, backend, "shared-1", "Live")
	mustState(t, backend, "tpl-asset", "Live")

	sum, _ := backend.Summary(ctx, "local-1")
	if !sum.RevisionLocked {
		t.Fatal("local asset revision should be locked")
	}
	sum, _ = backend.Summary(ctx, "page-1")
	if sum.PublicRevision != sum.Revision {
		t.Fatalf("going live must publish the revision, got %d/%d", sum.PublicRevision, sum.Revision)
	}

	processed, ignored, failed := run.Report().Counts()
	// page, local-1, shared-1, tpl-asset processed; local-2 already locked.
	if processed != 4 || ignored != 1 || failed != 0 {
		t.Fatalf("report counts = %d/%d/%d", processed, ignored, failed)
	}

	var page *items.Item
	for _, entry := range run.Report().Items {
		if entry.ID == "page-1" {
			page = entry
		}
	}
	if page == nil {
		t.Fatal("page missing from report")
	}
	if page.State != "Live" || !page.Publishable {
		t.Fatalf("report entry should reflect the live item: state=%s publishable=%t", page.State, page.Publishable)
	}
	if page.PublicRevision != page.Revision {
		t.Fatalf("report entry revisions = %d/%d", page.PublicRevision, page.Revision)
	}
}

func TestRedeliveredEventTransitionsOnce(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()
	backend.Add(pendingPage("page-1"))

	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	handled, err := run.ProcessPublishedItem(ctx, successEvent("page-1"))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !handled {
		t.Fatal("redelivery is still handled")
	}
	if got := backend.TransitionCount("page-1"); got != 1 {
		t.Fatalf("page transitioned %d times, want 1", got)
	}
	if len(run.Report().Items) != 2 || run.Report().Items[1].Status != items.StatusIgnored {
		t.Fatalf("redelivery should be reported ignored: %+v", run.Report().Items)
	}
}

func TestStaleRevisionIgnored(t *testing.T) {
	run, backend := newRun(t)
	backend.Add(pendingPage("page-1"))

	handled, err := run.ProcessPublishedItem(context.Background(),
		publish.Event{ItemID: "page-1", Revision: 2, Status: "success"})
	if err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	if !handled {
		t.Fatal("stale event is handled, just ignored")
	}
	if backend.TransitionCount("page-1") != 0 {
		t.Fatal("stale revision must not transition")
	}
	if run.Report().Items[0].Status != items.StatusIgnored {
		t.Fatalf("expected ignored, got %s", run.Report().Items[0].Status)
	}
}

func TestUnsuccessfulStatusNotProcessed(t *testing.T) {
	run, backend := newRun(t)
	backend.Add(pendingPage("page-1"))

	handled, err := run.ProcessPublishedItem(context.Background(),
		publish.Event{ItemID: "page-1", Status: "failure"})
	if err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	if handled {
		t.Fatal("unsuccessful publish must not be handled")
	}
	if len(run.Report().Items) != 0 {
		t.Fatal("unsuccessful publish must not be reported")
	}
}

func TestUnknownItemSurfacesError(t *testing.T) {
	run, _ := newRun(t)
	_, err := run.ProcessPublishedItem(context.Background(), successEvent("ghost"))
	if !errors.Is(err, cms.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSiteRestrictedSharedAssetSkipped(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(pendingAsset("shared-open"))
	backend.Add(pendingAsset("shared-scoped"))
	backend.LinkShared("page-1", "shared-open", "shared-scoped")
	backend.RestrictSites("shared-scoped", "siteB")

	if _, err := run.ProcessPublishedItem(ctx, publish.Event{ItemID: "page-1", Status: "success", Site: "siteA"}); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}

	mustState(t, backend, "shared-open", "Live")
	mustState(t, backend, "shared-scoped", "Pending")
	for _, item := range run.Report().Items {
		if item.ID == "shared-scoped" {
			t.Fatal("excluded asset must not appear in the report")
		}
	}
}

func TestSharedAssetFailureDoesNotSpread(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(pendingAsset("shared-bad"))
	backend.Add(pendingAsset("shared-good"))
	backend.LinkShared("page-1", "shared-bad", "shared-good")
	backend.FailTransition["shared-bad"] = errors.New("executor exploded")

	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-1")); err != nil {
		t.Fatalf("dependent failure must not surface: %v", err)
	}

	mustState(t, backend, "page-1", "Live")
	mustState(t, backend, "shared-good", "Live")

	failed := run.Report().Failed()
	if len(failed) != 1 || failed[0].ID != "shared-bad" {
		t.Fatalf("expected shared-bad in failed set, got %+v", failed)
	}
	if failed[0].Err == nil {
		t.Fatal("failed item must carry its cause")
	}
}

func TestCheckedOutItemFailsWithConflict(t *testing.T) {
	run, backend := newRun(t)
	page := pendingPage("page-1")
	page.CheckedOutBy = "bob"
	backend.Add(page)

	if _, err := run.ProcessPublishedItem(context.Background(), successEvent("page-1")); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	item := run.Report().Items[0]
	if item.Status != items.StatusFailed || !errors.Is(item.Err, cms.ErrConflict) {
		t.Fatalf("expected conflict failure, got %s %v", item.Status, item.Err)
	}
	if backend.TransitionCount("page-1") != 0 {
		t.Fatal("checked-out item must not transition")
	}
}

func TestWrongStateFailsWithTransitionError(t *testing.T) {
	run, backend := newRun(t)
	page := pendingPage("page-1")
	page.State = "Draft"
	backend.Add(page)

	if _, err := run.ProcessPublishedItem(context.Background(), successEvent("page-1")); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	item := run.Report().Items[0]
	if item.Status != items.StatusFailed || !errors.Is(item.Err, cms.ErrTransition) {
		t.Fatalf("expected transition failure, got %s %v", item.Status, item.Err)
	}
}

func TestTemplateAssetsScannedOncePerRun(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(pendingPage("page-2"))
	backend.Add(pendingAsset("tpl-asset"))
	backend.SetTemplate("page-1", "tpl-1")
	backend.SetTemplate("page-2", "tpl-1")
	backend.LinkShared("tpl-1", "tpl-asset")

	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-1")); err != nil {
		t.Fatalf("page-1: %v", err)
	}
	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-2")); err != nil {
		t.Fatalf("page-2: %v", err)
	}

	if got := backend.TransitionCount("tpl-asset"); got != 1 {
		t.Fatalf("template asset transitioned %d times, want 1", got)
	}
	mustState(t, backend, "page-2", "Live")
}

func TestLocalAssetLockFailureTolerated(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(inmem.Item{ID: "local-1", State: "Pending", Workflow: workflow.LocalContentWorkflow, ContentType: "image"})
	backend.LinkLocal("page-1", "local-1")
	backend.FailLock["local-1"] = errors.New("lock failed")

	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-1")); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}

	mustState(t, backend, "page-1", "Live")
	failed := run.Report().Failed()
	if len(failed) != 1 || failed[0].ID != "local-1" {
		t.Fatalf("expected local-1 failed, got %+v", failed)
	}
}

func TestNavigationNodeSkippedWhenNotReady(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(inmem.Item{ID: "nav-1", State: "Draft", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypeNavigation})
	backend.SetNavigationNode("page-1", "nav-1")

	if _, err := run.ProcessPublishedItem(ctx, successEvent("page-1")); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}

	mustState(t, backend, "page-1", "Live")
	mustState(t, backend, "nav-1", "Draft")
	if run.Report().Items[0].Status != items.StatusProcessed {
		t.Fatal("a node outside the required state must not fail the page")
	}
}

func TestPendingToLiveClearedOnDefaultServer(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.RecordPendingToLive("siteA", "page-1")

	if _, err := run.ProcessPublishedItem(ctx,
		publish.Event{ItemID: "page-1", Status: "success", Site: "siteA", DefaultServer: true}); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	if backend.HasPendingToLive("siteA", "page-1") {
		t.Fatal("pending-to-live event should be cleared")
	}
}

func TestPendingToLiveKeptOnSecondaryServer(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.RecordPendingToLive("siteA", "page-1")

	if _, err := run.ProcessPublishedItem(ctx,
		publish.Event{ItemID: "page-1", Status: "success", Site: "siteA"}); err != nil {
		t.Fatalf("ProcessPublishedItem: %v", err)
	}
	if !backend.HasPendingToLive("siteA", "page-1") {
		t.Fatal("non-default servers must not clear change events")
	}
}

func TestWorkflowActionLocksLocalContent(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(inmem.Item{ID: "local-1", State: "Pending", Workflow: workflow.LocalContentWorkflow, ContentType: "image"})
	backend.LinkLocal("page-1", "local-1")

	if err := run.ProcessWorkflowAction(ctx, publish.Action{ItemID: "page-1", ToState: workflow.StatePending}); err != nil {
		t.Fatalf("ProcessWorkflowAction: %v", err)
	}
	sum, _ := backend.Summary(ctx, "local-1")
	if !sum.RevisionLocked {
		t.Fatal("entering pending should lock local assets")
	}
}

func TestWorkflowActionIgnoresOtherStates(t *testing.T) {
	run, backend := newRun(t)
	ctx := context.Background()

	backend.Add(pendingPage("page-1"))
	backend.Add(inmem.Item{ID: "local-1", State: "Pending", Workflow: workflow.LocalContentWorkflow, ContentType: "image"})
	backend.LinkLocal("page-1", "local-1")

	if err := run.ProcessWorkflowAction(ctx, publish.Action{ItemID: "page-1", ToState: workflow.StateReview}); err != nil {
		t.Fatalf("ProcessWorkflowAction: %v", err)
	}
	sum, _ := backend.Summary(ctx, "local-1")
	if sum.RevisionLocked {
		t.Fatal("only the pending state locks local assets")
	}
}

func TestSiteAllowed(t *testing.T) {
	registry := workflow.DefaultRegistry()
	backend := inmem.New(registry)
	backend.Add(pendingAsset("asset-1"))
	ctx := context.Background()

	allowed, err := publish.SiteAllowed(ctx, backend, "asset-1", "siteA")
	if err != nil || !allowed {
		t.Fatalf("unrestricted asset should allow any site: %t %v", allowed, err)
	}

	backend.RestrictSites("asset-1", "SiteA", "siteB")
	allowed, _ = publish.SiteAllowed(ctx, backend, "asset-1", "sitea")
	if !allowed {
		t.Fatal("site match should be case-insensitive")
	}
	allowed, _ = publish.SiteAllowed(ctx, backend, "asset-1", "siteC")
	if allowed {
		t.Fatal("siteC is outside the restriction")
	}
	allowed, _ = publish.SiteAllowed(ctx, backend, "asset-1", "")
	if !allowed {
		t.Fatal("a blank site means no scoping")
	}
}
