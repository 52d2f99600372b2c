package workflow_test

import (
	"context"
	"errors"
	"testing"

	"copydesk/internal/cms"
	"copydesk/internal/cms/inmem"
	"copydesk/internal/items"
	"copydesk/internal/workflow"
)

func newClassifier(t *testing.T) (*workflow.Classifier, *inmem.Backend) {
	t.Helper()
	registry := workflow.DefaultRegistry()
	backend := inmem.New(registry)
	return workflow.NewClassifier(backend, registry), backend
}

func TestApprovedStatesIncludeQuickEdit(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "pending", State: "Pending", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})
	backend.Add(inmem.Item{ID: "live", State: "Live", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})
	backend.Add(inmem.Item{ID: "editing", State: "Quick Edit", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})
	backend.Add(inmem.Item{ID: "draft", State: "Draft", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})

	for _, id := range []string{"pending", "live", "editing"} {
		approved, err := classifier.IsApproved(ctx, id)
		if err != nil {
			t.Fatalf("IsApproved(%s): %v", id, err)
		}
		if !approved {
			t.Fatalf("expected %s to be approved", id)
		}
	}
	if approved, _ := classifier.IsApproved(ctx, "draft"); approved {
		t.Fatal("draft must not count as approved")
	}
}

func TestInApproveStateExcludesQuickEdit(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "editing", State: "Quick Edit", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})

	approved, err := classifier.IsApproved(ctx, "editing")
	if err != nil {
		t.Fatalf("IsApproved: %v", err)
	}
	inApprove, err := classifier.IsInApproveState(ctx, "editing")
	if err != nil {
		t.Fatalf("IsInApproveState: %v", err)
	}
	if !approved || inApprove {
		t.Fatalf("Quick Edit must be approved but not in-approve-state (approved=%t inApprove=%t)", approved, inApprove)
	}
}

func TestIsInStagingState(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "review", State: "Review", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})
	backend.Add(inmem.Item{ID: "live", State: "Live", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})
	backend.Add(inmem.Item{ID: "draft", State: "Draft", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})

	for id, want := range map[string]bool{"review": true, "live": true, "draft": false} {
		got, err := classifier.IsInStagingState(ctx, id)
		if err != nil {
			t.Fatalf("IsInStagingState(%s): %v", id, err)
		}
		if got != want {
			t.Fatalf("IsInStagingState(%s) = %t, want %t", id, got, want)
		}
	}
}

func TestBlankIDIsValidationError(t *testing.T) {
	classifier, _ := newClassifier(t)
	_, err := classifier.IsPending(context.Background(), "  ")
	if !errors.Is(err, cms.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIsCheckedOutToUserMatchesSystemOriginalUser(t *testing.T) {
	sum := cms.Summary{ID: "page-1", CheckedOutBy: "alice"}

	if !workflow.IsCheckedOutToUser(sum, cms.Identity{User: "ALICE"}) {
		t.Fatal("owner comparison should be case-insensitive")
	}
	if workflow.IsCheckedOutToUser(sum, cms.Identity{User: "bob"}) {
		t.Fatal("bob does not hold the item")
	}

	system := cms.SystemIdentity("rxserver", "alice")
	if system.User != "rxserver" {
		t.Fatalf("system user = %q, want rxserver", system.User)
	}
	if !workflow.IsCheckedOutToUser(sum, system) {
		t.Fatal("system identity should match on the original user")
	}
	if workflow.IsCheckedOutToSomeoneElse(sum, system) {
		t.Fatal("system identity acting for the holder is not someone else")
	}
	if got := cms.SystemIdentity("", "alice"); got.User != "system" {
		t.Fatalf("blank system user = %q, want system", got.User)
	}
}

func TestClassifyAssetType(t *testing.T) {
	classifier, _ := newClassifier(t)

	page := cms.Summary{ID: "p", ContentType: cms.ContentTypePage, Workflow: workflow.DefaultWorkflowName}
	local := cms.Summary{ID: "l", ContentType: "image", Workflow: workflow.LocalContentWorkflow}
	shared := cms.Summary{ID: "s", ContentType: "image", Workflow: workflow.DefaultWorkflowName}

	if got := classifier.ClassifyAssetType(page); got != items.AssetPage {
		t.Fatalf("page classified as %s", got)
	}
	if got := classifier.ClassifyAssetType(local); got != items.AssetLocal {
		t.Fatalf("local content classified as %s", got)
	}
	if got := classifier.ClassifyAssetType(shared); got != items.AssetShared {
		t.Fatalf("shared asset classified as %s", got)
	}

	if !classifier.IsLocalAsset(local) {
		t.Fatal("image in the local workflow is a local asset")
	}
	folder := cms.Summary{ID: "f", ContentType: cms.ContentTypeFolder, Workflow: workflow.LocalContentWorkflow}
	if classifier.IsLocalAsset(folder) {
		t.Fatal("folders are never assets")
	}
}

func TestAvailableTriggersUnknownWorkflowIsEmptyNotError(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "odd", State: "Pending", Workflow: "Retired Workflow", ContentType: cms.ContentTypePage})

	triggers, err := classifier.AvailableTriggers(ctx, "odd", cms.Identity{User: "alice", Roles: []string{"Admin"}})
	if err != nil {
		t.Fatalf("unknown workflow must not error: %v", err)
	}
	if len(triggers) != 0 {
		t.Fatalf("expected no triggers, got %v", triggers)
	}
}

func TestAssignment(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "page-1", State: "Review", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})

	cases := []struct {
		roles []string
		want  workflow.AssignmentType
	}{
		{[]string{"Admin"}, workflow.AssignmentAdmin},
		{[]string{"Editor"}, workflow.AssignmentAssignee},
		{[]string{"Visitor"}, workflow.AssignmentReader},
	}
	for _, tc := range cases {
		got, err := classifier.Assignment(ctx, "page-1", cms.Identity{User: "u", Roles: tc.roles})
		if err != nil {
			t.Fatalf("Assignment(%v): %v", tc.roles, err)
		}
		if got != tc.want {
			t.Fatalf("Assignment(%v) = %v, want %v", tc.roles, got, tc.want)
		}
	}
}

func TestCanFire(t *testing.T) {
	classifier, backend := newClassifier(t)
	ctx := context.Background()

	backend.Add(inmem.Item{ID: "page-1", State: "Review", Workflow: workflow.DefaultWorkflowName, ContentType: cms.ContentTypePage})

	can, err := classifier.CanFire(ctx, "page-1", workflow.TriggerApprove, cms.Identity{User: "e", Roles: []string{"Editor"}})
	if err != nil {
		t.Fatalf("CanFire: %v", err)
	}
	if !can {
		t.Fatal("editor should approve from Review")
	}

	can, err = classifier.CanFire(ctx, "page-1", workflow.TriggerApprove, cms.Identity{User: "c", Roles: []string{"Contributor"}})
	if err != nil {
		t.Fatalf("CanFire: %v", err)
	}
	if can {
		t.Fatal("contributor must not approve from Review")
	}
}

func TestLocalContentWorkflowNameIsConfigurable(t *testing.T) {
	registry := workflow.DefaultRegistryFor("TeamContent")
	backend := inmem.New(registry)
	classifier := workflow.NewClassifier(backend, registry)

	asset := cms.Summary{ID: "a", ContentType: "image", Workflow: "TeamContent"}
	if got := classifier.ClassifyAssetType(asset); got != items.AssetLocal {
		t.Fatalf("classified as %q, want %q", got, items.AssetLocal)
	}
	if !registry.IsLocalContent("teamcontent") {
		t.Fatal("configured name should match case-insensitively")
	}
	if registry.IsLocalContent(workflow.LocalContentWorkflow) {
		t.Fatal("renamed registry must not match the default name")
	}
	if _, ok := registry.Definition("TeamContent"); !ok {
		t.Fatal("renamed local workflow should be registered")
	}
}

func TestIsPublishable(t *testing.T) {
	classifier, _ := newClassifier(t)

	live := cms.Summary{ID: "live", State: "Live", Workflow: workflow.DefaultWorkflowName}
	review := cms.Summary{ID: "rev", State: "Review", Workflow: workflow.DefaultWorkflowName}
	draft := cms.Summary{ID: "draft", State: "Draft", Workflow: workflow.DefaultWorkflowName}

	if !classifier.IsPublishable(live, false) {
		t.Fatal("public state is publishable in either mode")
	}
	if classifier.IsPublishable(review, false) {
		t.Fatal("review content is not publishable without staging mode")
	}
	if !classifier.IsPublishable(review, true) {
		t.Fatal("staging mode serves review content")
	}
	if classifier.IsPublishable(draft, true) {
		t.Fatal("draft is never publishable")
	}
}
