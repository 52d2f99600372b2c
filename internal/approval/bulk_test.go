package approval_test

import (
	"context"
	"errors"
	"testing"

	"copydesk/internal/cms"
	"copydesk/internal/jobs"
)

func TestBulkApproveMixedOutcomes(t *testing.T) {
	svc, backend := newService(t)
	ctx := context.Background()

	backend.Add(reviewPage("page-1"))
	backend.Add(reviewPage("page-2"))
	blocked := reviewPage("page-3")
	backend.Add(blocked)
	held := draftAsset("asset-held")
	held.CheckedOutBy = "bob"
	backend.Add(held)
	backend.LinkShared("page-3", "asset-held")

	jobID, err := svc.BulkApprove(ctx, []string{"page-1", "page-2", "page-3"}, "", "", editor)
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}
	svc.Wait()

	status := svc.BulkApproveStatus(jobID, true)
	if status.Status != jobs.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", status.Status)
	}
	if status.Total != 3 || status.Done != 3 {
		t.Fatalf("expected 3/3 done, got %d/%d", status.Done, status.Total)
	}
	if len(status.Approved) != 2 {
		t.Fatalf("expected 2 approved, got %v", status.Approved)
	}
	if _, ok := status.Errors["page-3"]; !ok {
		t.Fatalf("expected page-3 in errors, got %v", status.Errors)
	}

	for _, id := range []string{"page-1", "page-2"} {
		sum, _ := backend.Summary(ctx, id)
		if sum.State != "Pending" {
			t.Fatalf("%s should be Pending, got %s", id, sum.State)
		}
	}
	sum, _ := backend.Summary(ctx, "page-3")
	if sum.State != "Review" {
		t.Fatalf("blocked page must stay in Review, got %s", sum.State)
	}
}

func TestBulkApproveAllFailedJobFails(t *testing.T) {
	svc, backend := newService(t)
	backend.Add(reviewPage("page-1"))

	contributor := cms.Identity{User: "carol", Roles: []string{"Contributor"}}
	jobID, err := svc.BulkApprove(context.Background(), []string{"page-1"}, "", "", contributor)
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}
	svc.Wait()

	status := svc.BulkApproveStatus(jobID, true)
	if status.Status != jobs.StatusFailed {
		t.Fatalf("a run with zero approvals should fail, got %s", status.Status)
	}
	if len(status.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", status.Errors)
	}
}

func TestBulkApproveRejectsEmptyInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.BulkApprove(context.Background(), []string{" ", ""}, "", "", editor)
	if !errors.Is(err, cms.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBulkApproveStatusUnknownJob(t *testing.T) {
	svc, _ := newService(t)
	status := svc.BulkApproveStatus("no-such-job", true)
	if status.Status != jobs.StatusNotFound {
		t.Fatalf("expected JOBNOTFOUND, got %s", status.Status)
	}
}

func TestBulkApproveStatusPartialOmitsDetail(t *testing.T) {
	svc, backend := newService(t)
	backend.Add(reviewPage("page-1"))

	jobID, err := svc.BulkApprove(context.Background(), []string{"page-1"}, "", "", editor)
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}
	svc.Wait()

	partial := svc.BulkApproveStatus(jobID, false)
	if partial.Total != 1 || partial.Done != 1 {
		t.Fatalf("counts missing from partial status: %+v", partial)
	}
	if partial.Approved != nil || partial.Errors != nil {
		t.Fatalf("partial status must omit detail: %+v", partial)
	}

	full := svc.BulkApproveStatus(jobID, true)
	if len(full.Approved) != 1 {
		t.Fatalf("full status should list approvals: %+v", full)
	}
}
