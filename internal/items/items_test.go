package items_test

import (
	"errors"
	"testing"

	"copydesk/internal/cms"
	"copydesk/internal/items"
)

func TestStatusIsOneWay(t *testing.T) {
	item := items.FromSummary(cms.Summary{ID: "a-1", State: "Pending"})
	if item.Status != items.StatusStarted {
		t.Fatalf("new item should be started, got %s", item.Status)
	}
	if item.Terminal() {
		t.Fatal("started item is not terminal")
	}

	item.MarkProcessed()
	if item.Status != items.StatusProcessed || !item.Terminal() {
		t.Fatalf("expected processed, got %s", item.Status)
	}

	item.MarkFailed(errors.New("late failure"))
	if item.Status != items.StatusProcessed {
		t.Fatalf("terminal status must not change, got %s", item.Status)
	}
	if item.Err != nil {
		t.Fatal("failure after terminal status must not attach an error")
	}
}

func TestMarkFailedRecordsError(t *testing.T) {
	item := items.FromSummary(cms.Summary{ID: "a-1"})
	cause := errors.New("boom")
	item.MarkFailed(cause)
	if item.Status != items.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	if !errors.Is(item.Err, cause) {
		t.Fatalf("expected recorded cause, got %v", item.Err)
	}

	item.MarkIgnored()
	if item.Status != items.StatusFailed {
		t.Fatal("failed is terminal")
	}
}

func TestParseRunStatus(t *testing.T) {
	status, ok := items.ParseRunStatus("Processed")
	if !ok || status != items.StatusProcessed {
		t.Fatalf("ParseRunStatus(Processed) = %s, %t", status, ok)
	}
	if _, ok := items.ParseRunStatus("bogus"); ok {
		t.Fatal("bogus status must not parse")
	}
}

func TestReportCounts(t *testing.T) {
	var report items.Report

	a := report.Add(&items.Item{ID: "a", Status: items.StatusStarted})
	b := report.Add(&items.Item{ID: "b", Status: items.StatusStarted})
	c := report.Add(&items.Item{ID: "c", Status: items.StatusStarted})

	a.MarkProcessed()
	b.MarkIgnored()
	c.MarkFailed(errors.New("boom"))

	processed, ignored, failed := report.Counts()
	if processed != 1 || ignored != 1 || failed != 1 {
		t.Fatalf("counts = %d/%d/%d", processed, ignored, failed)
	}
	if got := report.Failed(); len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("Failed() = %v", got)
	}
	if got := report.Processed(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Processed() = %v", got)
	}
}
