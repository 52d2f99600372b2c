package items

import (
	"strings"

	"copydesk/internal/cms"
)

// AssetType classifies an item for coordination purposes. This is a
// behavioral classification, not the underlying content type: Resource is
// the default when an item is not further classified.
type AssetType string

const (
	AssetPage     AssetType = "page"
	AssetResource AssetType = "resource"
	AssetLocal    AssetType = "local"
	AssetShared   AssetType = "shared"
)

// RunStatus is the lifecycle of an item within the current coordination run.
type RunStatus string

const (
	StatusStarted   RunStatus = "started"
	StatusProcessed RunStatus = "processed"
	StatusIgnored   RunStatus = "ignored"
	StatusFailed    RunStatus = "failed"
)

// ParseRunStatus converts a string into a known RunStatus.
func ParseRunStatus(value string) (RunStatus, bool) {
	switch RunStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StatusStarted:
		return StatusStarted, true
	case StatusProcessed:
		return StatusProcessed, true
	case StatusIgnored:
		return StatusIgnored, true
	case StatusFailed:
		return StatusFailed, true
	}
	return "", false
}

// Item is the transient record for one item examined during a run. It is
// constructed from a gateway summary, mutated in place as the coordinator
// progresses it, and discarded when the run ends.
type Item struct {
	ID             string
	State          string
	Workflow       string
	CheckedOutBy   string
	Revision       int
	PublicRevision int
	// Publishable is derived by the caller from the item's workflow state
	// and the staging mode in effect.
	Publishable bool
	RevisionLocked bool
	AssetType      AssetType
	Status         RunStatus
	Err            error
}

// FromSummary builds a started item from a gateway summary. Classification
// is left to the caller; the default is Resource.
func FromSummary(sum cms.Summary) *Item {
	return &Item{
		ID:             sum.ID,
		State:          sum.State,
		Workflow:       sum.Workflow,
		CheckedOutBy:   sum.CheckedOutBy,
		Revision:       sum.Revision,
		PublicRevision: sum.PublicRevision,
		RevisionLocked: sum.RevisionLocked,
		AssetType:      AssetResource,
		Status:         StatusStarted,
	}
}

// Terminal reports whether the item already reached a terminal run status.
func (i *Item) Terminal() bool {
	return i.Status != StatusStarted
}

// MarkProcessed advances the item to Processed. Terminal statuses are a
// one-way latch; a second call is a no-op.
func (i *Item) MarkProcessed() {
	if i.Terminal() {
		return
	}
	i.Status = StatusProcessed
}

// MarkIgnored advances the item to Ignored.
func (i *Item) MarkIgnored() {
	if i.Terminal() {
		return
	}
	i.Status = StatusIgnored
}

// MarkFailed advances the item to Failed and captures the cause.
func (i *Item) MarkFailed(err error) {
	if i.Terminal() {
		return
	}
	i.Status = StatusFailed
	i.Err = err
}

// Report is the ordered per-run collection of item outcomes returned to the
// caller of a coordination or cascade operation.
type Report struct {
	Items []*Item
}

// Add appends an item to the report and returns it for chaining.
func (r *Report) Add(item *Item) *Item {
	r.Items = append(r.Items, item)
	return item
}

// Failed returns the items that reached Failed, in discovery order.
func (r *Report) Failed() []*Item {
	var out []*Item
	for _, item := range r.Items {
		if item.Status == StatusFailed {
			out = append(out, item)
		}
	}
	return out
}

// Processed returns the items that reached Processed, in discovery order.
func (r *Report) Processed() []*Item {
	var out []*Item
	for _, item := range r.Items {
		if item.Status == StatusProcessed {
			out = append(out, item)
		}
	}
	return out
}

// Counts aggregates terminal statuses for logging and CLI display.
func (r *Report) Counts() (processed, ignored, failed int) {
	for _, item := range r.Items {
		switch item.Status {
		case StatusProcessed:
			processed++
		case StatusIgnored:
			ignored++
		case StatusFailed:
			failed++
		}
	}
	return processed, ignored, failed
}
