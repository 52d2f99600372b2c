package approval

import (
	"context"
	"strings"
	"sync"

	"copydesk/internal/cms"
	"copydesk/internal/jobs"
	"copydesk/internal/logging"
)

// BulkJobKind identifies bulk-approval jobs in the runner.
const BulkJobKind = "bulk-approve"

// BulkStatus is the pollable state of a bulk approval job. The partial form
// carries counts only; the full form also lists approved ids and per-item
// errors.
type BulkStatus struct {
	JobID    string
	Status   jobs.Status
	Total    int
	Done     int
	Approved []string
	Errors   map[string]string
}

type bulkProgress struct {
	mu       sync.Mutex
	total    int
	approved []string
	errors   map[string]string
}

func (p *bulkProgress) recordApproved(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved = append(p.approved, id)
}

func (p *bulkProgress) recordError(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors[id] = err.Error()
}

func (p *bulkProgress) snapshot() (int, []string, map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	approved := make([]string, len(p.approved))
	copy(approved, p.approved)
	errs := make(map[string]string, len(p.errors))
	for k, v := range p.errors {
		errs[k] = v
	}
	return p.total, approved, errs
}

// BulkApprove submits a cascade approval of the given items as a background
// job and returns the job id immediately. Each item runs the same approve
// gate as the interactive path; per-item outcomes accumulate on the job and
// are pollable during processing.
func (s *Service) BulkApprove(ctx context.Context, ids []string, comment, site string, actor cms.Identity) (string, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "", cms.Wrap(cms.ErrValidation, "approval", "bulk approve", "no item ids supplied", nil)
	}

	progress := &bulkProgress{total: len(cleaned), errors: make(map[string]string)}
	jobID := s.runner.Submit(ctx, BulkJobKind, func(jobCtx context.Context) (any, error) {
		logger := s.logger.With(logging.Int("items", len(cleaned)))
		for _, id := range cleaned {
			result, err := s.Approve(jobCtx, id, comment, site, actor)
			if err != nil {
				progress.recordError(id, err)
				continue
			}
			if result.Blocked() {
				progress.recordError(id, cms.Wrap(cms.ErrConflict, "approval", "bulk approve",
					"blocked by dependent assets", nil))
				continue
			}
			progress.recordApproved(id)
		}
		_, approved, errs := progress.snapshot()
		logger.Info("bulk approval finished",
			logging.Int("approved", len(approved)), logging.Int("failed", len(errs)))
		if len(approved) == 0 && len(errs) > 0 {
			return progress, cms.Wrap(cms.ErrTransition, "approval", "bulk approve", "no items could be approved", nil)
		}
		return progress, nil
	})

	s.mu.Lock()
	s.bulk[jobID] = progress
	s.mu.Unlock()
	return jobID, nil
}

// Wait blocks until every submitted bulk job has finished.
func (s *Service) Wait() {
	s.runner.Wait()
}

// BulkApproveStatus reports the state of a bulk approval job. With full set,
// the approved ids and per-item errors are included; otherwise only counts.
func (s *Service) BulkApproveStatus(jobID string, full bool) BulkStatus {
	status := BulkStatus{JobID: jobID, Status: s.runner.Status(jobID)}
	if status.Status == jobs.StatusNotFound {
		return status
	}

	s.mu.Lock()
	progress := s.bulk[jobID]
	s.mu.Unlock()
	if progress == nil {
		return status
	}

	total, approved, errs := progress.snapshot()
	status.Total = total
	status.Done = len(approved) + len(errs)
	if full {
		status.Approved = approved
		status.Errors = errs
	}
	return status
}
