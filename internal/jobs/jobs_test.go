package jobs_test

import (
	"context"
	"errors"
	"testing"

	"copydesk/internal/jobs"
)

func TestSubmitRunsJobToCompletion(t *testing.T) {
	runner := jobs.NewRunner(nil, 10)

	id := runner.Submit(context.Background(), "test", func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if id == "" {
		t.Fatal("expected a job id")
	}
	runner.Wait()

	if got := runner.Status(id); got != jobs.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got)
	}
	result, err, done := runner.Result(id)
	if !done {
		t.Fatal("finished job should expose its result")
	}
	if err != nil || result != 42 {
		t.Fatalf("unexpected result: %v %v", result, err)
	}
}

func TestSubmitRecordsFailure(t *testing.T) {
	runner := jobs.NewRunner(nil, 10)
	cause := errors.New("boom")

	id := runner.Submit(context.Background(), "test", func(ctx context.Context) (any, error) {
		return nil, cause
	})
	runner.Wait()

	if got := runner.Status(id); got != jobs.StatusFailed {
		t.Fatalf("expected FAILED, got %s", got)
	}
	_, err, done := runner.Result(id)
	if !done || !errors.Is(err, cause) {
		t.Fatalf("expected recorded failure, got %v %t", err, done)
	}
}

func TestJobSurvivesCallerCancellation(t *testing.T) {
	runner := jobs.NewRunner(nil, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := runner.Submit(ctx, "test", func(jobCtx context.Context) (any, error) {
		if err := jobCtx.Err(); err != nil {
			return nil, err
		}
		return "ok", nil
	})
	runner.Wait()

	if got := runner.Status(id); got != jobs.StatusCompleted {
		t.Fatalf("job must outlive the submitting context, got %s", got)
	}
}

func TestUnknownJobStatus(t *testing.T) {
	runner := jobs.NewRunner(nil, 10)
	if got := runner.Status("missing"); got != jobs.StatusNotFound {
		t.Fatalf("expected JOBNOTFOUND, got %s", got)
	}
	if _, _, done := runner.Result("missing"); done {
		t.Fatal("unknown job has no result")
	}
}

func TestRetentionPrunesOldestFinished(t *testing.T) {
	runner := jobs.NewRunner(nil, 2)

	var ids []string
	for i := 0; i < 4; i++ {
		id := runner.Submit(context.Background(), "test", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		ids = append(ids, id)
		runner.Wait()
	}

	if got := runner.Status(ids[0]); got != jobs.StatusNotFound {
		t.Fatalf("oldest job should be pruned, got %s", got)
	}
	if got := runner.Status(ids[3]); got != jobs.StatusCompleted {
		t.Fatalf("newest job should be retained, got %s", got)
	}
}
