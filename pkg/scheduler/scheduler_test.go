package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func waitRuns(t *testing.T, s *scheduler.Scheduler, name string, n int64) scheduler.JobInfo {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := s.GetJobInfoByName(name)
		if err != nil {
			t.Fatalf("job info: %v", err)
		}

		if info.Runs >= n {
			return info
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("job %s did not run %d times", name, n)

	return scheduler.JobInfo{}
}

func TestAddInterval_Runs(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int64

	err := s.AddInterval(context.Background(), "tick", 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("add interval: %v", err)
	}

	info := waitRuns(t, s, "tick", 2)
	if info.Status == scheduler.StatusError || info.LastSuccess.IsZero() {
		t.Errorf("unexpected job info %+v", info)
	}

	if info.Schedule != "@every 20ms" {
		t.Errorf("schedule = %q", info.Schedule)
	}

	if calls.Load() < 2 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestJobErrorAndPanicRecorded(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	if err := s.AddInterval(ctx, "fails", time.Hour, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.AddInterval(ctx, "panics", time.Hour, func(context.Context) error {
		panic("oops")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	for _, name := range []string{"fails", "panics"} {
		if err := s.RunNow(name); err != nil {
			t.Fatalf("run now %s: %v", name, err)
		}
	}

	failed := waitRuns(t, s, "fails", 1)
	if failed.Status != scheduler.StatusError || failed.Error != "boom" {
		t.Errorf("fails: %+v", failed)
	}

	panicked := waitRuns(t, s, "panics", 1)
	if panicked.Status != scheduler.StatusError || panicked.Error != "panic in job: oops" {
		t.Errorf("panics: %+v", panicked)
	}
}

func TestDuplicateAndUnknownJobs(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	if err := s.AddCron(ctx, "nightly", "0 3 * * *", noop); err != nil {
		t.Fatalf("add cron: %v", err)
	}

	if err := s.AddCron(ctx, "nightly", "0 4 * * *", noop); err == nil {
		t.Error("expected duplicate name error")
	}

	if err := s.AddCron(ctx, "broken", "not a cron", noop); err == nil {
		t.Error("expected invalid cron error")
	}

	if err := s.AddInterval(ctx, "zero", 0, noop); err == nil {
		t.Error("expected non-positive interval error")
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("expected unknown job error")
	}

	if err := s.AddInterval(ctx, "another", time.Hour, noop); err != nil {
		t.Fatalf("add: %v", err)
	}

	infos := s.GetJobInfos()
	if len(infos) != 2 || infos[0].Name != "another" || infos[1].Name != "nightly" {
		t.Fatalf("unexpected infos %+v", infos)
	}

	if err := s.RemoveJobByName("nightly"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := s.GetJobInfoByName("nightly"); err == nil {
		t.Error("removed job still visible")
	}
}
