package jobs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/jobs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/store/storetest"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

type fixture struct {
	progress *store.ProgressStore
	stager   *staging.Local
	m        *jobs.Maintenance
}

func newFixture(t *testing.T, runTimeout time.Duration) *fixture {
	t.Helper()

	stager, err := staging.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	progress := store.NewProgressStore(storetest.Open(t))
	cfg := configs.IngestConfig{MaxAttempts: 3, RunTimeout: runTimeout, SweepInterval: time.Hour}

	return &fixture{
		progress: progress,
		stager:   stager,
		m:        jobs.NewMaintenance(progress, stager, cfg, nlog.Nop()),
	}
}

// staged 登记一条带暂存副本的记录.
func (f *fixture) staged(t *testing.T, name string) *model.FileRecord {
	t.Helper()

	key := staging.NewKey("staging", name, time.Now())
	if err := f.stager.Put(context.Background(), key, strings.NewReader("UNIQUE_KEY\n1\n"), -1); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec := &model.FileRecord{FileName: name, Fingerprint: name, Status: model.StatusQueued, StagedKey: &key}
	if err := f.progress.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	return rec
}

func (f *fixture) finish(t *testing.T, rec *model.FileRecord, status model.FileStatus) {
	t.Helper()

	ctx := context.Background()

	run, err := f.progress.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := f.progress.Finish(ctx, rec.ID, run.Attempt, store.Outcome{Status: status}); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func (f *fixture) stagedExists(t *testing.T, key string) bool {
	t.Helper()

	rc, err := f.stager.Open(context.Background(), key)
	if errors.Is(err, staging.ErrNotFound) {
		return false
	}

	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_ = rc.Close()

	return true
}

// TestSweepStaging 只释放不会再被执行的记录的暂存副本.
func TestSweepStaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	done := f.staged(t, "done.csv")
	f.finish(t, done, model.StatusCompletedWithErrors)

	retryable := f.staged(t, "retry.csv")
	f.finish(t, retryable, model.StatusFailed)

	queued := f.staged(t, "queued.csv")

	n, err := f.m.SweepStaging(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if n != 1 {
		t.Fatalf("released %d, want 1", n)
	}

	if f.stagedExists(t, *done.StagedKey) {
		t.Error("completed record's staged copy should be deleted")
	}

	got, _ := f.progress.Get(ctx, done.ID)
	if got.StagedKey != nil {
		t.Errorf("staged key should be cleared, got %q", *got.StagedKey)
	}

	for _, rec := range []*model.FileRecord{retryable, queued} {
		if !f.stagedExists(t, *rec.StagedKey) {
			t.Errorf("record %s should keep its staged copy", rec.FileName)
		}
	}

	// 第二轮没有可释放的记录
	if n, _ := f.m.SweepStaging(ctx); n != 0 {
		t.Errorf("second sweep released %d", n)
	}
}

// TestSweepStaging_MissingCopy 副本已不存在时仍清空 staged_key.
func TestSweepStaging_MissingCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	rec := f.staged(t, "gone.csv")
	f.finish(t, rec, model.StatusCompleted)

	if err := f.stager.Delete(ctx, *rec.StagedKey); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n, err := f.m.SweepStaging(ctx); err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
}

// TestReapStale 超时的 processing 尝试被标记为 failed，其暂存副本随后被清理.
func TestReapStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20*time.Millisecond)

	rec := f.staged(t, "stuck.csv")

	run, err := f.progress.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	n, err := f.m.ReapStale(ctx)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}

	if n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}

	got, _ := f.progress.Get(ctx, rec.ID)
	if got.Status != model.StatusFailed || got.ErrorMessage == nil {
		t.Fatalf("unexpected record after reap: status=%s", got.Status)
	}

	// 被回收的尝试继续写入时被栅栏拒绝
	err = f.progress.Checkpoint(ctx, rec.ID, run.Attempt, store.Counters{Processed: 1})
	if !errors.Is(err, store.ErrStaleAttempt) {
		t.Errorf("expected ErrStaleAttempt, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if n, err := f.m.SweepStaging(ctx); err != nil || n != 1 {
		t.Fatalf("sweep after reap: n=%d err=%v", n, err)
	}

	if f.stagedExists(t, *rec.StagedKey) {
		t.Error("staged copy of long-failed record should be deleted")
	}
}

func TestReapStale_FreshAttemptKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	rec := f.staged(t, "busy.csv")
	if _, err := f.progress.BeginAttempt(ctx, rec.ID, 3); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if n, err := f.m.ReapStale(ctx); err != nil || n != 0 {
		t.Fatalf("reap: n=%d err=%v", n, err)
	}
}

func TestRegisterCronJobs(t *testing.T) {
	f := newFixture(t, time.Hour)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	t.Cleanup(func() { _ = sched.Stop() })

	if err := jobs.RegisterCronJobs(context.Background(), sched, f.m); err != nil {
		t.Fatalf("register: %v", err)
	}

	infos := sched.GetJobInfos()
	if len(infos) != 2 || infos[0].Name != jobs.JobStaleReap || infos[1].Name != jobs.JobStagingSweep {
		t.Fatalf("unexpected jobs %+v", infos)
	}

	if err := jobs.RegisterCronJobs(context.Background(), sched, nil); err == nil {
		t.Error("expected error for nil maintenance")
	}
}
