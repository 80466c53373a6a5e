package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/store/storetest"
)

func newRecord(t *testing.T, s *store.ProgressStore, fingerprint string) *model.FileRecord {
	t.Helper()

	key := "staging/" + fingerprint
	rec := &model.FileRecord{
		FileName:    fingerprint + ".csv",
		Fingerprint: fingerprint,
		Status:      model.StatusQueued,
		StagedKey:   &key,
	}

	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	return rec
}

func TestProgressStore_CreateDuplicate(t *testing.T) {
	s := store.NewProgressStore(storetest.Open(t))
	newRecord(t, s, "abc")

	err := s.Create(context.Background(), &model.FileRecord{
		FileName: "again.csv", Fingerprint: "abc", Status: model.StatusQueued,
	})
	if !errors.Is(err, store.ErrDuplicateFingerprint) {
		t.Fatalf("expected ErrDuplicateFingerprint, got %v", err)
	}
}

func TestProgressStore_GetNotFound(t *testing.T) {
	s := store.NewProgressStore(storetest.Open(t))

	if _, err := s.Get(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.GetByFingerprint(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestProgressStore_AttemptLifecycle 完整的一次尝试：开始、总数、检查点、结束.
func TestProgressStore_AttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "life")

	run, err := s.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if run.Attempt != 1 || run.Status != model.StatusProcessing {
		t.Fatalf("unexpected run state: attempt=%d status=%s", run.Attempt, run.Status)
	}

	if err := s.SetTotal(ctx, rec.ID, run.Attempt, 4); err != nil {
		t.Fatalf("set total: %v", err)
	}

	if err := s.Checkpoint(ctx, rec.ID, run.Attempt, store.Counters{Processed: 2, Successful: 1, Failed: 1}); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	mid, _ := s.Get(ctx, rec.ID)
	if mid.TotalRows != 4 || mid.ProcessedRows != 2 || mid.FailedRows != 1 {
		t.Fatalf("unexpected checkpoint: %+v", mid)
	}

	rowErrs, _ := model.EncodeRowErrors([]string{"line 3: missing UNIQUE_KEY"})

	err = s.Finish(ctx, rec.ID, run.Attempt, store.Outcome{
		Counters:  store.Counters{Processed: 4, Successful: 3, Failed: 1},
		Status:    model.StatusCompletedWithErrors,
		RowErrors: rowErrs,
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	done, _ := s.Get(ctx, rec.ID)
	if done.Status != model.StatusCompletedWithErrors {
		t.Errorf("expected completed_with_errors, got %s", done.Status)
	}

	if done.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	if got := done.RowErrorList(); len(got) != 1 || got[0] != "line 3: missing UNIQUE_KEY" {
		t.Errorf("unexpected row errors: %v", got)
	}

	if _, err := s.BeginAttempt(ctx, rec.ID, 3); !errors.Is(err, store.ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

// TestProgressStore_StaleAttemptFenced 旧尝试的写入在新尝试开始后被拒绝.
func TestProgressStore_StaleAttemptFenced(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "fence")

	first, err := s.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin first: %v", err)
	}

	second, err := s.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}

	if second.Attempt != first.Attempt+1 {
		t.Fatalf("expected attempt %d, got %d", first.Attempt+1, second.Attempt)
	}

	err = s.Checkpoint(ctx, rec.ID, first.Attempt, store.Counters{Processed: 99})
	if !errors.Is(err, store.ErrStaleAttempt) {
		t.Fatalf("expected ErrStaleAttempt, got %v", err)
	}

	err = s.Finish(ctx, rec.ID, first.Attempt, store.Outcome{Status: model.StatusCompleted})
	if !errors.Is(err, store.ErrStaleAttempt) {
		t.Fatalf("expected ErrStaleAttempt on finish, got %v", err)
	}

	got, _ := s.Get(ctx, rec.ID)
	if got.ProcessedRows != 0 || got.Status != model.StatusProcessing {
		t.Errorf("stale write leaked: %+v", got)
	}
}

func TestProgressStore_FinishRejectsNonFinal(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "nonfinal")

	run, _ := s.BeginAttempt(ctx, rec.ID, 3)
	if err := s.Finish(ctx, rec.ID, run.Attempt, store.Outcome{Status: model.StatusQueued}); err == nil {
		t.Fatal("expected error for non-final status")
	}
}

// TestProgressStore_AttemptsExhausted 失败后可以重试，直到次数用完.
func TestProgressStore_AttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "exhaust")

	for i := 1; i <= 2; i++ {
		run, err := s.BeginAttempt(ctx, rec.ID, 2)
		if err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}

		if err := s.Finish(ctx, rec.ID, run.Attempt, store.Outcome{Status: model.StatusFailed, Message: "boom"}); err != nil {
			t.Fatalf("finish %d: %v", i, err)
		}
	}

	if _, err := s.BeginAttempt(ctx, rec.ID, 2); !errors.Is(err, store.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}

	got, _ := s.Get(ctx, rec.ID)
	if got.ErrorMessage == nil || *got.ErrorMessage != "boom" {
		t.Errorf("expected error message boom, got %v", got.ErrorMessage)
	}
}

func TestProgressStore_AbandonAndRearm(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "rearm")

	if err := s.Rearm(ctx, rec.ID, "staging/new"); !errors.Is(err, store.ErrStaleAttempt) {
		t.Fatalf("rearm of queued record should fail, got %v", err)
	}

	if err := s.Abandon(ctx, rec.ID, "dispatch failed"); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	failed, _ := s.Get(ctx, rec.ID)
	if failed.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}

	if err := s.Rearm(ctx, rec.ID, "staging/new"); err != nil {
		t.Fatalf("rearm: %v", err)
	}

	queued, _ := s.Get(ctx, rec.ID)
	if queued.Status != model.StatusQueued || queued.Attempt != 0 || queued.ErrorMessage != nil {
		t.Errorf("unexpected rearmed record: %+v", queued)
	}

	if queued.StagedKey == nil || *queued.StagedKey != "staging/new" {
		t.Errorf("expected new staged key, got %v", queued.StagedKey)
	}
}

// TestProgressStore_RejectedNotRetried 内容被拒绝的记录不能再开始尝试，可以释放暂存副本，重新排队后恢复.
func TestProgressStore_RejectedNotRetried(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "rejected")

	run, err := s.BeginAttempt(ctx, rec.ID, 3)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := s.Finish(ctx, rec.ID, run.Attempt, store.Outcome{
		Status: model.StatusCompleted, Rejected: true,
	}); err == nil {
		t.Fatal("rejecting a completed outcome should fail")
	}

	if err := s.Finish(ctx, rec.ID, run.Attempt, store.Outcome{
		Status: model.StatusFailed, Message: "invalid header", Rejected: true,
	}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := s.BeginAttempt(ctx, rec.ID, 3)
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	if got.Attempt != 1 || got.Status != model.StatusFailed {
		t.Errorf("rejected record changed: attempt=%d status=%s", got.Attempt, got.Status)
	}

	recs, err := s.ListReleasable(ctx, 3, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("list releasable: %v", err)
	}

	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Errorf("rejected record should be releasable, got %+v", recs)
	}

	if err := s.Rearm(ctx, rec.ID, "staging/again"); err != nil {
		t.Fatalf("rearm: %v", err)
	}

	if _, err := s.BeginAttempt(ctx, rec.ID, 3); err != nil {
		t.Errorf("rearmed record should start again, got %v", err)
	}
}

func TestProgressStore_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))

	a := newRecord(t, s, "list-a")
	newRecord(t, s, "list-b")
	c := newRecord(t, s, "list-c")

	if err := s.Abandon(ctx, a.ID, "x"); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	all, total, err := s.List(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if total != 3 || len(all) != 3 {
		t.Fatalf("expected 3 records, got total=%d len=%d", total, len(all))
	}

	if all[0].ID != c.ID {
		t.Errorf("expected newest first, got id %d", all[0].ID)
	}

	failed, total, err := s.List(ctx, store.ListOptions{Status: model.StatusFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if total != 1 || len(failed) != 1 || failed[0].ID != a.ID {
		t.Errorf("unexpected failed list: total=%d %+v", total, failed)
	}

	page, total, _ := s.List(ctx, store.ListOptions{Limit: 1, Offset: 1})
	if total != 3 || len(page) != 1 {
		t.Errorf("unexpected page: total=%d len=%d", total, len(page))
	}
}

// TestProgressStore_Releasable 只有不会再执行的记录会被列出.
func TestProgressStore_Releasable(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))

	done := newRecord(t, s, "rel-done")
	retryable := newRecord(t, s, "rel-retry")
	newRecord(t, s, "rel-queued")

	run, _ := s.BeginAttempt(ctx, done.ID, 3)
	_ = s.Finish(ctx, done.ID, run.Attempt, store.Outcome{Status: model.StatusCompleted})

	run, _ = s.BeginAttempt(ctx, retryable.ID, 3)
	_ = s.Finish(ctx, retryable.ID, run.Attempt, store.Outcome{Status: model.StatusFailed, Message: "transient"})

	recs, err := s.ListReleasable(ctx, 3, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("list releasable: %v", err)
	}

	if len(recs) != 1 || recs[0].ID != done.ID {
		t.Fatalf("expected only completed record, got %+v", recs)
	}

	// 失败时间早于 staleBefore 的记录也可以释放
	recs, _ = s.ListReleasable(ctx, 3, time.Now().Add(time.Hour), 10)
	if len(recs) != 2 {
		t.Fatalf("expected 2 releasable records, got %d", len(recs))
	}

	if err := s.ReleaseStaged(ctx, done.ID, *done.StagedKey); err != nil {
		t.Fatalf("release: %v", err)
	}

	got, _ := s.Get(ctx, done.ID)
	if got.StagedKey != nil {
		t.Errorf("expected staged key cleared, got %v", *got.StagedKey)
	}
}

func TestProgressStore_ReleaseStagedKeyMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "mismatch")

	if err := s.ReleaseStaged(ctx, rec.ID, "staging/other"); err != nil {
		t.Fatalf("release: %v", err)
	}

	got, _ := s.Get(ctx, rec.ID)
	if got.StagedKey == nil || *got.StagedKey != *rec.StagedKey {
		t.Errorf("staged key should be untouched, got %v", got.StagedKey)
	}
}

// TestProgressStore_Reap 卡住的尝试被标记失败，之后的写入被栅栏拒绝.
func TestProgressStore_Reap(t *testing.T) {
	ctx := context.Background()
	s := store.NewProgressStore(storetest.Open(t))
	rec := newRecord(t, s, "reap")

	run, _ := s.BeginAttempt(ctx, rec.ID, 3)

	stale, err := s.ListStale(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}

	if len(stale) != 0 {
		t.Fatalf("fresh attempt should not be stale, got %d", len(stale))
	}

	cutoff := time.Now().Add(time.Hour)

	stale, _ = s.ListStale(ctx, cutoff, 10)
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale record, got %d", len(stale))
	}

	reaped, err := s.Reap(ctx, &stale[0], cutoff, "timed out")
	if err != nil || !reaped {
		t.Fatalf("reap: reaped=%v err=%v", reaped, err)
	}

	if err := s.Checkpoint(ctx, rec.ID, run.Attempt, store.Counters{Processed: 1}); !errors.Is(err, store.ErrStaleAttempt) {
		t.Errorf("expected ErrStaleAttempt after reap, got %v", err)
	}

	again, _ := s.Reap(ctx, &stale[0], cutoff, "timed out")
	if again {
		t.Error("second reap should be a no-op")
	}
}
