package ingest_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/store/storetest"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// fakeDispatcher 记录调度的任务，可注入错误.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []ingest.Job
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job ingest.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return d.err
	}

	d.jobs = append(d.jobs, job)

	return nil
}

func (d *fakeDispatcher) Jobs() []ingest.Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]ingest.Job(nil), d.jobs...)
}

// flakyStager Open 前 failures 次返回错误.
type flakyStager struct {
	staging.Stager

	mu       sync.Mutex
	failures int
}

func (s *flakyStager) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()

		return nil, errors.New("staging backend unavailable")
	}
	s.mu.Unlock()

	return s.Stager.Open(ctx, key)
}

// failingDetails 第 after 次之后的写入都失败.
type failingDetails struct {
	inner ingest.DetailWriter
	after int
	calls int
}

func (f *failingDetails) Upsert(ctx context.Context, rec *model.DetailRecord) error {
	f.calls++
	if f.calls > f.after {
		return errors.New("database is gone")
	}

	return f.inner.Upsert(ctx, rec)
}

type env struct {
	progress   *store.ProgressStore
	details    *store.DetailStore
	stager     *staging.Local
	dispatcher *fakeDispatcher
	cfg        configs.IngestConfig
	gateway    *ingest.Gateway
	worker     *ingest.Worker
}

func testConfig(t *testing.T) configs.IngestConfig {
	t.Helper()

	return configs.IngestConfig{
		Delimiter:         ",",
		BatchSize:         2,
		MaxRowErrors:      10,
		MaxAttempts:       3,
		RunTimeout:        configs.DefaultIngestRunTimeout,
		MaxFileSizeMB:     1,
		AllowedExtensions: []string{"csv", "txt"},
		SpoolDir:          t.TempDir(),
		Topic:             configs.DefaultIngestTopic,
		Columns: configs.ColumnsConfig{
			Key:         "KEY",
			Title:       "TITLE",
			Description: "DESCRIPTION",
			Size:        "SIZE",
			Price:       "PRICE",
		},
	}
}

func newEnv(t *testing.T, mutate ...func(*configs.IngestConfig)) *env {
	t.Helper()

	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}

	db := storetest.Open(t)

	stager, err := staging.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("stager: %v", err)
	}

	e := &env{
		progress:   store.NewProgressStore(db),
		details:    store.NewDetailStore(db),
		stager:     stager,
		dispatcher: &fakeDispatcher{},
		cfg:        cfg,
	}

	e.gateway = ingest.NewGateway(e.progress, stager, e.dispatcher, cfg, "staging", nlog.Nop())
	e.worker = ingest.NewWorker(e.progress, e.details, stager, cfg, nlog.Nop())

	return e
}

// submit 提交内容并返回结果.
func (e *env) submit(t *testing.T, name, content string) uint {
	t.Helper()

	res, err := e.gateway.Submit(context.Background(), strings.NewReader(content), name)
	if err != nil {
		t.Fatalf("submit %s: %v", name, err)
	}

	return res.RecordID
}

// stage 绕过 gateway 直接暂存并登记，用于构造 gateway 不会接受的内容.
func (e *env) stage(t *testing.T, name, content string) ingest.Job {
	t.Helper()

	ctx := context.Background()
	key := staging.NewKey("staging", name, time.Now())

	if err := e.stager.Put(ctx, key, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec := &model.FileRecord{FileName: name, Fingerprint: key, Status: model.StatusQueued, StagedKey: &key}
	if err := e.progress.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	return ingest.Job{RecordID: rec.ID, StagedKey: key, FileName: name}
}

// ingestNow 提交后立即在当前 goroutine 执行 worker.
func (e *env) ingestNow(t *testing.T, name, content string) *model.FileRecord {
	t.Helper()

	id := e.submit(t, name, content)

	jobs := e.dispatcher.Jobs()
	job := jobs[len(jobs)-1]

	if job.RecordID != id {
		t.Fatalf("dispatched record %d, want %d", job.RecordID, id)
	}

	if err := e.worker.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	return e.get(t, id)
}

func (e *env) get(t *testing.T, id uint) *model.FileRecord {
	t.Helper()

	rec, err := e.progress.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}

	return rec
}

func assertCounters(t *testing.T, rec *model.FileRecord, total, processed, ok, failed int64) {
	t.Helper()

	if rec.TotalRows != total || rec.ProcessedRows != processed || rec.SuccessfulRows != ok || rec.FailedRows != failed {
		t.Fatalf("counters total=%d processed=%d ok=%d failed=%d, want %d/%d/%d/%d",
			rec.TotalRows, rec.ProcessedRows, rec.SuccessfulRows, rec.FailedRows, total, processed, ok, failed)
	}
}
