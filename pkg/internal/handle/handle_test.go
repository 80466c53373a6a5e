package handle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/handle"
	"github.com/yeisme/ingestvault/pkg/internal/router"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	"github.com/yeisme/ingestvault/pkg/middleware"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

const validCSV = "UNIQUE_KEY,PRODUCT_TITLE,PRODUCT_DESCRIPTION,PIECE_PRICE\nK1,Tee,Cotton,1.50\nK2,Cap,Wool,abc\n"

type upload struct {
	name    string
	content string
}

// newEngine 组装使用本地后端的引擎，提交在请求内同步执行.
func newEngine(t *testing.T, sched *scheduler.Scheduler) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg, err := configs.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}

	dir := t.TempDir()
	cfg.DB.Type = configs.SQLite
	cfg.DB.Database = filepath.Join(dir, "ingest.db")
	cfg.DB.LogLevel = "silent"
	cfg.Staging.Type = configs.StagingLocal
	cfg.Staging.Dir = filepath.Join(dir, "staging")
	cfg.KV.Type = "memory"
	cfg.Ingest.SpoolDir = dir

	ctx := context.Background()

	mgr, err := storage.Open(ctx, cfg, storage.PartDB, storage.PartStaging, storage.PartKV)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	t.Cleanup(func() { _ = mgr.Close() })

	if err := store.Migrate(ctx, mgr.DB.GetDB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := app.NewServices(mgr, cfg, true)
	if err != nil {
		t.Fatalf("services: %v", err)
	}

	e := gin.New()
	e.Use(middleware.StorageMiddleware(mgr), middleware.SchedulerMiddleware(sched))
	router.Register(e.Group("/api/v1"), handle.NewFiles(svc.Gateway, svc.Status, cfg.Ingest))

	return e
}

func do(t *testing.T, e *gin.Engine, req *http.Request, out any) int {
	t.Helper()

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL, w.Body.String(), err)
		}
	}

	return w.Code
}

func uploadRequest(t *testing.T, field string, files ...upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}

		_, _ = fw.Write([]byte(f.content))
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func TestUpload_OutcomesInOrder(t *testing.T) {
	e := newEngine(t, nil)

	var resp types.SubmitResponse

	code := do(t, e, uploadRequest(t, "files",
		upload{"products.csv", validCSV},
		upload{"notes.pdf", "whatever"},
		upload{"bad.csv", "SKU,NAME\n1,x\n"},
	), &resp)
	if code != http.StatusOK {
		t.Fatalf("upload = %d", code)
	}

	want := []types.SubmitOutcome{types.OutcomeQueued, types.OutcomeRejected, types.OutcomeRejected}
	if len(resp.Results) != len(want) {
		t.Fatalf("results = %+v", resp.Results)
	}

	for i, res := range resp.Results {
		if res.Outcome != want[i] {
			t.Errorf("result %d (%s) = %s, want %s: %s", i, res.FileName, res.Outcome, want[i], res.Message)
		}
	}

	if resp.Results[1].FileName != "notes.pdf" || resp.Results[1].Message == "" {
		t.Errorf("rejected result should name the file and reason: %+v", resp.Results[1])
	}

	// 相同内容再次提交被跳过
	var again types.SubmitResponse
	if code := do(t, e, uploadRequest(t, "files[]", upload{"copy.csv", validCSV}), &again); code != http.StatusOK {
		t.Fatalf("resubmit = %d", code)
	}

	if again.Results[0].Outcome != types.OutcomeSkipped || again.Results[0].RecordID != resp.Results[0].RecordID {
		t.Errorf("resubmit = %+v", again.Results[0])
	}
}

func TestUpload_NoFiles(t *testing.T) {
	e := newEngine(t, nil)

	if code := do(t, e, uploadRequest(t, "other", upload{"a.csv", validCSV}), nil); code != http.StatusBadRequest {
		t.Errorf("upload without files field = %d", code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	if code := do(t, e, req, nil); code != http.StatusBadRequest {
		t.Errorf("non-multipart upload = %d", code)
	}
}

func TestStatusAndDetails(t *testing.T) {
	e := newEngine(t, nil)

	var resp types.SubmitResponse
	do(t, e, uploadRequest(t, "files", upload{"products.csv", validCSV}), &resp)

	id := resp.Results[0].RecordID

	var status types.FileStatus
	if code := do(t, e, get("/api/v1/files/"+itoa(id)+"/status"), &status); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	if status.Status != "completed_with_errors" || status.SuccessfulRows != 1 || status.FailedRows != 1 {
		t.Errorf("unexpected status %+v", status)
	}

	if status.ProgressPercentage != 100 || len(status.RowErrors) != 1 {
		t.Errorf("progress=%v row_errors=%v", status.ProgressPercentage, status.RowErrors)
	}

	var details struct {
		UniqueKey string            `json:"unique_key"`
		Details   []json.RawMessage `json:"details"`
	}

	if code := do(t, e, get("/api/v1/files/details?unique_key=K1"), &details); code != http.StatusOK {
		t.Fatalf("details = %d", code)
	}

	if details.UniqueKey != "K1" || len(details.Details) != 1 {
		t.Errorf("unexpected details %+v", details)
	}

	for path, want := range map[string]int{
		"/api/v1/files/abc/status":             http.StatusBadRequest,
		"/api/v1/files/0/status":               http.StatusBadRequest,
		"/api/v1/files/999/status":             http.StatusNotFound,
		"/api/v1/files/details":                http.StatusBadRequest,
		"/api/v1/files/details?unique_key=K2":  http.StatusNotFound,
		"/api/v1/files/details?unique_key=%20": http.StatusBadRequest,
	} {
		if code := do(t, e, get(path), nil); code != want {
			t.Errorf("GET %s = %d, want %d", path, code, want)
		}
	}
}

func TestList(t *testing.T) {
	e := newEngine(t, nil)

	do(t, e, uploadRequest(t, "files",
		upload{"a.csv", validCSV},
		upload{"b.csv", "UNIQUE_KEY,PRODUCT_TITLE,PRODUCT_DESCRIPTION\nK9,Hat,Felt\n"},
	), nil)

	var all types.ListFilesResponse
	if code := do(t, e, get("/api/v1/files"), &all); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}

	if all.Total != 2 || len(all.Files) != 2 || all.Files[0].FileName != "b.csv" {
		t.Errorf("unexpected list %+v", all)
	}

	var completed types.ListFilesResponse
	do(t, e, get("/api/v1/files?status=completed&limit=10"), &completed)

	if completed.Total != 1 || completed.Files[0].FileName != "b.csv" {
		t.Errorf("unexpected filtered list %+v", completed)
	}

	for _, path := range []string{
		"/api/v1/files?status=bogus",
		"/api/v1/files?limit=5000",
		"/api/v1/files?limit=abc",
	} {
		if code := do(t, e, get(path), nil); code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", path, code)
		}
	}
}

func TestHealth(t *testing.T) {
	e := newEngine(t, nil)

	var body struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}

	if code := do(t, e, get("/api/v1/health"), &body); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}

	if body.Status != "ok" || len(body.Components) != 3 {
		t.Errorf("unexpected health %+v", body)
	}

	if code := do(t, e, get("/api/v1/health/db"), nil); code != http.StatusOK {
		t.Errorf("db health = %d", code)
	}

	// 未初始化 MQ
	if code := do(t, e, get("/api/v1/health/mq"), nil); code != http.StatusServiceUnavailable {
		t.Errorf("mq health = %d", code)
	}
}

func TestSchedulerRoutes(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}

	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	if err := sched.AddCron(context.Background(), "nightly", "0 3 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}

	e := newEngine(t, sched)

	var jobs struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}

	if code := do(t, e, get("/api/v1/scheduler/jobs"), &jobs); code != http.StatusOK || len(jobs.Jobs) != 1 {
		t.Fatalf("jobs = %d %+v", code, jobs)
	}

	var one scheduler.JobInfo
	if code := do(t, e, get("/api/v1/scheduler/jobs/nightly"), &one); code != http.StatusOK || one.Schedule != "0 3 * * *" {
		t.Errorf("job = %d %+v", code, one)
	}

	if code := do(t, e, get("/api/v1/scheduler/jobs/missing"), nil); code != http.StatusNotFound {
		t.Errorf("missing job = %d", code)
	}

	run := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/jobs/nightly/run", nil)
	if code := do(t, e, run, nil); code != http.StatusAccepted {
		t.Errorf("run = %d", code)
	}

	missing := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/jobs/missing/run", nil)
	if code := do(t, e, missing, nil); code != http.StatusNotFound {
		t.Errorf("run missing = %d", code)
	}

	// 未运行 scheduler 的进程
	if code := do(t, newEngine(t, nil), get("/api/v1/scheduler/jobs/nightly"), nil); code != http.StatusServiceUnavailable {
		t.Errorf("no scheduler = %d", code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
