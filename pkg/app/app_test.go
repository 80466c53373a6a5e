package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
)

func localConfig(t *testing.T) *configs.AppConfig {
	t.Helper()

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
	cfg.MQ.Type = configs.MQTypeGoChannel
	cfg.KV.Type = "memory"
	cfg.Ingest.SpoolDir = dir

	return cfg
}

func TestNew_HTTPRoutes(t *testing.T) {
	a, err := app.New(context.Background(), localConfig(t), app.Options{HTTP: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	t.Cleanup(func() { _ = a.Close() })

	if a.Engine() == nil || a.Services() == nil {
		t.Fatal("engine and services should be initialized")
	}

	cases := []struct {
		path string
		code int
	}{
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/health/db", http.StatusOK},
		{"/api/v1/files", http.StatusOK},
		{"/api/v1/files/42/status", http.StatusNotFound},
		// 未启用调度器
		{"/api/v1/scheduler/jobs", http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		a.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

		if w.Code != tc.code {
			t.Errorf("GET %s = %d, want %d (%s)", tc.path, w.Code, tc.code, w.Body.String())
		}

		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("GET %s: missing request id", tc.path)
		}
	}
}

func TestNew_WorkerOnly(t *testing.T) {
	a, err := app.New(context.Background(), localConfig(t), app.Options{Worker: true, Scheduler: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if a.Engine() != nil {
		t.Error("worker-only process should not build an http engine")
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
