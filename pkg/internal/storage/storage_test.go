package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

// localConfig 全部使用进程内或本地文件后端.
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

	return cfg
}

func TestOpen_AllLocalParts(t *testing.T) {
	ctx := context.Background()

	mgr, err := storage.Open(ctx, localConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = mgr.Close() })

	if fmt.Sprint(mgr.Parts()) != "[db kv mq staging]" {
		t.Errorf("unexpected parts %v", mgr.Parts())
	}

	if mgr.S3 != nil {
		t.Error("local staging should not open an s3 client")
	}

	health := mgr.HealthCheck(ctx)
	if len(health) != 4 {
		t.Fatalf("expected 4 health results, got %v", health)
	}

	for part, err := range health {
		if err != nil {
			t.Errorf("%s unhealthy: %v", part, err)
		}
	}
}

func TestOpen_SelectedParts(t *testing.T) {
	mgr, err := storage.Open(context.Background(), localConfig(t), storage.PartDB)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = mgr.Close() })

	if mgr.Stager != nil || mgr.MQ != nil || mgr.KV != nil {
		t.Error("only the database should be initialized")
	}

	if mgr.DB == nil {
		t.Fatal("db should be initialized")
	}
}

func TestOpen_FailureReported(t *testing.T) {
	cfg := localConfig(t)
	cfg.MQ.Type = "kafka"

	_, err := storage.Open(context.Background(), cfg, storage.PartDB, storage.PartMQ)
	if err == nil || !strings.Contains(err.Error(), "init mq") {
		t.Fatalf("expected mq init error, got %v", err)
	}
}
