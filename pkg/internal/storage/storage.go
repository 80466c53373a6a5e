// Package storage 聚合导入流水线用到的外部资源：数据库、暂存存储、消息队列与 KV.
//
// Example:
//
// 初始化
//
//	ctx := context.Background()
//	mgr, err := storage.Open(ctx, cfg)
//	if err != nil {
//	    // 处理错误
//	}
//	defer mgr.Close()
//
// 只需要数据库时
//
//	mgr, err := storage.Open(ctx, cfg, storage.PartDB)
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	dbc "github.com/yeisme/ingestvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/ingestvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/ingestvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/ingestvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// Part 可单独初始化的资源.
type Part string

const (
	PartDB      Part = "db"
	PartStaging Part = "staging"
	PartMQ      Part = "mq"
	PartKV      Part = "kv"
)

// AllParts 服务进程需要的全部资源.
var AllParts = []Part{PartDB, PartStaging, PartMQ, PartKV}

// Manager 聚合所有存储资源，未初始化的资源为 nil.
type Manager struct {
	DB     *dbc.Client
	S3     *s3c.Client // 仅 staging.type=s3 时存在
	Stager staging.Stager
	MQ     *mqc.Client
	KV     *kvc.Client
}

// Open 按需初始化资源，parts 为空时初始化全部；任一资源失败时关闭已打开的资源.
func Open(ctx context.Context, cfg *configs.AppConfig, parts ...Part) (*Manager, error) {
	if len(parts) == 0 {
		parts = AllParts
	}

	m := &Manager{}

	for _, p := range parts {
		if err := m.open(ctx, cfg, p); err != nil {
			return nil, errors.Join(fmt.Errorf("init %s: %w", p, err), m.Close())
		}
	}

	nlog.Logger().Info().Interface("parts", parts).Msg("storage manager initialized")

	return m, nil
}

func (m *Manager) open(ctx context.Context, cfg *configs.AppConfig, p Part) error {
	var err error

	switch p {
	case PartDB:
		m.DB, err = dbc.New(ctx, &cfg.DB)
	case PartStaging:
		if cfg.Staging.Type == configs.StagingS3 && m.S3 == nil {
			if m.S3, err = s3c.New(ctx, &cfg.S3); err != nil {
				return err
			}
		}

		m.Stager, err = staging.New(&cfg.Staging, m.S3)
	case PartMQ:
		m.MQ, err = mqc.New(ctx, &cfg.MQ, &cfg.Metrics)
	case PartKV:
		m.KV, err = kvc.New(ctx, &cfg.KV)
	default:
		err = fmt.Errorf("unknown storage part %q", p)
	}

	return err
}

// HealthCheck 逐项检查已初始化的资源，返回以资源名为键的结果，nil 表示正常.
func (m *Manager) HealthCheck(ctx context.Context) map[Part]error {
	out := make(map[Part]error)

	if m.DB != nil {
		out[PartDB] = m.DB.HealthCheck(ctx)
	}

	if m.Stager != nil {
		out[PartStaging] = m.Stager.HealthCheck(ctx)
	}

	if m.MQ != nil {
		out[PartMQ] = m.MQ.HealthCheck(ctx)
	}

	if m.KV != nil {
		out[PartKV] = m.KV.HealthCheck(ctx)
	}

	return out
}

// Parts 返回已初始化的资源名，按名称排序.
func (m *Manager) Parts() []Part {
	var out []Part

	for p, ok := range map[Part]bool{
		PartDB: m.DB != nil, PartStaging: m.Stager != nil, PartMQ: m.MQ != nil, PartKV: m.KV != nil,
	} {
		if ok {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Close 关闭全部资源，MQ 先关闭以停止消费.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
