// Package jobs 负责注册与实现导入流水线的维护任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

// Maintenance 暂存副本清理与卡死尝试回收.
type Maintenance struct {
	progress *store.ProgressStore
	stager   staging.Stager
	cfg      configs.IngestConfig
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewMaintenance 创建维护任务集合.
func NewMaintenance(
	progress *store.ProgressStore, stager staging.Stager, cfg configs.IngestConfig, logger *zerolog.Logger,
) *Maintenance {
	if logger == nil {
		logger = nlog.Logger()
	}

	return &Maintenance{progress: progress, stager: stager, cfg: cfg, logger: logger, now: time.Now}
}

// RegisterCronJobs 按 ingest.sweep_interval 注册维护任务，间隔为 0 时不注册.
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, m *Maintenance) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if m == nil {
		return fmt.Errorf("maintenance is nil")
	}

	every := m.cfg.SweepInterval
	if every <= 0 {
		m.logger.Info().Msg("ingest maintenance jobs disabled")
		return nil
	}

	if err := sched.AddInterval(ctx, JobStaleReap, every, func(ctx context.Context) error {
		_, err := m.ReapStale(ctx)
		return err
	}); err != nil {
		return err
	}

	return sched.AddInterval(ctx, JobStagingSweep, every, func(ctx context.Context) error {
		_, err := m.SweepStaging(ctx)
		return err
	})
}

// staleBefore 早于该时间仍无进度写入的尝试视为已失联.
func (m *Maintenance) staleBefore() time.Time {
	return m.now().Add(-(m.cfg.RunTimeout + m.cfg.StaleGrace))
}

// ReapStale 把超时仍停在 processing 的尝试标记为 failed，返回回收数量.
// 回收后消息若被重新投递，BeginAttempt 会开启新的尝试.
func (m *Maintenance) ReapStale(ctx context.Context) (int, error) {
	l := m.logger.With().Str("job", JobStaleReap).Logger()
	before := m.staleBefore()
	reaped := 0

	var afterID uint

	for {
		recs, err := m.progress.ListStale(ctx, before, sweepBatch)
		if err != nil {
			return reaped, err
		}

		progressed := false

		for i := range recs {
			rec := &recs[i]
			if rec.ID <= afterID {
				continue
			}

			afterID = rec.ID
			progressed = true

			ok, err := m.progress.Reap(ctx, rec, before, reapReason)
			if err != nil {
				return reaped, err
			}

			if !ok {
				continue
			}

			reaped++

			metrics.IngestRuns.WithLabelValues(string(model.StatusFailed)).Inc()
			l.Warn().Uint("record_id", rec.ID).Int("attempt", rec.Attempt).
				Time("last_progress", rec.UpdatedAt).Msg("reaped stale attempt")
		}

		if len(recs) < sweepBatch || !progressed {
			break
		}
	}

	if reaped > 0 {
		l.Info().Int("reaped", reaped).Msg("stale attempts reaped")
	}

	return reaped, nil
}

// SweepStaging 删除不会再被读取的暂存副本并清空记录上的 staged_key，返回释放数量.
// 单个副本删除失败只记录日志，下一轮继续尝试.
func (m *Maintenance) SweepStaging(ctx context.Context) (int, error) {
	l := m.logger.With().Str("job", JobStagingSweep).Logger()
	released := 0

	var failures []error

	for {
		recs, err := m.progress.ListReleasable(ctx, m.cfg.MaxAttempts, m.staleBefore(), sweepBatch)
		if err != nil {
			return released, err
		}

		batch := 0

		for i := range recs {
			rec := &recs[i]
			if rec.StagedKey == nil {
				continue
			}

			key := *rec.StagedKey

			if err := m.stager.Delete(ctx, key); err != nil {
				failures = append(failures, err)
				l.Error().Err(err).Uint("record_id", rec.ID).Str("staged_key", key).Msg("delete staged copy failed")

				continue
			}

			if err := m.progress.ReleaseStaged(ctx, rec.ID, key); err != nil {
				return released, err
			}

			batch++
		}

		released += batch

		// 整批都失败时停止，避免反复拿到同一批记录
		if len(recs) < sweepBatch || batch == 0 {
			break
		}
	}

	if released > 0 {
		l.Info().Int("released", released).Msg("staged copies released")
	}

	if len(failures) > 0 {
		return released, fmt.Errorf("sweep staging: %d copies not deleted: %w", len(failures), errors.Join(failures...))
	}

	return released, nil
}
