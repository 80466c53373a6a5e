// Package ingest 实现文件导入流水线：提交入口、异步 worker 与状态查询.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// Upload 待提交的单个文件.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Gateway 同步提交入口：计算指纹、去重、检查表头、暂存、登记并调度.
type Gateway struct {
	progress   *store.ProgressStore
	stager     staging.Stager
	dispatcher Dispatcher
	cfg        configs.IngestConfig
	prefix     string
	logger     *zerolog.Logger
	now        func() time.Time
}

// NewGateway 创建 Gateway，prefix 为暂存键前缀.
func NewGateway(
	progress *store.ProgressStore, stager staging.Stager, dispatcher Dispatcher,
	cfg configs.IngestConfig, prefix string, logger *zerolog.Logger,
) *Gateway {
	if logger == nil {
		logger = nlog.Logger()
	}

	return &Gateway{
		progress:   progress,
		stager:     stager,
		dispatcher: dispatcher,
		cfg:        cfg,
		prefix:     prefix,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitAll 逐个提交，每个文件一条结果；单个文件失败不影响其他文件.
func (g *Gateway) SubmitAll(ctx context.Context, uploads []Upload) []types.SubmitResult {
	results := make([]types.SubmitResult, 0, len(uploads))

	for _, u := range uploads {
		res, err := g.submitUpload(ctx, u)
		if err != nil {
			if !IsIntakeValidation(err) {
				g.logger.Error().Err(err).Str("file_name", u.Name).Msg("submit failed")
			}

			res = &types.SubmitResult{FileName: u.Name, Outcome: types.OutcomeRejected, Message: err.Error()}
			metrics.IngestSubmissions.WithLabelValues(string(types.OutcomeRejected)).Inc()
		}

		results = append(results, *res)
	}

	return results
}

func (g *Gateway) submitUpload(ctx context.Context, u Upload) (*types.SubmitResult, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", u.Name, err)
	}
	defer rc.Close()

	return g.Submit(ctx, rc, u.Name)
}

// Submit 提交一个文件.内容错误返回 *IntakeValidationError，不会留下记录.
func (g *Gateway) Submit(ctx context.Context, r io.Reader, name string) (*types.SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.gateway.submit")
	defer span.End()

	span.SetAttributes(attribute.String("file.name", name))

	res, err := g.submit(ctx, r, name)
	if err != nil {
		tracing.RecordError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String("ingest.outcome", string(res.Outcome)), attribute.Int64("ingest.record_id", int64(res.RecordID)))
	metrics.IngestSubmissions.WithLabelValues(string(res.Outcome)).Inc()

	return res, nil
}

func (g *Gateway) submit(ctx context.Context, r io.Reader, name string) (*types.SubmitResult, error) {
	if err := CheckExtension(name, g.cfg.AllowedExtensions); err != nil {
		return nil, err
	}

	spool, fingerprint, size, err := g.spool(r, name)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	logger := g.logger.With().Str("file_name", name).Str("fingerprint", fingerprint).Logger()

	existing, err := g.progress.GetByFingerprint(ctx, fingerprint)

	switch {
	case err == nil:
		if existing.Status == model.StatusFailed && g.cfg.RetryFailedOnResubmit {
			return g.resubmit(ctx, existing, spool, size, name, &logger)
		}

		logger.Info().Uint("record_id", existing.ID).Str("status", string(existing.Status)).Msg("duplicate content skipped")

		return skipped(name, existing.ID), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fault("lookup fingerprint", err)
	}

	if err := g.checkHeader(spool, name); err != nil {
		return nil, err
	}

	key, err := g.stage(ctx, spool, size, name)
	if err != nil {
		return nil, err
	}

	rec := &model.FileRecord{
		FileName:    name,
		Fingerprint: fingerprint,
		Status:      model.StatusQueued,
		StagedKey:   &key,
	}

	if err := g.progress.Create(ctx, rec); err != nil {
		g.deleteStaged(ctx, key, &logger)

		if errors.Is(err, store.ErrDuplicateFingerprint) {
			// 并发提交了相同内容，以先登记的记录为准
			winner, lookupErr := g.progress.GetByFingerprint(ctx, fingerprint)
			if lookupErr != nil {
				return nil, fault("lookup fingerprint", lookupErr)
			}

			return skipped(name, winner.ID), nil
		}

		return nil, fault("create record", err)
	}

	if err := g.dispatch(ctx, rec.ID, key, name, &logger); err != nil {
		return nil, err
	}

	logger.Info().Uint("record_id", rec.ID).Int64("size", size).Msg("file queued")

	return &types.SubmitResult{FileName: name, RecordID: rec.ID, Outcome: types.OutcomeQueued}, nil
}

// resubmit 把失败记录以新的暂存副本重新排队.
func (g *Gateway) resubmit(
	ctx context.Context, rec *model.FileRecord, spool *os.File, size int64, name string, logger *zerolog.Logger,
) (*types.SubmitResult, error) {
	if err := g.checkHeader(spool, name); err != nil {
		return nil, err
	}

	key, err := g.stage(ctx, spool, size, name)
	if err != nil {
		return nil, err
	}

	if err := g.progress.Rearm(ctx, rec.ID, key); err != nil {
		g.deleteStaged(ctx, key, logger)

		if errors.Is(err, store.ErrStaleAttempt) {
			// 已被其他提交重新排队
			return skipped(name, rec.ID), nil
		}

		return nil, fault("rearm record", err)
	}

	if rec.StagedKey != nil && *rec.StagedKey != key {
		g.deleteStaged(ctx, *rec.StagedKey, logger)
	}

	if err := g.dispatch(ctx, rec.ID, key, name, logger); err != nil {
		return nil, err
	}

	logger.Info().Uint("record_id", rec.ID).Msg("failed file re-queued")

	return &types.SubmitResult{
		FileName: name, RecordID: rec.ID, Outcome: types.OutcomeQueued, Message: "previous attempt failed, re-queued",
	}, nil
}

// spool 把输入写入临时文件并同时计算 sha256.
func (g *Gateway) spool(r io.Reader, name string) (*os.File, string, int64, error) {
	f, err := os.CreateTemp(g.cfg.SpoolDir, "ingest-spool-*")
	if err != nil {
		return nil, "", 0, fault("spool", err)
	}

	h := sha256.New()
	limit := g.cfg.MaxFileSize()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err == nil && limit > 0 && n > limit {
		err = &IntakeValidationError{FileName: name, Reason: fmt.Sprintf("file exceeds %d MB", g.cfg.MaxFileSizeMB)}
	}

	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		if IsIntakeValidation(err) {
			return nil, "", 0, err
		}

		return nil, "", 0, fault("spool", err)
	}

	return f, hex.EncodeToString(h.Sum(nil)), n, nil
}

func (g *Gateway) checkHeader(spool *os.File, name string) error {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fault("spool", err)
	}

	_, err := readHeader(newCSVReader(spool, g.cfg.DelimiterRune()), name, g.cfg.Columns)
	if err != nil && !IsIntakeValidation(err) {
		return fault("read header", err)
	}

	return err
}

func (g *Gateway) stage(ctx context.Context, spool *os.File, size int64, name string) (string, error) {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return "", fault("spool", err)
	}

	key := staging.NewKey(g.prefix, name, g.now())
	if err := g.stager.Put(ctx, key, spool, size); err != nil {
		return "", fault("stage", err)
	}

	return key, nil
}

// dispatch 调度失败时记录被标记为 failed，暂存副本立即释放.
func (g *Gateway) dispatch(ctx context.Context, id uint, key, name string, logger *zerolog.Logger) error {
	err := g.dispatcher.Dispatch(ctx, Job{RecordID: id, StagedKey: key, FileName: name})
	if err == nil {
		return nil
	}

	// 请求可能已被取消，收尾写入不跟随请求上下文
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if abandonErr := g.progress.Abandon(cleanupCtx, id, "dispatch failed: "+err.Error()); abandonErr != nil {
		logger.Error().Err(abandonErr).Uint("record_id", id).Msg("mark record failed")
	}

	g.deleteStaged(cleanupCtx, key, logger)

	if releaseErr := g.progress.ReleaseStaged(cleanupCtx, id, key); releaseErr != nil {
		logger.Error().Err(releaseErr).Uint("record_id", id).Msg("release staged copy")
	}

	return fault("dispatch", err)
}

func (g *Gateway) deleteStaged(ctx context.Context, key string, logger *zerolog.Logger) {
	if err := g.stager.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Str("staged_key", key).Msg("delete staged copy")
	}
}

func skipped(name string, id uint) *types.SubmitResult {
	return &types.SubmitResult{
		FileName: name, RecordID: id, Outcome: types.OutcomeSkipped, Message: "identical content already submitted",
	}
}
