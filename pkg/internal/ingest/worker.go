package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/staging"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// cleanupTimeout 收尾写入的超时，收尾不跟随已超时的任务上下文.
const cleanupTimeout = 10 * time.Second

// errSuperseded 当前尝试已被更新的尝试或回收任务取代，静默退出.
var errSuperseded = errors.New("attempt superseded")

// DetailWriter 明细写入.
type DetailWriter interface {
	Upsert(ctx context.Context, rec *model.DetailRecord) error
}

// Worker 执行单个文件的导入.每次执行都从零开始完整扫描，不依赖上一次尝试的内存状态.
type Worker struct {
	progress *store.ProgressStore
	details  DetailWriter
	stager   staging.Stager
	cfg      configs.IngestConfig
	logger   *zerolog.Logger
}

// NewWorker 创建 Worker.
func NewWorker(
	progress *store.ProgressStore, details DetailWriter, stager staging.Stager,
	cfg configs.IngestConfig, logger *zerolog.Logger,
) *Worker {
	if logger == nil {
		logger = nlog.Logger()
	}

	return &Worker{progress: progress, details: details, stager: stager, cfg: cfg, logger: logger}
}

// tally 一次尝试的行计数与行错误，计数始终精确，错误信息有上限.
type tally struct {
	store.Counters

	errs     []string
	max      int
	rejected bool // 内容错误，记录不再重试
}

func (t *tally) fail(line int, reason string) {
	t.Failed++

	if len(t.errs) < t.max {
		t.errs = append(t.errs, fmt.Sprintf("line %d: %s", line, reason))
	}
}

// Run 执行一次尝试.返回 *SystemFault 表示可以重试；内容错误、重放与被取代的尝试都返回 nil.
func (w *Worker) Run(ctx context.Context, job Job) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.worker.run")
	defer span.End()

	span.SetAttributes(attribute.Int64("ingest.record_id", int64(job.RecordID)))

	logger := w.logger.With().Uint("record_id", job.RecordID).Str("file_name", job.FileName).Logger()

	rec, err := w.progress.BeginAttempt(ctx, job.RecordID, w.cfg.MaxAttempts)

	switch {
	case errors.Is(err, store.ErrAlreadyTerminal):
		logger.Info().Str("status", string(rec.Status)).Msg("record already completed, replay ignored")

		return nil
	case errors.Is(err, store.ErrRejected):
		logger.Info().Msg("record rejected earlier, redelivery ignored")

		return nil
	case errors.Is(err, store.ErrAttemptsExhausted):
		logger.Warn().Int("attempt", rec.Attempt).Msg("attempts exhausted")
		w.giveUp(ctx, rec, "attempts exhausted", &logger)

		return nil
	case errors.Is(err, store.ErrNotFound):
		logger.Warn().Msg("record not found, job dropped")

		return nil
	case err != nil:
		tracing.RecordError(span, err)

		return fault("begin attempt", err)
	}

	logger = logger.With().Int("attempt", rec.Attempt).Logger()
	logger.Info().Msg("ingestion started")

	key := job.StagedKey
	if rec.StagedKey != nil {
		key = *rec.StagedKey
	}

	started := time.Now()
	t := &tally{max: w.cfg.MaxRowErrors}

	err = w.execute(ctx, rec, key, t, &logger)

	metrics.IngestRunDuration.Observe(time.Since(started).Seconds())

	// 收尾写入不跟随可能已超时的任务上下文
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var content *contentError

	switch {
	case errors.Is(err, errSuperseded):
		logger.Warn().Msg("attempt superseded, stopping")

		return nil
	case errors.As(err, &content):
		logger.Warn().Str("reason", content.msg).Msg("file rejected")

		t.rejected = true
		w.finish(finCtx, rec, t, model.StatusFailed, content.msg, key, true, &logger)

		return nil
	case err != nil:
		tracing.RecordError(span, err)
		logger.Error().Err(err).Int64("processed_rows", t.Processed).Msg("ingestion failed")

		// 最后一次尝试失败后不会再有人读取暂存副本
		last := w.cfg.MaxAttempts > 0 && rec.Attempt >= w.cfg.MaxAttempts
		if !w.finish(finCtx, rec, t, model.StatusFailed, err.Error(), key, last, &logger) {
			return nil
		}

		return err
	}

	status := model.StatusCompleted
	if t.Failed > 0 {
		status = model.StatusCompletedWithErrors
	}

	w.finish(finCtx, rec, t, status, "", key, true, &logger)
	span.SetAttributes(attribute.String("ingest.status", string(status)))

	logger.Info().
		Str("status", string(status)).
		Int64("total_rows", t.Processed).
		Int64("successful_rows", t.Successful).
		Int64("failed_rows", t.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("ingestion finished")

	return nil
}

// execute 表头、计数、逐行处理三步.
func (w *Worker) execute(ctx context.Context, rec *model.FileRecord, key string, t *tally, logger *zerolog.Logger) error {
	if key == "" {
		return &contentError{msg: "staged copy is missing"}
	}

	total, err := w.count(ctx, rec, key)
	if err != nil {
		return err
	}

	if err := w.progress.SetTotal(ctx, rec.ID, rec.Attempt, total); err != nil {
		return w.storeErr("set total", err)
	}

	logger.Debug().Int64("total_rows", total).Msg("rows counted")

	return w.process(ctx, rec, key, t)
}

// open 打开暂存副本并读取表头.
func (w *Worker) open(ctx context.Context, rec *model.FileRecord, key string) (io.Closer, *csv.Reader, *header, error) {
	rc, err := w.stager.Open(ctx, key)
	if err != nil {
		if errors.Is(err, staging.ErrNotFound) {
			return nil, nil, nil, &contentError{msg: "staged copy is missing"}
		}

		return nil, nil, nil, fault("open staged copy", err)
	}

	cr := newCSVReader(rc, w.cfg.DelimiterRune())

	h, err := readHeader(cr, rec.FileName, w.cfg.Columns)
	if err != nil {
		_ = rc.Close()

		if IsIntakeValidation(err) {
			return nil, nil, nil, &contentError{msg: err.Error()}
		}

		return nil, nil, nil, fault("read header", err)
	}

	return rc, cr, h, nil
}

// count 统计非空数据行，作为进度分母.
func (w *Worker) count(ctx context.Context, rec *model.FileRecord, key string) (int64, error) {
	rc, cr, _, err := w.open(ctx, rec, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return 0, fault("count rows", err)
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return total, nil
		}

		var pe *csv.ParseError

		switch {
		case errors.As(err, &pe):
			total++
		case err != nil:
			return 0, fault("count rows", err)
		case !isBlank(record):
			total++
		}
	}
}

// process 逐行解析、校验并写入明细，每 batch_size 行持久化一次进度.
func (w *Worker) process(ctx context.Context, rec *model.FileRecord, key string, t *tally) error {
	rc, cr, h, err := w.open(ctx, rec, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return fault("process rows", err)
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var (
			res  rowResult
			line int
			pe   *csv.ParseError
		)

		switch {
		case errors.As(err, &pe):
			res, line = invalid("malformed row: %v", pe.Err), pe.StartLine
		case err != nil:
			return fault("process rows", err)
		default:
			line, _ = cr.FieldPos(0)
			res = h.project(record, rec.ID)
		}

		switch res.kind {
		case rowSkippedBlank:
			metrics.IngestRows.WithLabelValues(metrics.RowOutcomeBlank).Inc()

			continue
		case rowInvalid:
			t.Processed++
			t.fail(line, res.reason)
			metrics.IngestRows.WithLabelValues(metrics.RowOutcomeInvalid).Inc()
		case rowSuccess:
			if err := w.details.Upsert(ctx, res.detail); err != nil {
				return fault("upsert detail", err)
			}

			t.Processed++
			t.Successful++
			metrics.IngestRows.WithLabelValues(metrics.RowOutcomeSuccess).Inc()
		}

		if w.cfg.BatchSize > 0 && t.Processed%int64(w.cfg.BatchSize) == 0 {
			if err := w.progress.Checkpoint(ctx, rec.ID, rec.Attempt, t.Counters); err != nil {
				return w.storeErr("checkpoint", err)
			}
		}
	}
}

// finish 写入最终状态与计数，并按需释放暂存副本；返回 false 表示当前尝试已被取代.
func (w *Worker) finish(
	ctx context.Context, rec *model.FileRecord, t *tally, status model.FileStatus,
	msg, key string, release bool, logger *zerolog.Logger,
) bool {
	rowErrs, err := model.EncodeRowErrors(t.errs)
	if err != nil {
		logger.Warn().Err(err).Msg("encode row errors")
	}

	err = w.progress.Finish(ctx, rec.ID, rec.Attempt, store.Outcome{
		Counters:  t.Counters,
		Status:    status,
		Message:   msg,
		RowErrors: rowErrs,
		Rejected:  t.rejected,
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleAttempt) {
			logger.Warn().Msg("attempt superseded before finish")

			return false
		}

		logger.Error().Err(err).Str("status", string(status)).Msg("persist final status")

		return true
	}

	metrics.IngestRuns.WithLabelValues(string(status)).Inc()

	if release {
		w.release(ctx, rec.ID, key, logger)
	}

	return true
}

// giveUp 尝试次数用完：标记失败并释放暂存副本.
func (w *Worker) giveUp(ctx context.Context, rec *model.FileRecord, reason string, logger *zerolog.Logger) {
	if err := w.progress.Abandon(ctx, rec.ID, reason); err != nil {
		logger.Error().Err(err).Msg("mark record failed")
	}

	if rec.StagedKey != nil {
		w.release(ctx, rec.ID, *rec.StagedKey, logger)
	}
}

// release 先删除暂存副本再清除记录上的位置；任一步失败由暂存清理任务补偿.
func (w *Worker) release(ctx context.Context, id uint, key string, logger *zerolog.Logger) {
	if key == "" {
		return
	}

	if err := w.stager.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Str("staged_key", key).Msg("delete staged copy")

		return
	}

	if err := w.progress.ReleaseStaged(ctx, id, key); err != nil {
		logger.Warn().Err(err).Str("staged_key", key).Msg("clear staged key")
	}
}

func (w *Worker) storeErr(stage string, err error) error {
	if errors.Is(err, store.ErrStaleAttempt) {
		return errSuperseded
	}

	return fault(stage, err)
}
