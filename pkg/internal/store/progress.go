// Package store 持久化导入进度与明细记录.
//
// ProgressStore 的所有进度写入都是单条 UPDATE，并以 (id, attempt, status=processing) 作为条件，
// 超时被替换的旧尝试写入不会命中任何行，从而得到 ErrStaleAttempt，不会覆盖新尝试的进度.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("record not found")
	// ErrStaleAttempt 写入方的尝试已被更新的尝试取代，或记录已不在 processing.
	ErrStaleAttempt = errors.New("stale attempt")
	// ErrAlreadyTerminal 记录已成功结束，不会再执行.
	ErrAlreadyTerminal = errors.New("record already completed")
	// ErrAttemptsExhausted 尝试次数已用完.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrRejected 记录因内容不合法失败，不再重试.
	ErrRejected = errors.New("record rejected")
	// ErrDuplicateFingerprint 相同内容的文件已登记.
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")
)

// beginRetries 并发抢占 BeginAttempt 时的最大重试次数.
const beginRetries = 3

// Counters 行计数.
type Counters struct {
	Processed  int64
	Successful int64
	Failed     int64
}

func (c Counters) columns() map[string]any {
	return map[string]any{
		"processed_rows":  c.Processed,
		"successful_rows": c.Successful,
		"failed_rows":     c.Failed,
	}
}

// Outcome 一次尝试结束时写入的结果.
type Outcome struct {
	Counters  Counters
	Status    model.FileStatus
	Message   string // 仅 failed 使用
	RowErrors string // JSON 编码的行错误
	Rejected  bool   // failed 且不可重试
}

// ListOptions 列表查询参数.
type ListOptions struct {
	Status model.FileStatus
	Limit  int // 0 表示不限制
	Offset int
}

// ProgressStore FileRecord 的持久化.
type ProgressStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProgressStore 创建 ProgressStore.
func NewProgressStore(db *gorm.DB) *ProgressStore {
	return &ProgressStore{db: db, now: time.Now}
}

// Create 登记新文件；fingerprint 冲突时返回 ErrDuplicateFingerprint.
func (s *ProgressStore) Create(ctx context.Context, rec *model.FileRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		// 各方言的唯一约束错误不统一，回查一次判断是否为重复提交
		if _, lookupErr := s.GetByFingerprint(ctx, rec.Fingerprint); lookupErr == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, rec.Fingerprint)
		}

		return fmt.Errorf("create file record: %w", err)
	}

	return nil
}

// Get 按 id 读取.
func (s *ProgressStore) Get(ctx context.Context, id uint) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		return nil, notFound(err, "file record %d", id)
	}

	return &rec, nil
}

// GetByFingerprint 按内容指纹读取.
func (s *ProgressStore) GetByFingerprint(ctx context.Context, fingerprint string) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).Take(&rec).Error
	if err != nil {
		return nil, notFound(err, "fingerprint %s", fingerprint)
	}

	return &rec, nil
}

// List 按创建时间倒序列出.
func (s *ProgressStore) List(ctx context.Context, opts ListOptions) ([]model.FileRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.FileRecord{})
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count file records: %w", err)
	}

	q = q.Order("created_at DESC").Order("id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}

	var out []model.FileRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list file records: %w", err)
	}

	return out, total, nil
}

// BeginAttempt 开始新的尝试：queued/processing/failed → processing，attempt+1，计数清零.
// 返回更新后的记录；记录已完成返回 ErrAlreadyTerminal，内容被拒绝返回 ErrRejected，次数用完返回 ErrAttemptsExhausted.
func (s *ProgressStore) BeginAttempt(ctx context.Context, id uint, maxAttempts int) (*model.FileRecord, error) {
	for range beginRetries {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		switch {
		case rec.Status.Terminal():
			return rec, ErrAlreadyTerminal
		case rec.Rejected:
			return rec, ErrRejected
		case maxAttempts > 0 && rec.Attempt >= maxAttempts:
			return rec, ErrAttemptsExhausted
		}

		now := s.now()
		next := rec.Attempt + 1

		res := s.db.WithContext(ctx).Model(&model.FileRecord{}).
			Where("id = ? AND attempt = ? AND rejected = ? AND status IN ?", id, rec.Attempt, false,
				[]model.FileStatus{model.StatusQueued, model.StatusProcessing, model.StatusFailed}).
			Updates(map[string]any{
				"status":          model.StatusProcessing,
				"attempt":         next,
				"total_rows":      0,
				"processed_rows":  0,
				"successful_rows": 0,
				"failed_rows":     0,
				"error_message":   nil,
				"row_errors":      "",
				"completed_at":    nil,
				"updated_at":      now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("begin attempt for %d: %w", id, res.Error)
		}

		if res.RowsAffected == 1 {
			rec.Status = model.StatusProcessing
			rec.Attempt = next
			rec.TotalRows, rec.ProcessedRows, rec.SuccessfulRows, rec.FailedRows = 0, 0, 0, 0
			rec.ErrorMessage = nil
			rec.RowErrors = ""
			rec.CompletedAt = nil
			rec.UpdatedAt = now

			return rec, nil
		}
		// 被并发的尝试抢先，重新读取后再判断
	}

	return nil, fmt.Errorf("begin attempt for %d: %w", id, ErrStaleAttempt)
}

// SetTotal 写入总行数.
func (s *ProgressStore) SetTotal(ctx context.Context, id uint, attempt int, total int64) error {
	return s.fenced(ctx, id, attempt, map[string]any{"total_rows": total})
}

// Checkpoint 写入中间进度.
func (s *ProgressStore) Checkpoint(ctx context.Context, id uint, attempt int, c Counters) error {
	return s.fenced(ctx, id, attempt, c.columns())
}

// Finish 结束当前尝试，写入最终计数与状态，并设置 completed_at.
func (s *ProgressStore) Finish(ctx context.Context, id uint, attempt int, out Outcome) error {
	if !out.Status.Finished() {
		return fmt.Errorf("finish with non-final status %q", out.Status)
	}

	cols := out.Counters.columns()
	cols["status"] = out.Status
	cols["completed_at"] = s.now()
	cols["row_errors"] = out.RowErrors

	if out.Message != "" {
		cols["error_message"] = out.Message
	}

	if out.Rejected {
		if out.Status != model.StatusFailed {
			return fmt.Errorf("reject with status %q", out.Status)
		}

		cols["rejected"] = true
	}

	return s.fenced(ctx, id, attempt, cols)
}

// Abandon 在没有活动尝试可写的情况下直接把记录标记为 failed（分发失败、次数用完）.
// 已结束的记录不受影响.
func (s *ProgressStore) Abandon(ctx context.Context, id uint, reason string) error {
	now := s.now()

	res := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND status IN ?", id, []model.FileStatus{model.StatusQueued, model.StatusProcessing}).
		Updates(map[string]any{
			"status":        model.StatusFailed,
			"error_message": reason,
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("abandon file record %d: %w", id, res.Error)
	}

	return nil
}

// Rearm 把失败的记录重新排队，使用新的暂存副本，尝试次数从零计.
func (s *ProgressStore) Rearm(ctx context.Context, id uint, stagedKey string) error {
	res := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND status = ?", id, model.StatusFailed).
		Updates(map[string]any{
			"status":          model.StatusQueued,
			"attempt":         0,
			"rejected":        false,
			"staged_key":      stagedKey,
			"total_rows":      0,
			"processed_rows":  0,
			"successful_rows": 0,
			"failed_rows":     0,
			"error_message":   nil,
			"row_errors":      "",
			"completed_at":    nil,
			"updated_at":      s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("rearm file record %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("rearm file record %d: %w", id, ErrStaleAttempt)
	}

	return nil
}

// ReleaseStaged 清除暂存位置；key 不匹配时不做修改.
func (s *ProgressStore) ReleaseStaged(ctx context.Context, id uint, key string) error {
	err := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND staged_key = ?", id, key).
		UpdateColumn("staged_key", nil).Error
	if err != nil {
		return fmt.Errorf("release staged copy of %d: %w", id, err)
	}

	return nil
}

// ListReleasable 列出仍持有暂存副本、但不会再被执行的记录：
// 已完成的记录、被拒绝或尝试次数用完的失败记录，以及 staleBefore 之前就已失败的记录.
func (s *ProgressStore) ListReleasable(
	ctx context.Context, maxAttempts int, staleBefore time.Time, limit int,
) ([]model.FileRecord, error) {
	var out []model.FileRecord

	err := s.db.WithContext(ctx).
		Where("staged_key IS NOT NULL").
		Where(s.db.Where("status IN ?", []model.FileStatus{model.StatusCompleted, model.StatusCompletedWithErrors}).
			Or("status = ? AND (rejected = ? OR attempt >= ?)", model.StatusFailed, true, maxAttempts).
			Or("status = ? AND updated_at < ?", model.StatusFailed, staleBefore)).
		Order("id").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list releasable records: %w", err)
	}

	return out, nil
}

// ListStale 列出 updated_at 早于 before 的 processing 记录.
func (s *ProgressStore) ListStale(ctx context.Context, before time.Time, limit int) ([]model.FileRecord, error) {
	var out []model.FileRecord

	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.StatusProcessing, before).
		Order("id").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list stale records: %w", err)
	}

	return out, nil
}

// Reap 将卡住的尝试标记为 failed，仍以 attempt 为栅栏；before 之后有过进度写入则不生效.
func (s *ProgressStore) Reap(ctx context.Context, rec *model.FileRecord, before time.Time, reason string) (bool, error) {
	now := s.now()

	res := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND attempt = ? AND status = ? AND updated_at < ?",
			rec.ID, rec.Attempt, model.StatusProcessing, before).
		Updates(map[string]any{
			"status":        model.StatusFailed,
			"error_message": reason,
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reap file record %d: %w", rec.ID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// fenced 执行以 attempt 为栅栏的更新，同时刷新 updated_at 作为心跳.
func (s *ProgressStore) fenced(ctx context.Context, id uint, attempt int, cols map[string]any) error {
	cols["updated_at"] = s.now()

	res := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND attempt = ? AND status = ?", id, attempt, model.StatusProcessing).
		Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update file record %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("update file record %d attempt %d: %w", id, attempt, ErrStaleAttempt)
	}

	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
