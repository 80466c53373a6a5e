package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/types"
)

// StatusService 面向轮询客户端的只读查询.
type StatusService struct {
	progress *store.ProgressStore
	details  *store.DetailStore
	cache    *cache.Cache
	ttl      time.Duration
}

// NewStatusService 创建 StatusService；c 为 nil 或 ttl 为 0 时不缓存.
func NewStatusService(progress *store.ProgressStore, details *store.DetailStore, c *cache.Cache, ttl time.Duration) *StatusService {
	return &StatusService{progress: progress, details: details, cache: c, ttl: ttl}
}

// GetStatus 查询导入状态.只有成功结束的记录会被缓存，它们不会再变化.
func (s *StatusService) GetStatus(ctx context.Context, id uint) (*types.FileStatus, error) {
	if !s.caching() {
		return s.load(ctx, id)
	}

	view, err := cache.GetOrSet(ctx, s.cache, strconv.FormatUint(uint64(id), 10), s.ttl,
		func() (types.FileStatus, bool, error) {
			v, err := s.load(ctx, id)
			if err != nil {
				return types.FileStatus{}, false, err
			}

			return *v, v.Status.Terminal(), nil
		})
	if err != nil {
		return nil, err
	}

	return &view, nil
}

func (s *StatusService) load(ctx context.Context, id uint) (*types.FileStatus, error) {
	rec, err := s.progress.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	v := StatusView(rec)

	return &v, nil
}

// List 按创建时间倒序列出.
func (s *StatusService) List(ctx context.Context, req types.ListFilesRequest) (*types.ListFilesResponse, error) {
	recs, total, err := s.progress.List(ctx, store.ListOptions{
		Status: model.FileStatus(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}

	files := make([]types.FileStatus, 0, len(recs))
	for i := range recs {
		files = append(files, StatusView(&recs[i]))
	}

	return &types.ListFilesResponse{Files: files, Total: total}, nil
}

// LookupByKey 按 unique_key 查询明细.
func (s *StatusService) LookupByKey(ctx context.Context, key string) (*types.DetailsResponse, error) {
	if key == "" {
		return nil, fmt.Errorf("empty unique key: %w", ErrNotFound)
	}

	details, err := s.details.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	return &types.DetailsResponse{UniqueKey: key, Details: details}, nil
}

// DetailsOwned 统计当前仍由该文件最后写入的明细数，被后来的文件覆盖的键不计入.
func (s *StatusService) DetailsOwned(ctx context.Context, id uint) (int64, error) {
	if _, err := s.progress.Get(ctx, id); err != nil {
		return 0, fmt.Errorf("details owned: %w", err)
	}

	return s.details.CountByFile(ctx, id)
}

func (s *StatusService) caching() bool {
	return s.cache != nil && s.ttl > 0
}

// StatusView 把记录投影为状态视图.
func StatusView(rec *model.FileRecord) types.FileStatus {
	return types.FileStatus{
		ID:                 rec.ID,
		FileName:           rec.FileName,
		Status:             rec.Status,
		TotalRows:          rec.TotalRows,
		ProcessedRows:      rec.ProcessedRows,
		SuccessfulRows:     rec.SuccessfulRows,
		FailedRows:         rec.FailedRows,
		ProgressPercentage: Percentage(rec.ProcessedRows, rec.TotalRows),
		ErrorMessage:       rec.ErrorMessage,
		RowErrors:          rec.RowErrorList(),
		Attempt:            rec.Attempt,
		CreatedAt:          rec.CreatedAt,
		CompletedAt:        rec.CompletedAt,
	}
}

// Percentage 计算进度百分比，保留两位小数；total 为 0 时返回 0.
func Percentage(processed, total int64) float64 {
	if total <= 0 {
		return 0
	}

	return math.Round(float64(processed)/float64(total)*10000) / 100
}
