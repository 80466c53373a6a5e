package types

import (
	"time"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// SubmitOutcome 单个文件的提交结果.
type SubmitOutcome string

const (
	OutcomeSkipped  SubmitOutcome = "skipped"  // 相同内容已登记
	OutcomeQueued   SubmitOutcome = "queued"   // 已暂存并排队
	OutcomeRejected SubmitOutcome = "rejected" // 未通过准入或表头检查
)

// SubmitResult 单个文件的提交结果.
type SubmitResult struct {
	FileName string        `json:"file_name"`
	RecordID uint          `json:"record_id,omitempty"`
	Outcome  SubmitOutcome `json:"outcome"`
	Message  string        `json:"message,omitempty"`
}

// SubmitResponse 批量提交结果，顺序与上传顺序一致.
type SubmitResponse struct {
	Results []SubmitResult `json:"results"`
}

// FileStatus 文件导入状态视图.
type FileStatus struct {
	ID                 uint             `json:"id"`
	FileName           string           `json:"file_name"`
	Status             model.FileStatus `json:"status"`
	TotalRows          int64            `json:"total_rows"`
	ProcessedRows      int64            `json:"processed_rows"`
	SuccessfulRows     int64            `json:"successful_rows"`
	FailedRows         int64            `json:"failed_rows"`
	ProgressPercentage float64          `json:"progress_percentage"`
	ErrorMessage       *string          `json:"error_message"`
	RowErrors          []string         `json:"row_errors,omitempty"`
	Attempt            int              `json:"attempt"`
	CreatedAt          time.Time        `json:"created_at"`
	CompletedAt        *time.Time       `json:"completed_at"`
}

// ListFilesRequest 列表查询参数，limit 为 0 时返回全部.
type ListFilesRequest struct {
	Status string `form:"status" rule:"omitempty,ingest_status"`
	Limit  int    `form:"limit"  rule:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" rule:"omitempty,min=0"`
}

// ListFilesResponse 文件列表.
type ListFilesResponse struct {
	Files []FileStatus `json:"files"`
	Total int64        `json:"total"`
}

// DetailsResponse 按 unique_key 查询的明细.
type DetailsResponse struct {
	UniqueKey string               `json:"unique_key"`
	Details   []model.DetailRecord `json:"details"`
}
