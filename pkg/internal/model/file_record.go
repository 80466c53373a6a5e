package model

import (
	"time"

	"github.com/bytedance/sonic"
)

// FileStatus 文件导入状态.
type FileStatus string

const (
	StatusQueued              FileStatus = "queued"
	StatusProcessing          FileStatus = "processing"
	StatusCompleted           FileStatus = "completed"
	StatusCompletedWithErrors FileStatus = "completed_with_errors"
	StatusFailed              FileStatus = "failed"
)

// Terminal 表示导入已结束且不会再被重新执行.
// failed 不算终态：新的尝试可以把它重新拉回 processing.
func (s FileStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors
}

// Finished 表示当前没有尝试在运行.
func (s FileStatus) Finished() bool {
	return s.Terminal() || s == StatusFailed
}

// FileRecord 一次文件提交的登记与进度，fingerprint 全局唯一.
type FileRecord struct {
	ID          uint       `gorm:"primaryKey"                   json:"id"`
	FileName    string     `gorm:"size:512;not null"            json:"file_name"`
	Fingerprint string     `gorm:"size:64;not null;uniqueIndex" json:"fingerprint"`
	Status      FileStatus `gorm:"size:32;not null;index"       json:"status"`

	TotalRows      int64 `gorm:"not null;default:0" json:"total_rows"`
	ProcessedRows  int64 `gorm:"not null;default:0" json:"processed_rows"`
	SuccessfulRows int64 `gorm:"not null;default:0" json:"successful_rows"`
	FailedRows     int64 `gorm:"not null;default:0" json:"failed_rows"`

	// Attempt 当前尝试序号，所有进度写入都以它作为栅栏
	Attempt int `gorm:"not null;default:0" json:"attempt"`
	// Rejected 内容不合法导致的失败，不会再开始新的尝试
	Rejected bool `gorm:"not null;default:false" json:"-"`
	// StagedKey 暂存副本位置，释放后置空
	StagedKey    *string `gorm:"size:1024"                 json:"-"`
	ErrorMessage *string `gorm:"type:text"                 json:"error_message"`
	RowErrors    string  `gorm:"column:row_errors;type:text" json:"-"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName 表名.
func (FileRecord) TableName() string { return "file_records" }

// RowErrorList 解码已保存的行错误信息，解析失败时返回空.
func (r *FileRecord) RowErrorList() []string {
	if r.RowErrors == "" {
		return nil
	}

	var out []string
	if err := sonic.UnmarshalString(r.RowErrors, &out); err != nil {
		return nil
	}

	return out
}

// EncodeRowErrors 将行错误编码为 JSON 文本，空列表编码为空字符串.
func EncodeRowErrors(errs []string) (string, error) {
	if len(errs) == 0 {
		return "", nil
	}

	return sonic.MarshalString(errs)
}
