package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yeisme/ingestvault/pkg/internal/store"
)

// ErrNotFound 查询的文件或 unique_key 不存在.
var ErrNotFound = store.ErrNotFound

// IntakeValidationError 提交时同步发现的内容错误，不会创建记录.
type IntakeValidationError struct {
	FileName string
	Reason   string
	Missing  []string // 缺少的必需列
}

func (e *IntakeValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s: missing required columns %s", e.FileName, e.Reason, strings.Join(e.Missing, ", "))
	}

	return fmt.Sprintf("%s: %s", e.FileName, e.Reason)
}

// IsIntakeValidation 判断是否为提交内容错误.
func IsIntakeValidation(err error) bool {
	var ive *IntakeValidationError

	return errors.As(err, &ive)
}

// SystemFault I/O 或持久化故障，中止当前尝试并允许重试.
type SystemFault struct {
	Stage string
	Err   error
}

func (e *SystemFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SystemFault) Unwrap() error { return e.Err }

func fault(stage string, err error) *SystemFault {
	return &SystemFault{Stage: stage, Err: err}
}

// contentError 文件内容本身的问题，重试不会改变结果.
type contentError struct {
	msg string
}

func (e *contentError) Error() string { return e.msg }
