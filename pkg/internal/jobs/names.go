package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobStagingSweep = "ingest.staging.sweep"
	JobStaleReap    = "ingest.runs.reap"
)

const (
	// sweepBatch 每轮查询的记录数.
	sweepBatch = 100
	// reapReason 被回收的尝试写入的错误信息.
	reapReason = "attempt timed out without progress"
)
