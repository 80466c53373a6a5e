// Package queue 定义消息主题常量.
package queue

// 主题命名规范：<域>.<对象>.<动作>，主题名可通过 ingest.topic 配置覆盖.
const (
	// TopicIngestFileRequested 文件已暂存，等待 worker 导入.
	TopicIngestFileRequested = "ingest.file.requested"
)

// IngestTopics 导入相关主题集合.
var IngestTopics = []string{
	TopicIngestFileRequested,
}
