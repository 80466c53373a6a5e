package queue

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// IngestRequestedPayload 请求导入一个已暂存的文件.
type IngestRequestedPayload struct {
	RecordID  uint   `json:"record_id"`
	StagedKey string `json:"staged_key"`
	FileName  string `json:"file_name,omitempty"`
}

// Validate 检查负载是否可执行.
func (p IngestRequestedPayload) Validate() error {
	if p.RecordID == 0 {
		return fmt.Errorf("record_id is required")
	}

	if p.StagedKey == "" {
		return fmt.Errorf("staged_key is required")
	}

	return nil
}

// NewIngestRequested 构造导入请求消息.
func NewIngestRequested(topic string, payload IngestRequestedPayload, opts ...func(*EventHeader)) (*message.Message, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return NewWatermillMessage(topic, payload, opts...)
}

// ParseIngestRequested 解析导入请求消息.
func ParseIngestRequested(msg *message.Message) (Message[IngestRequestedPayload], error) {
	env, err := ParseWatermillMessage[IngestRequestedPayload](msg)
	if err != nil {
		return env, fmt.Errorf("decode ingest request: %w", err)
	}

	if err := env.Payload.Validate(); err != nil {
		return env, fmt.Errorf("invalid ingest request: %w", err)
	}

	return env, nil
}
