// Package queue 定义导入任务在消息队列中的统一封装.
//
// 概览
//   - gateway 在文件暂存并登记后发布一条 ingest.file.requested 消息，worker 订阅并执行
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - 默认 JSON 编解码（bytedance/sonic），跨语言易解析
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "ingest.file.requested",
//	    "trace_id": "optional-trace-id",
//	    "producer": "ingestvault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { "record_id": 42, "staged_key": "staging/2025/01/02/01J...-products.csv", "file_name": "products.csv" }
//	}
//
// 负载只携带定位信息，worker 的全部状态都从数据库读取，消息可以安全重放.
package queue

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

const (
	PayloadVersionV1 string = "v1"
)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造一个 watermill 消息，设置 ID 与元数据.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)
	env := Message[T]{Header: header, Payload: payload}

	data, err := Encode(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataTopic, topic)

	if header.TraceID != "" {
		msg.Metadata.Set(MetadataTraceID, header.TraceID)
	}

	if header.Producer != "" {
		msg.Metadata.Set(MetadataProducer, header.Producer)
	}

	msg.Metadata.Set(MetadataOccurredAt, header.OccurredAt.Format(time.RFC3339Nano))
	msg.Metadata.Set(MetadataVersion, header.Version)

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

// 元数据键.
const (
	MetadataTopic      = "topic"
	MetadataTraceID    = "trace_id"
	MetadataProducer   = "producer"
	MetadataOccurredAt = "occurred_at"
	MetadataVersion    = "version"
)
