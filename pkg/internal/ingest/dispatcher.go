package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage/mq"
	"github.com/yeisme/ingestvault/pkg/queue"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// Job 一次导入任务的自包含描述，worker 结合数据库中的状态执行，可安全重放.
type Job struct {
	RecordID  uint
	StagedKey string
	FileName  string
}

// Dispatcher 调度导入任务.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// QueueDispatcher 通过消息队列发布导入任务.
type QueueDispatcher struct {
	client *mq.Client
	topic  string
}

// NewQueueDispatcher 创建 QueueDispatcher，topic 为空时使用默认主题.
func NewQueueDispatcher(client *mq.Client, topic string) *QueueDispatcher {
	if topic == "" {
		topic = queue.TopicIngestFileRequested
	}

	return &QueueDispatcher{client: client, topic: topic}
}

// Dispatch 发布任务消息.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	msg, err := queue.NewIngestRequested(d.topic, queue.IngestRequestedPayload{
		RecordID:  job.RecordID,
		StagedKey: job.StagedKey,
		FileName:  job.FileName,
	}, queue.WithProducer(configs.AppName), queue.WithTraceID(tracing.TraceID(ctx)))
	if err != nil {
		return fmt.Errorf("build ingest message: %w", err)
	}

	tracing.Inject(ctx, msg.Metadata)

	if err := d.client.Publish(ctx, d.topic, msg); err != nil {
		return fmt.Errorf("publish ingest message: %w", err)
	}

	return nil
}

// maxInlineBackoff 内联重试的最大等待.
const maxInlineBackoff = time.Minute

// InlineDispatcher 在调用方 goroutine 内直接执行任务，单机 CLI 导入使用.
// 故障按 retry_interval 退避重试，最终结果只体现在记录状态上，Dispatch 本身不返回执行错误.
type InlineDispatcher struct {
	worker *Worker
	cfg    configs.IngestConfig
}

// NewInlineDispatcher 创建 InlineDispatcher.
func NewInlineDispatcher(worker *Worker, cfg configs.IngestConfig) *InlineDispatcher {
	return &InlineDispatcher{worker: worker, cfg: cfg}
}

// Dispatch 执行任务直到成功、内容错误或尝试次数用完.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job Job) error {
	wait := d.cfg.RetryInterval

	for attempt := 1; ; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, d.cfg.RunTimeout)
		err := d.worker.Run(runCtx, job)

		cancel()

		if err == nil {
			return nil
		}

		if attempt >= d.cfg.MaxAttempts {
			d.worker.logger.Error().Err(err).Uint("record_id", job.RecordID).Msg("inline ingest gave up")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		wait = min(wait*2, maxInlineBackoff)
	}
}
