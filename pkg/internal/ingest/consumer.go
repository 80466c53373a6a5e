package ingest

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/queue"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// HandlerName 导入任务在 router 中的处理器名.
const HandlerName = "ingest.worker"

// Consumer 把队列消息交给 Worker 执行，负责超时与有限次重试.
type Consumer struct {
	worker *Worker
	cfg    configs.IngestConfig
	logger *zerolog.Logger
	wlog   watermill.LoggerAdapter
}

// NewConsumer 创建 Consumer.
func NewConsumer(worker *Worker, cfg configs.IngestConfig, logger *zerolog.Logger, wlog watermill.LoggerAdapter) *Consumer {
	return &Consumer{worker: worker, cfg: cfg, logger: logger, wlog: wlog}
}

// Register 在 router 上注册处理器.
// 中间件由外到内：放弃 → 重试 → 超时 → panic 恢复.每次重试都有独立的超时.
func (c *Consumer) Register(router *message.Router, sub message.Subscriber) {
	h := router.AddNoPublisherHandler(HandlerName, c.cfg.Topic, sub, c.handle)

	retries := c.cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	h.AddMiddleware(
		c.giveUp,
		middleware.Retry{
			MaxRetries:          retries,
			InitialInterval:     c.cfg.RetryInterval,
			MaxInterval:         time.Minute,
			Multiplier:          2,
			// Timeout 会取消上一次尝试的 msg.Context()
			ResetContextOnRetry: true,
			Logger:              c.wlog,
		}.Middleware,
		middleware.Timeout(c.cfg.RunTimeout),
		middleware.Recoverer,
	)
}

func (c *Consumer) handle(msg *message.Message) error {
	env, err := queue.ParseIngestRequested(msg)
	if err != nil {
		// 无法解析的消息重试也没有意义
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("drop malformed ingest message")

		return nil
	}

	return c.worker.Run(tracing.Extract(msg.Context(), msg.Metadata), Job{
		RecordID:  env.Payload.RecordID,
		StagedKey: env.Payload.StagedKey,
		FileName:  env.Payload.FileName,
	})
}

// giveUp 重试用尽后确认消息，记录已由 worker 标记为 failed.
func (c *Consumer) giveUp(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := h(msg)
		if err != nil {
			c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("ingest job failed after retries")

			return nil, nil
		}

		return msgs, nil
	}
}
