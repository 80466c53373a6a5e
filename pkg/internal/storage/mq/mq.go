// Package mq 提供基于 Watermill 的统一消息队列接口，导入任务通过它在 gateway 与 worker 之间传递.
//
// 支持的 MQ 类型：
//   - NATS（支持 JetStream，推荐用于多进程部署）
//   - Redis Pub/Sub（无持久化，worker 离线期间的消息会丢失）
//   - gochannel（进程内，单机与测试使用）
//
// Client 封装 Publisher、Subscriber 与一个 Router，消费方通过 Router 注册 handler.
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ, &cfg.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Router().AddNoPublisherHandler("ingest", "ingest.file.requested", client.Subscriber(), handler)
//	go client.Router().Run(ctx)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ThreeDotsLabs/watermill"
	wmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/ingestvault/pkg/configs"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factories = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher、Subscriber 与 Router.
type Client struct {
	kind       configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	logger     watermill.LoggerAdapter
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg *configs.MQConfig, metricsCfg *configs.MetricsConfig) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create router: %w", err), pub.Close(), sub.Close())
	}

	if metricsCfg != nil && metricsCfg.Enabled && cfg.Common.EnableMetrics {
		// 指标注册到应用统一的 prometheus registry，由 /metrics 暴露
		builder := wmetrics.NewPrometheusMetricsBuilder(metrics.Registerer(), "", "")
		builder.AddPrometheusRouterMetrics(router)

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}

		nlog.Logger().Info().Msg("MQ metrics enabled")
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("MQ 客户端已初始化")

	return NewClient(cfg.Type, pub, sub, router, logger), nil
}

// NewClient 使用已有的 Publisher/Subscriber 组装 Client.
func NewClient(
	kind configs.MQType, pub message.Publisher, sub message.Subscriber,
	router *message.Router, logger watermill.LoggerAdapter,
) *Client {
	return &Client{kind: kind, publisher: pub, subscriber: sub, router: router, logger: logger}
}

// Type 返回 MQ 类型.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publisher 返回底层 Publisher.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Subscriber 返回底层 Subscriber.
func (c *Client) Subscriber() message.Subscriber {
	return c.subscriber
}

// Router 返回消息路由器.
func (c *Client) Router() *message.Router {
	return c.router
}

// Logger 返回 watermill 日志适配器.
func (c *Client) Logger() watermill.LoggerAdapter {
	return c.logger
}

// Publish 便捷发布.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	for _, m := range msgs {
		m.SetContext(ctx)
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// HealthCheck 检查 MQ 是否可用；router 只在已启动时检查运行状态.
func (c *Client) HealthCheck(_ context.Context) error {
	if c == nil || c.publisher == nil || c.subscriber == nil {
		return fmt.Errorf("mq client not initialized")
	}

	if checker, ok := c.publisher.(interface{ Ping() error }); ok {
		return checker.Ping()
	}

	return nil
}

// Close 关闭资源，router 先于 subscriber 停止，避免 handler 读取已关闭的通道.
func (c *Client) Close() error {
	var errs []error

	if c.router != nil {
		errs = append(errs, c.router.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	// gochannel 的 Publisher 与 Subscriber 为同一实例，重复 Close 为空操作
	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	return errors.Join(errs...)
}
