package ingest_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// TestConsumer_EndToEnd 经由进程内队列完成提交到导入的全过程，第一次尝试的暂存读取失败后自动重试.
func TestConsumer_EndToEnd(t *testing.T) {
	e := newEnv(t, func(c *configs.IngestConfig) {
		c.RetryInterval = 10 * time.Millisecond
		c.RunTimeout = 10 * time.Second
	})

	wlog := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, wlog)

	router, err := message.NewRouter(message.RouterConfig{}, wlog)
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	flaky := &flakyStager{Stager: e.stager, failures: 1}
	worker := ingest.NewWorker(e.progress, e.details, flaky, e.cfg, nlog.Nop())
	ingest.NewConsumer(worker, e.cfg, nlog.Nop(), wlog).Register(router, pubsub)

	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = router.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = router.Close()
		_ = pubsub.Close()
	})

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	client := mq.NewClient(configs.MQTypeGoChannel, pubsub, pubsub, router, mq.NewLoggerAdapter(nlog.Nop()))

	// 无法解析的消息被丢弃，不影响后续任务
	if err := client.Publish(ctx, e.cfg.Topic, message.NewMessage(watermill.NewUUID(), []byte("garbage"))); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}

	gw := ingest.NewGateway(e.progress, flaky, ingest.NewQueueDispatcher(client, e.cfg.Topic), e.cfg, "staging", nlog.Nop())

	res, err := gw.Submit(ctx, strings.NewReader("KEY,TITLE,DESCRIPTION,PRICE\nK1,Tee,Cotton,1\n,,,\nK2,,x,\nK3,Cap,Wool,2\n"), "e2e.csv")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec := waitTerminal(t, e, res.RecordID)

	if rec.Status != model.StatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s (%v)", rec.Status, rec.ErrorMessage)
	}

	if rec.Attempt != 2 {
		t.Errorf("expected the second attempt to finish the job, got attempt %d", rec.Attempt)
	}

	assertCounters(t, rec, 3, 3, 2, 1)

	if rec.StagedKey != nil {
		t.Error("staged copy should be released")
	}
}

func waitTerminal(t *testing.T, e *env, id uint) *model.FileRecord {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)

	for {
		rec := e.get(t, id)
		if rec.Status.Terminal() {
			return rec
		}

		if time.Now().After(deadline) {
			t.Fatalf("record %d did not finish, last status %s", id, rec.Status)
		}

		time.Sleep(20 * time.Millisecond)
	}
}
