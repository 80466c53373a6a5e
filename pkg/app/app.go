// Package app 提供应用程序的初始化和运行：资源、HTTP 服务、队列消费者与维护任务.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/ingestvault/pkg/api"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/handle"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/jobs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/middleware"
	"github.com/yeisme/ingestvault/pkg/scheduler"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// Options 选择进程承担的角色.
type Options struct {
	HTTP      bool // 对外提供 HTTP 接口
	Worker    bool // 消费导入任务
	Scheduler bool // 运行暂存清理与卡死回收
}

// App 一个运行中的进程.
type App struct {
	cfg    *configs.AppConfig
	opts   Options
	mgr    *storage.Manager
	svc    *Services
	sched  *scheduler.Scheduler
	engine *gin.Engine
	logger *zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New 初始化资源与业务组件，并执行数据库迁移.
func New(ctx context.Context, cfg *configs.AppConfig, opts Options) (*App, error) {
	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	parts := []storage.Part{storage.PartDB, storage.PartStaging, storage.PartMQ}
	if opts.HTTP {
		parts = append(parts, storage.PartKV)
	}

	mgr, err := storage.Open(ctx, cfg, parts...)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, opts: opts, mgr: mgr, logger: nlog.Logger()}

	if err := a.init(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if err := store.Migrate(ctx, a.mgr.DB.GetDB()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if a.cfg.Metrics.Enabled {
		if err := a.mgr.DB.RegisterGORMMetrics(configs.AppName, a.cfg.Metrics.CollectInterval); err != nil {
			a.logger.Warn().Err(err).Msg("gorm metrics disabled")
		}
	}

	svc, err := NewServices(a.mgr, a.cfg, false)
	if err != nil {
		return err
	}

	a.svc = svc

	if a.opts.HTTP && !a.opts.Worker && a.cfg.MQ.Type == configs.MQTypeGoChannel {
		a.logger.Warn().Msg("gochannel queue without a worker in this process, submitted files will not be processed")
	}

	if a.opts.Scheduler {
		if a.sched, err = scheduler.NewScheduler(); err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
	}

	if a.opts.HTTP {
		a.engine = a.newEngine()
	}

	return nil
}

// Services 返回业务组件.
func (a *App) Services() *Services {
	return a.svc
}

// Engine 返回 HTTP 引擎，未启用 HTTP 时为 nil.
func (a *App) Engine() *gin.Engine {
	return a.engine
}

func (a *App) newEngine() *gin.Engine {
	gin.DefaultWriter = nlog.NewGinWriter(a.logger, zerolog.InfoLevel)
	gin.DefaultErrorWriter = nlog.NewGinWriter(a.logger, zerolog.ErrorLevel)

	engine := gin.New()
	engine.MaxMultipartMemory = a.cfg.Server.MultipartMemory()

	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.CORSMiddleware(a.cfg.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.RateLimitMiddleware(a.cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(a.cfg.CircuitBreaker),
		middleware.StorageMiddleware(a.mgr),
		middleware.SchedulerMiddleware(a.sched),
	)

	// 独立端点由 Run 启动
	if a.cfg.Metrics.Endpoint == "" {
		metrics.Mount(a.cfg.Metrics, engine)
	}

	api.RegisterGroup(engine, handle.NewFiles(a.svc.Gateway, a.svc.Status, a.cfg.Ingest))

	return engine
}

// Run 启动选定的角色并阻塞到 ctx 取消或任一角色失败，返回前释放全部资源.
// 消费者先于 HTTP 启动，进程内队列在没有订阅者时会丢弃消息.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.opts.Worker {
		if err := a.startWorker(ctx, g); err != nil {
			return errors.Join(err, g.Wait(), a.Close())
		}
	}

	if a.sched != nil {
		if err := jobs.RegisterCronJobs(ctx, a.sched, a.svc.Maintenance); err != nil {
			return errors.Join(err, a.Close())
		}

		a.sched.Start()

		g.Go(func() error {
			<-ctx.Done()
			return a.sched.Stop()
		})
	}

	if a.engine != nil {
		addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		a.serve(ctx, g, "http", &http.Server{Addr: addr, Handler: a.engine, ReadHeaderTimeout: a.cfg.Server.GetTimeoutDuration()})
	}

	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Endpoint != "" {
		a.serve(ctx, g, "metrics", &http.Server{
			Addr:              a.cfg.Metrics.Endpoint,
			Handler:           metrics.Mux(a.cfg.Metrics),
			ReadHeaderTimeout: a.cfg.Server.GetTimeoutDuration(),
		})
	}

	return errors.Join(g.Wait(), a.Close())
}

func (a *App) startWorker(ctx context.Context, g *errgroup.Group) error {
	router := a.mgr.MQ.Router()
	ingest.NewConsumer(a.svc.Worker, a.cfg.Ingest, a.logger, a.mgr.MQ.Logger()).Register(router, a.mgr.MQ.Subscriber())

	g.Go(func() error { return router.Run(ctx) })

	select {
	case <-router.Running():
		a.logger.Info().Str("topic", a.cfg.Ingest.Topic).Msg("ingest consumer running")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("start consumer: %w", ctx.Err())
	}
}

// serve 启动 HTTP 服务，ctx 取消后在 server.timeout 内优雅关闭.
func (a *App) serve(ctx context.Context, g *errgroup.Group, name string, srv *http.Server) {
	g.Go(func() error {
		a.logger.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.GetTimeoutDuration())
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

// Close 释放资源，可重复调用.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GetTimeoutDuration())
		defer cancel()

		a.closeErr = errors.Join(a.mgr.Close(), tracing.ShutdownTracer(ctx))
	})

	return a.closeErr
}
