package app

import (
	"errors"

	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/jobs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// StatusCacheNamespace 状态缓存在 KV 中的命名空间，kv clear 按它清理.
const StatusCacheNamespace = "status"

// Services 导入流水线的业务组件.
type Services struct {
	Progress    *store.ProgressStore
	Details     *store.DetailStore
	Worker      *ingest.Worker
	Gateway     *ingest.Gateway
	Status      *ingest.StatusService
	Maintenance *jobs.Maintenance
}

// NewServices 基于已初始化的资源组装业务组件.
// inline 为 true 时提交在当前 goroutine 内执行，否则经由消息队列分发给 worker.
func NewServices(mgr *storage.Manager, cfg *configs.AppConfig, inline bool) (*Services, error) {
	if mgr == nil || mgr.DB == nil || mgr.Stager == nil {
		return nil, errors.New("db and staging must be initialized")
	}

	logger := nlog.Logger()
	db := mgr.DB.GetDB()

	progress := store.NewProgressStore(db)
	details := store.NewDetailStore(db)
	worker := ingest.NewWorker(progress, details, mgr.Stager, cfg.Ingest, logger)

	var dispatcher ingest.Dispatcher

	if inline {
		dispatcher = ingest.NewInlineDispatcher(worker, cfg.Ingest)
	} else {
		if mgr.MQ == nil {
			return nil, errors.New("mq must be initialized for queued dispatch")
		}

		dispatcher = ingest.NewQueueDispatcher(mgr.MQ, cfg.Ingest.Topic)
	}

	var statusCache *cache.Cache
	if mgr.KV != nil {
		statusCache = cache.NewCache(mgr.KV, StatusCacheNamespace)
	}

	return &Services{
		Progress:    progress,
		Details:     details,
		Worker:      worker,
		Gateway:     ingest.NewGateway(progress, mgr.Stager, dispatcher, cfg.Ingest, cfg.Staging.Prefix, logger),
		Status:      ingest.NewStatusService(progress, details, statusCache, cfg.Ingest.StatusCacheTTL),
		Maintenance: jobs.NewMaintenance(progress, mgr.Stager, cfg.Ingest, logger),
	}, nil
}
