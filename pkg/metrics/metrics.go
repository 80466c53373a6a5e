// Package metrics 定义 HTTP 与导入流水线的 Prometheus 指标.
//
// Example:
//
//	import "github.com/yeisme/ingestvault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/files", "2xx").Inc()
//	metrics.IngestRows.WithLabelValues(metrics.RowOutcomeSuccess).Add(100)
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// 行结果标签.
const (
	RowOutcomeSuccess = "success"
	RowOutcomeInvalid = "invalid"
	RowOutcomeBlank   = "blank"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status class",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 活跃连接数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// IngestSubmissions 按提交结果（skipped/queued/rejected）计数.
	IngestSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_submissions_total",
			Help: "Total number of submitted files by outcome",
		},
		[]string{"outcome"},
	)

	// IngestRows 按行结果计数.
	IngestRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Total number of data rows seen by workers by outcome",
		},
		[]string{"outcome"},
	)

	// IngestRuns 按结束状态统计尝试次数.
	IngestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of finished ingestion attempts by status",
		},
		[]string{"status"},
	)

	// IngestRunDuration 单次尝试耗时.
	IngestRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of one ingestion attempt in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 9),
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// InitMetrics 注册导入与 HTTP 指标，重复调用只注册一次.
// go_* 与 process_* 由 prometheus 默认注册表提供，gorm 插件也注册在那里，Handler 会合并两者.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		if !config.RuntimeMetrics {
			prometheus.Unregister(collectors.NewGoCollector())
			prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}

		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)
		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration, ActiveConnections,
			IngestSubmissions, IngestRows, IngestRuns, IngestRunDuration,
		} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// Mount 在 engine 上挂载指标端点，开启 pprof 时一并挂载 /debug/pprof.
func Mount(config configs.MetricsConfig, engine *gin.Engine) {
	if !config.Enabled {
		return
	}

	engine.GET(path(config), gin.WrapH(Handler()))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}
}

// Mux 独立指标服务使用的路由.
func Mux(config configs.MetricsConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path(config), Handler())

	if config.Pprof {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	return mux
}

func path(config configs.MetricsConfig) string {
	if config.Path == "" {
		return "/metrics"
	}

	return config.Path
}

// Handler 合并导出自有注册表与默认注册表.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

// Registerer 返回应用注册表，供 watermill 等组件注册自身指标.
func Registerer() prometheus.Registerer {
	return registry
}
