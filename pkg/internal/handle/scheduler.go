package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/middleware"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

// withScheduler 只在运行维护任务的进程里有 scheduler，其余进程返回 503.
func withScheduler(h func(c *gin.Context, s *scheduler.Scheduler)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.GetScheduler(c)
		if s == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running in this process"})
			return
		}

		h(c, s)
	}
}

// SchedulerJobs 列出维护任务及其最近一次执行结果.
var SchedulerJobs = withScheduler(func(c *gin.Context, s *scheduler.Scheduler) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.GetJobInfos()})
})

// SchedulerJob 返回单个任务.
var SchedulerJob = withScheduler(func(c *gin.Context, s *scheduler.Scheduler) {
	info, err := s.GetJobInfoByName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
})

// SchedulerRunJob 立即触发一次任务，例如上线后手动回收卡住的导入.
var SchedulerRunJob = withScheduler(func(c *gin.Context, s *scheduler.Scheduler) {
	name := c.Param("name")
	if _, err := s.GetJobInfoByName(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := s.RunNow(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "job triggered", "job": name})
})
