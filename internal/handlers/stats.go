package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"asr_server/internal/bootstrap"
	"asr_server/internal/resource"
)

// StatsHandler reports the introspection detail the supplemented /stats
// feature calls for: active session ids, host memory stats, and a safe
// (secret-scrubbed) view of the running configuration.
func StatsHandler(deps *bootstrap.AppDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		memStats, err := resource.HostMemoryStats()
		resp := gin.H{
			"active_session_count": deps.Registry.Count(),
			"active_session_ids":   deps.Registry.IDs(),
			"config":               deps.Config.ToSafeMap(),
		}
		if err == nil {
			resp["host_memory"] = gin.H{
				"used_percent": memStats.UsedPercent,
				"used_bytes":   memStats.UsedBytes,
				"total_bytes":  memStats.TotalBytes,
			}
		}

		if deps.RateLimiter != nil {
			resp["rate_limiter"] = deps.RateLimiter.GetStats()
		}

		c.JSON(http.StatusOK, resp)
	}
}
