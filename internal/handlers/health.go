// Package handlers implements the ambient HTTP introspection surface:
// liveness/readiness for orchestrators and a debug stats endpoint for
// operators, grounded in the original deployment's health and
// active-session-count routes.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"asr_server/internal/bootstrap"
)

var startedAt = time.Now()

// HealthHandler reports liveness, uptime and the active session count;
// recognizer/VAD readiness is implied by deps being non-nil, since InitApp
// fails fast otherwise. Host memory usage is only logged (throttled by the
// supervisor), not included in the response.
func HealthHandler(deps *bootstrap.AppDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps.Supervisor.LogHostMemoryIfDue()

		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"uptime_seconds":  time.Since(startedAt).Seconds(),
			"active_sessions": deps.Registry.Count(),
		})
	}
}
