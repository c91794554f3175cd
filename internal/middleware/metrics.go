package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"encounter/internal/monitoring"
)

// Metrics enregistre les métriques HTTP, étiquetées par route et non par chemin brut
func Metrics(m *monitoring.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.ActiveConnections.Inc()
		defer m.ActiveConnections.Dec()

		c.Next()

		m.ObserveRequest(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}
