package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"encounter/internal/monitoring"
)

// HealthHandler gère les requêtes de santé du service
type HealthHandler struct {
	checker *monitoring.HealthChecker
}

// NewHealthHandler crée un nouveau handler de santé
func NewHealthHandler(checker *monitoring.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HealthCheck vérifie l'état du service et de ses dépendances
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.checker.GetHealthStatus(c.Request.Context())

	if status.Status != monitoring.StatusHealthy {
		logrus.WithFields(logrus.Fields{
			"status": status.Status,
			"checks": len(status.Checks),
		}).Warn("Health check reported a problem")
	}

	code := http.StatusOK
	if status.Status == monitoring.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// ReadinessCheck indique si le service peut recevoir du trafic
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.checker.Ready(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// LivenessCheck indique que le processus répond
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
