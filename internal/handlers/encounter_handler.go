package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"encounter/internal/middleware"
	"encounter/internal/models"
	"encounter/internal/service"
)

// EncounterHandler gère les requêtes HTTP liées aux rencontres
type EncounterHandler struct {
	encounters service.EncounterServiceInterface
}

// NewEncounterHandler crée un nouveau handler de rencontres
func NewEncounterHandler(encounters service.EncounterServiceInterface) *EncounterHandler {
	return &EncounterHandler{encounters: encounters}
}

// RegisterRoutes enregistre les routes de rencontre sur un groupe authentifié
func (h *EncounterHandler) RegisterRoutes(rg *gin.RouterGroup, actions ...gin.HandlerFunc) {
	encounters := rg.Group("/encounters")
	{
		encounters.POST("", h.StartEncounter)
		encounters.GET("/current", h.GetCurrentEncounter)
		encounters.POST("/current/actions", append(actions, h.SubmitAction)...)
		encounters.DELETE("/current", h.AbandonEncounter)
		encounters.GET("/result", h.GetLastResult)
	}
}

// StartEncounter démarre une rencontre
func (h *EncounterHandler) StartEncounter(c *gin.Context) {
	var req models.StartEncounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	playerID := middleware.PlayerID(c)
	resp, err := h.encounters.StartEncounter(c.Request.Context(), playerID, req)
	if err != nil {
		h.respondError(c, "Failed to start encounter", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"encounter": resp,
	})
}

// GetCurrentEncounter retourne la rencontre en cours du joueur
func (h *EncounterHandler) GetCurrentEncounter(c *gin.Context) {
	resp, err := h.encounters.CurrentEncounter(c.Request.Context(), middleware.PlayerID(c))
	if err != nil {
		h.respondError(c, "Failed to get encounter", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"encounter": resp,
	})
}

// SubmitAction applique une action du joueur.
// Une action ignorée n'est pas une erreur: la réponse porte accepted=false et le snapshot courant.
func (h *EncounterHandler) SubmitAction(c *gin.Context) {
	var req models.SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	action, err := models.ParseActionType(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid action",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.encounters.SubmitAction(c.Request.Context(), middleware.PlayerID(c), action)
	if err != nil {
		h.respondError(c, "Failed to submit action", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  resp,
	})
}

// AbandonEncounter met fin à la rencontre sans récompense
func (h *EncounterHandler) AbandonEncounter(c *gin.Context) {
	if err := h.encounters.Abandon(c.Request.Context(), middleware.PlayerID(c)); err != nil {
		h.respondError(c, "Failed to abandon encounter", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Encounter abandoned",
	})
}

// GetLastResult retourne le résultat de la dernière rencontre terminée
func (h *EncounterHandler) GetLastResult(c *gin.Context) {
	result, ok := h.encounters.LastResult(middleware.PlayerID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No finished encounter"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *EncounterHandler) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)

	entry := logrus.WithFields(logrus.Fields{
		"player_id":  middleware.PlayerID(c),
		"request_id": c.GetString(middleware.ContextRequestID),
		"status":     status,
		"error":      err.Error(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	c.JSON(status, gin.H{
		"error":      message,
		"details":    err.Error(),
		"request_id": c.GetString(middleware.ContextRequestID),
	})
}

// statusFor traduit les erreurs du service en codes HTTP; le reste vient des services distants
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRosterEntry), errors.Is(err, service.ErrSpeciesNotFound),
		errors.Is(err, service.ErrInvalidSpecies):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnknownAction), errors.Is(err, service.ErrActionNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoActiveEncounter):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEncounterInProgress), errors.Is(err, service.ErrSessionTerminal):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyCatalog):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
