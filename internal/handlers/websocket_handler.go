package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"encounter/internal/middleware"
	"encounter/internal/models"
	"encounter/internal/service"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 512
)

// WebSocketHandler diffuse les snapshots de rencontre au joueur connecté
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	realtime   service.RealtimeServiceInterface
	encounters service.EncounterServiceInterface
}

// NewWebSocketHandler crée une nouvelle instance du handler WebSocket
func NewWebSocketHandler(realtime service.RealtimeServiceInterface, encounters service.EncounterServiceInterface) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		realtime:   realtime,
		encounters: encounters,
	}
}

// HandleWebSocket ouvre le flux et envoie immédiatement le snapshot courant s'il existe
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	playerID := middleware.PlayerID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := h.realtime.AddConnection(conn, playerID)
	defer h.realtime.RemoveConnection(client)

	if current, err := h.encounters.CurrentEncounter(c.Request.Context(), playerID); err == nil {
		h.realtime.Publish(c.Request.Context(), models.EncounterEvent{
			Type:     models.EventEncounterUpdated,
			PlayerID: playerID,
			State:    current.State,
			Session:  current.Session,
		})
	}

	// Lecture seule des contrôles: le client n'envoie pas de commandes sur ce canal
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("player_id", playerID).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (h *WebSocketHandler) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
