package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"encounter/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 16
)

// RealtimeServiceInterface définit les méthodes du service temps réel
type RealtimeServiceInterface interface {
	EventPublisherInterface
	AddConnection(conn *websocket.Conn, playerID string) *RealtimeClient
	RemoveConnection(client *RealtimeClient)
	ConnectionCount() int
	Stop()
}

// RealtimeClient connexion WebSocket d'un joueur
type RealtimeClient struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

// RealtimeService pousse chaque transition aux connexions WebSocket du joueur concerné
type RealtimeService struct {
	mu      sync.RWMutex
	clients map[string]map[*RealtimeClient]struct{}
	stopped bool
}

// NewRealtimeService crée une nouvelle instance du service temps réel
func NewRealtimeService() *RealtimeService {
	return &RealtimeService{
		clients: make(map[string]map[*RealtimeClient]struct{}),
	}
}

// AddConnection enregistre une connexion et démarre son écriture
func (s *RealtimeService) AddConnection(conn *websocket.Conn, playerID string) *RealtimeClient {
	client := &RealtimeClient{
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, wsSendBuffer),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		client.close()
		conn.Close()
		return client
	}
	if s.clients[playerID] == nil {
		s.clients[playerID] = make(map[*RealtimeClient]struct{})
	}
	s.clients[playerID][client] = struct{}{}
	s.mu.Unlock()

	go client.writePump()

	logrus.WithField("player_id", playerID).Info("WebSocket connection added")
	return client
}

// RemoveConnection retire une connexion
func (s *RealtimeService) RemoveConnection(client *RealtimeClient) {
	s.mu.Lock()
	if set, ok := s.clients[client.playerID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(s.clients, client.playerID)
		}
	}
	s.mu.Unlock()

	client.close()
	logrus.WithField("player_id", client.playerID).Info("WebSocket connection removed")
}

// Publish implémente EventPublisherInterface. Un client trop lent perd l'événement.
func (s *RealtimeService) Publish(_ context.Context, event models.EncounterEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal realtime event")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients[event.PlayerID] {
		if !client.Send(data) {
			logrus.WithField("player_id", event.PlayerID).Warn("WebSocket send buffer full, dropping event")
		}
	}
}

// ConnectionCount retourne le nombre de connexions ouvertes
func (s *RealtimeService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, set := range s.clients {
		count += len(set)
	}
	return count
}

// Stop ferme toutes les connexions
func (s *RealtimeService) Stop() {
	s.mu.Lock()
	s.stopped = true
	clients := s.clients
	s.clients = make(map[string]map[*RealtimeClient]struct{})
	s.mu.Unlock()

	for _, set := range clients {
		for client := range set {
			client.close()
		}
	}
	logrus.Info("Realtime service stopped")
}

// Send met un message en file pour ce client, false si la connexion est fermée ou saturée
func (c *RealtimeClient) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *RealtimeClient) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.WithFields(logrus.Fields{
				"player_id": c.playerID,
				"error":     err.Error(),
			}).Debug("WebSocket write failed")
			c.conn.Close()
			return
		}
	}

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	c.conn.Close()
}

func (c *RealtimeClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
