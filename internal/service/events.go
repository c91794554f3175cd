package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"encounter/internal/config"
	"encounter/internal/models"
)

// EventPublisherInterface reçoit chaque snapshot validé d'une rencontre.
// Publish ne doit pas bloquer l'orchestrateur.
type EventPublisherInterface interface {
	Publish(ctx context.Context, event models.EncounterEvent)
}

// MultiPublisher diffuse un événement à plusieurs publishers
type MultiPublisher []EventPublisherInterface

// Publish implémente EventPublisherInterface
func (m MultiPublisher) Publish(ctx context.Context, event models.EncounterEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// NopPublisher ignore les événements
type NopPublisher struct{}

// Publish implémente EventPublisherInterface
func (NopPublisher) Publish(context.Context, models.EncounterEvent) {}

// ConnectNATS établit la connexion NATS
func ConnectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectDelay),
		nats.MaxReconnects(cfg.MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logrus.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logrus.WithField("url", cfg.URL).Info("Connected to NATS")
	return nc, nil
}

// natsPublisher sous-ensemble de *nats.Conn utilisé pour publier
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSEventPublisher publie les événements sur <prefix>.<type>
type NATSEventPublisher struct {
	conn   natsPublisher
	prefix string
}

// NewNATSEventPublisher crée un publisher NATS
func NewNATSEventPublisher(conn *nats.Conn, prefix string) *NATSEventPublisher {
	return newNATSEventPublisher(conn, prefix)
}

func newNATSEventPublisher(conn natsPublisher, prefix string) *NATSEventPublisher {
	if prefix == "" {
		prefix = "encounter"
	}
	return &NATSEventPublisher{conn: conn, prefix: prefix}
}

// Subject retourne le sujet NATS d'un type d'événement
func (p *NATSEventPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish implémente EventPublisherInterface
func (p *NATSEventPublisher) Publish(_ context.Context, event models.EncounterEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal encounter event")
		return
	}

	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		logrus.WithFields(logrus.Fields{
			"player_id": event.PlayerID,
			"type":      event.Type,
			"error":     err.Error(),
		}).Warn("Failed to publish encounter event")
	}
}
