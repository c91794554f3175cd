package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encounter/internal/models"
)

type fakeNATS struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func sampleEvent(eventType, playerID string) models.EncounterEvent {
	return models.EncounterEvent{
		Type:     eventType,
		PlayerID: playerID,
		State:    string(StateOngoing),
		Session:  models.BattleSession{ID: "s-1", Status: models.BattleStatusOngoing, TurnCount: 1},
	}
}

func TestNATSEventPublisherSubjects(t *testing.T) {
	conn := &fakeNATS{}
	p := newNATSEventPublisher(conn, "")

	p.Publish(context.Background(), sampleEvent(models.EventEncounterStarted, testPlayer))
	p.Publish(context.Background(), sampleEvent(models.EventEncounterResolved, testPlayer))

	assert.Equal(t, []string{"encounter.started", "encounter.resolved"}, conn.subjects)

	var decoded models.EncounterEvent
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, testPlayer, decoded.PlayerID)
	assert.Equal(t, "s-1", decoded.Session.ID)

	assert.Equal(t, "game.battle.updated", newNATSEventPublisher(conn, "game.battle").Subject(models.EventEncounterUpdated))
}

func TestNATSEventPublisherSwallowsErrors(t *testing.T) {
	conn := &fakeNATS{err: errBoom}
	p := newNATSEventPublisher(conn, "encounter")

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), sampleEvent(models.EventEncounterUpdated, testPlayer))
	})
	assert.Empty(t, conn.subjects)
}

func TestMultiPublisherFansOut(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	multi := MultiPublisher{a, nil, b}

	multi.Publish(context.Background(), sampleEvent(models.EventEncounterAbandoned, testPlayer))

	assert.Equal(t, []string{models.EventEncounterAbandoned}, a.types())
	assert.Equal(t, []string{models.EventEncounterAbandoned}, b.types())
}

func TestRealtimeServiceDeliversToPlayer(t *testing.T) {
	hub := NewRealtimeService()
	defer hub.Stop()

	upgrader := websocket.Upgrader{}
	registered := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddConnection(conn, r.URL.Query().Get("player"))
		registered <- struct{}{}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?player=" + testPlayer
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.Publish(context.Background(), sampleEvent(models.EventEncounterUpdated, "someone-else"))
	hub.Publish(context.Background(), sampleEvent(models.EventEncounterUpdated, testPlayer))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var event models.EncounterEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, testPlayer, event.PlayerID)
	assert.Equal(t, models.EventEncounterUpdated, event.Type)
}

func TestRealtimeClientSendAfterClose(t *testing.T) {
	client := &RealtimeClient{playerID: testPlayer, send: make(chan []byte, 1)}

	assert.True(t, client.Send([]byte("a")))
	assert.False(t, client.Send([]byte("b")), "buffer full")

	client.close()
	client.close()
	assert.False(t, client.Send([]byte("c")))
}
