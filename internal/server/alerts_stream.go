package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

const (
	relayConsumerGroup = "ws_relay"
	relayConsumerName  = "relay"
	relayBlockInterval = 5 * time.Second
	clientSendBuffer   = 32
)

// AlertsRelay consumes new_alerts off the stream, loads the full alert, and
// fans it out to every connected websocket client. A single background
// consumer drains the stream; clients never touch Redis directly.
type AlertsRelay struct {
	stream *streams.Client
	store  *store.Store
	log    zerolog.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewAlertsRelay builds a relay against stream and store.
func NewAlertsRelay(stream *streams.Client, st *store.Store, log zerolog.Logger) *AlertsRelay {
	return &AlertsRelay{
		stream:  stream,
		store:   st,
		log:     log.With().Str("component", "alerts_relay").Logger(),
		clients: make(map[chan []byte]struct{}),
	}
}

// Run drains new_alerts until ctx is cancelled, broadcasting each alert's
// JSON encoding to every registered client.
func (a *AlertsRelay) Run(ctx context.Context) {
	if err := a.stream.EnsureGroup(ctx, streams.NewAlerts, relayConsumerGroup); err != nil {
		a.log.Error().Err(err).Msg("failed to ensure new_alerts consumer group")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := a.stream.Consume(ctx, streams.NewAlerts, relayConsumerGroup, relayConsumerName, 10, relayBlockInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error().Err(err).Msg("failed to consume new_alerts")
			continue
		}

		for _, entry := range entries {
			a.deliver(ctx, entry)
		}
	}
}

func (a *AlertsRelay) deliver(ctx context.Context, entry streams.Entry) {
	var payload struct {
		AlertID string `msgpack:"alert_id"`
	}
	if err := streams.Decode(entry.Payload, &payload); err != nil {
		a.log.Error().Err(err).Msg("failed to decode new_alerts entry")
		a.ack(ctx, entry.ID)
		return
	}

	alert, err := a.store.Alerts.Get(payload.AlertID)
	if err != nil || alert == nil {
		a.log.Error().Err(err).Str("alert_id", payload.AlertID).Msg("failed to load alert for broadcast")
		a.ack(ctx, entry.ID)
		return
	}

	encoded, err := json.Marshal(alert)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to encode alert for broadcast")
		a.ack(ctx, entry.ID)
		return
	}

	a.broadcast(encoded)
	a.ack(ctx, entry.ID)
}

func (a *AlertsRelay) ack(ctx context.Context, id string) {
	if err := a.stream.Ack(ctx, streams.NewAlerts, relayConsumerGroup, id); err != nil {
		a.log.Error().Err(err).Str("entry_id", id).Msg("failed to ack new_alerts entry")
	}
}

func (a *AlertsRelay) broadcast(msg []byte) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for ch := range a.clients {
		select {
		case ch <- msg:
		default:
			a.log.Warn().Msg("client send buffer full, dropping alert")
		}
	}
}

func (a *AlertsRelay) register() chan []byte {
	ch := make(chan []byte, clientSendBuffer)
	a.mu.Lock()
	a.clients[ch] = struct{}{}
	a.mu.Unlock()
	return ch
}

func (a *AlertsRelay) unregister(ch chan []byte) {
	a.mu.Lock()
	delete(a.clients, ch)
	a.mu.Unlock()
	close(ch)
}

// ServeHTTP upgrades the request to a websocket and streams broadcast alerts
// to it until the client disconnects or the request context is cancelled.
func (a *AlertsRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to accept websocket connection")
		return
	}
	defer conn.CloseNow()

	ch := a.register()
	defer a.unregister(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}
