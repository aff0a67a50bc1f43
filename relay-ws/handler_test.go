package relayws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type sentMessage struct {
	Endpoint     string
	ConnectionID string
	Payload      interface{}
}

// fakeSender records deliveries. Connections named in gone are treated as
// target-unreachable: purged via the registry and absorbed, mirroring the
// push client contract. Connections named in failing return a transient
// error.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	gone     map[string]bool
	failing  map[string]bool
	registry *Registry
}

func (f *fakeSender) Send(ctx context.Context, endpoint, connectionID string, payload interface{}) error {
	if f.gone[connectionID] {
		if f.registry != nil {
			f.registry.PurgeStale(ctx, connectionID)
		}
		return nil
	}
	if f.failing[connectionID] {
		return errors.New("ServiceUnavailableException: try again")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Endpoint: endpoint, ConnectionID: connectionID, Payload: payload})
	return nil
}

func (f *fakeSender) deliveries() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestHandler() (*Handler, *memoryStore, *fakeSender) {
	store := newMemoryStore()
	registry := &Registry{Connections: store, Logger: zerolog.Nop()}
	sender := &fakeSender{registry: registry}
	handler := &Handler{Registry: registry, Sender: sender, Logger: zerolog.Nop()}
	return handler, store, sender
}

func wsEvent(routeKey, connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     routeKey,
			DomainName:   "api.example.com",
			Stage:        "prod",
		},
	}
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("connect registers the connection", func(t *testing.T) {
		handler, store, _ := newTestHandler()

		resp, err := handler.HandleEvent(ctx, wsEvent("$connect", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, []string{"abc123"}, store.ids())
	})

	t.Run("connect returns 500 when the registry write fails", func(t *testing.T) {
		handler, store, _ := newTestHandler()
		store.putErr = errors.New("table unavailable")

		resp, err := handler.HandleEvent(ctx, wsEvent("$connect", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)
	})

	t.Run("disconnect unregisters the connection", func(t *testing.T) {
		handler, store, _ := newTestHandler()
		assert.NoError(t, handler.Registry.Register(ctx, "abc123"))

		resp, err := handler.HandleEvent(ctx, wsEvent("$disconnect", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, store.ids(), 0)
	})

	t.Run("disconnect succeeds even when the registry delete fails", func(t *testing.T) {
		handler, store, _ := newTestHandler()
		store.deleteErr = errors.New("table unavailable")

		resp, err := handler.HandleEvent(ctx, wsEvent("$disconnect", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("ping replies with pong on the event's endpoint", func(t *testing.T) {
		handler, _, sender := newTestHandler()

		resp, err := handler.HandleEvent(ctx, wsEvent("ping", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		sent := sender.deliveries()
		assert.Len(t, sent, 1)
		assert.Equal(t, "https://api.example.com/prod", sent[0].Endpoint)
		assert.Equal(t, "abc123", sent[0].ConnectionID)

		data, err := json.Marshal(sent[0].Payload)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"action":"pong"}`, string(data))
	})

	t.Run("ping returns 500 when delivery fails", func(t *testing.T) {
		handler, _, sender := newTestHandler()
		sender.failing = map[string]bool{"abc123": true}

		resp, err := handler.HandleEvent(ctx, wsEvent("ping", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)
	})

	t.Run("default with a ping action behaves like the ping route", func(t *testing.T) {
		handler, _, sender := newTestHandler()

		resp, err := handler.HandleEvent(ctx, wsEvent("$default", "abc123", `{"action":"ping"}`))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		sent := sender.deliveries()
		assert.Len(t, sent, 1)
		assert.Equal(t, "https://api.example.com/prod", sent[0].Endpoint)
		assert.Equal(t, "abc123", sent[0].ConnectionID)
	})

	t.Run("default with another action acknowledges without delivering", func(t *testing.T) {
		handler, _, sender := newTestHandler()

		resp, err := handler.HandleEvent(ctx, wsEvent("$default", "abc123", `{"action":"echo"}`))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, sender.deliveries(), 0)
	})

	t.Run("default with an unparseable body returns 400 without delivering", func(t *testing.T) {
		handler, _, sender := newTestHandler()

		resp, err := handler.HandleEvent(ctx, wsEvent("$default", "abc123", "not json"))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Len(t, sender.deliveries(), 0)
	})

	t.Run("unknown route returns 400 naming the route", func(t *testing.T) {
		handler, store, sender := newTestHandler()
		assert.NoError(t, handler.Registry.Register(ctx, "abc123"))

		resp, err := handler.HandleEvent(ctx, wsEvent("foo", "abc123", ""))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Contains(t, resp.Body, "foo")
		assert.Equal(t, []string{"abc123"}, store.ids())
		assert.Len(t, sender.deliveries(), 0)
	})
}
