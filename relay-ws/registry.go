package relayws

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/telequeue/ws-relay/relay-ws/connectiondao"
)

// ConnectionTTL is how long a registry record lives before DynamoDB sweeps
// it. Stale records are normally purged much sooner, on the first failed
// delivery; the TTL is a backstop.
const ConnectionTTL = 365 * 24 * time.Hour

// ConnectionStore is the registry storage used by the relay.
type ConnectionStore interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Delete(ctx context.Context, connectionID string) error
	Scan(ctx context.Context) ([]connectiondao.Connection, error)
}

// Registry tracks live connections in the connection store.
//
// Register, Unregister, and PurgeStale are independent single-key writes
// with last-writer-wins semantics. The transport never reuses a connection
// id, so a purge racing a register of the same id cannot occur in practice.
type Registry struct {
	Connections ConnectionStore
	Logger      zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Register records a connection as live. Re-registering the same id
// overwrites the existing record.
func (r *Registry) Register(ctx context.Context, connectionID string) error {
	now := r.now()
	conn := connectiondao.Connection{
		ConnectionID: connectionID,
		ConnectedAt:  now.Unix(),
		ExpiresAt:    now.Add(ConnectionTTL).Unix(),
	}
	if err := r.Connections.Put(ctx, conn); err != nil {
		return fmt.Errorf("registering connection %v: %w", connectionID, err)
	}
	return nil
}

// Unregister removes a connection record. Removing an absent record is a
// no-op.
func (r *Registry) Unregister(ctx context.Context, connectionID string) error {
	if err := r.Connections.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("unregistering connection %v: %w", connectionID, err)
	}
	return nil
}

// PurgeStale removes the record for a connection the transport reports as
// gone. Failures are logged and swallowed; the registry converging matters
// more than surfacing the error on the delivery path.
func (r *Registry) PurgeStale(ctx context.Context, connectionID string) {
	if err := r.Connections.Delete(ctx, connectionID); err != nil {
		r.Logger.Error().Err(err).
			Str("connection_id", connectionID).
			Msg("failed to purge stale connection")
	}
}

// List enumerates every registered connection.
func (r *Registry) List(ctx context.Context) ([]connectiondao.Connection, error) {
	return r.Connections.Scan(ctx)
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
