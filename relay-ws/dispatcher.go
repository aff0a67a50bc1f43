package relayws

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
)

// Sender delivers one message to one connection. Gone connections are
// purged and absorbed by the implementation; transient failures propagate.
type Sender interface {
	Send(ctx context.Context, endpoint, connectionID string, payload interface{}) error
}

// Dispatcher fans queued broadcast messages out to every registered
// connection.
type Dispatcher struct {
	Registry    *Registry
	Sender      Sender
	Logger      zerolog.Logger
	Endpoint    string // push endpoint shared by all connections
	Concurrency int    // max concurrent deliveries per broadcast (default 50)
	Metrics     *relaycli.Metrics
}

// HandleSQSEvent processes a batch of queued broadcast messages, one logical
// broadcast per record. A record whose broadcast aborts is reported back for
// redelivery; other records in the batch still complete.
func (d *Dispatcher) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var failures []events.SQSBatchItemFailure
	for _, record := range event.Records {
		if err := d.Broadcast(ctx, record.Body); err != nil {
			d.Logger.Error().Err(err).
				Str("message_id", record.MessageId).
				Msg("failed to process broadcast record")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

// Broadcast delivers one message to every registered connection. Deliveries
// run concurrently and independently; a recipient failing never blocks or
// cancels delivery to the others. An error is returned only when the
// registry itself cannot be enumerated.
func (d *Dispatcher) Broadcast(ctx context.Context, body string) error {
	conns, err := d.Registry.List(ctx)
	if err != nil {
		return fmt.Errorf("enumerating connections: %w", err)
	}
	if len(conns) == 0 {
		return nil
	}

	payload := NormalizePayload(body)

	logger := d.Logger.With().
		Str("broadcast_id", uuid.NewString()).
		Logger()
	logger.Debug().
		Int("recipients", len(conns)).
		Msg("dispatching broadcast")

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 50
	}

	var (
		g      errgroup.Group
		failed int64
		start  = time.Now()
	)
	g.SetLimit(concurrency)

	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			if err := d.Sender.Send(ctx, d.Endpoint, conn.ConnectionID, payload); err != nil {
				atomic.AddInt64(&failed, 1)
				logger.Error().Err(err).
					Str("connection_id", conn.ConnectionID).
					Msg("delivery failed")
			}
			return nil
		})
	}
	g.Wait()

	if n := atomic.LoadInt64(&failed); n > 0 {
		logger.Warn().
			Int64("failed", n).
			Int("recipients", len(conns)).
			Msg("broadcast completed with failures")
	}

	if d.Metrics != nil {
		d.Metrics.Gauge(ctx, relaycli.BroadcastRecipientsMetric, float64(len(conns)))
		d.Metrics.Timing(ctx, relaycli.BroadcastFanoutMetric, start)
		if n := atomic.LoadInt64(&failed); n > 0 {
			d.Metrics.Gauge(ctx, relaycli.DeliveryFailureMetric, float64(n))
		}
	}

	return nil
}
