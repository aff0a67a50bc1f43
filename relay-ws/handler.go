// Package relayws implements the WebSocket relay core: the connection
// registry lifecycle, the per-route session handler, and the broadcast
// fan-out dispatcher.
package relayws

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Handler handles API Gateway WebSocket events for the relay. Handlers are
// stateless between events; the registry is the only durable state.
type Handler struct {
	Registry *Registry
	Sender   Sender
	Logger   zerolog.Logger
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate
// handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	case "ping":
		return h.handlePing(ctx, logger, req)
	case "$default":
		return h.handleDefault(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown route")
		return events.APIGatewayProxyResponse{
			StatusCode: 400,
			Body:       fmt.Sprintf("unhandled route: %v", req.RequestContext.RouteKey),
		}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	if err := h.Registry.Register(ctx, req.RequestContext.ConnectionID); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	if err := h.Registry.Unregister(ctx, req.RequestContext.ConnectionID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection")
	}

	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handlePing(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	endpoint := replyEndpoint(req)
	if err := h.Sender.Send(ctx, endpoint, req.RequestContext.ConnectionID, PongMessage()); err != nil {
		logger.Error().Err(err).Msg("failed to send pong")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDefault(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	frame, err := ParseFrame(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid frame")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	if frame.Action == ActionPing {
		return h.handlePing(ctx, logger, req)
	}

	// Extension point for future actions; acknowledge receipt for now.
	logger.Debug().Str("action", frame.Action).Msg("unhandled action")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

// replyEndpoint computes the push endpoint for replying on the connection
// the event arrived on.
func replyEndpoint(req events.APIGatewayWebsocketProxyRequest) string {
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}
