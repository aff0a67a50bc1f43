// Package push delivers one-way messages to live WebSocket connections via
// the API Gateway Management API.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
)

// Purger removes a registry record for a connection that the transport
// reports as gone. Purge failures are handled by the implementation, not
// surfaced here.
type Purger interface {
	PurgeStale(ctx context.Context, connectionID string)
}

// Sender pushes messages to connections. Management API clients are cached
// per endpoint and reused across invocations.
type Sender struct {
	Logger zerolog.Logger
	Purger Purger

	// NewClient overrides management client construction, for tests.
	NewClient func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// Send serializes payload and posts it to the connection addressed by
// endpoint + connectionID. A gone connection is purged from the registry and
// absorbed; any other delivery failure propagates unretried.
func (s *Sender) Send(ctx context.Context, endpoint, connectionID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload for connection %v: %w", connectionID, err)
	}

	client := s.managementClient(NormalizeEndpoint(endpoint))
	_, sendErr := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if sendErr != nil {
		if IsGone(sendErr) {
			s.Logger.Info().
				Str("connection_id", connectionID).
				Msg("connection gone, cleaning up")
			if s.Purger != nil {
				s.Purger.PurgeStale(ctx, connectionID)
			}
			return nil
		}
		return fmt.Errorf("posting to connection %v: %w", connectionID, sendErr)
	}

	return nil
}

func (s *Sender) managementClient(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	s.mu.RLock()
	if client, ok := s.clients[endpoint]; ok {
		s.mu.RUnlock()
		return client
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := s.clients[endpoint]; ok {
		return client
	}

	if s.clients == nil {
		s.clients = make(map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI)
	}

	client := s.newClient(endpoint)
	s.clients[endpoint] = client
	return client
}

func (s *Sender) newClient(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	if s.NewClient != nil {
		return s.NewClient(endpoint)
	}
	sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
	return apigatewaymanagementapi.New(sess)
}

// NormalizeEndpoint rewrites a wss:// push endpoint to the https:// form the
// management API expects.
func NormalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "wss://") {
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	}
	return endpoint
}

// IsGone checks if the error is a GoneException (HTTP 410), indicating the
// WebSocket connection no longer exists.
func IsGone(err error) bool {
	return strings.Contains(err.Error(), "GoneException") ||
		strings.Contains(err.Error(), "410")
}
