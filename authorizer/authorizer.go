// Package authorizer implements the REQUEST authorizer guarding the
// WebSocket $connect route.
package authorizer

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Handler authorizes connection attempts against a static shared token
// supplied as the "token" query parameter.
type Handler struct {
	Token  string
	Logger zerolog.Logger
}

// HandleRequest returns an Allow policy with a principal and session context
// when the token matches, and an explicit Deny otherwise.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	token := req.QueryStringParameters["token"]

	if h.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.Token)) != 1 {
		h.Logger.Warn().Msg("connection denied")
		return policy("unauthorized", "Deny", req.MethodArn), nil
	}

	resp := policy("ws-relay-client", "Allow", req.MethodArn)
	resp.Context = map[string]interface{}{
		"authorizedAt": time.Now().UTC().Format(time.RFC3339),
		"source":       "static-token",
	}
	h.Logger.Info().Msg("connection authorized")
	return resp, nil
}

func policy(principalID, effect, resource string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{"execute-api:Invoke"},
					Effect:   effect,
					Resource: []string{resource},
				},
			},
		},
	}
}
