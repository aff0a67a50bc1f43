// Package routebind implements the deployment-time operation that binds the
// WebSocket $connect route to a request authorizer. It runs as a
// CloudFormation custom resource; the cfn response contract carries the
// structured status back to the stack.
package routebind

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/apigatewayv2"
	"github.com/aws/aws-sdk-go/service/apigatewayv2/apigatewayv2iface"
	"github.com/rs/zerolog"
)

const connectRouteKey = "$connect"

// Handler rebinds the $connect route's authorization mode.
type Handler struct {
	API    apigatewayv2iface.ApiGatewayV2API
	Logger zerolog.Logger
}

// Handle processes a custom resource event. Create and Update bind the
// route to the given authorizer; Delete reverts it to no authorization.
// Rebinding an already-bound route succeeds without a write.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	apiID, _ := event.ResourceProperties["ApiId"].(string)
	authorizerID, _ := event.ResourceProperties["AuthorizerId"].(string)

	physicalID := event.PhysicalResourceID
	if physicalID == "" {
		physicalID = fmt.Sprintf("route-binding-%v", apiID)
	}

	if apiID == "" {
		return physicalID, nil, fmt.Errorf("missing required property ApiId")
	}

	logger := h.Logger.With().
		Str("api_id", apiID).
		Str("request_type", string(event.RequestType)).
		Logger()

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
		if authorizerID == "" {
			return physicalID, nil, fmt.Errorf("missing required property AuthorizerId")
		}
		routeID, err := h.bind(ctx, logger, apiID, authorizerID)
		if err != nil {
			return physicalID, nil, err
		}
		return physicalID, map[string]interface{}{"RouteId": routeID}, nil

	case cfn.RequestDelete:
		routeID, err := h.unbind(ctx, logger, apiID)
		if err != nil {
			// The route (or the whole API) may already be gone during
			// stack teardown; report success so deletion can proceed.
			logger.Warn().Err(err).Msg("failed to revert connect route")
			return physicalID, nil, nil
		}
		return physicalID, map[string]interface{}{"RouteId": routeID}, nil

	default:
		return physicalID, nil, fmt.Errorf("unsupported request type: %v", event.RequestType)
	}
}

func (h *Handler) bind(ctx context.Context, logger zerolog.Logger, apiID, authorizerID string) (string, error) {
	route, err := h.findConnectRoute(ctx, apiID)
	if err != nil {
		return "", err
	}

	if aws.StringValue(route.AuthorizationType) == apigatewayv2.AuthorizationTypeCustom &&
		aws.StringValue(route.AuthorizerId) == authorizerID {
		logger.Info().Str("route_id", aws.StringValue(route.RouteId)).Msg("connect route already bound")
		return aws.StringValue(route.RouteId), nil
	}

	_, err = h.API.UpdateRouteWithContext(ctx, &apigatewayv2.UpdateRouteInput{
		ApiId:             aws.String(apiID),
		RouteId:           route.RouteId,
		AuthorizationType: aws.String(apigatewayv2.AuthorizationTypeCustom),
		AuthorizerId:      aws.String(authorizerID),
	})
	if err != nil {
		return "", fmt.Errorf("binding connect route %v: %w", aws.StringValue(route.RouteId), err)
	}

	logger.Info().
		Str("route_id", aws.StringValue(route.RouteId)).
		Str("authorizer_id", authorizerID).
		Msg("connect route bound")
	return aws.StringValue(route.RouteId), nil
}

func (h *Handler) unbind(ctx context.Context, logger zerolog.Logger, apiID string) (string, error) {
	route, err := h.findConnectRoute(ctx, apiID)
	if err != nil {
		return "", err
	}

	_, err = h.API.UpdateRouteWithContext(ctx, &apigatewayv2.UpdateRouteInput{
		ApiId:             aws.String(apiID),
		RouteId:           route.RouteId,
		AuthorizationType: aws.String(apigatewayv2.AuthorizationTypeNone),
	})
	if err != nil {
		return "", fmt.Errorf("reverting connect route %v: %w", aws.StringValue(route.RouteId), err)
	}

	logger.Info().Str("route_id", aws.StringValue(route.RouteId)).Msg("connect route reverted")
	return aws.StringValue(route.RouteId), nil
}

func (h *Handler) findConnectRoute(ctx context.Context, apiID string) (*apigatewayv2.Route, error) {
	var nextToken *string
	for {
		out, err := h.API.GetRoutesWithContext(ctx, &apigatewayv2.GetRoutesInput{
			ApiId:     aws.String(apiID),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("listing routes for api %v: %w", apiID, err)
		}

		for _, route := range out.Items {
			if aws.StringValue(route.RouteKey) == connectRouteKey {
				return route, nil
			}
		}

		if out.NextToken == nil {
			return nil, fmt.Errorf("no %v route found for api %v", connectRouteKey, apiID)
		}
		nextToken = out.NextToken
	}
}
