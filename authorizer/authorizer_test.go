package authorizer

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func request(token string) events.APIGatewayCustomAuthorizerRequestTypeRequest {
	req := events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn:             "arn:aws:execute-api:us-west-2:123456789012:api-id/prod/$connect",
		QueryStringParameters: map[string]string{},
	}
	if token != "" {
		req.QueryStringParameters["token"] = token
	}
	return req
}

func TestHandleRequest(t *testing.T) {
	ctx := context.Background()
	handler := &Handler{Token: "s3cret", Logger: zerolog.Nop()}

	t.Run("matching token allows", func(t *testing.T) {
		resp, err := handler.HandleRequest(ctx, request("s3cret"))
		assert.NoError(t, err)
		assert.Equal(t, "ws-relay-client", resp.PrincipalID)
		assert.Equal(t, "Allow", resp.PolicyDocument.Statement[0].Effect)
		assert.Equal(t, "static-token", resp.Context["source"])
	})

	t.Run("wrong token denies", func(t *testing.T) {
		resp, err := handler.HandleRequest(ctx, request("wrong"))
		assert.NoError(t, err)
		assert.Equal(t, "Deny", resp.PolicyDocument.Statement[0].Effect)
	})

	t.Run("missing token denies", func(t *testing.T) {
		resp, err := handler.HandleRequest(ctx, request(""))
		assert.NoError(t, err)
		assert.Equal(t, "Deny", resp.PolicyDocument.Statement[0].Effect)
	})

	t.Run("unconfigured token denies everything", func(t *testing.T) {
		open := &Handler{Logger: zerolog.Nop()}
		resp, err := open.HandleRequest(ctx, request(""))
		assert.NoError(t, err)
		assert.Equal(t, "Deny", resp.PolicyDocument.Statement[0].Effect)
	})
}
