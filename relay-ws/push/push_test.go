package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type fakeManagementAPI struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	err   error
	calls []apigatewaymanagementapi.PostToConnectionInput
}

func (f *fakeManagementAPI) PostToConnectionWithContext(ctx aws.Context, input *apigatewaymanagementapi.PostToConnectionInput, opts ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.calls = append(f.calls, *input)
	if f.err != nil {
		return nil, f.err
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

type fakePurger struct {
	purged []string
}

func (f *fakePurger) PurgeStale(_ context.Context, connectionID string) {
	f.purged = append(f.purged, connectionID)
}

func newTestSender(api *fakeManagementAPI, purger Purger) (*Sender, *int) {
	var built int
	return &Sender{
		Logger: zerolog.Nop(),
		Purger: purger,
		NewClient: func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
			built++
			return api
		},
	}, &built
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers serialized payload", func(t *testing.T) {
		api := &fakeManagementAPI{}
		sender, _ := newTestSender(api, nil)

		err := sender.Send(ctx, "https://example.com/prod", "abc123", map[string]string{"action": "pong"})
		assert.NoError(t, err)
		assert.Len(t, api.calls, 1)
		assert.Equal(t, "abc123", aws.StringValue(api.calls[0].ConnectionId))

		var sent map[string]string
		assert.NoError(t, json.Unmarshal(api.calls[0].Data, &sent))
		assert.Equal(t, "pong", sent["action"])
	})

	t.Run("gone connection is purged and absorbed", func(t *testing.T) {
		api := &fakeManagementAPI{err: errors.New("GoneException: Connection abc123 is gone")}
		purger := &fakePurger{}
		sender, _ := newTestSender(api, purger)

		err := sender.Send(ctx, "https://example.com/prod", "abc123", "hi")
		assert.NoError(t, err)
		assert.Equal(t, []string{"abc123"}, purger.purged)
	})

	t.Run("other failures propagate without purging", func(t *testing.T) {
		api := &fakeManagementAPI{err: errors.New("ServiceUnavailableException: try again")}
		purger := &fakePurger{}
		sender, _ := newTestSender(api, purger)

		err := sender.Send(ctx, "https://example.com/prod", "abc123", "hi")
		assert.Error(t, err)
		assert.Len(t, purger.purged, 0)
	})

	t.Run("clients are cached per endpoint", func(t *testing.T) {
		api := &fakeManagementAPI{}
		sender, built := newTestSender(api, nil)

		assert.NoError(t, sender.Send(ctx, "https://example.com/prod", "a", "x"))
		assert.NoError(t, sender.Send(ctx, "https://example.com/prod", "b", "x"))
		assert.Equal(t, 1, *built)

		assert.NoError(t, sender.Send(ctx, "https://other.example.com/prod", "c", "x"))
		assert.Equal(t, 2, *built)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "https://example.com/prod", NormalizeEndpoint("wss://example.com/prod"))
	assert.Equal(t, "https://example.com/prod", NormalizeEndpoint("https://example.com/prod"))
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(errors.New("GoneException: gone")))
	assert.True(t, IsGone(errors.New("status code: 410, request id: x")))
	assert.False(t, IsGone(errors.New("ServiceUnavailableException")))
}
