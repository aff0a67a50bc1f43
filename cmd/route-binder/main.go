package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewayv2"
	"github.com/urfave/cli/v2"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
	"github.com/telequeue/ws-relay/routebind"
)

var opts struct {
	ApiID        string
	AuthorizerID string
}

var service = relaycli.NewService("route-binder")

func main() {
	app := relaycli.App(
		service,
		action,
		append(
			relaycli.CommonFlags,
			relaycli.StringFlag("api-id", "the WebSocket API to rebind (console mode)", &opts.ApiID, ""),
			relaycli.StringFlag("authorizer-id", "the authorizer to bind the $connect route to (console mode)", &opts.AuthorizerID, ""),
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	handler := &routebind.Handler{
		API:    apigatewayv2.New(sess),
		Logger: relaycli.Logger(service),
	}

	if relaycli.CommonOpts.Console {
		physicalID, data, err := handler.Handle(context.Background(), cfn.Event{
			RequestType: cfn.RequestCreate,
			ResourceProperties: map[string]interface{}{
				"ApiId":        opts.ApiID,
				"AuthorizerId": opts.AuthorizerID,
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("%v: %v\n", physicalID, data)
		return nil
	}

	lambda.Start(cfn.LambdaWrap(handler.Handle))
	return nil
}
