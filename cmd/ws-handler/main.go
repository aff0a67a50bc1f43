package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/urfave/cli/v2"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
	relayws "github.com/telequeue/ws-relay/relay-ws"
	"github.com/telequeue/ws-relay/relay-ws/connectiondao"
	"github.com/telequeue/ws-relay/relay-ws/push"
)

var service = relaycli.NewService("ws-handler")

func main() {
	app := relaycli.App(
		service,
		action,
		append(
			relaycli.CommonFlags,
			relayws.RelayFlags...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	logger := relaycli.Logger(service)

	registry := &relayws.Registry{
		Connections: connectionStore(dynamodb.New(sess)),
		Logger:      logger,
	}
	handler := &relayws.Handler{
		Registry: registry,
		Sender:   &push.Sender{Logger: logger, Purger: registry},
		Logger:   logger,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}

func connectionStore(api dynamodbiface.DynamoDBAPI) *connectiondao.DAO {
	if relayws.Opts.TableName != "" {
		return connectiondao.New(api, relayws.Opts.TableName)
	}
	return connectiondao.Build(api, relaycli.CommonOpts.Env)
}
