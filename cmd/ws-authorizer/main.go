package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/telequeue/ws-relay/authorizer"
	relaycli "github.com/telequeue/ws-relay/relay-cli"
	"github.com/urfave/cli/v2"
)

var opts struct {
	Token string
}

var service = relaycli.NewService("ws-authorizer")

func main() {
	app := relaycli.App(
		service,
		action,
		append(
			relaycli.CommonFlags,
			relaycli.StringFlag("auth-token", "static token required on $connect", &opts.Token, ""),
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	handler := &authorizer.Handler{
		Token:  opts.Token,
		Logger: relaycli.Logger(service),
	}
	lambda.Start(handler.HandleRequest)
	return nil
}
