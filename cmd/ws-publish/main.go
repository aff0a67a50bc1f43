package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
	relayws "github.com/telequeue/ws-relay/relay-ws"
	"github.com/telequeue/ws-relay/relay-ws/publish"
)

var opts struct {
	Wrap bool
}

var service = relaycli.NewService("ws-publish")

func main() {
	app := relaycli.App(
		service,
		action,
		append(
			relaycli.CommonFlags,
			relayws.QueueURLFlag,
			&cli.BoolFlag{
				Name:        "wrap",
				Usage:       `wrap the message in a {"data": ...} envelope`,
				Destination: &opts.Wrap,
			},
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(c *cli.Context) error {
	if relayws.Opts.QueueURL == "" {
		return fmt.Errorf("queue-url is required")
	}
	body := c.Args().First()
	if body == "" {
		return fmt.Errorf("usage: ws-publish [--wrap] <message>")
	}

	publisher := publish.Build(relayws.Opts.QueueURL)
	if opts.Wrap {
		return publisher.Send(context.Background(), json.RawMessage(body))
	}
	return publisher.SendRaw(context.Background(), body)
}
