package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
	relayws "github.com/telequeue/ws-relay/relay-ws"
	"github.com/telequeue/ws-relay/relay-ws/connectiondao"
	"github.com/telequeue/ws-relay/relay-ws/push"
)

var service = relaycli.NewService("ws-broadcaster")

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
	metrics := relaycli.NewMetrics(service, cloudwatch.New(sess))
	dispatcher := &relayws.Dispatcher{
		Registry:    registry,
		Sender:      &push.Sender{Logger: logger, Purger: registry},
		Logger:      logger,
		Endpoint:    push.NormalizeEndpoint(relayws.Opts.Endpoint),
		Concurrency: relayws.Opts.Concurrency,
		Metrics:     &metrics,
	}

	if !relaycli.CommonOpts.Console {
		lambda.Start(dispatcher.HandleSQSEvent)
		return nil
	}

	return pollQueue(dispatcher, sqs.New(sess), logger)
}

// pollQueue drives the dispatcher from the broadcast queue directly, for
// running outside Lambda. Messages whose broadcast aborts are left in
// flight for the queue's own redelivery policy.
func pollQueue(dispatcher *relayws.Dispatcher, client sqsiface.SQSAPI, logger zerolog.Logger) error {
	queueURL := relayws.Opts.QueueURL
	if queueURL == "" {
		return fmt.Errorf("queue-url is required in console mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	logger.Info().Str("queue_url", queueURL).Msg("listening")
	for {
		out, err := client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(20),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.NextBackOff()
			logger.Warn().Err(err).Dur("wait", wait).Msg("receive failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		for _, msg := range out.Messages {
			if err := dispatcher.Broadcast(ctx, aws.StringValue(msg.Body)); err != nil {
				logger.Error().Err(err).
					Str("message_id", aws.StringValue(msg.MessageId)).
					Msg("broadcast failed")
				continue
			}
			if _, err := client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				logger.Warn().Err(err).Msg("failed to delete message")
			}
		}
	}
}

func connectionStore(api dynamodbiface.DynamoDBAPI) *connectiondao.DAO {
	if relayws.Opts.TableName != "" {
		return connectiondao.New(api, relayws.Opts.TableName)
	}
	return connectiondao.Build(api, relaycli.CommonOpts.Env)
}
