// Package publish enqueues broadcast messages onto the relay's SQS queue.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// Envelope is the structured form of a broadcast message body. The relay
// unwraps the data field before fanning out.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// Publisher enqueues broadcast messages.
type Publisher struct {
	client   sqsiface.SQSAPI
	queueURL string
}

// New creates a new Publisher.
func New(client sqsiface.SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
	}
}

// Build creates a new Publisher with a default SQS client.
func Build(queueURL string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	return New(sqs.New(sess), queueURL)
}

// Send enqueues payload wrapped in the standard broadcast envelope.
func (p *Publisher) Send(ctx context.Context, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	body, err := json.Marshal(Envelope{Data: payloadBytes})
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	return p.SendRaw(ctx, string(body))
}

// SendRaw enqueues body verbatim. The relay relays unstructured bodies
// wrapped as {"text": <raw>}.
func (p *Publisher) SendRaw(ctx context.Context, body string) error {
	_, err := p.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("publishing to queue %v: %w", p.queueURL, err)
	}
	return nil
}
