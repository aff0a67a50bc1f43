package relayws

import (
	"github.com/urfave/cli/v2"

	relaycli "github.com/telequeue/ws-relay/relay-cli"
)

var Opts struct {
	TableName   string
	Endpoint    string
	QueueURL    string
	Concurrency int
}

var TableNameFlag = relaycli.StringFlag("table-name", "The DynamoDB table holding connection records", &Opts.TableName, "")
var EndpointFlag = relaycli.StringFlag("websocket-endpoint", "Base URL of the per-connection push channel (wss:// accepted)", &Opts.Endpoint, "")
var QueueURLFlag = relaycli.StringFlag("queue-url", "URL of the broadcast queue", &Opts.QueueURL, "")
var ConcurrencyFlag = relaycli.IntFlag("concurrency", "Max concurrent deliveries per broadcast", &Opts.Concurrency, 50)

var RelayFlags = []cli.Flag{
	TableNameFlag,
	EndpointFlag,
	QueueURLFlag,
	ConcurrencyFlag,
}
