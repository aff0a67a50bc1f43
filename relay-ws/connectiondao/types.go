package connectiondao

// Connection represents a live WebSocket connection stored in DynamoDB.
// The table's TTL attribute is expires_at; DynamoDB sweeps expired records
// independently of the relay.
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	ConnectedAt  int64  `dynamodbav:"connected_at"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
}
