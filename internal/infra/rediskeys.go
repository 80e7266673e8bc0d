package infra

const (
	// RedisNamespace isolates the service's keys in a shared Redis.
	RedisNamespace = "evco"
)

// Streams
const (
	RedisKeyAuditStream = RedisNamespace + ":audit:events"
)

// Pub/Sub channels
const (
	// RedisChanAuditNotify carries the id of each event appended to the stream.
	RedisChanAuditNotify = RedisNamespace + ":audit:notify"
)
