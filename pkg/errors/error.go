package errors

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// ErrInsufficientAssets represents an error when an account lacks the
	// available balance required to admit an order.
	ErrInsufficientAssets ErrorCode = "insufficient_assets"
	// ErrUnknownOrder represents an error when a cancel request references an
	// order that is not resting in the book.
	ErrUnknownOrder ErrorCode = "unknown_order"

	// SnapshotMarshalError represents an error when encoding a venue snapshot.
	SnapshotMarshalError ErrorCode = "snapshot_marshal_error"
	// SnapshotStoreError represents an error when writing a snapshot to Redis.
	SnapshotStoreError ErrorCode = "snapshot_store_error"
	// SnapshotLoadError represents an error when reading a snapshot from Redis.
	SnapshotLoadError ErrorCode = "snapshot_load_error"

	// TradePublishError represents an error when publishing a trade event to Kafka.
	TradePublishError ErrorCode = "trade_publish_error"
	// OrderDecodeError represents an error when decoding an inbound order request.
	OrderDecodeError ErrorCode = "order_decode_error"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"
	// RedisPublishError represents an error when publishing messages to channels in Redis.
	RedisPublishError ErrorCode = "redis_publish_error"
)

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the user-defined error message.
	Message string

	// Code (required) is the user-defined error code string.
	Code string

	// Field (optional) is the related field the error occurred on, if any.
	Field string
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
	}
}

// Error is used to implement the Golang `error` interface.
func (e *ErrorDetails) Error() string {
	return e.Message
}

// ErrorCodeEquals checks whether a given `error` has a specific code.
func ErrorCodeEquals(err error, code string) bool {
	errDetails, ok := err.(*ErrorDetails)
	if !ok {
		return false
	}

	return errDetails.Code == code
}
