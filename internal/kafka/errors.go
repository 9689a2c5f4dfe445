package kafka

import "errors"

var (
	// ErrProducerClosed is returned by Send after Close.
	ErrProducerClosed = errors.New("alert producer is closed")

	// ErrInvalidBrokers means kafka.brokers is empty.
	ErrInvalidBrokers = errors.New("no kafka brokers configured")

	// ErrInvalidTopic means no alert topic was configured.
	ErrInvalidTopic = errors.New("alert topic cannot be empty")
)
