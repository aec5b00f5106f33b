// common/kafka/interface.go
//
// Package kafka holds the messaging contracts; it does not depend on Sarama.
package kafka

import "context"

// Producer publishes messages to Kafka.
type Producer interface {
	// Publish delivers one message according to the RequiredAcks policy,
	// retrying with back-off.
	Publish(ctx context.Context, topic string, key, value []byte) error
	// Ping checks that the cluster is reachable by refreshing metadata.
	Ping(ctx context.Context) error
	Close() error
}
