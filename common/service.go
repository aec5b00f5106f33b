// common/service.go
package common

import (
	"github.com/YaganovValera/universe-client/common/backoff"
	producer "github.com/YaganovValera/universe-client/common/kafka/producer"
)

// ServiceNameKey is the metric label shared by all subsystems.
const ServiceNameKey = "service"

// InitServiceName sets the service label for back-off and the Kafka producer.
// Call it from main before any retry or publish happens.
func InitServiceName(name string) {
	backoff.SetServiceLabel(name)
	producer.SetServiceLabel(name)
}
