package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/carepath-academy/carepath/config"
)

// DriverFromConfig builds the driver named by QUEUE_DRIVER. rdb may be nil
// unless the redis driver is selected.
func DriverFromConfig(rdb *redis.Client) (Driver, error) {
	switch config.QueueDriver() {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("queue: QUEUE_DRIVER=redis but redis is not connected")
		}
		return NewRedisDriver(rdb, "carepath:"), nil
	case "kafka":
		brokers := config.KafkaBrokers()
		if len(brokers) == 0 {
			return nil, fmt.Errorf("queue: QUEUE_DRIVER=kafka needs KAFKA_BROKERS")
		}
		return NewKafkaDriver(brokers, config.KafkaTopic(), config.Get("KAFKA_GROUP_ID", "carepath-workers")), nil
	case "memory", "":
		return NewMemoryDriver(0), nil
	default:
		return nil, fmt.Errorf("queue: unknown driver %q", config.QueueDriver())
	}
}
