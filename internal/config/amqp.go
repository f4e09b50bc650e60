package config

import "os"

// AMQPURL returns the broker URL used for durable import events.
// RABBITMQ_URL wins over AMQP_URL; an empty result disables the publisher
// and the recent-usage consumer.
func AMQPURL() string {
    if url := os.Getenv("RABBITMQ_URL"); url != "" {
        return url
    }
    return os.Getenv("AMQP_URL")
}
