package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/superoverlay/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	// DedupeSize bounds the number of sources whose last sequence is kept.
	DedupeSize int
}

func FromConfig(c config.KafkaCfg) Config {
	return Config{
		Brokers:          config.Brokers(c.Brokers),
		Topic:            c.Topic,
		GroupID:          c.GroupID,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		DedupeSize:       4096,
	}
}
