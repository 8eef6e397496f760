package kafkaconsumer

import (
	"time"

	"github.com/spacetime/pit-api/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

func FromConfig(c config.InvalidationCfg) Config {
	out := Config{
		Brokers:             c.Brokers,
		Topic:               c.Topic,
		GroupID:             c.GroupID,
		SessionTimeout:      c.SessionTimeout,
		Heartbeat:           c.Heartbeat,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: c.InitialOldest,
		DedupeSize:          4096,
	}
	if out.SessionTimeout <= 0 {
		out.SessionTimeout = 10 * time.Second
	}
	if out.Heartbeat <= 0 || out.Heartbeat >= out.SessionTimeout {
		out.Heartbeat = out.SessionTimeout / 3
	}
	return out
}
