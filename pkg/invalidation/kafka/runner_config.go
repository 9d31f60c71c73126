package kafka

import (
	"time"

	"github.com/mohammed-shakir/geoclient/internal/core/config"
)

type InvalidationConfig struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
}

func FromConfig(c config.InvalidationCfg) InvalidationConfig {
	return InvalidationConfig{
		Enabled:          c.Enabled,
		Brokers:          config.SplitList(c.Brokers),
		Topic:            c.Topic,
		GroupID:          c.GroupID,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    false,
	}
}
