package kafkaconsumer

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	// DedupeSize bounds the per-meeting last seen timestamp cache.
	DedupeSize int
	// Res is the H3 resolution the cache scenario indexes at.
	Res int
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Brokers:             splitCSV(cfg.Invalidation.Brokers),
		Topic:               cfg.Invalidation.Topic,
		GroupID:             cfg.Invalidation.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		DedupeSize:          cfg.Invalidation.DedupeSize,
		Res:                 cfg.H3Res,
	}
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
