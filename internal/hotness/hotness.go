// Package hotness scores how often a cache key or H3 cell is requested.
package hotness

import "time"

type Interface interface {
	Inc(key string)
	Score(key string) float64
	Reset(keys ...string)
}

// TTL picks hot when key scores at or above threshold. A threshold <= 0
// disables the hot tier.
func TTL(h Interface, key string, threshold float64, normal, hot time.Duration) time.Duration {
	if h == nil || threshold <= 0 || hot <= 0 {
		return normal
	}
	if h.Score(key) >= threshold {
		return hot
	}
	return normal
}
