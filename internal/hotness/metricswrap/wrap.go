// Package metricswrap reports hotness tracker size and threshold crossings.
package metricswrap

import (
	"fmt"

	xx "github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness"
)

type Sizer interface{ Size() int }

type WithMetrics struct {
	inner     hotness.Interface
	threshold float64
	log       *zerolog.Logger
}

var _ hotness.Interface = (*WithMetrics)(nil)

// New logs once each time a key's score rises to threshold. A nil logger or
// a threshold <= 0 turns logging off.
func New(inner hotness.Interface, threshold float64, log *zerolog.Logger) *WithMetrics {
	return &WithMetrics{inner: inner, threshold: threshold, log: log}
}

func (w *WithMetrics) Inc(key string) {
	before := w.inner.Score(key)
	w.inner.Inc(key)
	if w.log != nil && w.threshold > 0 && before < w.threshold {
		if score := w.inner.Score(key); score >= w.threshold {
			w.log.Info().
				Str("event", "hotness_threshold").
				Float64("score", score).
				Str("key_hash", fmt.Sprintf("%016x", xx.Sum64String(key))).
				Msg("key crossed hot threshold")
		}
	}
	w.report()
}

func (w *WithMetrics) Score(key string) float64 {
	return w.inner.Score(key)
}

func (w *WithMetrics) Reset(keys ...string) {
	w.inner.Reset(keys...)
	w.report()
}

func (w *WithMetrics) report() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotKeys(s.Size())
	}
}
