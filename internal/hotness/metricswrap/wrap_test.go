package metricswrap

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness/expdecay"
)

func TestInc_LogsOnceWhenCrossingThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	w := New(expdecay.New(time.Hour), 3, &log)

	for range 5 {
		w.Inc("872a1072bffffff")
	}
	if n := strings.Count(buf.String(), `"event":"hotness_threshold"`); n != 1 {
		t.Fatalf("threshold logged %d times, want 1; out=%s", n, buf.String())
	}
	if strings.Contains(buf.String(), "872a1072bffffff") {
		t.Fatalf("raw key must not be logged")
	}
}

func TestGaugeTracksSize(t *testing.T) {
	w := New(expdecay.New(time.Hour), 0, nil)
	w.Inc("a")
	w.Inc("b")
	if got := testutil.ToFloat64(observability.HotKeysGauge()); got != 2 {
		t.Fatalf("gauge=%v want 2", got)
	}
	w.Reset("a")
	if got := testutil.ToFloat64(observability.HotKeysGauge()); got != 1 {
		t.Fatalf("gauge=%v want 1", got)
	}
	if w.Score("b") <= 0 {
		t.Fatalf("Score should delegate")
	}
}
