package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheCounters(t *testing.T) {
	SetScenario("cache")
	t.Cleanup(func() { SetScenario("") })

	hit := cacheResults.WithLabelValues("hit", "cache")
	miss := cacheResults.WithLabelValues("miss", "cache")
	h0, m0 := testutil.ToFloat64(hit), testutil.ToFloat64(miss)

	IncCacheHit("")
	IncCacheMiss("")
	IncCacheMiss("cache")

	if d := testutil.ToFloat64(hit) - h0; d != 1 {
		t.Fatalf("hit delta=%v want 1", d)
	}
	if d := testutil.ToFloat64(miss) - m0; d != 2 {
		t.Fatalf("miss delta=%v want 2", d)
	}
}

func TestObserveCacheOp(t *testing.T) {
	ok := cacheOps.WithLabelValues("mget", "ok")
	bad := cacheOps.WithLabelValues("mget", "error")
	o0, b0 := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	ObserveCacheOp("mget", nil)
	ObserveCacheOp("mget", errors.New("boom"))

	if testutil.ToFloat64(ok)-o0 != 1 || testutil.ToFloat64(bad)-b0 != 1 {
		t.Fatalf("cache op counters did not move as expected")
	}
}

func TestObserveInvalidation(t *testing.T) {
	ev := invalidationEvents.WithLabelValues("update", "ok")
	e0, k0 := testutil.ToFloat64(ev), testutil.ToFloat64(invalidatedKeys)

	ObserveInvalidation("update", "ok", 3)
	ObserveInvalidation("update", "ok", 0)

	if d := testutil.ToFloat64(ev) - e0; d != 2 {
		t.Fatalf("events delta=%v want 2", d)
	}
	if d := testutil.ToFloat64(invalidatedKeys) - k0; d != 3 {
		t.Fatalf("keys delta=%v want 3", d)
	}
}

func TestGetScenarioDefault(t *testing.T) {
	SetScenario("")
	if got := getScenario(); got != "direct" {
		t.Fatalf("scenario=%q want direct", got)
	}
}
