package redisstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/bmlt-go/internal/cache/keys"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// hot and cold responses share a store but expire on their own TTLs
func TestResponseTTL_ColdEntryExpiresFirst(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	endpoint := string(bmlt.EndpointSearchResults)
	hotKey := keys.Response(endpoint, "872a1072bffffff", "lat_val=40.7&long_val=-74")
	coldKey := keys.Response(endpoint, "872a10729ffffff", "lat_val=40.6&long_val=-74")

	payload, err := json.Marshal([]bmlt.Meeting{{ID: 42, Name: "Downtown Noon", Weekday: bmlt.Monday, StartTime: "12:00:00"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := rc.Set(ctx, hotKey, payload, 5*time.Minute); err != nil {
		t.Fatalf("Set hot: %v", err)
	}
	if err := rc.Set(ctx, coldKey, payload, 30*time.Second); err != nil {
		t.Fatalf("Set cold: %v", err)
	}
	if ttl := mr.TTL(coldKey); ttl != 30*time.Second {
		t.Fatalf("cold ttl=%v", ttl)
	}

	mr.FastForward(time.Minute)

	got, err := rc.MGet(ctx, []string{hotKey, coldKey})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if _, ok := got[coldKey]; ok {
		t.Fatalf("cold entry should have expired: %v", got)
	}
	var meetings []bmlt.Meeting
	if err := json.Unmarshal(got[hotKey], &meetings); err != nil {
		t.Fatalf("decode hot entry: %v", err)
	}
	if len(meetings) != 1 || meetings[0].ID != 42 || meetings[0].Name != "Downtown Noon" {
		t.Fatalf("hot entry = %+v", meetings)
	}
}

func TestSet_ZeroTTLNeverExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx := context.Background()
	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	key := keys.Response(string(bmlt.EndpointFormats), "", "")
	if err := rc.Set(ctx, key, []byte(`[]`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL(key); ttl != 0 {
		t.Fatalf("zero ttl stored with expiry %v", ttl)
	}
	mr.FastForward(24 * time.Hour)
	got, err := rc.MGet(ctx, []string{key})
	if err != nil || string(got[key]) != `[]` {
		t.Fatalf("got=%v err=%v", got, err)
	}
}
