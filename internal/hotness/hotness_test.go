package hotness

import (
	"testing"
	"time"
)

type fixed map[string]float64

func (f fixed) Inc(string)             {}
func (f fixed) Score(k string) float64 { return f[k] }
func (f fixed) Reset(...string)        {}

func TestTTL(t *testing.T) {
	h := fixed{"hot": 7, "cold": 1}
	normal, hot := time.Minute, time.Hour

	cases := []struct {
		name      string
		h         Interface
		key       string
		threshold float64
		want      time.Duration
	}{
		{"hot key", h, "hot", 5, hot},
		{"cold key", h, "cold", 5, normal},
		{"exactly threshold", h, "hot", 7, hot},
		{"disabled threshold", h, "hot", 0, normal},
		{"nil tracker", nil, "hot", 5, normal},
	}
	for _, tc := range cases {
		if got := TTL(tc.h, tc.key, tc.threshold, normal, hot); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
	if got := TTL(h, "hot", 5, normal, 0); got != normal {
		t.Fatalf("zero hot ttl should fall back, got %v", got)
	}
}
