package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "proxy"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithEndpoint(ctx, "GetSearchResults")
	log.With("root_server", "https://bmlt.example.org/main_server").
		WarnContext(ctx, "upstream slow", "status", 200, "err", errors.New("boom"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":       "warn",
		"msg":         "upstream slow",
		"request_id":  "req-1",
		"endpoint":    "GetSearchResults",
		"component":   "proxy",
		"root_server": "https://bmlt.example.org/main_server",
		"err":         "boom",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("field %q got %v want %v (line %s)", k, rec[k], v, buf.String())
		}
	}
	if rec["status"] != float64(200) {
		t.Fatalf("status got %v", rec["status"])
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Debug("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	log.Error("kept")
	if buf.Len() == 0 {
		t.Fatalf("expected error record")
	}
}

func TestSlogBridge_Groups(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	NewSlog(&zl).WithGroup("geo").Info("lookup", "provider", "nominatim")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["geo.provider"] != "nominatim" {
		t.Fatalf("grouped key missing: %s", buf.String())
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"DEBUG": "debug", " warn ": "warn", "error": "error", "": "info", "nope": "info"} {
		if got := ParseLevel(in).String(); got != want {
			t.Fatalf("ParseLevel(%q)=%s want %s", in, got, want)
		}
	}
}
