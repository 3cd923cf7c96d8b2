package bmlt

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func decodeRow(t *testing.T, s string) map[string]any {
	t.Helper()
	v, err := decodeJSON([]byte(s))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("not an object: %T", v)
	}
	return m
}

func TestMeetingFromMap(t *testing.T) {
	row := decodeRow(t, `{
		"id_bigint": "42",
		"worldid_mixed": "G00012345",
		"service_body_bigint": "7",
		"meeting_name": "Sunrise Group",
		"weekday_tinyint": "2",
		"start_time": "07:00:00",
		"duration_time": "01:00:00",
		"location_municipality": "Springfield",
		"location_postal_code_1": "12345",
		"latitude": "40.758",
		"longitude": "-73.9855",
		"venue_type": "3",
		"formats": "BM,O",
		"published": "1",
		"distance_in_miles": "1.25"
	}`)
	m, err := MeetingFromMap(row)
	if err != nil {
		t.Fatalf("MeetingFromMap: %v", err)
	}
	if m.ID != 42 || m.ServiceBodyID != 7 || m.Weekday != Monday {
		t.Fatalf("ids/weekday wrong: %+v", m)
	}
	if m.Name != "Sunrise Group" || m.StartTime != "07:00:00" || m.LocationPostalCode != "12345" {
		t.Fatalf("strings wrong: %+v", m)
	}
	if !reflect.DeepEqual(m.Formats, []string{"BM", "O"}) {
		t.Fatalf("formats got %v want [BM O]", m.Formats)
	}
	if !m.IsHybrid() || m.IsVirtual() || !m.Published {
		t.Fatalf("venue/published wrong: %+v", m)
	}
	if c := m.Coordinates(); c.Latitude != 40.758 || c.Longitude != -73.9855 {
		t.Fatalf("coords got %+v", c)
	}
	if m.DistanceInMiles == nil || *m.DistanceInMiles != 1.25 || m.DistanceInKm != nil {
		t.Fatalf("distances got %v / %v", m.DistanceInMiles, m.DistanceInKm)
	}
}

func TestMeetingFromMap_NativeTypes(t *testing.T) {
	m, err := MeetingFromMap(map[string]any{
		"id_bigint":       int64(1),
		"meeting_name":    "Native",
		"weekday_tinyint": 7,
		"start_time":      "19:30:00",
		"formats":         []any{"ST", " ", "W"},
		"published":       false,
	})
	if err != nil {
		t.Fatalf("MeetingFromMap: %v", err)
	}
	if m.Weekday != Saturday || m.Published {
		t.Fatalf("got %+v", m)
	}
	if !reflect.DeepEqual(m.Formats, []string{"ST", "W"}) {
		t.Fatalf("formats got %v", m.Formats)
	}
}

func TestMeetingFromMap_MissingRequired(t *testing.T) {
	for _, key := range []string{"id_bigint", "meeting_name", "weekday_tinyint", "start_time"} {
		row := map[string]any{
			"id_bigint":       "1",
			"meeting_name":    "x",
			"weekday_tinyint": "1",
			"start_time":      "10:00:00",
		}
		delete(row, key)
		_, err := MeetingFromMap(row)
		if !errors.Is(err, ErrResponse) {
			t.Fatalf("missing %s: got %v want response error", key, err)
		}
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("missing %s: message %q should name the field", key, err.Error())
		}
	}
}

func TestMeetingFromMap_BadNumber(t *testing.T) {
	_, err := MeetingFromMap(map[string]any{
		"id_bigint":       "abc",
		"meeting_name":    "x",
		"weekday_tinyint": "1",
		"start_time":      "10:00:00",
	})
	if !errors.Is(err, ErrResponse) {
		t.Fatalf("got %v want response error", err)
	}
}

func TestFormatFromMap_Defaults(t *testing.T) {
	f, err := FormatFromMap(map[string]any{
		"id":          json.Number("17"),
		"key_string":  "BT",
		"name_string": "Basic Text",
	})
	if err != nil {
		t.Fatalf("FormatFromMap: %v", err)
	}
	if f.ID != 17 || f.Lang != "en" || f.FormatTypeEnum != "FC3" {
		t.Fatalf("got %+v", f)
	}
	if _, err := FormatFromMap(map[string]any{"id": "1", "key_string": "BT"}); !errors.Is(err, ErrResponse) {
		t.Fatalf("missing name_string: got %v", err)
	}
}

func TestServiceBodyFromMap(t *testing.T) {
	sb, err := ServiceBodyFromMap(map[string]any{
		"id":        "3",
		"name":      "Metro Area",
		"type":      "AS",
		"parent_id": "0",
		"url":       "https://metro.example.org",
	})
	if err != nil {
		t.Fatalf("ServiceBodyFromMap: %v", err)
	}
	if sb.ParentID != nil {
		t.Fatalf("parent 0 should be nil, got %v", *sb.ParentID)
	}
	if sb.URI != "https://metro.example.org" {
		t.Fatalf("uri got %q", sb.URI)
	}

	sb, err = ServiceBodyFromMap(map[string]any{"id": "4", "name": "Child", "type": "AS", "parent_id": "3"})
	if err != nil {
		t.Fatalf("ServiceBodyFromMap: %v", err)
	}
	if sb.ParentID == nil || *sb.ParentID != 3 {
		t.Fatalf("parent got %v", sb.ParentID)
	}
}

func TestServerInfoFromMap_Langs(t *testing.T) {
	for _, langs := range []any{"en, es ,fr", []any{"en", "es", "fr"}} {
		si, err := ServerInfoFromMap(map[string]any{"version": "3.0.0", "langs": langs})
		if err != nil {
			t.Fatalf("ServerInfoFromMap: %v", err)
		}
		if !reflect.DeepEqual(si.Langs, []string{"en", "es", "fr"}) {
			t.Fatalf("langs %v got %v", langs, si.Langs)
		}
	}
	if _, err := ServerInfoFromMap(map[string]any{"langs": "en"}); !errors.Is(err, ErrResponse) {
		t.Fatalf("missing version: got %v", err)
	}
}

func TestCoverageAreaFromMap(t *testing.T) {
	ca, err := CoverageAreaFromMap(map[string]any{
		"nw_corner_latitude":  "41.5",
		"nw_corner_longitude": "-74.5",
		"se_corner_latitude":  "40.1",
		"se_corner_longitude": "-73.1",
	})
	if err != nil {
		t.Fatalf("CoverageAreaFromMap: %v", err)
	}
	if ca.NorthWest.Latitude != 41.5 || ca.SouthEast.Longitude != -73.1 {
		t.Fatalf("got %+v", ca)
	}
	if _, err := CoverageAreaFromMap(map[string]any{"nw_corner_latitude": "1"}); !errors.Is(err, ErrResponse) {
		t.Fatalf("partial coverage: got %v", err)
	}
}

func TestRowsDropsNonObjects(t *testing.T) {
	got := rows([]any{map[string]any{"a": 1}, "junk", nil, map[string]any{"b": 2}})
	if len(got) != 2 {
		t.Fatalf("rows got %d want 2", len(got))
	}
	if rows(map[string]any{"a": 1}) != nil {
		t.Fatalf("non-array should give nil")
	}
}
