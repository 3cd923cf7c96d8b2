package keys

import (
	"regexp"
	"strings"
	"testing"
)

var keyChars = regexp.MustCompile(`^[A-Za-z0-9:_=&.\-]+$`)

func TestResponse_Deterministic(t *testing.T) {
	q := "switcher=GetSearchResults&weekdays%5B%5D=2&page_size=10"
	k1 := Response("GetSearchResults", "872a1072bffffff", q)
	k2 := Response("GetSearchResults", "872a1072bffffff", q)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.HasPrefix(k1, "bmlt:GetSearchResults:872a1072bffffff:q=") {
		t.Fatalf("unexpected layout %s", k1)
	}
	if !keyChars.MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestResponse_WhitespaceVariantsCollapse(t *testing.T) {
	k1 := Response("GetFormats", "", "  lang_enum = en  &  key_strings = BT ")
	k2 := Response("GetFormats", "", "lang_enum=en&key_strings=BT")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.Contains(k1, ":-:") {
		t.Fatalf("missing cell placeholder: %s", k1)
	}
}

func TestResponse_DifferentInputsDiffer(t *testing.T) {
	base := Response("GetSearchResults", "a", "weekdays=1")
	for name, k := range map[string]string{
		"query":    Response("GetSearchResults", "a", "weekdays=2"),
		"cell":     Response("GetSearchResults", "b", "weekdays=1"),
		"endpoint": Response("GetFormats", "a", "weekdays=1"),
	} {
		if k == base {
			t.Fatalf("%s change must change the key", name)
		}
	}
}

func TestResponse_LongQueryTruncatedButHashed(t *testing.T) {
	long := strings.Repeat("services%5B%5D=1&", 40)
	k1 := Response("GetSearchResults", "", long+"x=1")
	k2 := Response("GetSearchResults", "", long+"x=2")
	if k1 == k2 {
		t.Fatalf("hash must cover the truncated tail")
	}
	if len(k1) > 200 {
		t.Fatalf("key too long (%d): %s", len(k1), k1)
	}
}

func TestCellIndex(t *testing.T) {
	if got := CellIndex(7, "872a1072bffffff"); got != "bmlt:cellidx:7:872a1072bffffff" {
		t.Fatalf("CellIndex got %s", got)
	}
}
