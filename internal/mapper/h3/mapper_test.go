package h3mapper

import (
	"math"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestCell_MatchesLibraryAndResolution(t *testing.T) {
	m := New()
	got, err := m.Cell(59.3293, 18.0686, 7)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	want, err := h3.LatLngToCell(h3.LatLng{Lat: 59.3293, Lng: 18.0686}, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	if got != want.String() {
		t.Fatalf("Cell=%s want %s", got, want.String())
	}
	if want.Resolution() != 7 {
		t.Fatalf("resolution=%d", want.Resolution())
	}
}

func TestCell_Rejects(t *testing.T) {
	m := New()
	if _, err := m.Cell(0, 0, 16); err == nil {
		t.Fatalf("expected resolution error")
	}
	if _, err := m.Cell(91, 0, 7); err == nil {
		t.Fatalf("expected latitude error")
	}
	if _, err := m.Cell(0, -181, 7); err == nil {
		t.Fatalf("expected longitude error")
	}
}

func TestCenter_SnapsIntoSameCell(t *testing.T) {
	m := New()
	cell, _ := m.Cell(40.7128, -74.0060, 7)
	lat, lng, err := m.Center(cell)
	if err != nil {
		t.Fatalf("Center: %v", err)
	}
	if math.Abs(lat-40.7128) > 0.05 || math.Abs(lng+74.0060) > 0.05 {
		t.Fatalf("center %g,%g too far from input", lat, lng)
	}
	again, _ := m.Cell(lat, lng, 7)
	if again != cell {
		t.Fatalf("center maps to %s, want %s", again, cell)
	}
}

func TestDisk_Ring1(t *testing.T) {
	m := New()
	cell, _ := m.Cell(51.5074, -0.1278, 8)
	disk, err := m.Disk(cell, 1)
	if err != nil {
		t.Fatalf("Disk: %v", err)
	}
	if len(disk) != 7 {
		t.Fatalf("ring-1 disk size=%d want 7", len(disk))
	}
	if !sort.StringsAreSorted(disk) {
		t.Fatalf("disk must be sorted")
	}
	found := false
	for _, c := range disk {
		if c == cell {
			found = true
		}
	}
	if !found {
		t.Fatalf("disk must contain origin")
	}

	if d0, _ := m.Disk(cell, 0); len(d0) != 1 || d0[0] != cell {
		t.Fatalf("k=0 disk=%v", d0)
	}
}

func TestParseErrors(t *testing.T) {
	m := New()
	if _, _, err := m.Center("not-a-cell"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := m.Disk("0", 1); err == nil {
		t.Fatalf("expected invalid cell error")
	}
	if _, err := m.Disk("872a1072bffffff", -1); err == nil {
		t.Fatalf("expected radius error")
	}
}
