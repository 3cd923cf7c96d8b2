package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// Cell returns the cell containing lat,lng at res.
func (m *Mapper) Cell(lat, lng float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("coordinates out of range: %g,%g", lat, lng)
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return "", fmt.Errorf("h3 latlng to cell: %w", err)
	}
	return c.String(), nil
}

// Center returns the centroid of cell in degrees.
func (m *Mapper) Center(cell string) (float64, float64, error) {
	c, err := parseCell(cell)
	if err != nil {
		return 0, 0, err
	}
	ll, err := c.LatLng()
	if err != nil {
		return 0, 0, fmt.Errorf("h3 cell to latlng: %w", err)
	}
	return ll.Lat, ll.Lng, nil
}

// Disk returns cell and every cell within k steps, sorted.
func (m *Mapper) Disk(cell string, k int) ([]string, error) {
	if k < 0 {
		return nil, fmt.Errorf("invalid disk radius %d", k)
	}
	c, err := parseCell(cell)
	if err != nil {
		return nil, err
	}
	ring, err := h3.GridDisk(c, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}

	seen := make(map[string]struct{}, len(ring))
	out := make([]string, 0, len(ring))
	for _, n := range ring {
		if n == 0 {
			continue
		}
		s := n.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func parseCell(cell string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", cell)
	}
	return c, nil
}
