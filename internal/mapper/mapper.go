// Package mapper converts between coordinates and H3 cells.
package mapper

// Interface is what the cache scenario and the invalidation consumer need
// from a spatial index.
type Interface interface {
	Cell(lat, lng float64, res int) (string, error)
	Center(cell string) (lat, lng float64, err error)
	Disk(cell string, k int) ([]string, error)
}
