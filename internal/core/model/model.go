// Package model defines the request and result types shared by the proxy's
// router and scenarios.
package model

import (
	"fmt"

	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// DefaultRadiusMiles applies to location searches that name no radius.
const DefaultRadiusMiles = 10.0

// Clock is a wall clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// SearchRequest is a parsed GET /meetings request.
type SearchRequest struct {
	Latitude    *float64
	Longitude   *float64
	RadiusMiles *float64
	RadiusKm    *float64
	Address     string

	Weekdays     []bmlt.Weekday
	VenueTypes   []bmlt.VenueType
	Formats      []int64
	Services     []int64
	Text         string
	StartsAfter  *Clock
	StartsBefore *Clock

	PageSize int
	Page     int
}

func (r SearchRequest) HasPoint() bool {
	return r.Latitude != nil && r.Longitude != nil
}

func (r SearchRequest) Point() bmlt.Coordinates {
	if !r.HasPoint() {
		return bmlt.Coordinates{}
	}
	return bmlt.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// Miles returns the requested radius in miles, or the default.
func (r SearchRequest) Miles() float64 {
	if r.RadiusMiles != nil {
		return *r.RadiusMiles
	}
	return DefaultRadiusMiles
}

// Filters copies everything except the location onto q.
func (r SearchRequest) Filters(q *bmlt.MeetingQuery) *bmlt.MeetingQuery {
	if len(r.Weekdays) > 0 {
		q.Weekdays(r.Weekdays...)
	}
	if len(r.VenueTypes) > 0 {
		q.VenueTypes(r.VenueTypes...)
	}
	if len(r.Formats) > 0 {
		q.Formats(r.Formats...)
	}
	if len(r.Services) > 0 {
		q.ServiceBodies(r.Services...)
	}
	if r.Text != "" {
		q.SearchText(r.Text)
	}
	if r.StartsAfter != nil {
		q.StartingAfter(r.StartsAfter.Hour, r.StartsAfter.Minute)
	}
	if r.StartsBefore != nil {
		q.StartingBefore(r.StartsBefore.Hour, r.StartsBefore.Minute)
	}
	if r.PageSize > 0 {
		q.Paginate(r.PageSize, r.Page)
	}
	return q
}

// Near adds the proximity part for a resolved point, sorted by distance.
func (r SearchRequest) Near(q *bmlt.MeetingQuery, at bmlt.Coordinates) *bmlt.MeetingQuery {
	if r.RadiusKm != nil {
		q.NearCoordinatesKm(at, *r.RadiusKm)
	} else {
		q.NearCoordinates(at, r.Miles())
	}
	return q.SortByDistance()
}

// CacheResult values reported on SearchResult.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

type SearchResult struct {
	Meetings []bmlt.Meeting
	// Cache is CacheHit, CacheMiss or "" when no cache is involved.
	Cache string
	// Cell is the H3 cell the search point was snapped to, if any.
	Cell string
}
