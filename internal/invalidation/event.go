// Package invalidation defines the meeting change events that drop cached
// searches.
package invalidation

import (
	"errors"
	"fmt"
	"time"
)

// Event reports that one meeting was created, edited or removed. Latitude
// and Longitude are the meeting's location after the change (before it, for
// deletes). PrevLatitude/PrevLongitude carry the old location of a moved
// meeting.
type Event struct {
	Version       int       `json:"version"`
	Op            string    `json:"op"`
	MeetingID     int64     `json:"meeting_id"`
	ServiceBodyID int64     `json:"service_body_id,omitempty"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	PrevLatitude  *float64  `json:"prev_latitude,omitempty"`
	PrevLongitude *float64  `json:"prev_longitude,omitempty"`
	TS            time.Time `json:"ts"`
}

// Point is a location an event touches.
type Point struct{ Lat, Lng float64 }

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if e.MeetingID <= 0 {
		return errors.New("meeting_id must be positive")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Latitude == nil || e.Longitude == nil {
		return errors.New("latitude and longitude are required")
	}
	if err := checkPoint(*e.Latitude, *e.Longitude); err != nil {
		return err
	}
	if (e.PrevLatitude == nil) != (e.PrevLongitude == nil) {
		return errors.New("prev_latitude and prev_longitude must be given together")
	}
	if e.PrevLatitude != nil {
		if err := checkPoint(*e.PrevLatitude, *e.PrevLongitude); err != nil {
			return fmt.Errorf("prev: %w", err)
		}
	}
	return nil
}

// Points returns the current location and, for moves, the previous one.
// Call Validate first.
func (e Event) Points() []Point {
	out := []Point{{Lat: *e.Latitude, Lng: *e.Longitude}}
	if e.PrevLatitude != nil && e.PrevLongitude != nil {
		p := Point{Lat: *e.PrevLatitude, Lng: *e.PrevLongitude}
		if p != out[0] {
			out = append(out, p)
		}
	}
	return out
}

func checkPoint(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %g out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %g out of range", lng)
	}
	return nil
}
