package kafkaconsumer

import (
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tsDedupe remembers the newest event time applied per meeting.
type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &tsDedupe{lru: c}
}

// stale reports whether an event at ts for meetingID is not newer than one
// already applied.
func (d *tsDedupe) stale(meetingID int64, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(strconv.FormatInt(meetingID, 10))
	return ok && ts.UnixNano() <= last
}

func (d *tsDedupe) record(meetingID int64, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := strconv.FormatInt(meetingID, 10)
	if last, ok := d.lru.Get(k); ok && ts.UnixNano() <= last {
		return
	}
	d.lru.Add(k, ts.UnixNano())
}
