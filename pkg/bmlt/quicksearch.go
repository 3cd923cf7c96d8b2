package bmlt

import "time"

// QuickSearch adds named presets on top of MeetingQuery. Presets and the
// common filters below return the QuickSearch; any other embedded setter
// returns the underlying *MeetingQuery.
type QuickSearch struct {
	*MeetingQuery
	now func() time.Time
}

func NewQuickSearch(client *Client) *QuickSearch {
	return &QuickSearch{MeetingQuery: NewMeetingQuery(client), now: time.Now}
}

// WithClock replaces the clock used by Today and Tomorrow.
func (s *QuickSearch) WithClock(now func() time.Time) *QuickSearch {
	s.now = now
	return s
}

func (s *QuickSearch) Today() *QuickSearch {
	s.Weekdays(WeekdayOf(s.now()))
	return s
}

func (s *QuickSearch) Tomorrow() *QuickSearch {
	s.Weekdays(WeekdayOf(s.now().AddDate(0, 0, 1)))
	return s
}

func (s *QuickSearch) Weekend() *QuickSearch {
	s.Weekdays(Saturday, Sunday)
	return s
}

// WeekdaysOnly selects Monday through Friday.
func (s *QuickSearch) WeekdaysOnly() *QuickSearch {
	s.Weekdays(Monday, Tuesday, Wednesday, Thursday, Friday)
	return s
}

func (s *QuickSearch) Morning() *QuickSearch {
	s.StartingBefore(12, 0)
	return s
}

func (s *QuickSearch) Afternoon() *QuickSearch {
	s.StartingAfter(12, 0).StartingBefore(17, 0)
	return s
}

func (s *QuickSearch) Evening() *QuickSearch {
	s.StartingAfter(17, 0)
	return s
}

func (s *QuickSearch) LateNight() *QuickSearch {
	s.StartingAfter(21, 0)
	return s
}

func (s *QuickSearch) EarlyMorning() *QuickSearch {
	s.StartingBefore(9, 0)
	return s
}

func (s *QuickSearch) Lunchtime() *QuickSearch {
	s.StartingAfter(11, 0).StartingBefore(14, 0)
	return s
}

func (s *QuickSearch) Meditation() *QuickSearch      { return s.text("meditation") }
func (s *QuickSearch) StepMeetings() *QuickSearch    { return s.text("step") }
func (s *QuickSearch) BookStudy() *QuickSearch       { return s.text("book study") }
func (s *QuickSearch) SpeakerMeetings() *QuickSearch { return s.text("speaker") }
func (s *QuickSearch) Beginners() *QuickSearch       { return s.text("beginner") }
func (s *QuickSearch) WomenOnly() *QuickSearch       { return s.text("women") }
func (s *QuickSearch) MenOnly() *QuickSearch         { return s.text("men") }
func (s *QuickSearch) YoungPeople() *QuickSearch     { return s.text("young people") }
func (s *QuickSearch) LGBTQ() *QuickSearch           { return s.text("lgbt") }

func (s *QuickSearch) text(keyword string) *QuickSearch {
	s.MeetingQuery.SearchText(keyword)
	return s
}

func (s *QuickSearch) VirtualOnly() *QuickSearch {
	s.MeetingQuery.VirtualOnly()
	return s
}

func (s *QuickSearch) InPersonOnly() *QuickSearch {
	s.MeetingQuery.InPersonOnly()
	return s
}

func (s *QuickSearch) HybridOnly() *QuickSearch {
	s.MeetingQuery.HybridOnly()
	return s
}

func (s *QuickSearch) Languages(langs ...Language) *QuickSearch {
	s.MeetingQuery.Languages(langs...)
	return s
}

func (s *QuickSearch) ServiceBodies(ids ...int64) *QuickSearch {
	s.MeetingQuery.ServiceBodies(ids...)
	return s
}

func (s *QuickSearch) Formats(ids ...int64) *QuickSearch {
	s.MeetingQuery.Formats(ids...)
	return s
}

func (s *QuickSearch) SearchText(text string) *QuickSearch {
	s.MeetingQuery.SearchText(text)
	return s
}

func (s *QuickSearch) NearCoordinates(c Coordinates, radiusMiles float64) *QuickSearch {
	s.MeetingQuery.NearCoordinates(c, radiusMiles)
	return s
}

func (s *QuickSearch) NearCoordinatesKm(c Coordinates, radiusKm float64) *QuickSearch {
	s.MeetingQuery.NearCoordinatesKm(c, radiusKm)
	return s
}

func (s *QuickSearch) SortByDistance() *QuickSearch {
	s.MeetingQuery.SortByDistance()
	return s
}

func (s *QuickSearch) Paginate(size, page int) *QuickSearch {
	s.MeetingQuery.Paginate(size, page)
	return s
}

// WeekdayOf converts t's day to the server numbering (Sunday = 1).
func WeekdayOf(t time.Time) Weekday {
	return Weekday(int(t.Weekday()) + 1)
}
