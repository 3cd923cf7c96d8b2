package bmlt

import (
	"context"
	"strings"
)

// Request keys understood by GetSearchResults.
const (
	keyWeekdays        = "weekdays"
	keyVenueTypes      = "venue_types"
	keyLanguages       = "lang_enum"
	keyServices        = "services"
	keyRecursive       = "recursive"
	keyFormats         = "formats"
	keyFormatsOperator = "formats_comparison_operator"
	keySearchString    = "SearchString"
	keySortKeys        = "sort_keys"
	keySortByDistance  = "sort_results_by_distance"
	keyDataFieldKey    = "data_field_key"
	keyPageSize        = "page_size"
	keyPageNum         = "page_num"
	keyPublished       = "advanced_published"
	keyLatitude        = "lat_val"
	keyLongitude       = "long_val"
	keyRadiusMiles     = "geo_width"
	keyRadiusKm        = "geo_width_km"
	keyFormatOverride  = "format"
)

// FormatsOperator joins multiple format filters.
type FormatsOperator string

const (
	FormatsAnd FormatsOperator = "AND"
	FormatsOr  FormatsOperator = "OR"
)

// MeetingQuery accumulates GetSearchResults parameters. Every setter mutates
// the receiver and returns it, so chained calls share one parameter map.
// A MeetingQuery is not safe for concurrent use.
type MeetingQuery struct {
	client *Client
	params Params
}

func NewMeetingQuery(client *Client) *MeetingQuery {
	return &MeetingQuery{client: client, params: Params{}}
}

// Weekdays keeps meetings on the given days. Exclusions set earlier survive.
func (q *MeetingQuery) Weekdays(days ...Weekday) *MeetingQuery {
	return q.signed(keyWeekdays, weekdayInts(days), false)
}

func (q *MeetingQuery) ExcludeWeekdays(days ...Weekday) *MeetingQuery {
	return q.signed(keyWeekdays, weekdayInts(days), true)
}

func (q *MeetingQuery) VenueTypes(types ...VenueType) *MeetingQuery {
	return q.signed(keyVenueTypes, venueInts(types), false)
}

func (q *MeetingQuery) ExcludeVenueTypes(types ...VenueType) *MeetingQuery {
	return q.signed(keyVenueTypes, venueInts(types), true)
}

func (q *MeetingQuery) InPersonOnly() *MeetingQuery {
	q.params[keyVenueTypes] = int(VenueInPerson)
	return q
}

func (q *MeetingQuery) VirtualOnly() *MeetingQuery {
	q.params[keyVenueTypes] = int(VenueVirtual)
	return q
}

func (q *MeetingQuery) HybridOnly() *MeetingQuery {
	q.params[keyVenueTypes] = int(VenueHybrid)
	return q
}

func (q *MeetingQuery) Languages(langs ...Language) *MeetingQuery {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, string(l))
	}
	q.params[keyLanguages] = out
	return q
}

func (q *MeetingQuery) ServiceBodies(ids ...int64) *MeetingQuery {
	return q.signed(keyServices, ids, false)
}

func (q *MeetingQuery) ExcludeServiceBodies(ids ...int64) *MeetingQuery {
	return q.signed(keyServices, ids, true)
}

// IncludeChildServiceBodies widens a service body filter to its descendants.
func (q *MeetingQuery) IncludeChildServiceBodies(on bool) *MeetingQuery {
	if on {
		q.params[keyRecursive] = true
	} else {
		delete(q.params, keyRecursive)
	}
	return q
}

func (q *MeetingQuery) Formats(ids ...int64) *MeetingQuery {
	return q.signed(keyFormats, ids, false)
}

func (q *MeetingQuery) ExcludeFormats(ids ...int64) *MeetingQuery {
	return q.signed(keyFormats, ids, true)
}

func (q *MeetingQuery) FormatsOperator(op FormatsOperator) *MeetingQuery {
	q.params[keyFormatsOperator] = strings.ToUpper(string(op))
	return q
}

func (q *MeetingQuery) SearchText(text string) *MeetingQuery {
	q.params[keySearchString] = strings.TrimSpace(text)
	return q
}

// StartingAfter and the other time filters pass hour and minute through
// unchecked; the server decides what out of range values mean.
func (q *MeetingQuery) StartingAfter(hour, minute int) *MeetingQuery {
	return q.clock("StartsAfterH", "StartsAfterM", hour, minute)
}

func (q *MeetingQuery) StartingBefore(hour, minute int) *MeetingQuery {
	return q.clock("StartsBeforeH", "StartsBeforeM", hour, minute)
}

// EndingBefore is the evening-cutoff shorthand: it replaces the start cap
// with hour:minute. Use EndsBefore to filter on the end time itself.
func (q *MeetingQuery) EndingBefore(hour, minute int) *MeetingQuery {
	return q.clock("StartsBeforeH", "StartsBeforeM", hour, minute)
}

func (q *MeetingQuery) EndsBefore(hour, minute int) *MeetingQuery {
	return q.clock("EndsBeforeH", "EndsBeforeM", hour, minute)
}

func (q *MeetingQuery) EndingAfter(hour, minute int) *MeetingQuery {
	return q.clock("EndsAfterH", "EndsAfterM", hour, minute)
}

func (q *MeetingQuery) MinDuration(hours, minutes int) *MeetingQuery {
	return q.clock("MinDurationH", "MinDurationM", hours, minutes)
}

func (q *MeetingQuery) MaxDuration(hours, minutes int) *MeetingQuery {
	return q.clock("MaxDurationH", "MaxDurationM", hours, minutes)
}

// NearCoordinates sets a proximity search in miles. Coordinates and radius
// are validated when the query is sent.
func (q *MeetingQuery) NearCoordinates(c Coordinates, radiusMiles float64) *MeetingQuery {
	q.params[keyLatitude] = c.Latitude
	q.params[keyLongitude] = c.Longitude
	q.params[keyRadiusMiles] = radiusMiles
	delete(q.params, keyRadiusKm)
	return q
}

func (q *MeetingQuery) NearCoordinatesKm(c Coordinates, radiusKm float64) *MeetingQuery {
	q.params[keyLatitude] = c.Latitude
	q.params[keyLongitude] = c.Longitude
	q.params[keyRadiusKm] = radiusKm
	delete(q.params, keyRadiusMiles)
	return q
}

func (q *MeetingQuery) SortBy(keys ...SortKey) *MeetingQuery {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, string(k))
	}
	q.params[keySortKeys] = strings.Join(parts, ",")
	return q
}

func (q *MeetingQuery) SortByDistance() *MeetingQuery {
	q.params[keySortByDistance] = true
	return q
}

// Fields limits the returned columns.
func (q *MeetingQuery) Fields(fields ...string) *MeetingQuery {
	q.params[keyDataFieldKey] = strings.Join(nonEmpty(fields), ",")
	return q
}

// Paginate always sets the page size; page 1 is the server default and is
// not sent.
func (q *MeetingQuery) Paginate(size, page int) *MeetingQuery {
	q.params[keyPageSize] = size
	if page > 1 {
		q.params[keyPageNum] = page
	} else {
		delete(q.params, keyPageNum)
	}
	return q
}

func (q *MeetingQuery) Published(published bool) *MeetingQuery {
	if published {
		q.params[keyPublished] = 1
	} else {
		q.params[keyPublished] = -1
	}
	return q
}

// Param sets a raw parameter; nil removes it.
func (q *MeetingQuery) Param(key string, value any) *MeetingQuery {
	if value == nil {
		delete(q.params, key)
		return q
	}
	q.params[key] = value
	return q
}

// Format picks the response format for Execute.
func (q *MeetingQuery) Format(f DataFormat) *MeetingQuery {
	q.params[keyFormatOverride] = string(f)
	return q
}

func (q *MeetingQuery) Reset() *MeetingQuery {
	q.params = Params{}
	return q
}

// Params returns a copy of the accumulated parameters.
func (q *MeetingQuery) Params() Params {
	return q.params.Clone()
}

func (q *MeetingQuery) Execute(ctx context.Context) ([]Meeting, error) {
	if q.client == nil {
		return nil, NewValidationError("meeting query has no client")
	}
	return q.client.SearchMeetings(ctx, q.params)
}

// ExecuteNearAddress geocodes address and runs the query around it.
func (q *MeetingQuery) ExecuteNearAddress(ctx context.Context, address string, radiusMiles float64, sortByDistance bool) ([]Meeting, error) {
	if q.client == nil {
		return nil, NewValidationError("meeting query has no client")
	}
	if sortByDistance {
		q.SortByDistance()
	}
	return q.client.SearchMeetingsByAddress(ctx, address, radiusMiles, nil, sortByDistance, q.params)
}

func (q *MeetingQuery) clock(hKey, mKey string, hour, minute int) *MeetingQuery {
	q.params[hKey] = hour
	q.params[mKey] = minute
	return q
}

// signed stores inclusions as positive ids and exclusions as negative ids
// under one key, replacing only the entries of the same sign.
func (q *MeetingQuery) signed(key string, ids []int64, exclude bool) *MeetingQuery {
	var kept []int64
	if cur, ok := q.params[key].([]int64); ok {
		for _, id := range cur {
			if (id < 0) != exclude {
				kept = append(kept, id)
			}
		}
	}
	for _, id := range ids {
		if id < 0 {
			id = -id
		}
		if exclude {
			id = -id
		}
		kept = append(kept, id)
	}
	q.params[key] = kept
	return q
}

func weekdayInts(days []Weekday) []int64 {
	out := make([]int64, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

func venueInts(types []VenueType) []int64 {
	out := make([]int64, 0, len(types))
	for _, t := range types {
		out = append(out, int64(t))
	}
	return out
}
