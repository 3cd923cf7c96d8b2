package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	mylog "github.com/mohammed-shakir/bmlt-go/internal/logger"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// Handler serves parsed proxy requests. Scenarios implement it.
type Handler interface {
	Search(ctx context.Context, req model.SearchRequest) (model.SearchResult, error)
	Formats(ctx context.Context) ([]bmlt.Format, error)
	ServiceBodies(ctx context.Context) ([]bmlt.ServiceBody, error)
	ServerInfo(ctx context.Context) (bmlt.ServerInfo, error)
}

const maxPageSize = 500

type searchResponse struct {
	Count    int            `json:"count"`
	Meetings []bmlt.Meeting `json:"meetings"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func HandleMeetings(logger *slog.Logger, h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/meetings", sw.code, time.Since(start).Seconds())
		}()

		req, err := ParseSearchRequest(r)
		if err != nil {
			writeError(r.Context(), logger, sw, bmlt.NewValidationError(err.Error()))
			return
		}

		ctx := mylog.WithEndpoint(r.Context(), string(bmlt.EndpointSearchResults))
		res, err := h.Search(ctx, req)
		if err != nil {
			writeError(ctx, logger, sw, err)
			return
		}
		if res.Cache != "" {
			sw.Header().Set("X-Cache", res.Cache)
		}
		if res.Cell != "" {
			sw.Header().Set("X-H3-Cell", res.Cell)
		}
		meetings := res.Meetings
		if meetings == nil {
			meetings = []bmlt.Meeting{}
		}
		writeJSON(sw, http.StatusOK, searchResponse{Count: len(meetings), Meetings: meetings})
	}
}

func HandleFormats(logger *slog.Logger, h Handler) http.HandlerFunc {
	return simple(logger, "/formats", func(ctx context.Context) (any, error) { return h.Formats(ctx) })
}

func HandleServiceBodies(logger *slog.Logger, h Handler) http.HandlerFunc {
	return simple(logger, "/service-bodies", func(ctx context.Context) (any, error) { return h.ServiceBodies(ctx) })
}

func HandleServerInfo(logger *slog.Logger, h Handler) http.HandlerFunc {
	return simple(logger, "/server-info", func(ctx context.Context) (any, error) { return h.ServerInfo(ctx) })
}

func simple(logger *slog.Logger, route string, fn func(context.Context) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		v, err := fn(r.Context())
		if err != nil {
			writeError(r.Context(), logger, sw, err)
			return
		}
		writeJSON(sw, http.StatusOK, v)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// StatusFor maps an error onto the proxy's HTTP status.
func StatusFor(err error) int {
	switch bmlt.TypeOf(err) {
	case bmlt.ValidationError:
		return http.StatusBadRequest
	case bmlt.GeocodingError:
		var e *bmlt.Error
		if errors.As(err, &e) && e.StatusCode >= 500 {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case bmlt.NetworkError, bmlt.ResponseError:
		return http.StatusBadGateway
	case bmlt.TimeoutError:
		return http.StatusGatewayTimeout
	case bmlt.RateLimitError:
		return http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorBody{Type: "INTERNAL_ERROR", Message: "An unexpected error occurred."}
	var e *bmlt.Error
	if errors.As(err, &e) {
		body = errorBody{Type: string(e.Type), Message: e.UserMessage()}
		logger.WarnContext(ctx, "request failed", "status", status, "err", e.Summary())
	} else {
		logger.ErrorContext(ctx, "request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseSearchRequest reads the GET /meetings query string.
func ParseSearchRequest(r *http.Request) (model.SearchRequest, error) {
	q := r.URL.Query()
	var out model.SearchRequest
	var err error

	if out.Latitude, err = optFloat(q.Get("lat")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("lat: %w", err)
	}
	if out.Longitude, err = optFloat(q.Get("long")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("long: %w", err)
	}
	if (out.Latitude == nil) != (out.Longitude == nil) {
		return model.SearchRequest{}, errors.New("lat and long must be given together")
	}
	out.Address = strings.TrimSpace(q.Get("address"))
	if out.Address != "" && out.HasPoint() {
		return model.SearchRequest{}, errors.New("use either address or lat/long, not both")
	}
	if out.HasPoint() {
		if err := bmlt.ValidateCoordinates(out.Point()); err != nil {
			return model.SearchRequest{}, err
		}
	}

	if out.RadiusMiles, err = optFloat(q.Get("radius")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("radius: %w", err)
	}
	if out.RadiusKm, err = optFloat(q.Get("radius_km")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("radius_km: %w", err)
	}
	for _, rad := range []*float64{out.RadiusMiles, out.RadiusKm} {
		if rad != nil {
			if err := bmlt.ValidateRadius(*rad); err != nil {
				return model.SearchRequest{}, err
			}
		}
	}

	if out.Weekdays, err = parseWeekdays(q.Get("weekdays")); err != nil {
		return model.SearchRequest{}, err
	}
	if out.VenueTypes, err = parseVenueTypes(q.Get("venue_types")); err != nil {
		return model.SearchRequest{}, err
	}
	if out.Formats, err = parseIDs(q.Get("formats")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("formats: %w", err)
	}
	if out.Services, err = parseIDs(q.Get("services")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("services: %w", err)
	}
	out.Text = strings.TrimSpace(q.Get("text"))

	if out.StartsAfter, err = parseClock(q.Get("starts_after")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("starts_after: %w", err)
	}
	if out.StartsBefore, err = parseClock(q.Get("starts_before")); err != nil {
		return model.SearchRequest{}, fmt.Errorf("starts_before: %w", err)
	}

	if out.PageSize, err = optInt(q.Get("page_size"), 1, maxPageSize); err != nil {
		return model.SearchRequest{}, fmt.Errorf("page_size: %w", err)
	}
	if out.Page, err = optInt(q.Get("page"), 1, 1<<20); err != nil {
		return model.SearchRequest{}, fmt.Errorf("page: %w", err)
	}
	if out.Page > 0 && out.PageSize == 0 {
		return model.SearchRequest{}, errors.New("page requires page_size")
	}
	return out, nil
}

func optFloat(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("parse float: %w", err)
	}
	return &f, nil
}

func optInt(v string, minV, maxV int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	if n < minV || n > maxV {
		return 0, fmt.Errorf("must be within %d..%d, got %d", minV, maxV, n)
	}
	return n, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(v string) ([]int64, error) {
	var out []int64
	for _, p := range splitCSV(v) {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

var weekdayNames = map[string]bmlt.Weekday{
	"sun": bmlt.Sunday, "sunday": bmlt.Sunday,
	"mon": bmlt.Monday, "monday": bmlt.Monday,
	"tue": bmlt.Tuesday, "tuesday": bmlt.Tuesday,
	"wed": bmlt.Wednesday, "wednesday": bmlt.Wednesday,
	"thu": bmlt.Thursday, "thursday": bmlt.Thursday,
	"fri": bmlt.Friday, "friday": bmlt.Friday,
	"sat": bmlt.Saturday, "saturday": bmlt.Saturday,
}

// parseWeekdays accepts 1..7 (Sunday = 1) or day names.
func parseWeekdays(v string) ([]bmlt.Weekday, error) {
	var out []bmlt.Weekday
	for _, p := range splitCSV(v) {
		if d, ok := weekdayNames[strings.ToLower(p)]; ok {
			out = append(out, d)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || !bmlt.Weekday(n).Valid() {
			return nil, fmt.Errorf("weekdays: invalid day %q", p)
		}
		out = append(out, bmlt.Weekday(n))
	}
	return out, nil
}

var venueNames = map[string]bmlt.VenueType{
	"in-person": bmlt.VenueInPerson, "in_person": bmlt.VenueInPerson,
	"virtual": bmlt.VenueVirtual,
	"hybrid":  bmlt.VenueHybrid,
}

func parseVenueTypes(v string) ([]bmlt.VenueType, error) {
	var out []bmlt.VenueType
	for _, p := range splitCSV(v) {
		if t, ok := venueNames[strings.ToLower(p)]; ok {
			out = append(out, t)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || !bmlt.VenueType(n).Valid() {
			return nil, fmt.Errorf("venue_types: invalid venue type %q", p)
		}
		out = append(out, bmlt.VenueType(n))
	}
	return out, nil
}

// parseClock reads HH:MM.
func parseClock(v string) (*model.Clock, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return nil, fmt.Errorf("want HH:MM, got %q", v)
	}
	return &model.Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}
