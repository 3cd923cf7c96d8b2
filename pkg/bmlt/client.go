package bmlt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammed-shakir/bmlt-go/internal/core/httpclient"
	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
)

const (
	Version          = "1.0.0"
	DefaultTimeout   = 30
	DefaultUserAgent = "bmlt-go/" + Version

	tracerName      = "github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
	upstreamBMLT    = "bmlt"
	defaultCallback = "callback"
	dateLayout      = "2006-01-02"
)

// Config is the embedding application's view of a Client.
type Config struct {
	// RootServerURL is required; it is normalized to ".../main_server".
	RootServerURL string
	// DefaultFormat applies when an operation does not pick one (json if empty).
	DefaultFormat DataFormat
	// Timeout is the per-request limit in seconds (DefaultTimeout if zero).
	Timeout   int
	UserAgent string

	EnableGeocoding bool
	// Geocoder is used when geocoding is enabled; one is built lazily otherwise.
	Geocoder *GeocodingService

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one BMLT root server. It is meant for single-owner use:
// the setters are not synchronized.
type Client struct {
	rootServerURL    string
	defaultFormat    DataFormat
	timeout          int
	userAgent        string
	geocodingEnabled bool
	geocoder         *GeocodingService

	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if err := ValidateRootServerURL(cfg.RootServerURL); err != nil {
		return nil, err
	}
	c := &Client{
		rootServerURL:    NormalizeRootServerURL(cfg.RootServerURL),
		defaultFormat:    cfg.DefaultFormat,
		timeout:          cfg.Timeout,
		userAgent:        strings.TrimSpace(cfg.UserAgent),
		geocodingEnabled: cfg.EnableGeocoding,
		geocoder:         cfg.Geocoder,
		http:             cfg.HTTPClient,
		logger:           cfg.Logger,
		tracer:           otel.Tracer(tracerName),
	}
	if c.defaultFormat == "" {
		c.defaultFormat = FormatJSON
	}
	if !c.defaultFormat.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unsupported default format %q", cfg.DefaultFormat))
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.timeout < 0 {
		return nil, NewValidationError("timeout must be a positive number of seconds")
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.http == nil {
		c.http = httpclient.NewOutbound(0)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

func (c *Client) RootServerURL() string     { return c.rootServerURL }
func (c *Client) DefaultFormat() DataFormat { return c.defaultFormat }
func (c *Client) Timeout() int              { return c.timeout }
func (c *Client) UserAgent() string         { return c.userAgent }
func (c *Client) GeocodingEnabled() bool    { return c.geocodingEnabled }

// SetRootServerURL validates and re-normalizes the root server.
func (c *Client) SetRootServerURL(raw string) error {
	if err := ValidateRootServerURL(raw); err != nil {
		return err
	}
	c.rootServerURL = NormalizeRootServerURL(raw)
	return nil
}

func (c *Client) SetDefaultFormat(f DataFormat) {
	c.defaultFormat = f
}

// SetTimeout sets the per-request limit in seconds.
func (c *Client) SetTimeout(seconds int) error {
	if seconds <= 0 {
		return NewValidationError(fmt.Sprintf("timeout must be a positive number of seconds, got %d", seconds))
	}
	c.timeout = seconds
	return nil
}

func (c *Client) SetUserAgent(ua string) error {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return NewValidationError("user agent cannot be empty")
	}
	c.userAgent = ua
	return nil
}

// MakeRequest performs one GET against endpoint and decodes the body by
// format ("" means the client default). CSV bodies come back as a string;
// JSON, JSONP and TSML bodies come back decoded (numbers as json.Number).
func (c *Client) MakeRequest(ctx context.Context, endpoint Endpoint, params Params, format DataFormat) (any, error) {
	if format == "" {
		format = c.defaultFormat
	}
	reqURL, err := BuildURL(c.rootServerURL, endpoint, format, params)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "bmlt."+string(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("bmlt.endpoint", string(endpoint)),
			attribute.String("bmlt.format", string(format)),
			attribute.String("bmlt.root_server", c.rootServerURL),
		))
	defer span.End()

	body, status, err := c.get(ctx, endpoint, reqURL, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	out, err := decodeBody(body, format, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint Endpoint, reqURL string, format DataFormat) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, NewNetworkError("create request", err)
	}
	req.Header.Set("Accept", format.accept())
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveUpstream(upstreamBMLT, string(endpoint), 0, time.Since(start).Seconds())
		c.logger.DebugContext(ctx, "bmlt request failed",
			"endpoint", endpoint, "format", format, "err", err)
		return nil, 0, NewNetworkError(fmt.Sprintf("request to %s failed", endpoint), err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstream(upstreamBMLT, string(endpoint), resp.StatusCode, dur.Seconds())
	c.logger.DebugContext(ctx, "bmlt request done",
		"endpoint", endpoint,
		"format", format,
		"status", resp.StatusCode,
		"duration", dur.String())

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		msg := fmt.Sprintf("%s returned status %d", endpoint, resp.StatusCode)
		if s := strings.TrimSpace(string(b)); s != "" {
			msg += ": " + s
		}
		return nil, resp.StatusCode, NewResponseError(msg, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, NewNetworkError("read response body", err)
	}
	return body, resp.StatusCode, nil
}

func decodeBody(body []byte, format DataFormat, params Params) (any, error) {
	switch format {
	case FormatCSV:
		return string(body), nil
	case FormatJSONP:
		callback := defaultCallback
		if cb, ok := params["callback"]; ok {
			if s := scalarString(cb); s != "" {
				callback = s
			}
		}
		inner, err := unwrapJSONP(body, callback)
		if err != nil {
			return nil, err
		}
		return decodeJSON(inner)
	case FormatJSON, FormatTSML:
		return decodeJSON(body)
	}
	return nil, NewValidationError(fmt.Sprintf("unsupported data format %q", format))
}

func unwrapJSONP(body []byte, callback string) ([]byte, error) {
	re, err := regexp.Compile(`(?s)^` + regexp.QuoteMeta(callback) + `\s*\(\s*(.*?)\s*\)\s*;?\s*$`)
	if err != nil {
		return nil, NewResponseError("invalid JSONP callback", 0, err)
	}
	m := re.FindSubmatch(bytes.TrimSpace(body))
	if m == nil {
		return nil, NewResponseError("invalid JSONP format", 0, nil)
	}
	return m[1], nil
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, NewResponseError("failed to parse JSON response", 0, err)
	}
	return v, nil
}

// SearchMeetings runs GetSearchResults. A "format" entry in params overrides
// the client default and is not sent as a parameter.
func (c *Client) SearchMeetings(ctx context.Context, params Params) ([]Meeting, error) {
	p := params.Clone()
	var format DataFormat
	if raw, ok := p["format"]; ok {
		delete(p, "format")
		f, err := ParseDataFormat(scalarString(raw))
		if err != nil {
			return nil, err
		}
		format = f
	}
	if err := validateGeoParams(p); err != nil {
		return nil, err
	}

	v, err := c.MakeRequest(ctx, EndpointSearchResults, p, format)
	if err != nil {
		return nil, err
	}
	// get_used_formats wraps the rows as {"meetings": [...], "formats": [...]}
	if obj, ok := v.(map[string]any); ok {
		v = obj["meetings"]
	}
	return mapRows(v, MeetingFromMap)
}

// validateGeoParams checks proximity parameters however they were set.
func validateGeoParams(p Params) error {
	_, hasLat := p["lat_val"]
	_, hasLng := p["long_val"]
	if hasLat || hasLng {
		lat, ok := toFloat(p["lat_val"])
		if !ok {
			return NewValidationError(fmt.Sprintf("latitude %v is not a number", p["lat_val"]))
		}
		lng, ok := toFloat(p["long_val"])
		if !ok {
			return NewValidationError(fmt.Sprintf("longitude %v is not a number", p["long_val"]))
		}
		if err := ValidateCoordinates(Coordinates{Latitude: lat, Longitude: lng}); err != nil {
			return err
		}
	}
	for _, key := range []string{"geo_width", "geo_width_km"} {
		raw, ok := p[key]
		if !ok {
			continue
		}
		r, ok := toFloat(raw)
		if !ok {
			return NewValidationError(fmt.Sprintf("%s %v is not a number", key, raw))
		}
		if err := ValidateRadius(r); err != nil {
			return err
		}
	}
	return nil
}

// SearchMeetingsByCoordinates searches around coords. radiusKm is optional
// and sent alongside the miles radius when given.
func (c *Client) SearchMeetingsByCoordinates(ctx context.Context, coords Coordinates, radiusMiles float64, radiusKm *float64, params Params) ([]Meeting, error) {
	if err := ValidateCoordinates(coords); err != nil {
		return nil, err
	}
	if err := ValidateRadius(radiusMiles); err != nil {
		return nil, err
	}
	p := params.Clone()
	p["lat_val"] = coords.Latitude
	p["long_val"] = coords.Longitude
	p["geo_width"] = radiusMiles
	if radiusKm != nil {
		if err := ValidateRadius(*radiusKm); err != nil {
			return nil, err
		}
		p["geo_width_km"] = *radiusKm
	}
	p["sort_results_by_distance"] = true
	return c.SearchMeetings(ctx, p)
}

// SearchMeetingsByAddress geocodes address and searches around the result.
// When radiusKm is given it replaces the miles radius and distances come
// back in km.
func (c *Client) SearchMeetingsByAddress(ctx context.Context, address string, radiusMiles float64, radiusKm *float64, sortByDistance bool, params Params) ([]Meeting, error) {
	geo, err := c.geocodingService()
	if err != nil {
		return nil, err
	}
	loc, err := geo.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	p := params.Clone()
	p["lat_val"] = loc.Coordinates.Latitude
	p["long_val"] = loc.Coordinates.Longitude
	if radiusKm != nil {
		p["geo_width_km"] = *radiusKm
	} else {
		p["geo_width"] = radiusMiles
	}
	if sortByDistance {
		p["sort_results_by_distance"] = true
	}
	return c.SearchMeetings(ctx, p)
}

// GetServerInfo unwraps the single-element array some servers return.
func (c *Client) GetServerInfo(ctx context.Context) (ServerInfo, error) {
	v, err := c.MakeRequest(ctx, EndpointServerInfo, nil, "")
	if err != nil {
		return ServerInfo{}, err
	}
	if arr, ok := v.([]any); ok && len(arr) > 0 {
		v = arr[0]
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ServerInfo{}, NewResponseError(fmt.Sprintf("unexpected server info payload %T", v), 0, nil)
	}
	return ServerInfoFromMap(m)
}

func (c *Client) GetFormats(ctx context.Context, params Params) ([]Format, error) {
	v, err := c.MakeRequest(ctx, EndpointFormats, params, "")
	if err != nil {
		return nil, err
	}
	return mapRows(v, FormatFromMap)
}

func (c *Client) GetServiceBodies(ctx context.Context, params Params) ([]ServiceBody, error) {
	v, err := c.MakeRequest(ctx, EndpointServiceBodies, params, "")
	if err != nil {
		return nil, err
	}
	return mapRows(v, ServiceBodyFromMap)
}

func (c *Client) GetFieldKeys(ctx context.Context) ([]FieldKey, error) {
	v, err := c.MakeRequest(ctx, EndpointFieldKeys, nil, "")
	if err != nil {
		return nil, err
	}
	return mapRows(v, FieldKeyFromMap)
}

// GetFieldValues returns the distinct values of meetingKey as raw rows.
func (c *Client) GetFieldValues(ctx context.Context, meetingKey string) ([]map[string]any, error) {
	meetingKey = strings.TrimSpace(meetingKey)
	if meetingKey == "" {
		return nil, NewValidationError("meeting key cannot be empty")
	}
	v, err := c.MakeRequest(ctx, EndpointFieldValues, Params{"meeting_key": meetingKey}, "")
	if err != nil {
		return nil, err
	}
	return rows(v), nil
}

// GetChanges lists meeting changes from start on. end and serviceBodyID are
// optional (zero values are omitted).
func (c *Client) GetChanges(ctx context.Context, start, end time.Time, serviceBodyID int64) ([]map[string]any, error) {
	if start.IsZero() {
		return nil, NewValidationError("start date is required")
	}
	p := Params{"start_date": start.Format(dateLayout)}
	if !end.IsZero() {
		if end.Before(start) {
			return nil, NewValidationError("end date must not be before start date")
		}
		p["end_date"] = end.Format(dateLayout)
	}
	if serviceBodyID > 0 {
		p["service_body_id"] = serviceBodyID
	}
	v, err := c.MakeRequest(ctx, EndpointChanges, p, "")
	if err != nil {
		return nil, err
	}
	return rows(v), nil
}

func (c *Client) GetCoverageArea(ctx context.Context) (CoverageArea, error) {
	v, err := c.MakeRequest(ctx, EndpointCoverageArea, nil, "")
	if err != nil {
		return CoverageArea{}, err
	}
	if arr, ok := v.([]any); ok && len(arr) > 0 {
		v = arr[0]
	}
	m, ok := v.(map[string]any)
	if !ok {
		return CoverageArea{}, NewResponseError(fmt.Sprintf("unexpected coverage area payload %T", v), 0, nil)
	}
	return CoverageAreaFromMap(m)
}

// GetNAWSDump exports a service body's meetings in the NAWS CSV layout.
// The server only renders this endpoint as CSV.
func (c *Client) GetNAWSDump(ctx context.Context, serviceBodyID int64) (string, error) {
	if serviceBodyID <= 0 {
		return "", NewValidationError("service body id must be positive, got " + strconv.FormatInt(serviceBodyID, 10))
	}
	v, err := c.MakeRequest(ctx, EndpointNAWSDump, Params{"sb_id": serviceBodyID}, FormatCSV)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (c *Client) GeocodeAddress(ctx context.Context, address string) (GeocodeResult, error) {
	geo, err := c.geocodingService()
	if err != nil {
		return GeocodeResult{}, err
	}
	return geo.Geocode(ctx, address)
}

func (c *Client) ReverseGeocode(ctx context.Context, coords Coordinates) (GeocodeResult, error) {
	geo, err := c.geocodingService()
	if err != nil {
		return GeocodeResult{}, err
	}
	return geo.ReverseGeocode(ctx, coords)
}

func (c *Client) geocodingService() (*GeocodingService, error) {
	if !c.geocodingEnabled {
		return nil, NewValidationError("Geocoding is not enabled. Enable it in the client configuration to use address lookups.")
	}
	if c.geocoder == nil {
		c.geocoder = NewGeocodingService(GeocodingConfig{
			Timeout:    c.timeout,
			UserAgent:  c.userAgent,
			HTTPClient: c.http,
			Logger:     c.logger,
		})
	}
	return c.geocoder, nil
}
