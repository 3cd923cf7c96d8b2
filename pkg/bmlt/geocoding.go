package bmlt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammed-shakir/bmlt-go/internal/core/httpclient"
	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
)

const (
	DefaultGeocodingBaseURL = "https://nominatim.openstreetmap.org"

	upstreamNominatim = "nominatim"
	retryBaseDelay    = 250 * time.Millisecond
	retryMaxDelay     = 8 * time.Second
)

// ViewBox biases (or with Bounded, restricts) forward lookups.
type ViewBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// String renders the Nominatim order: left,top,right,bottom.
func (v ViewBox) String() string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	return f(v.MinLon) + "," + f(v.MaxLat) + "," + f(v.MaxLon) + "," + f(v.MinLat)
}

// GeocodeCache stores forward lookups. Implementations must be safe for
// concurrent use.
type GeocodeCache interface {
	GetGeocode(ctx context.Context, key string) (GeocodeResult, bool, error)
	PutGeocode(ctx context.Context, key string, res GeocodeResult) error
}

type GeocodingConfig struct {
	// BaseURL defaults to DefaultGeocodingBaseURL.
	BaseURL string
	// Timeout in seconds; DefaultTimeout if zero.
	Timeout int
	// Retries is the number of extra attempts after a transport failure or
	// a 5xx answer.
	Retries   int
	UserAgent string

	// CountryCodes is a comma separated ISO 3166-1 alpha-2 list.
	CountryCodes string
	ViewBox      *ViewBox
	Bounded      bool

	HTTPClient *http.Client
	Cache      GeocodeCache
	Logger     *slog.Logger
}

// GeocodingService resolves addresses through a Nominatim instance.
type GeocodingService struct {
	baseURL      string
	timeout      time.Duration
	retries      int
	userAgent    string
	countryCodes string
	viewBox      *ViewBox
	bounded      bool

	http    *http.Client
	cache   GeocodeCache
	logger  *slog.Logger
	tracer  trace.Tracer
	backOff func() backoff.BackOff
}

func NewGeocodingService(cfg GeocodingConfig) *GeocodingService {
	s := &GeocodingService{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:      time.Duration(cfg.Timeout) * time.Second,
		retries:      cfg.Retries,
		userAgent:    strings.TrimSpace(cfg.UserAgent),
		countryCodes: strings.TrimSpace(cfg.CountryCodes),
		viewBox:      cfg.ViewBox,
		bounded:      cfg.Bounded,
		http:         cfg.HTTPClient,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		tracer:       otel.Tracer(tracerName),
		backOff:      newRetryBackOff,
	}
	if s.baseURL == "" {
		s.baseURL = DefaultGeocodingBaseURL
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout * time.Second
	}
	if s.retries < 0 {
		s.retries = 0
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.http == nil {
		s.http = httpclient.NewOutbound(0)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Geocode returns the best match for address.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return GeocodeResult{}, NewValidationError("address cannot be empty")
	}

	key := s.cacheKey(address)
	if s.cache != nil {
		if res, ok, err := s.cache.GetGeocode(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "geocode cache read failed", "err", err)
		} else if ok {
			observability.IncGeocodeCache(true)
			return res, nil
		}
		observability.IncGeocodeCache(false)
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	if s.countryCodes != "" {
		q.Set("countrycodes", s.countryCodes)
	}
	if s.viewBox != nil {
		q.Set("viewbox", s.viewBox.String())
		if s.bounded {
			q.Set("bounded", "1")
		}
	}

	v, err := s.fetch(ctx, "search", q)
	if err != nil {
		return GeocodeResult{}, err
	}
	arr, _ := v.([]any)
	if len(arr) == 0 {
		return GeocodeResult{}, NewGeocodingError(fmt.Sprintf("no results found for address %q", address), nil)
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return GeocodeResult{}, NewGeocodingError("unexpected geocoding result shape", nil)
	}
	res, err := geocodeResultFromMap(first, address)
	if err != nil {
		return GeocodeResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.PutGeocode(ctx, key, res); err != nil {
			s.logger.WarnContext(ctx, "geocode cache write failed", "err", err)
		}
	}
	return res, nil
}

// ReverseGeocode labels coords. The result carries the input coordinates.
func (s *GeocodingService) ReverseGeocode(ctx context.Context, coords Coordinates) (GeocodeResult, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	v, err := s.fetch(ctx, "reverse", q)
	if err != nil {
		return GeocodeResult{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return GeocodeResult{}, NewGeocodingError("unexpected reverse geocoding result shape", nil)
	}
	name, _ := toString(m["display_name"])
	if strings.TrimSpace(name) == "" {
		msg := "no address found for coordinates"
		if e, ok := toString(m["error"]); ok && e != "" {
			msg += ": " + e
		}
		return GeocodeResult{}, NewGeocodingError(msg, nil)
	}
	return GeocodeResult{Coordinates: coords, DisplayName: name, RawData: m}, nil
}

func geocodeResultFromMap(m map[string]any, address string) (GeocodeResult, error) {
	lat, okLat := toFloat(m["lat"])
	lng, okLng := toFloat(m["lon"])
	if !okLat || !okLng {
		return GeocodeResult{}, NewGeocodingError(fmt.Sprintf("result for %q has no usable coordinates", address), nil)
	}
	name, _ := toString(m["display_name"])
	if strings.TrimSpace(name) == "" {
		return GeocodeResult{}, NewGeocodingError(fmt.Sprintf("result for %q has no display name", address), nil)
	}
	return GeocodeResult{
		Coordinates: Coordinates{Latitude: lat, Longitude: lng},
		DisplayName: name,
		RawData:     m,
	}, nil
}

// fetch retries transport failures and 5xx answers with exponential backoff.
func (s *GeocodingService) fetch(ctx context.Context, path string, q url.Values) (any, error) {
	ctx, span := s.tracer.Start(ctx, "nominatim."+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("geocoding.base_url", s.baseURL)))
	defer span.End()

	reqURL := s.baseURL + "/" + path + "?" + q.Encode()
	attempt := 0
	v, err := backoff.Retry(ctx, func() (any, error) {
		attempt++
		v, transient, err := s.once(ctx, path, reqURL)
		if err != nil && !transient {
			return nil, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(uint(s.retries)+1),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.logger.DebugContext(ctx, "retrying geocoding request",
				"attempt", attempt, "delay", d.String(), "err", err)
		}),
	)
	if err == nil {
		return v, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if !errors.Is(err, ErrGeocoding) {
		err = NewGeocodingError("geocoding request cancelled", err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = retryMaxDelay
	return b
}

func (s *GeocodingService) once(ctx context.Context, path, reqURL string) (any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, NewGeocodingError("create geocoding request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		observability.ObserveUpstream(upstreamNominatim, path, 0, time.Since(start).Seconds())
		return nil, isTransient(err), NewGeocodingError("geocoding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstream(upstreamNominatim, path, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		gerr := NewGeocodingError(fmt.Sprintf("geocoding service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(b))), nil)
		gerr.StatusCode = resp.StatusCode
		return nil, resp.StatusCode >= 500, gerr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, NewGeocodingError("read geocoding response", err)
	}
	v, err := decodeJSON(body)
	if err != nil {
		return nil, false, NewGeocodingError("invalid geocoding response", err)
	}
	return v, false, nil
}

func (s *GeocodingService) cacheKey(address string) string {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	if s.countryCodes != "" {
		key += "|cc=" + strings.ToLower(s.countryCodes)
	}
	if s.viewBox != nil {
		key += "|vb=" + s.viewBox.String()
		if s.bounded {
			key += "|bounded"
		}
	}
	return key
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
