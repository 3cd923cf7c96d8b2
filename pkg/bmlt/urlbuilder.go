package bmlt

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

const (
	mainServerSuffix = "/main_server"
	clientInterface  = "/client_interface/json/"
	maxRadius        = 100.0
)

// stripped in order; the first match wins
var rootSuffixes = []string{
	"/client_interface/json",
	"/client_interface",
	"/main_server",
}

type endpointFormat struct {
	endpoint Endpoint
	format   DataFormat
}

// combinations the server refuses to render
var unsupportedFormats = map[endpointFormat]struct{}{
	{EndpointServerInfo, FormatCSV}:   {},
	{EndpointCoverageArea, FormatCSV}: {},
}

// ValidateRootServerURL requires an absolute http(s) URL.
func ValidateRootServerURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return NewValidationError("root server URL cannot be empty")
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &Error{Type: ValidationError, Message: fmt.Sprintf("invalid root server URL %q", raw), Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return NewValidationError(fmt.Sprintf("invalid root server URL %q: must be an absolute URL", raw))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return NewValidationError(fmt.Sprintf("invalid root server URL %q: scheme must be http or https", raw))
	}
	return nil
}

// NormalizeRootServerURL maps the common spellings of a root server URL onto
// the canonical ".../main_server" form.
func NormalizeRootServerURL(raw string) string {
	u := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	for _, suffix := range rootSuffixes {
		if strings.HasSuffix(u, suffix) {
			u = strings.TrimSuffix(u, suffix)
			break
		}
	}
	u = strings.TrimSuffix(u, "/")
	if !strings.HasSuffix(u, mainServerSuffix) {
		u += mainServerSuffix
	}
	return u
}

func ValidateEndpointFormat(endpoint Endpoint, format DataFormat) error {
	if !endpoint.Valid() {
		return NewValidationError(fmt.Sprintf("unknown endpoint %q", endpoint))
	}
	if !format.Valid() {
		return NewValidationError(fmt.Sprintf("unknown data format %q", format))
	}
	if _, ok := unsupportedFormats[endpointFormat{endpoint, format}]; ok {
		return NewValidationError(fmt.Sprintf("format %q is not supported for endpoint %q", format, endpoint))
	}
	return nil
}

// ValidateCoordinates reports latitude problems before longitude problems.
func ValidateCoordinates(c Coordinates) error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return NewValidationError(fmt.Sprintf("latitude %v must be between -90 and 90", c.Latitude))
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return NewValidationError(fmt.Sprintf("longitude %v must be between -180 and 180", c.Longitude))
	}
	return nil
}

// ValidateRadius is unit-less; callers track miles vs km.
func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || radius <= 0 {
		return NewValidationError(fmt.Sprintf("radius %v must be greater than 0", radius))
	}
	if radius > maxRadius {
		return NewValidationError(fmt.Sprintf("radius %v cannot exceed %v", radius, maxRadius))
	}
	return nil
}

// BuildURL assembles a semantic request URL. The path always ends in
// client_interface/json/; the requested format travels in data_format_type.
func BuildURL(rootServerURL string, endpoint Endpoint, format DataFormat, params Params) (string, error) {
	if err := ValidateRootServerURL(rootServerURL); err != nil {
		return "", err
	}
	if err := ValidateEndpointFormat(endpoint, format); err != nil {
		return "", err
	}

	root := strings.TrimRight(strings.TrimSpace(rootServerURL), "/")

	q := params.Clone()
	q["switcher"] = string(endpoint)
	if format != FormatJSON {
		q["data_format_type"] = string(format)
	}
	return root + clientInterface + "?" + q.Encode(), nil
}
