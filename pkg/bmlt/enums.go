package bmlt

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint is a BMLT semantic switcher value.
type Endpoint string

const (
	EndpointSearchResults Endpoint = "GetSearchResults"
	EndpointFormats       Endpoint = "GetFormats"
	EndpointServiceBodies Endpoint = "GetServiceBodies"
	EndpointChanges       Endpoint = "GetChanges"
	EndpointFieldKeys     Endpoint = "GetFieldKeys"
	EndpointFieldValues   Endpoint = "GetFieldValues"
	EndpointNAWSDump      Endpoint = "GetNAWSDump"
	EndpointServerInfo    Endpoint = "GetServerInfo"
	EndpointCoverageArea  Endpoint = "GetCoverageArea"
)

// Endpoints lists every known endpoint in wire order.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointSearchResults,
		EndpointFormats,
		EndpointServiceBodies,
		EndpointChanges,
		EndpointFieldKeys,
		EndpointFieldValues,
		EndpointNAWSDump,
		EndpointServerInfo,
		EndpointCoverageArea,
	}
}

func (e Endpoint) Valid() bool {
	switch e {
	case EndpointSearchResults, EndpointFormats, EndpointServiceBodies,
		EndpointChanges, EndpointFieldKeys, EndpointFieldValues,
		EndpointNAWSDump, EndpointServerInfo, EndpointCoverageArea:
		return true
	}
	return false
}

func (e Endpoint) String() string { return string(e) }

// DataFormat selects the response encoding through data_format_type.
type DataFormat string

const (
	FormatJSON  DataFormat = "json"
	FormatJSONP DataFormat = "jsonp"
	FormatTSML  DataFormat = "tsml"
	FormatCSV   DataFormat = "csv"
)

func (f DataFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatJSONP, FormatTSML, FormatCSV:
		return true
	}
	return false
}

func (f DataFormat) String() string { return string(f) }

// accept returns the Accept header value sent for the format.
func (f DataFormat) accept() string {
	switch f {
	case FormatCSV:
		return "text/csv, text/plain;q=0.9, */*;q=0.1"
	case FormatJSONP:
		return "application/javascript, text/javascript;q=0.9, */*;q=0.1"
	case FormatJSON, FormatTSML:
		return "application/json"
	}
	return "*/*"
}

// ParseDataFormat accepts the wire names case-insensitively.
func ParseDataFormat(s string) (DataFormat, error) {
	f := DataFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", NewValidationError(fmt.Sprintf("unsupported data format %q", s))
	}
	return f, nil
}

// VenueType is the physical/virtual nature of a meeting.
type VenueType int

const (
	VenueInPerson VenueType = 1
	VenueVirtual  VenueType = 2
	VenueHybrid   VenueType = 3
)

func (v VenueType) Valid() bool {
	switch v {
	case VenueInPerson, VenueVirtual, VenueHybrid:
		return true
	}
	return false
}

func (v VenueType) String() string {
	switch v {
	case VenueInPerson:
		return "in-person"
	case VenueVirtual:
		return "virtual"
	case VenueHybrid:
		return "hybrid"
	}
	return "unknown(" + strconv.Itoa(int(v)) + ")"
}

// Weekday uses BMLT numbering: Sunday=1 ... Saturday=7.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	switch d {
	case Sunday:
		return "Sunday"
	case Monday:
		return "Monday"
	case Tuesday:
		return "Tuesday"
	case Wednesday:
		return "Wednesday"
	case Thursday:
		return "Thursday"
	case Friday:
		return "Friday"
	case Saturday:
		return "Saturday"
	}
	return "Weekday(" + strconv.Itoa(int(d)) + ")"
}

// Language is a BMLT lang_enum value.
type Language string

const (
	LangEnglish    Language = "en"
	LangSpanish    Language = "es"
	LangFrench     Language = "fr"
	LangGerman     Language = "de"
	LangItalian    Language = "it"
	LangPortuguese Language = "pt"
	LangSwedish    Language = "sv"
	LangDanish     Language = "dk"
	LangPersian    Language = "fa"
	LangPolish     Language = "pl"
	LangRussian    Language = "ru"
	LangJapanese   Language = "ja"
)

func (l Language) Valid() bool {
	switch l {
	case LangEnglish, LangSpanish, LangFrench, LangGerman, LangItalian,
		LangPortuguese, LangSwedish, LangDanish, LangPersian, LangPolish,
		LangRussian, LangJapanese:
		return true
	}
	return false
}

// SortKey is a field accepted by the sort_keys search parameter.
type SortKey string

const (
	SortByWeekday      SortKey = "weekday_tinyint"
	SortByStartTime    SortKey = "start_time"
	SortByMunicipality SortKey = "location_municipality"
	SortByName         SortKey = "meeting_name"
	SortByID           SortKey = "id_bigint"
	SortByServiceBody  SortKey = "service_body_bigint"
	SortByProvince     SortKey = "location_province"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortByWeekday, SortByStartTime, SortByMunicipality, SortByName,
		SortByID, SortByServiceBody, SortByProvince:
		return true
	}
	return false
}
