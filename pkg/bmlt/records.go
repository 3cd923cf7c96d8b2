package bmlt

// Coordinates is a WGS84 point. Range checks live in ValidateCoordinates.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Meeting is one recurring meeting as returned by GetSearchResults.
type Meeting struct {
	ID            int64   `json:"id"`
	WorldID       string  `json:"world_id,omitempty"`
	ServiceBodyID int64   `json:"service_body_id,omitempty"`
	Name          string  `json:"name"`
	Weekday       Weekday `json:"weekday"`

	// HH:MM:SS, as sent by the server
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	Duration  string `json:"duration,omitempty"`
	TimeZone  string `json:"time_zone,omitempty"`

	LocationText           string  `json:"location_text,omitempty"`
	LocationInfo           string  `json:"location_info,omitempty"`
	LocationStreet         string  `json:"location_street,omitempty"`
	LocationNeighborhood   string  `json:"location_neighborhood,omitempty"`
	LocationCitySubsection string  `json:"location_city_subsection,omitempty"`
	LocationMunicipality   string  `json:"location_municipality,omitempty"`
	LocationSubProvince    string  `json:"location_sub_province,omitempty"`
	LocationProvince       string  `json:"location_province,omitempty"`
	LocationPostalCode     string  `json:"location_postal_code,omitempty"`
	LocationNation         string  `json:"location_nation,omitempty"`
	Latitude               float64 `json:"latitude,omitempty"`
	Longitude              float64 `json:"longitude,omitempty"`

	VenueType                    VenueType `json:"venue_type,omitempty"`
	VirtualMeetingLink           string    `json:"virtual_meeting_link,omitempty"`
	VirtualMeetingAdditionalInfo string    `json:"virtual_meeting_additional_info,omitempty"`
	PhoneMeetingNumber           string    `json:"phone_meeting_number,omitempty"`

	Comments  string `json:"comments,omitempty"`
	Language  string `json:"language,omitempty"`
	Published bool   `json:"published"`

	// only populated by proximity searches
	DistanceInMiles *float64 `json:"distance_in_miles,omitempty"`
	DistanceInKm    *float64 `json:"distance_in_km,omitempty"`

	Formats         []string `json:"formats,omitempty"`
	FormatSharedIDs []string `json:"format_shared_id_list,omitempty"`
}

// Coordinates returns the meeting location.
func (m Meeting) Coordinates() Coordinates {
	return Coordinates{Latitude: m.Latitude, Longitude: m.Longitude}
}

func (m Meeting) IsVirtual() bool { return m.VenueType == VenueVirtual }

func (m Meeting) IsHybrid() bool { return m.VenueType == VenueHybrid }

// MeetingFromMap deserializes one GetSearchResults row.
func MeetingFromMap(m map[string]any) (Meeting, error) {
	r := newRecord("meeting", m)
	out := Meeting{
		ID:            r.int64("id_bigint", true),
		WorldID:       r.str("worldid_mixed", false),
		ServiceBodyID: r.int64("service_body_bigint", false),
		Name:          r.str("meeting_name", true),
		Weekday:       Weekday(r.int64("weekday_tinyint", true)),
		StartTime:     r.str("start_time", true),
		EndTime:       r.str("end_time", false),
		Duration:      r.str("duration_time", false),
		TimeZone:      r.str("time_zone", false),

		LocationText:           r.str("location_text", false),
		LocationInfo:           r.str("location_info", false),
		LocationStreet:         r.str("location_street", false),
		LocationNeighborhood:   r.str("location_neighborhood", false),
		LocationCitySubsection: r.str("location_city_subsection", false),
		LocationMunicipality:   r.str("location_municipality", false),
		LocationSubProvince:    r.str("location_sub_province", false),
		LocationProvince:       r.str("location_province", false),
		LocationPostalCode:     r.str("location_postal_code_1", false),
		LocationNation:         r.str("location_nation", false),
		Latitude:               r.float("latitude"),
		Longitude:              r.float("longitude"),

		VenueType:                    VenueType(r.int64("venue_type", false)),
		VirtualMeetingLink:           r.str("virtual_meeting_link", false),
		VirtualMeetingAdditionalInfo: r.str("virtual_meeting_additional_info", false),
		PhoneMeetingNumber:           r.str("phone_meeting_number", false),

		Comments:  r.str("comments", false),
		Language:  r.str("lang_enum", false),
		Published: r.boolean("published", true),

		DistanceInMiles: r.optFloat("distance_in_miles"),
		DistanceInKm:    r.optFloat("distance_in_km"),

		Formats:         r.list("formats"),
		FormatSharedIDs: r.list("format_shared_id_list"),
	}
	if r.err != nil {
		return Meeting{}, r.err
	}
	return out, nil
}

// Format is a meeting attribute tag definition.
type Format struct {
	ID                int64  `json:"id"`
	KeyString         string `json:"key_string"`
	NameString        string `json:"name_string"`
	DescriptionString string `json:"description_string,omitempty"`
	Lang              string `json:"lang"`
	FormatTypeEnum    string `json:"format_type_enum"`
	WorldID           string `json:"world_id,omitempty"`
}

func FormatFromMap(m map[string]any) (Format, error) {
	r := newRecord("format", m)
	out := Format{
		ID:                r.int64("id", true),
		KeyString:         r.str("key_string", true),
		NameString:        r.str("name_string", true),
		DescriptionString: r.str("description_string", false),
		Lang:              r.str("lang", false),
		FormatTypeEnum:    r.str("format_type_enum", false),
		WorldID:           r.str("world_id", false),
	}
	if r.err != nil {
		return Format{}, r.err
	}
	if out.Lang == "" {
		out.Lang = "en"
	}
	if out.FormatTypeEnum == "" {
		out.FormatTypeEnum = "FC3"
	}
	return out, nil
}

// ServiceBody is a node in the organizational hierarchy.
type ServiceBody struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	URI         string `json:"uri,omitempty"`
	KMLURI      string `json:"kml_uri,omitempty"`
	Helpline    string `json:"helpline,omitempty"`
	WorldID     string `json:"world_id,omitempty"`
}

func ServiceBodyFromMap(m map[string]any) (ServiceBody, error) {
	r := newRecord("service body", m)
	out := ServiceBody{
		ID:          r.int64("id", true),
		Name:        r.str("name", true),
		Type:        r.str("type", true),
		Description: r.str("description", false),
		ParentID:    r.optInt64("parent_id"),
		URI:         r.firstStr("uri", "url"),
		KMLURI:      r.firstStr("kml_uri", "kml_file_uri"),
		Helpline:    r.str("helpline", false),
		WorldID:     r.str("world_id", false),
	}
	if r.err != nil {
		return ServiceBody{}, r.err
	}
	return out, nil
}

// ServerInfo describes a root server installation.
type ServerInfo struct {
	Version                    string   `json:"version"`
	SemanticAdminServerBaseURI string   `json:"semantic_admin_server_base_uri,omitempty"`
	Langs                      []string `json:"langs,omitempty"`
	Charset                    string   `json:"charset,omitempty"`
	ServerTimeZoneInfo         string   `json:"server_time_zone_info,omitempty"`
}

func ServerInfoFromMap(m map[string]any) (ServerInfo, error) {
	r := newRecord("server info", m)
	out := ServerInfo{
		Version:                    r.str("version", true),
		SemanticAdminServerBaseURI: r.str("semantic_admin_server_base_uri", false),
		Langs:                      r.list("langs"),
		Charset:                    r.str("charset", false),
		ServerTimeZoneInfo:         r.firstStr("server_time_zone_info", "server_time_zone"),
	}
	if r.err != nil {
		return ServerInfo{}, r.err
	}
	return out, nil
}

// GeocodeResult pairs a point with the provider's label. RawData keeps the
// provider record for callers that need more fields.
type GeocodeResult struct {
	Coordinates Coordinates    `json:"coordinates"`
	DisplayName string         `json:"display_name"`
	RawData     map[string]any `json:"raw_data,omitempty"`
}

// FieldKey is one row of GetFieldKeys.
type FieldKey struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

func FieldKeyFromMap(m map[string]any) (FieldKey, error) {
	r := newRecord("field key", m)
	out := FieldKey{
		Key:         r.str("key", true),
		Description: r.str("description", false),
	}
	if r.err != nil {
		return FieldKey{}, r.err
	}
	return out, nil
}

// CoverageArea is the bounding rectangle of all meetings on a server.
type CoverageArea struct {
	NorthWest Coordinates `json:"nw_corner"`
	SouthEast Coordinates `json:"se_corner"`
}

func CoverageAreaFromMap(m map[string]any) (CoverageArea, error) {
	r := newRecord("coverage area", m)
	nwLat := r.optFloat("nw_corner_latitude")
	nwLng := r.optFloat("nw_corner_longitude")
	seLat := r.optFloat("se_corner_latitude")
	seLng := r.optFloat("se_corner_longitude")
	if nwLat == nil {
		r.fail("nw_corner_latitude", "missing required field")
	}
	if nwLng == nil {
		r.fail("nw_corner_longitude", "missing required field")
	}
	if seLat == nil {
		r.fail("se_corner_latitude", "missing required field")
	}
	if seLng == nil {
		r.fail("se_corner_longitude", "missing required field")
	}
	if r.err != nil {
		return CoverageArea{}, r.err
	}
	return CoverageArea{
		NorthWest: Coordinates{Latitude: *nwLat, Longitude: *nwLng},
		SouthEast: Coordinates{Latitude: *seLat, Longitude: *seLng},
	}, nil
}

// mapRows applies fn to every row and stops at the first failure.
func mapRows[T any](v any, fn func(map[string]any) (T, error)) ([]T, error) {
	rs := rows(v)
	out := make([]T, 0, len(rs))
	for _, row := range rs {
		item, err := fn(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
