package model

// Resort is one catalog record. Latitude and Longitude are nil until the
// record has been geocoded.
type Resort struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Location     string   `json:"location"`
	Tier         *string  `json:"tier"`
	AllInclusive bool     `json:"all_inclusive"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// HasCoordinates reports whether both coordinates are set.
func (r *Resort) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// SetCoordinates sets both coordinates.
func (r *Resort) SetCoordinates(lat, lon float64) {
	r.Latitude = &lat
	r.Longitude = &lon
}

// ClearCoordinates sets both coordinates to null.
func (r *Resort) ClearCoordinates() {
	r.Latitude = nil
	r.Longitude = nil
}

// FailedRecord identifies a record whose location could not be resolved.
type FailedRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Normalized string `json:"normalized"`
}
