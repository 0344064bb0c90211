package model

// MaxFacilityNameLen is the longest facility name, in characters.
const MaxFacilityNameLen = 255

// Facility is an amenity (Wifi, WC, ...) that can be attached to any
// number of buses.  Facility names are unique and never empty.
//
// Fields:
//
//	ID   – primary key identifier.
//	Name – unique display name.
type Facility struct {
	ID   uint64 `json:"id"`   // facilities.id
	Name string `json:"name"` // facilities.name
}
