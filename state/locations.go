package state

import "math"

// LocationGlobal is WGS84 lat/lon with MSL altitude. Alt is nil until a
// GLOBAL_POSITION_INT with a non-zero raw alt field has been observed (the
// barometer warm-up gate documented in spec §9).
type LocationGlobal struct {
	Lat, Lon float64 // degrees
	Alt      *float64 // meters, MSL
}

// LocationGlobalRelative is WGS84 lat/lon with altitude relative to the
// vehicle's home/EKF-origin point.
type LocationGlobalRelative struct {
	Lat, Lon    float64 // degrees
	RelativeAlt float64 // meters
}

// LocationLocal is a NED offset from the EKF origin.
type LocationLocal struct {
	North, East, Down float32 // meters
}

// LocationGlobalFromMAVLink converts the raw GLOBAL_POSITION_INT lat/lon/alt
// integer encoding (1e7-scaled degrees, millimeter altitude) into a
// LocationGlobal. altRaw == 0 means "not yet warmed up" and Alt is left
// nil, per spec §4.5.
func LocationGlobalFromMAVLink(latE7, lonE7, altRaw int32) LocationGlobal {
	loc := LocationGlobal{
		Lat: float64(latE7) / 1e7,
		Lon: float64(lonE7) / 1e7,
	}
	if altRaw != 0 {
		alt := float64(altRaw) / 1000.0
		loc.Alt = &alt
	}
	return loc
}

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two global
// locations (haversine formula).
func (l LocationGlobal) Distance(other LocationGlobal) float64 {
	lat1, lat2 := l.Lat*math.Pi/180, other.Lat*math.Pi/180
	dLat := (other.Lat - l.Lat) * math.Pi / 180
	dLon := (other.Lon - l.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Distance returns the Euclidean distance in meters between two local
// (NED) locations.
func (l LocationLocal) Distance(other LocationLocal) float64 {
	dn := float64(l.North - other.North)
	de := float64(l.East - other.East)
	dd := float64(l.Down - other.Down)
	return math.Sqrt(dn*dn + de*de + dd*dd)
}
