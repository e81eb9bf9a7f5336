package types

import (
	"fmt"
	"math"
	"strconv"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point holds finite, in-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("coordinates must be finite numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// ParsePoint parses textual lat/lng values, as submitted in query strings.
func ParsePoint(lat, lng string) (Point, error) {
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude %q", lat)
	}
	lngF, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude %q", lng)
	}
	p := Point{Lat: latF, Lng: lngF}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points in kilometers.
func (p Point) DistanceKm(o Point) float64 {
	latA := p.Lat * math.Pi / 180
	latB := o.Lat * math.Pi / 180
	dLat := (o.Lat - p.Lat) * math.Pi / 180
	dLng := (o.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
