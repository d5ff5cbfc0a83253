package geospatial

import (
	"fmt"
	"image"
	"strings"

	"github.com/paulmach/orb"
)

// GeoPoint is a resolved latitude/longitude pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point converts to an orb point (lon, lat)
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lon)
}

// FromPoint converts an orb point (lon, lat)
func FromPoint(pt orb.Point) GeoPoint {
	return GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
}

var (
	// ContinentalCenter is the last fallback of the resolver chain
	ContinentalCenter = GeoPoint{Lat: 39.5, Lon: -98.35}

	ContiguousBounds = orb.Bound{Min: orb.Point{-124.5, 25.0}, Max: orb.Point{-67.0, 49.0}}
	AlaskaBounds     = orb.Bound{Min: orb.Point{-180.0, 51.0}, Max: orb.Point{-129.0, 72.0}}
	HawaiiBounds     = orb.Bound{Min: orb.Point{-160.5, 18.5}, Max: orb.Point{-154.5, 22.5}}
)

// CityToken returns the part of a location before the first comma, trimmed
func CityToken(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}

// RegionFromXYWH builds a map region rectangle from x, y, width, height
func RegionFromXYWH(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
