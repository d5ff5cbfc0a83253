package geospatial

import (
	"context"

	"go.uber.org/zap"
)

// Source names the step of the resolver chain that produced a point
type Source string

const (
	SourceTable    Source = "table"
	SourceGeocoder Source = "geocoder"
	SourceCache    Source = "cache"
	SourceDefault  Source = "default"
)

// Resolution is a resolved point together with where it came from
type Resolution struct {
	Point  GeoPoint `json:"point"`
	Source Source   `json:"source"`
}

// Resolver maps a location string to a point through table, geocoder, then the
// continental center. It never fails.
type Resolver struct {
	geocoder Geocoder
	cache    *GeocodeCache
	logger   *zap.Logger
}

// NewResolver creates a resolver. geocoder may be nil to disable network lookups.
func NewResolver(geocoder Geocoder, logger *zap.Logger) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		cache:    NewGeocodeCache(),
		logger:   logger,
	}
}

// Resolve returns the point for location
func (r *Resolver) Resolve(ctx context.Context, location string) GeoPoint {
	return r.ResolveWithSource(ctx, location).Point
}

// ResolveWithSource returns the point and the chain step that produced it
func (r *Resolver) ResolveWithSource(ctx context.Context, location string) Resolution {
	if pt, ok := LookupCity(location); ok {
		return Resolution{Point: pt, Source: SourceTable}
	}

	city := CityToken(location)
	key := normalizeName(city)
	if key == "" || r.geocoder == nil {
		return Resolution{Point: ContinentalCenter, Source: SourceDefault}
	}

	if pt, found, cached := r.cache.Get(key); cached {
		if found {
			return Resolution{Point: pt, Source: SourceCache}
		}
		return Resolution{Point: ContinentalCenter, Source: SourceDefault}
	}

	pt, err := r.geocoder.Geocode(ctx, city)
	if err != nil {
		r.logger.Warn("Geocoding failed, using continental center",
			zap.String("city", city),
			zap.Error(err))
		if ctx.Err() == nil {
			r.cache.SetMissing(key)
		}
		return Resolution{Point: ContinentalCenter, Source: SourceDefault}
	}

	r.cache.Set(key, pt)
	return Resolution{Point: pt, Source: SourceGeocoder}
}

// CacheStats exposes geocode cache statistics
func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}
