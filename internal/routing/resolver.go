package routing

import (
	"context"
	"strconv"
	"time"

	"github.com/localmarket/marketplace-backend/pkg/geo"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/maps"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/redis"
)

const keyPrecision = 5

// Provider answers road-network distances in kilometers.
type Provider interface {
	Distance(ctx context.Context, origin, destination geo.Point, mode maps.TravelMode) (float64, error)
}

// Cache is the subset of the redis client used to memoize provider answers.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	RouteKey(parts ...string) string
}

// Distance is a resolved leg length and where it came from.
type Distance struct {
	Km     float64
	Source string
}

// Resolver returns road distances, degrading to great-circle distance when
// the provider is missing or fails. It never returns an error.
type Resolver struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
}

type ResolverParams struct {
	Provider Provider
	Cache    Cache
	CacheTTL time.Duration
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
}

// NewResolver builds a resolver; Provider and Cache are optional.
func NewResolver(params ResolverParams) *Resolver {
	return &Resolver{
		provider: params.Provider,
		cache:    params.Cache,
		ttl:      params.CacheTTL,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}
}

// Distance resolves the leg from origin to destination for the travel mode.
func (r *Resolver) Distance(ctx context.Context, origin, destination geo.Point, mode maps.TravelMode) Distance {
	if r.provider == nil {
		return r.fallback(origin, destination)
	}

	key := r.cacheKey(origin, destination, mode)
	if km, ok := r.cached(ctx, key); ok {
		r.metrics.IncRouteLookup(metrics.RouteSourceCache)
		return Distance{Km: km, Source: metrics.RouteSourceCache}
	}

	km, err := r.provider.Distance(ctx, origin, destination, mode)
	if err != nil {
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"origin":      origin.String(),
				"destination": destination.String(),
				"mode":        string(mode),
				"error":       err.Error(),
			})
			r.logg.Warn(logCtx, "routing provider failed, using great-circle distance")
		}
		return r.fallback(origin, destination)
	}

	r.store(ctx, key, km)
	r.metrics.IncRouteLookup(metrics.RouteSourceProvider)
	return Distance{Km: km, Source: metrics.RouteSourceProvider}
}

func (r *Resolver) fallback(origin, destination geo.Point) Distance {
	r.metrics.IncRouteLookup(metrics.RouteSourceFallback)
	return Distance{Km: geo.HaversineKm(origin, destination), Source: metrics.RouteSourceFallback}
}

func (r *Resolver) cached(ctx context.Context, key string) (float64, bool) {
	if r.cache == nil || key == "" {
		return 0, false
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) && r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "route cache read failed")
		}
		return 0, false
	}
	km, err := strconv.ParseFloat(raw, 64)
	if err != nil || km < 0 {
		return 0, false
	}
	return km, true
}

func (r *Resolver) store(ctx context.Context, key string, km float64) {
	if r.cache == nil || key == "" || r.ttl <= 0 {
		return
	}
	value := strconv.FormatFloat(km, 'f', -1, 64)
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "route cache write failed")
	}
}

func (r *Resolver) cacheKey(origin, destination geo.Point, mode maps.TravelMode) string {
	if r.cache == nil {
		return ""
	}
	return r.cache.RouteKey(string(mode), formatPoint(origin), formatPoint(destination))
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', keyPrecision, 64) + "," + strconv.FormatFloat(p.Lng, 'f', keyPrecision, 64)
}
