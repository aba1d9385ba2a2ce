package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/localmarket/marketplace-backend/internal/couriers"
	"github.com/localmarket/marketplace-backend/internal/routing"
	"github.com/localmarket/marketplace-backend/pkg/geo"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/maps"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
)

const defaultConcurrency = 8

var (
	ErrSellerLocationMissing = errors.New("seller location is required")
	ErrSellerCountryMissing  = errors.New("seller country is required")
)

// CourierSource lists dispatchable couriers in a country.
type CourierSource interface {
	ActiveInCountry(ctx context.Context, countryCode string) ([]couriers.Courier, error)
}

// DistanceSource resolves a leg length; it degrades instead of failing.
type DistanceSource interface {
	Distance(ctx context.Context, origin, destination geo.Point, mode maps.TravelMode) routing.Distance
}

// Query is a validated matching request.
type Query struct {
	OrderID        uuid.UUID
	SellerCountry  string
	SellerLocation geo.Point
	BuyerLocation  *geo.Point
}

// NewQuery validates the inputs of a matching request.
func NewQuery(orderID uuid.UUID, sellerCountry string, sellerLocation, buyerLocation *geo.Point) (Query, error) {
	if orderID == uuid.Nil {
		return Query{}, errors.New("order id is required")
	}
	country := couriers.NormalizeCountry(sellerCountry)
	if country == "" {
		return Query{}, ErrSellerCountryMissing
	}
	if sellerLocation == nil {
		return Query{}, ErrSellerLocationMissing
	}
	return Query{
		OrderID:        orderID,
		SellerCountry:  country,
		SellerLocation: *sellerLocation,
		BuyerLocation:  buyerLocation,
	}, nil
}

// Candidate is a scored courier. Distances are rounded to one decimal km.
type Candidate struct {
	Courier                    couriers.Courier
	DistanceToSeller           float64
	DistanceToBuyer            *float64
	DistanceFromCourierToBuyer *float64
	TotalDeliveryDistance      float64
}

// Region describes the policy applied to a request.
type Region struct {
	Country     string
	Class       RegionClass
	IsCaribbean bool
	Policy      string
}

// Result is the ranked outcome of a matching request.
type Result struct {
	Region     Region
	Candidates []Candidate
}

// Engine scores, admits and ranks couriers for an order.
type Engine struct {
	pool        CourierSource
	distances   DistanceSource
	concurrency int
	metrics     *metrics.DispatchMetrics
	logg        *logger.Logger
}

type EngineParams struct {
	Pool        CourierSource
	Distances   DistanceSource
	Concurrency int
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Pool == nil {
		return nil, errors.New("courier source required")
	}
	if params.Distances == nil {
		return nil, errors.New("distance source required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{
		pool:        params.Pool,
		distances:   params.Distances,
		concurrency: concurrency,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// FindCandidates returns the couriers admitted by the seller region's policy,
// best first. An empty list is a valid outcome.
func (e *Engine) FindCandidates(ctx context.Context, q Query) (*Result, error) {
	started := time.Now()
	policy := PolicyFor(q.SellerCountry)
	region := Region{
		Country:     q.SellerCountry,
		Class:       policy.Class(),
		IsCaribbean: policy.Class() == RegionIsland,
		Policy:      policy.Name(),
	}

	pool, err := e.pool.ActiveInCountry(ctx, q.SellerCountry)
	if err != nil {
		return nil, fmt.Errorf("load courier pool: %w", err)
	}

	eligible := make([]couriers.Courier, 0, len(pool))
	for _, c := range pool {
		if c.Position.Known() {
			eligible = append(eligible, c)
		}
	}

	// The delivery leg does not depend on the courier.
	var deliveryLeg *float64
	if q.BuyerLocation != nil {
		km := geo.RoundKm(e.distances.Distance(ctx, q.SellerLocation, *q.BuyerLocation, maps.TravelModeDriving).Km)
		deliveryLeg = &km
	}

	scored := make([]Candidate, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range eligible {
		g.Go(func() error {
			scored[i] = e.score(gctx, q, c, deliveryLeg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	admitted := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if policy.Admits(c) {
			admitted = append(admitted, c)
		}
	}
	slices.SortStableFunc(admitted, policy.Compare)

	e.metrics.ObserveMatch(policy.Name(), time.Since(started), len(admitted))
	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"order_id": q.OrderID.String(),
			"policy":   policy.Name(),
			"pool":     len(pool),
			"eligible": len(eligible),
			"admitted": len(admitted),
		})
		e.logg.Info(logCtx, "courier matching completed")
	}

	return &Result{Region: region, Candidates: admitted}, nil
}

func (e *Engine) score(ctx context.Context, q Query, c couriers.Courier, deliveryLeg *float64) Candidate {
	mode := maps.ModeFor(c.PrimaryMode())
	origin := c.Position.Point

	candidate := Candidate{
		Courier:          c,
		DistanceToSeller: geo.RoundKm(e.distances.Distance(ctx, origin, q.SellerLocation, mode).Km),
	}
	candidate.TotalDeliveryDistance = candidate.DistanceToSeller

	if q.BuyerLocation != nil && deliveryLeg != nil {
		toBuyer := *deliveryLeg
		direct := geo.RoundKm(e.distances.Distance(ctx, origin, *q.BuyerLocation, mode).Km)
		candidate.DistanceToBuyer = &toBuyer
		candidate.DistanceFromCourierToBuyer = &direct
		candidate.TotalDeliveryDistance = geo.RoundKm(candidate.DistanceToSeller + toBuyer)
	}
	return candidate
}
