package matching

import (
	"cmp"

	"github.com/localmarket/marketplace-backend/internal/couriers"
)

// Fixed dispatch ceilings.
const (
	IslandMaxPickupKm  = 50.0
	MainlandMaxTotalKm = 100.0
)

// RegionClass groups countries that share a matching rule set.
type RegionClass string

const (
	RegionIsland   RegionClass = "ISLAND"
	RegionMainland RegionClass = "MAINLAND"
)

// islandCountries are the Caribbean territories served with the island policy.
var islandCountries = map[string]struct{}{
	"CW": {}, // Curaçao
	"AW": {}, // Aruba
	"SX": {}, // Sint Maarten
	"BQ": {}, // Bonaire, Sint Eustatius and Saba
}

// ClassifyCountry returns the region class for an ISO country code.
func ClassifyCountry(countryCode string) RegionClass {
	if _, ok := islandCountries[couriers.NormalizeCountry(countryCode)]; ok {
		return RegionIsland
	}
	return RegionMainland
}

// RegionPolicy decides which scored couriers are admitted and how they rank.
type RegionPolicy interface {
	Name() string
	Class() RegionClass
	Admits(c Candidate) bool
	// Compare orders a before b when negative.
	Compare(a, b Candidate) int
}

// PolicyFor selects the policy for the seller's country.
func PolicyFor(countryCode string) RegionPolicy {
	if ClassifyCountry(countryCode) == RegionIsland {
		return islandPolicy{}
	}
	return mainlandPolicy{}
}

// islandPolicy gates on a fixed pickup distance and ranks by reputation.
// Declared radii are ignored on the islands.
type islandPolicy struct{}

func (islandPolicy) Name() string       { return "island_proximity" }
func (islandPolicy) Class() RegionClass { return RegionIsland }

func (islandPolicy) Admits(c Candidate) bool {
	return c.DistanceToSeller <= IslandMaxPickupKm
}

func (islandPolicy) Compare(a, b Candidate) int {
	if r := cmp.Compare(b.Courier.Rating, a.Courier.Rating); r != 0 {
		return r
	}
	return cmp.Compare(b.Courier.CompletedDeliveries, a.Courier.CompletedDeliveries)
}

// mainlandPolicy honours the courier's declared radius on both courier legs
// and caps the whole trip.
type mainlandPolicy struct{}

func (mainlandPolicy) Name() string       { return "mainland_radius" }
func (mainlandPolicy) Class() RegionClass { return RegionMainland }

func (mainlandPolicy) Admits(c Candidate) bool {
	radius := c.Courier.MaxDistanceKm
	if c.DistanceToSeller > radius {
		return false
	}
	if c.DistanceFromCourierToBuyer != nil && *c.DistanceFromCourierToBuyer > radius {
		return false
	}
	return c.TotalDeliveryDistance <= MainlandMaxTotalKm
}

func (mainlandPolicy) Compare(a, b Candidate) int {
	return cmp.Compare(a.TotalDeliveryDistance, b.TotalDeliveryDistance)
}
