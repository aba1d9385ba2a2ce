package matching

import (
	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/internal/couriers"
)

// MatchInput is a buyer-side request for eligible couriers.
type MatchInput struct {
	OrderID        uuid.UUID
	CallerID       uuid.UUID
	BuyerLatitude  *float64
	BuyerLongitude *float64
}

// MatchResponse is the payload returned by the matching endpoint.
type MatchResponse struct {
	OrderID      uuid.UUID      `json:"orderId"`
	Region       RegionDTO      `json:"region"`
	Candidates   []CandidateDTO `json:"candidates"`
	TotalMatches int            `json:"totalMatches"`
}

type RegionDTO struct {
	Country     string `json:"country"`
	IsCaribbean bool   `json:"isCaribbean"`
	Policy      string `json:"policy"`
}

type CandidateDTO struct {
	CourierID                  uuid.UUID `json:"courierId"`
	UserID                     uuid.UUID `json:"userId"`
	DisplayName                string    `json:"displayName"`
	Location                   string    `json:"location"`
	VehicleType                string    `json:"vehicleType"`
	TransportModes             []string  `json:"transportModes"`
	MaxDistance                float64   `json:"maxDistance"`
	DistanceToSeller           float64   `json:"distanceToSeller"`
	DistanceToBuyer            *float64  `json:"distanceToBuyer"`
	DistanceFromCourierToBuyer *float64  `json:"distanceFromCourierToBuyer"`
	TotalDeliveryDistance      float64   `json:"totalDeliveryDistance"`
	Rating                     float64   `json:"rating"`
	CompletedDeliveries        int       `json:"completedDeliveries"`
	PositionSource             string    `json:"positionSource"`
}

func toResponse(orderID uuid.UUID, res *Result) *MatchResponse {
	out := &MatchResponse{
		OrderID: orderID,
		Region: RegionDTO{
			Country:     res.Region.Country,
			IsCaribbean: res.Region.IsCaribbean,
			Policy:      res.Region.Policy,
		},
		Candidates: make([]CandidateDTO, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, toCandidateDTO(c))
	}
	out.TotalMatches = len(out.Candidates)
	return out
}

func toCandidateDTO(c Candidate) CandidateDTO {
	modes := make([]string, 0, len(c.Courier.TransportModes))
	for _, m := range c.Courier.TransportModes {
		modes = append(modes, string(m))
	}
	return CandidateDTO{
		CourierID:                  c.Courier.ProfileID,
		UserID:                     c.Courier.UserID,
		DisplayName:                c.Courier.DisplayName,
		Location:                   locationOrDefault(c.Courier),
		VehicleType:                string(c.Courier.PrimaryMode()),
		TransportModes:             modes,
		MaxDistance:                c.Courier.MaxDistanceKm,
		DistanceToSeller:           c.DistanceToSeller,
		DistanceToBuyer:            c.DistanceToBuyer,
		DistanceFromCourierToBuyer: c.DistanceFromCourierToBuyer,
		TotalDeliveryDistance:      c.TotalDeliveryDistance,
		Rating:                     c.Courier.Rating,
		CompletedDeliveries:        c.Courier.CompletedDeliveries,
		PositionSource:             string(c.Courier.Position.Source),
	}
}

func locationOrDefault(c couriers.Courier) string {
	if c.LocationLabel == "" {
		return "Unknown location"
	}
	return c.LocationLabel
}
