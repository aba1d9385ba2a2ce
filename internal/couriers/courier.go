package couriers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	"github.com/localmarket/marketplace-backend/pkg/geo"
)

// PositionSource tells which coordinate a courier is scored from.
type PositionSource string

const (
	PositionUnknown PositionSource = "unknown"
	PositionLive    PositionSource = "live"
	PositionHome    PositionSource = "home"
)

// Position is the effective courier coordinate. Point is only meaningful
// when Source is Live or Home.
type Position struct {
	Source PositionSource
	Point  geo.Point
}

func (p Position) Known() bool {
	return p.Source == PositionLive || p.Source == PositionHome
}

// ResolvePosition picks the live coordinate when the courier is online with
// tracking enabled and a live fix present, otherwise the home coordinate.
func ResolvePosition(profile models.DeliveryProfile) Position {
	if profile.GPSTrackingEnabled && profile.IsOnline {
		if p, ok := geo.FromNullable(profile.CurrentLatitude, profile.CurrentLongitude); ok {
			return Position{Source: PositionLive, Point: p}
		}
	}
	if p, ok := geo.FromNullable(profile.User.Latitude, profile.User.Longitude); ok {
		return Position{Source: PositionHome, Point: p}
	}
	return Position{Source: PositionUnknown}
}

// Courier is the dispatch view of an active delivery profile.
type Courier struct {
	ProfileID           uuid.UUID
	UserID              uuid.UUID
	DisplayName         string
	LocationLabel       string
	CountryCode         string
	MaxDistanceKm       float64
	TransportModes      []enums.TransportMode
	Rating              float64
	CompletedDeliveries int
	Position            Position
}

// NewCourier validates a stored profile (with its user preloaded) and
// resolves its effective position.
func NewCourier(profile models.DeliveryProfile) (Courier, error) {
	if profile.ID == uuid.Nil {
		return Courier{}, fmt.Errorf("delivery profile id is required")
	}
	if profile.User.ID == uuid.Nil || profile.User.ID != profile.UserID {
		return Courier{}, fmt.Errorf("delivery profile %s: owning user not loaded", profile.ID)
	}
	if profile.MaxDistance < 0 {
		return Courier{}, fmt.Errorf("delivery profile %s: negative max distance", profile.ID)
	}
	if profile.Rating < 0 || profile.Rating > 5 {
		return Courier{}, fmt.Errorf("delivery profile %s: rating %v out of range", profile.ID, profile.Rating)
	}
	if profile.CompletedDeliveries < 0 {
		return Courier{}, fmt.Errorf("delivery profile %s: negative delivery count", profile.ID)
	}

	modes := make([]enums.TransportMode, 0, len(profile.TransportationModes))
	for _, raw := range profile.TransportationModes {
		mode, err := enums.ParseTransportMode(raw)
		if err != nil {
			return Courier{}, fmt.Errorf("delivery profile %s: %w", profile.ID, err)
		}
		modes = append(modes, mode)
	}

	return Courier{
		ProfileID:           profile.ID,
		UserID:              profile.UserID,
		DisplayName:         strings.TrimSpace(profile.User.DisplayName),
		LocationLabel:       locationLabel(profile.User),
		CountryCode:         NormalizeCountry(profile.User.CountryCode),
		MaxDistanceKm:       profile.MaxDistance,
		TransportModes:      modes,
		Rating:              profile.Rating,
		CompletedDeliveries: profile.CompletedDeliveries,
		Position:            ResolvePosition(profile),
	}, nil
}

// PrimaryMode is the first declared vehicle, or empty when none is declared.
func (c Courier) PrimaryMode() enums.TransportMode {
	if len(c.TransportModes) == 0 {
		return ""
	}
	return c.TransportModes[0]
}

// NormalizeCountry upper-cases and trims an ISO country code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func locationLabel(user models.User) string {
	for _, candidate := range []*string{user.Place, user.City} {
		if candidate != nil {
			if trimmed := strings.TrimSpace(*candidate); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
