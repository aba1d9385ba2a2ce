package couriers

import (
	"context"
	"errors"
	"fmt"

	"github.com/localmarket/marketplace-backend/pkg/logger"
)

// Pool lists couriers eligible for dispatch in a country.
type Pool struct {
	repo Repository
	logg *logger.Logger
}

func NewPool(repo Repository, logg *logger.Logger) (*Pool, error) {
	if repo == nil {
		return nil, errors.New("courier repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Pool{repo: repo, logg: logg}, nil
}

// ActiveInCountry returns active couriers whose owning user lives in the
// given country. Profiles that fail validation are logged and skipped.
func (p *Pool) ActiveInCountry(ctx context.Context, countryCode string) ([]Courier, error) {
	country := NormalizeCountry(countryCode)
	if country == "" {
		return nil, errors.New("country code required")
	}

	profiles, err := p.repo.ListActiveByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("list active couriers: %w", err)
	}

	out := make([]Courier, 0, len(profiles))
	for _, profile := range profiles {
		courier, err := NewCourier(profile)
		if err != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "skipping invalid delivery profile")
			continue
		}
		if courier.CountryCode != country {
			continue
		}
		out = append(out, courier)
	}
	return out, nil
}
