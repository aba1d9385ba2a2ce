package couriers

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

type stubRepo struct {
	listFn func(ctx context.Context, country string) ([]models.DeliveryProfile, error)
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) ListActiveByCountry(ctx context.Context, country string) ([]models.DeliveryProfile, error) {
	return s.listFn(ctx, country)
}

func (s *stubRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestPoolSkipsInvalidProfiles(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	good := profileWithHome(12.1, -68.9)
	bad := profileWithHome(12.1, -68.9)
	bad.TransportationModes = pq.StringArray{"JETPACK"}

	var gotCountry string
	pool, err := NewPool(&stubRepo{listFn: func(ctx context.Context, country string) ([]models.DeliveryProfile, error) {
		gotCountry = country
		return []models.DeliveryProfile{good, bad}, nil
	}}, logg)
	require.NoError(t, err)

	out, err := pool.ActiveInCountry(context.Background(), "cw")
	require.NoError(t, err)
	assert.Equal(t, "CW", gotCountry)
	require.Len(t, out, 1)
	assert.Equal(t, good.ID, out[0].ProfileID)
	assert.Contains(t, buf.String(), "skipping invalid delivery profile")
}

func TestPoolDropsProfilesFromOtherCountries(t *testing.T) {
	other := profileWithHome(12.5, -70.0)
	other.User.CountryCode = "AW"

	pool, err := NewPool(&stubRepo{listFn: func(ctx context.Context, country string) ([]models.DeliveryProfile, error) {
		return []models.DeliveryProfile{other}, nil
	}}, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)

	out, err := pool.ActiveInCountry(context.Background(), "CW")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPoolPropagatesRepositoryErrors(t *testing.T) {
	pool, err := NewPool(&stubRepo{listFn: func(ctx context.Context, country string) ([]models.DeliveryProfile, error) {
		return nil, errors.New("db down")
	}}, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)

	_, err = pool.ActiveInCountry(context.Background(), "NL")
	require.ErrorContains(t, err, "db down")

	_, err = pool.ActiveInCountry(context.Background(), " ")
	require.Error(t, err)
}

func TestNewPoolValidatesDependencies(t *testing.T) {
	_, err := NewPool(nil, logger.New(logger.Options{}))
	require.Error(t, err)
	_, err = NewPool(&stubRepo{}, nil)
	require.Error(t, err)
}
