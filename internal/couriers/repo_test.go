package couriers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/dbtest"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
)

func TestListActiveByCountry(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	cwUser := dbtest.User(t, db, func(u *models.User) { u.CountryCode = "CW" })
	active := dbtest.Courier(t, db, cwUser, nil)

	idleUser := dbtest.User(t, db, func(u *models.User) { u.CountryCode = "CW" })
	dbtest.Courier(t, db, idleUser, func(p *models.DeliveryProfile) { p.IsActive = false })

	awUser := dbtest.User(t, db, func(u *models.User) { u.CountryCode = "AW" })
	dbtest.Courier(t, db, awUser, nil)

	profiles, err := repo.ListActiveByCountry(context.Background(), " cw ")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, active.ID, profiles[0].ID)
	assert.Equal(t, cwUser.ID, profiles[0].User.ID)
	assert.Equal(t, []string{"BICYCLE"}, []string(profiles[0].TransportationModes))
}

func TestFindByUserID(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	user := dbtest.User(t, db, nil)
	profile := dbtest.Courier(t, db, user, nil)

	got, err := repo.FindByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ID)
	assert.Equal(t, user.DisplayName, got.User.DisplayName)

	_, err = repo.FindByUserID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
