package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/pagination"
)

type stubRepository struct {
	list        func(filter listFilter) ([]models.Notification, *pagination.Cursor, error)
	markRead    func(userID, notificationID uuid.UUID) (bool, error)
	markAllRead func(userID uuid.UUID) (int64, error)
	lastAt      time.Time
}

func (s *stubRepository) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepository) Create(context.Context, *models.Notification) error { return nil }

func (s *stubRepository) List(_ context.Context, filter listFilter) ([]models.Notification, *pagination.Cursor, error) {
	if s.list == nil {
		return nil, nil, nil
	}
	return s.list(filter)
}

func (s *stubRepository) MarkRead(_ context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error) {
	s.lastAt = at
	if s.markRead == nil {
		return true, nil
	}
	return s.markRead(userID, notificationID)
}

func (s *stubRepository) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.lastAt = at
	if s.markAllRead == nil {
		return 0, nil
	}
	return s.markAllRead(userID)
}

func newStubService(t *testing.T, repo *stubRepository) *service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.clock = func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) }
	return impl
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestListMapsRowsAndEncodesNextCursor(t *testing.T) {
	readAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	row := models.Notification{ID: uuid.New(), Title: "Courier assigned", ReadAt: &readAt, CreatedAt: readAt.Add(-time.Hour)}
	next := pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	previous := pagination.Cursor{CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), ID: uuid.New()}

	var got listFilter
	svc := newStubService(t, &stubRepository{list: func(filter listFilter) ([]models.Notification, *pagination.Cursor, error) {
		got = filter
		return []models.Notification{row}, &next, nil
	}})

	userID := uuid.New()
	result, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 1, Cursor: previous.Encode(), UnreadOnly: true})
	require.NoError(t, err)

	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, 1, got.Limit)
	assert.True(t, got.UnreadOnly)
	require.NotNil(t, got.After)
	assert.Equal(t, previous.ID, got.After.ID)

	require.Len(t, result.Items, 1)
	assert.Equal(t, row.ID, result.Items[0].ID)
	assert.True(t, result.Items[0].Read)
	assert.Equal(t, next.Encode(), result.NextCursor)
}

func TestListRejectsForeignCursor(t *testing.T) {
	svc := newStubService(t, &stubRepository{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListRequiresUserAndNeverReturnsNilItems(t *testing.T) {
	svc := newStubService(t, &stubRepository{})

	_, err := svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.NextCursor)
}

func TestListWrapsRepositoryFailure(t *testing.T) {
	svc := newStubService(t, &stubRepository{list: func(listFilter) ([]models.Notification, *pagination.Cursor, error) {
		return nil, nil, errors.New("connection reset")
	}})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestMarkReadOutcomes(t *testing.T) {
	repo := &stubRepository{}
	svc := newStubService(t, repo)

	require.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
	assert.Equal(t, svc.clock(), repo.lastAt)

	repo.markRead = func(uuid.UUID, uuid.UUID) (bool, error) { return false, nil }
	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkAllRead(t *testing.T) {
	repo := &stubRepository{markAllRead: func(uuid.UUID) (int64, error) { return 3, nil }}
	svc := newStubService(t, repo)

	n, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	repo.markAllRead = func(uuid.UUID) (int64, error) { return 0, errors.New("boom") }
	_, err = svc.MarkAllRead(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
