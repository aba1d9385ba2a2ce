package deliveries

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/internal/conversations"
	"github.com/localmarket/marketplace-backend/internal/couriers"
	"github.com/localmarket/marketplace-backend/internal/notifications"
	dbpkg "github.com/localmarket/marketplace-backend/pkg/db"
	"github.com/localmarket/marketplace-backend/pkg/db/dbtest"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type failingNotifier struct {
	calls atomic.Int32
	err   error
}

func (f *failingNotifier) Create(ctx context.Context, req notifications.Request) (*models.Notification, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return nil, errors.New("push backend unavailable")
}

// cancelAfterCommit cancels the caller's context once the first transaction
// has committed, the way a client hanging up right after the claim would.
type cancelAfterCommit struct {
	inner  txRunner
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelAfterCommit) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := c.inner.WithTx(ctx, fn)
	if err == nil {
		c.once.Do(c.cancel)
	}
	return err
}

func newTestService(t *testing.T, db *gorm.DB, n notifier, opts ...func(*ServiceParams)) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	client := dbpkg.Wrap(db)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)
	if n == nil {
		gw, err := notifications.NewGateway(notifications.NewRepository(db), client, outboxSvc, logg)
		require.NoError(t, err)
		n = gw
	}
	convs, err := conversations.NewGateway(conversations.NewRepository(db))
	require.NoError(t, err)

	params := ServiceParams{
		Repo:             NewRepository(db),
		Couriers:         couriers.NewRepository(db),
		Tx:               client,
		Outbox:           outboxSvc,
		Conversations:    convs,
		Notifier:         n,
		Logger:           logg,
		EffectMaxRetries: 1,
		EffectBaseWait:   time.Millisecond,
		Now:              func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func seedCourier(t *testing.T, db *gorm.DB, name string) *models.DeliveryProfile {
	t.Helper()
	user := dbtest.User(t, db, func(u *models.User) { u.DisplayName = name })
	return dbtest.Courier(t, db, user, nil)
}

func requireReason(t *testing.T, err error, code pkgerrors.Code, reason string) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
	assert.Equal(t, map[string]string{"reason": reason}, typed.Details())
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestAcceptClaimsJobAndRunsEffects(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{
		Seller: func(u *models.User) {
			u.Address = dbtest.Ptr("Prinsengracht 1")
			u.PostalCode = dbtest.Ptr("1015 DV")
			u.City = dbtest.Ptr("Amsterdam")
		},
		DeliveryOrder: func(d *models.DeliveryOrder) {
			d.DeliveryAddress = dbtest.Ptr("Oudegracht 10, Utrecht")
		},
	})
	courier := seedCourier(t, db, "Sam")
	svc := newTestService(t, db, nil)

	view, err := svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)

	assert.Equal(t, job.DeliveryOrder.ID, view.ID)
	assert.Equal(t, enums.DeliveryOrderStatusAccepted, view.Status)
	assert.Equal(t, "4.5", view.DeliveryFee.String())
	assert.Equal(t, defaultETA, view.EstimatedTime)
	assert.Equal(t, "Prinsengracht 1, 1015 DV Amsterdam", view.PickupAddress)
	assert.Equal(t, "Oudegracht 10, Utrecht", view.DeliveryAddress)
	assert.Equal(t, job.Order.OrderNumber, view.OrderNumber)
	require.NotNil(t, view.DeliveryDate)
	assert.True(t, fixedNow.Add(3*time.Hour).Equal(*view.DeliveryDate))
	require.NotNil(t, view.ConversationID)

	var stored models.DeliveryOrder
	require.NoError(t, db.First(&stored, "id = ?", job.DeliveryOrder.ID).Error)
	assert.Equal(t, enums.DeliveryOrderStatusAccepted, stored.Status)
	require.NotNil(t, stored.DeliveryProfileID)
	assert.Equal(t, courier.ID, *stored.DeliveryProfileID)

	participants, err := conversations.NewRepository(db).ListParticipants(context.Background(), *view.ConversationID)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	assert.ElementsMatch(t, []uuid.UUID{job.Buyer.ID, job.Seller.ID, courier.UserID}, ids)

	messages, err := conversations.NewRepository(db).ListMessages(context.Background(), *view.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, courier.UserID, messages[0].SenderID)
	assert.Equal(t, enums.MessageTypeSystem, messages[0].Type)
	assert.Contains(t, messages[0].Body, "Sam")
	assert.Contains(t, messages[0].Body, defaultETA)

	var notes []models.Notification
	require.NoError(t, db.Find(&notes).Error)
	recipients := map[uuid.UUID]enums.NotificationType{}
	for _, n := range notes {
		recipients[n.UserID] = n.Type
	}
	assert.Equal(t, map[uuid.UUID]enums.NotificationType{
		job.Buyer.ID:   enums.NotificationTypeDeliveryAccepted,
		job.Seller.ID:  enums.NotificationTypeDeliveryAccepted,
		courier.UserID: enums.NotificationTypeDeliveryAssigned,
	}, recipients)

	assert.EqualValues(t, 1, countRows(t, db, &models.OutboxEvent{}, "event_type = ?", enums.EventDeliveryAccepted))
	assert.EqualValues(t, 3, countRows(t, db, &models.OutboxEvent{}, "event_type = ?", enums.EventNotificationRequested))
}

func TestAcceptReusesExistingConversation(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	courier := seedCourier(t, db, "Sam")

	convs, err := conversations.NewGateway(conversations.NewRepository(db))
	require.NoError(t, err)
	existing, err := convs.EnsureForOrder(context.Background(), db, job.Order.ID, job.Buyer.ID)
	require.NoError(t, err)

	svc := newTestService(t, db, nil)
	view, err := svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)

	require.NotNil(t, view.ConversationID)
	assert.Equal(t, existing.ID, *view.ConversationID)
	assert.EqualValues(t, 1, countRows(t, db, &models.Conversation{}, "order_id = ?", job.Order.ID))
	// only the courier joins an existing conversation
	assert.EqualValues(t, 2, countRows(t, db, &models.ConversationParticipant{}, "conversation_id = ?", existing.ID))
	assert.EqualValues(t, 0, countRows(t, db, &models.ConversationParticipant{}, "conversation_id = ? AND user_id = ?", existing.ID, job.Seller.ID))
}

func TestAcceptCompletesAfterCallerHangsUp(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	courier := seedCourier(t, db, "Sam")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newTestService(t, db, nil, func(p *ServiceParams) {
		p.Tx = &cancelAfterCommit{inner: p.Tx, cancel: cancel}
	})

	view, err := svc.Accept(ctx, AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.NotNil(t, view.ConversationID)

	assert.EqualValues(t, 1, countRows(t, db, &models.Conversation{}, "order_id = ?", job.Order.ID))
	assert.EqualValues(t, 3, countRows(t, db, &models.ConversationParticipant{}, "conversation_id = ?", *view.ConversationID))
	assert.EqualValues(t, 1, countRows(t, db, &models.Message{}, "conversation_id = ?", *view.ConversationID))
	assert.EqualValues(t, 3, countRows(t, db, &models.Notification{}, ""))

	again, err := svc.GetJob(context.Background(), GetJobInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)
	require.NotNil(t, again.ConversationID)
	assert.Equal(t, *view.ConversationID, *again.ConversationID)
}

func TestAcceptDoesNotRetryRejectedNotifications(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	courier := seedCourier(t, db, "Sam")
	notifier := &failingNotifier{err: pkgerrors.New(pkgerrors.CodeValidation, "recipient user id required")}
	svc := newTestService(t, db, notifier, func(p *ServiceParams) { p.EffectMaxRetries = 3 })

	_, err := svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)
	// one attempt per recipient
	assert.EqualValues(t, 3, notifier.calls.Load())
}

func TestAcceptRejections(t *testing.T) {
	db := dbtest.Open(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()
	courier := seedCourier(t, db, "Sam")
	other := seedCourier(t, db, "Alex")

	open := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	accepted := dbtest.SeedJob(t, db, dbtest.JobOptions{DeliveryOrder: func(d *models.DeliveryOrder) {
		d.Status = enums.DeliveryOrderStatusAccepted
		d.DeliveryProfileID = &other.ID
	}})
	assigned := dbtest.SeedJob(t, db, dbtest.JobOptions{DeliveryOrder: func(d *models.DeliveryOrder) {
		d.DeliveryProfileID = &other.ID
	}})
	stranger := dbtest.User(t, db, nil)

	_, err := svc.Accept(ctx, AcceptInput{JobID: open.DeliveryOrder.ID, CourierUserID: stranger.ID})
	requireReason(t, err, pkgerrors.CodeNotFound, ReasonNotACourier)

	_, err = svc.Accept(ctx, AcceptInput{JobID: uuid.New(), CourierUserID: courier.UserID})
	requireReason(t, err, pkgerrors.CodeNotFound, ReasonJobNotFound)

	_, err = svc.Accept(ctx, AcceptInput{JobID: accepted.DeliveryOrder.ID, CourierUserID: courier.UserID})
	requireReason(t, err, pkgerrors.CodeClaimConflict, ReasonAlreadyClaimed)

	_, err = svc.Accept(ctx, AcceptInput{JobID: assigned.DeliveryOrder.ID, CourierUserID: courier.UserID})
	requireReason(t, err, pkgerrors.CodeClaimConflict, ReasonAlreadyAssigned)

	_, err = svc.Accept(ctx, AcceptInput{CourierUserID: courier.UserID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	assert.EqualValues(t, 0, countRows(t, db, &models.OutboxEvent{}, ""))
	assert.EqualValues(t, 0, countRows(t, db, &models.Conversation{}, ""))
	var stillOpen models.DeliveryOrder
	require.NoError(t, db.First(&stillOpen, "id = ?", assigned.DeliveryOrder.ID).Error)
	assert.Equal(t, enums.DeliveryOrderStatusPending, stillOpen.Status)
}

func TestAcceptPreassignedCourierSucceeds(t *testing.T) {
	db := dbtest.Open(t)
	courier := seedCourier(t, db, "Sam")
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{DeliveryOrder: func(d *models.DeliveryOrder) {
		d.DeliveryProfileID = &courier.ID
	}})
	svc := newTestService(t, db, nil)

	view, err := svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOrderStatusAccepted, view.Status)
}

func TestAcceptSurvivesNotificationFailure(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	courier := seedCourier(t, db, "Sam")
	notifier := &failingNotifier{}
	svc := newTestService(t, db, notifier)

	view, err := svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: courier.UserID})
	require.NoError(t, err)
	require.NotNil(t, view.ConversationID)

	// three recipients, one retry each
	assert.EqualValues(t, 6, notifier.calls.Load())

	var stored models.DeliveryOrder
	require.NoError(t, db.First(&stored, "id = ?", job.DeliveryOrder.ID).Error)
	assert.Equal(t, enums.DeliveryOrderStatusAccepted, stored.Status)
	assert.EqualValues(t, 1, countRows(t, db, &models.Message{}, "conversation_id = ?", *view.ConversationID))
	assert.EqualValues(t, 1, countRows(t, db, &models.OutboxEvent{}, "event_type = ?", enums.EventDeliveryAccepted))
}

func TestConcurrentAcceptClaimsOnce(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{})
	first := seedCourier(t, db, "Sam")
	second := seedCourier(t, db, "Alex")
	svc := newTestService(t, db, nil)

	profiles := []*models.DeliveryProfile{first, second}
	errs := make([]error, len(profiles))
	var wg sync.WaitGroup
	for i, p := range profiles {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Accept(context.Background(), AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: userID})
		}(i, p.UserID)
	}
	wg.Wait()

	var winner *models.DeliveryProfile
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "both accepts succeeded")
			winner = profiles[i]
			continue
		}
		requireReason(t, err, pkgerrors.CodeClaimConflict, ReasonAlreadyClaimed)
	}
	require.NotNil(t, winner)

	var stored models.DeliveryOrder
	require.NoError(t, db.First(&stored, "id = ?", job.DeliveryOrder.ID).Error)
	require.NotNil(t, stored.DeliveryProfileID)
	assert.Equal(t, winner.ID, *stored.DeliveryProfileID)
	assert.EqualValues(t, 1, countRows(t, db, &models.OutboxEvent{}, "event_type = ?", enums.EventDeliveryAccepted))
	assert.EqualValues(t, 1, countRows(t, db, &models.Conversation{}, ""))
}

func TestGetJobVisibility(t *testing.T) {
	db := dbtest.Open(t)
	job := dbtest.SeedJob(t, db, dbtest.JobOptions{DeliveryOrder: func(d *models.DeliveryOrder) {
		d.EstimatedTime = dbtest.Ptr("20 minutes")
	}})
	owner := seedCourier(t, db, "Sam")
	other := seedCourier(t, db, "Alex")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	view, err := svc.GetJob(ctx, GetJobInput{JobID: job.DeliveryOrder.ID, CourierUserID: other.UserID})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOrderStatusPending, view.Status)
	assert.Equal(t, "20 minutes", view.EstimatedTime)
	assert.Nil(t, view.ConversationID)

	_, err = svc.Accept(ctx, AcceptInput{JobID: job.DeliveryOrder.ID, CourierUserID: owner.UserID})
	require.NoError(t, err)

	_, err = svc.GetJob(ctx, GetJobInput{JobID: job.DeliveryOrder.ID, CourierUserID: other.UserID})
	requireReason(t, err, pkgerrors.CodeNotFound, ReasonJobNotFound)

	view, err = svc.GetJob(ctx, GetJobInput{JobID: job.DeliveryOrder.ID, CourierUserID: owner.UserID})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOrderStatusAccepted, view.Status)
	assert.NotNil(t, view.ConversationID)
	assert.Equal(t, "Garden Stall", view.SellerName)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
