// Package dbtest opens isolated sqlite databases carrying the dispatch
// schema and seeds fixtures for repository and service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  address TEXT,
  postal_code TEXT,
  city TEXT,
  place TEXT,
  country_code TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE seller_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  shop_name TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  seller_profile_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL,
  delivery_latitude REAL,
  delivery_longitude REAL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE delivery_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 0,
  max_distance REAL NOT NULL DEFAULT 10,
  transportation_modes TEXT NOT NULL DEFAULT '{}',
  gps_tracking_enabled INTEGER NOT NULL DEFAULT 0,
  is_online INTEGER NOT NULL DEFAULT 0,
  current_latitude REAL,
  current_longitude REAL,
  last_location_update DATETIME,
  rating REAL NOT NULL DEFAULT 0,
  completed_deliveries INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE delivery_orders (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  delivery_profile_id TEXT,
  status TEXT NOT NULL,
  delivery_fee NUMERIC NOT NULL,
  estimated_time TEXT,
  delivery_date DATETIME,
  delivery_address TEXT,
  notes TEXT,
  accepted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE conversations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  created_at DATETIME
);`,
	`CREATE TABLE conversation_participants (
  conversation_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  joined_at DATETIME,
  PRIMARY KEY (conversation_id, user_id)
);`,
	`CREATE TABLE messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  type TEXT NOT NULL,
  body TEXT NOT NULL,
  dedupe_key TEXT,
  created_at DATETIME,
  UNIQUE (conversation_id, dedupe_key)
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  data TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a private in-memory database with the schema applied. The
// pool is capped at one connection so concurrent transactions serialize the
// way row locks would on Postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// User inserts a user; mutate adjusts defaults before insert.
func User(t *testing.T, db *gorm.DB, mutate func(*models.User)) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:          id,
		Email:       id.String() + "@example.test",
		DisplayName: "User " + id.String()[:8],
		CountryCode: "NL",
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Courier inserts an active delivery profile owned by user.
func Courier(t *testing.T, db *gorm.DB, user *models.User, mutate func(*models.DeliveryProfile)) *models.DeliveryProfile {
	t.Helper()
	profile := &models.DeliveryProfile{
		ID:                  uuid.New(),
		UserID:              user.ID,
		IsActive:            true,
		MaxDistance:         15,
		TransportationModes: pq.StringArray{string(enums.TransportModeBicycle)},
	}
	if mutate != nil {
		mutate(profile)
	}
	require.NoError(t, db.Omit("User").Create(profile).Error)
	profile.User = *user
	return profile
}

// Job bundles the rows behind one dispatchable delivery order.
type Job struct {
	Seller        *models.User
	SellerProfile *models.SellerProfile
	Product       *models.Product
	Buyer         *models.User
	Order         *models.Order
	DeliveryOrder *models.DeliveryOrder
}

// JobOptions adjusts the seeded rows.
type JobOptions struct {
	Seller        func(*models.User)
	Buyer         func(*models.User)
	Order         func(*models.Order)
	DeliveryOrder func(*models.DeliveryOrder)
}

var orderNumbers atomic.Int64

// SeedJob inserts seller, product, buyer, order and a PENDING delivery order.
func SeedJob(t *testing.T, db *gorm.DB, opts JobOptions) *Job {
	t.Helper()

	seller := User(t, db, func(u *models.User) {
		u.DisplayName = "Seller"
		u.Latitude = Ptr(52.3676)
		u.Longitude = Ptr(4.9041)
		if opts.Seller != nil {
			opts.Seller(u)
		}
	})
	sellerProfile := &models.SellerProfile{ID: uuid.New(), UserID: seller.ID, ShopName: "Garden Stall"}
	require.NoError(t, db.Omit("User").Create(sellerProfile).Error)

	product := &models.Product{ID: uuid.New(), SellerProfileID: sellerProfile.ID, Title: "Tomatoes", Price: decimal.RequireFromString("3.50")}
	require.NoError(t, db.Omit("SellerProfile").Create(product).Error)

	buyer := User(t, db, func(u *models.User) {
		u.DisplayName = "Buyer"
		if opts.Buyer != nil {
			opts.Buyer(u)
		}
	})

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: 1000 + orderNumbers.Add(1),
		BuyerID:     buyer.ID,
		Status:      enums.OrderStatusConfirmed,
	}
	if opts.Order != nil {
		opts.Order(order)
	}
	require.NoError(t, db.Omit("Buyer", "Items").Create(order).Error)

	item := &models.OrderItem{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, Quantity: 1}
	require.NoError(t, db.Omit("Product").Create(item).Error)

	job := &models.DeliveryOrder{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Status:      enums.DeliveryOrderStatusPending,
		DeliveryFee: decimal.RequireFromString("4.50"),
	}
	if opts.DeliveryOrder != nil {
		opts.DeliveryOrder(job)
	}
	require.NoError(t, db.Omit("Order").Create(job).Error)

	return &Job{
		Seller:        seller,
		SellerProfile: sellerProfile,
		Product:       product,
		Buyer:         buyer,
		Order:         order,
		DeliveryOrder: job,
	}
}
