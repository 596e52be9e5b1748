package usage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(gdb, nil), mock
}

var subscriptionColumns = []string{
	"id", "user_id", "tier", "requests_used", "requests_limit", "images_used", "images_limit", "created_at", "updated_at",
}

func TestGormStoreConsumeIncrements(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE "user_subscriptions" SET "requests_used"=requests_used \+ 1 WHERE user_id = \$1 AND \(requests_limit < 0 OR requests_used < requests_limit\)`).
		WithArgs(uint(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "user_subscriptions" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(1, 9, "pro", 4, 20, 0, 50, now, now))

	c, tier, ok, err := store.Consume(context.Background(), 9, KindRequests)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pro", tier)
	assert.Equal(t, Counter{Used: 4, Limit: 20}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreConsumeRefusesAtLimit(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE "user_subscriptions" SET "images_used"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "user_subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(1, 9, "free", 1, 3, 5, 5, now, now))

	c, tier, ok, err := store.Consume(context.Background(), 9, KindImages)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "free", tier)
	assert.Equal(t, Counter{Used: 5, Limit: 5}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreCreatesMissingSubscription(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE "user_subscriptions"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "user_subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns))
	mock.ExpectQuery(`INSERT INTO "user_subscriptions" .* ON CONFLICT \("user_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "user_subscriptions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "user_subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(1, 3, "free", 1, 3, 0, 5, now, now))

	c, tier, ok, err := store.Consume(context.Background(), 3, KindRequests)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "free", tier)
	assert.Equal(t, Counter{Used: 1, Limit: 3}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreConsumeEditUnknownWebsite(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "generated_websites" SET "edit_count"=edit_count \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id","edit_count" FROM "generated_websites"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "edit_count"}))

	_, _, err := store.ConsumeEdit(context.Background(), 1, "missing", 3)
	assert.ErrorIs(t, err, ErrWebsiteNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
