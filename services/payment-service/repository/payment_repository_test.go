package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return gormDB, mock
}

func TestCreatePayment(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	stripeID := "pi_123"
	payment := &models.Payment{
		ID:              uuid.New(),
		UserID:          "user-1",
		VMID:            "vm-1",
		Quantity:        1,
		Amount:          1999,
		Currency:        "usd",
		Status:          models.StatusProcessing,
		Method:          models.MethodIntent,
		StripePaymentID: &stripeID,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "payments"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.CreatePayment(context.Background(), payment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentByStripeID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "user_id", "amount", "currency", "status", "method", "stripe_payment_id"}).
		AddRow(id.String(), "user-1", 1999, "usd", models.StatusProcessing, models.MethodIntent, "pi_123")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments" WHERE stripe_payment_id = $1`)).
		WillReturnRows(rows)

	payment, err := repo.GetPaymentByStripeID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, id, payment.ID)
	assert.Equal(t, int64(1999), payment.Amount)
	require.NotNil(t, payment.StripePaymentID)
	assert.Equal(t, "pi_123", *payment.StripePaymentID)
}

func TestGetPaymentByOrderID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments" WHERE order_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	payment, err := repo.GetPaymentByOrderID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, payment)
}

func TestTransition_OnlyFromProcessing(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments" SET "status"=$1,"succeeded_at"=$2,"updated_at"=$3 WHERE id = $4 AND status = $5`)).
		WithArgs(models.StatusSucceeded, sqlmock.AnyArg(), sqlmock.AnyArg(), id, models.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.Transition(context.Background(), id, models.StatusSucceeded, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_AlreadyTerminal(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments" SET "failed_at"=$1,"status"=$2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := repo.Transition(context.Background(), uuid.New(), models.StatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRecordAttemptFailure_KeepsPaymentOpen(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments" SET "last_error"=$1,"updated_at"=$2 WHERE id = $3 AND status = $4`)).
		WithArgs("Your card was declined.", sqlmock.AnyArg(), id, models.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RecordAttemptFailure(context.Background(), id, "Your card was declined.", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEventProcessed(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "processed_events"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	fresh, err := repo.MarkEventProcessed(context.Background(), "evt_1", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMarkEventProcessed_Duplicate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "processed_events"`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	fresh, err := repo.MarkEventProcessed(context.Background(), "evt_1", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestForgetEvent(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "processed_events" WHERE event_id = $1`)).
		WithArgs("evt_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.ForgetEvent(context.Background(), "evt_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
