package postgres

import (
	"context"
	"testing"
	"time"

	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestAccountRepository_ConsumeSecret_RequiresMatchingUnexpiredHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)
	id := uuid.New()
	consume := `UPDATE "accounts" SET .*"pin_attempts"=.* WHERE id = \$\d+ AND pin_hash = \$\d+ AND pin_expires_at > \$\d+`

	mock.ExpectExec(consume).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.ConsumeSecret(context.Background(), id, entity.SecretPurposePin, "digest", time.Now())
	assert.ErrorIs(t, err, repository.ErrSecretMismatch)

	mock.ExpectExec(consume).WillReturnResult(sqlmock.NewResult(0, 1))
	err = repo.ConsumeSecret(context.Background(), id, entity.SecretPurposePin, "digest", time.Now())
	assert.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ConsumeSecret_LinkTokenColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`WHERE id = \$\d+ AND password_reset_hash = \$\d+ AND password_reset_expires_at > \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ConsumeSecret(context.Background(), uuid.New(), entity.SecretPurposePasswordReset, "digest", time.Now())
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_RegisterPinFailure(t *testing.T) {
	tests := []struct {
		name    string
		pinHash any
		cleared bool
	}{
		{name: "below limit keeps pin", pinHash: "digest", cleared: false},
		{name: "limit reached clears pin", pinHash: nil, cleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewAccountRepository(db)

			mock.ExpectQuery(`UPDATE "accounts" SET .*"pin_attempts"=pin_attempts \+ 1.*"pin_hash"=CASE WHEN pin_attempts \+ 1 >= \$\d+ THEN NULL ELSE pin_hash END.* WHERE id = \$\d+ AND pin_hash IS NOT NULL RETURNING`).
				WillReturnRows(sqlmock.NewRows([]string{"pin_attempts", "pin_hash"}).AddRow(3, tt.pinHash))

			cleared, err := repo.RegisterPinFailure(context.Background(), uuid.New(), 5)
			require.NoError(t, err)
			assert.Equal(t, tt.cleared, cleared)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_RegisterPinFailure_NoPin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`UPDATE "accounts" SET`).WillReturnRows(sqlmock.NewRows([]string{"pin_attempts", "pin_hash"}))

	cleared, err := repo.RegisterPinFailure(context.Background(), uuid.New(), 5)
	require.NoError(t, err)
	assert.False(t, cleared)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_FindByIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		query      string
	}{
		{name: "email", identifier: "Jane@Example.com", query: `FROM "accounts" WHERE email = \$1 `},
		{name: "username", identifier: "jane", query: `FROM "accounts" WHERE username = \$1 `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewAccountRepository(db)
			id := uuid.New()

			mock.ExpectQuery(tt.query).
				WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(id.String(), "jane", "jane@example.com"))

			account, err := repo.FindByIdentifier(context.Background(), tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, id, account.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_LockByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`FROM "accounts" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	account, err := repo.LockByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)

	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.LockByID(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParkingRepository_TransitionOccupancy(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParkingRepository(db)
	transition := `UPDATE "parkings" SET "occupancy"=\$\d+.* WHERE id = \$\d+ AND occupancy = \$\d+ AND status = \$\d+`

	mock.ExpectExec(transition).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.TransitionOccupancy(context.Background(), uuid.New(), entity.OccupancyFree, entity.OccupancyOccupied)
	assert.NoError(t, err)

	mock.ExpectExec(transition).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.TransitionOccupancy(context.Background(), uuid.New(), entity.OccupancyFree, entity.OccupancyOccupied)
	assert.ErrorIs(t, err, repository.ErrStateConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupationRepository_Close_OnlyOpenActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOccupationRepository(db)

	mock.ExpectExec(`UPDATE "occupations" SET .*"bill_cents"=.* WHERE id = \$\d+ AND state = \$\d+ AND ended_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Close(context.Background(), uuid.New(), time.Now(), 300)
	assert.ErrorIs(t, err, repository.ErrStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupationRepository_ListOpenByRenter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOccupationRepository(db)
	renterID := uuid.New()
	parkingID := uuid.New()

	mock.ExpectQuery(`FROM "occupations" WHERE renter_id = \$1 AND ended_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parking_id", "renter_id", "state"}).
			AddRow(uuid.NewString(), parkingID.String(), renterID.String(), string(entity.OccupationActive)))

	open, err := repo.ListOpenByRenter(context.Background(), renterID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, parkingID, open[0].ParkingID)
	assert.Equal(t, entity.OccupationActive, open[0].State)
	require.NoError(t, mock.ExpectationsWereMet())
}
