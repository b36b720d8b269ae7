package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"guest-intake/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db, mock
}

func sampleRegistration() *models.Registration {
	checkIn := time.Date(2026, time.October, 19, 14, 0, 0, 0, time.Local)
	return &models.Registration{
		RoomNumber:         "204",
		CheckIn:            &checkIn,
		Email:              "asha@example.com",
		Children:           1,
		AccompanyingGuests: datatypes.JSON(`[{"type":"child","index":0,"name":"Meera","dob":"2017-01-15"}]`),
		Guests: []models.Guest{
			{IsMainGuest: true, GuestType: models.GuestTypePrimary, FullName: "Asha Rao"},
			{GuestType: models.GuestTypeChild, FullName: "Meera"},
		},
	}
}

func TestRegisterStoresRegistrationAndGuests(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewGuestService(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `guests`")).
		WillReturnResult(sqlmock.NewResult(100, 2))
	mock.ExpectCommit()

	reg := sampleRegistration()
	require.NoError(t, svc.Register(context.Background(), reg))

	assert.Equal(t, uint(42), reg.ID)
	assert.Len(t, reg.ReferenceCode, 36)
	for _, g := range reg.Guests {
		assert.Equal(t, uint(42), g.RegistrationID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterKeepsGivenReference(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := &models.Registration{ReferenceCode: "desk-7"}
	require.NoError(t, NewGuestService(db, nil).Register(context.Background(), reg))
	assert.Equal(t, "desk-7", reg.ReferenceCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRollsBackOnGuestFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `guests`")).
		WillReturnError(&mysql.MySQLError{Number: 1406, Message: "Data too long for column 'full_name'"})
	mock.ExpectRollback()

	err := NewGuestService(db, nil).Register(context.Background(), sampleRegistration())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateReference(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := NewGuestService(db, nil).Register(context.Background(), sampleRegistration())
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRegistration(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `registrations`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `guests` WHERE registration_id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "registration_id", "is_main_guest", "guest_type", "full_name"}).
			AddRow(1, 7, true, "primary", "Asha Rao").
			AddRow(2, 7, false, "child", "Meera"))

	guests, err := NewGuestService(db, nil).ListByRegistration(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, guests, 2)
	assert.True(t, guests[0].IsMainGuest)
	assert.Equal(t, "Meera", guests[1].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRegistrationNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `registrations`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGuestService(db, nil).ListByRegistration(context.Background(), 9)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
