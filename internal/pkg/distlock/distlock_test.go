package distlock

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGAdvisoryLockRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "scheduler:sweep")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ran := false
	err = Run(context.Background(), l, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Nil(t, l.conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockHeldElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "scheduler:sweep")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = Run(context.Background(), l, func(context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.True(t, errors.Is(err, ErrNotHeld))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockIDIsStable(t *testing.T) {
	a := NewPGAdvisoryLock(nil, "scheduler:sweep")
	b := NewPGAdvisoryLock(nil, "scheduler:sweep")
	c := NewPGAdvisoryLock(nil, "other")
	assert.Equal(t, a.lockID, b.lockID)
	assert.NotEqual(t, a.lockID, c.lockID)
}
