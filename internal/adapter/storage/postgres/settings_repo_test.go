package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepo_GetInterestRate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT value FROM settings WHERE key").
		WithArgs("interest_rate_bps").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("250"))

	bps, ok, err := NewSettingsRepo(mock).GetInterestRate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(250), bps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_GetInterestRate_NotSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs("interest_rate_bps").
		WillReturnError(pgx.ErrNoRows)

	bps, ok, err := NewSettingsRepo(mock).GetInterestRate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, bps)
}

func TestSettingsRepo_GetInterestRate_Corrupt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs("interest_rate_bps").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("ten percent"))

	_, _, err = NewSettingsRepo(mock).GetInterestRate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse interest rate")
}

func TestSettingsRepo_SetInterestRate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settings .+ ON CONFLICT \\(key\\)").
		WithArgs("interest_rate_bps", "1500").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, NewSettingsRepo(mock).SetInterestRate(context.Background(), tx, 1500))
	assert.NoError(t, mock.ExpectationsWereMet())
}
