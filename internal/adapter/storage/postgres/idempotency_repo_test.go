package postgres

import (
	"context"
	"testing"
	"time"

	"points-commerce-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	log := &domain.IdempotencyLog{
		Key:          domain.BuildIdempotencyKey(uuid.New(), "sell", "corr-123"),
		EntryID:      uuid.New(),
		ResponseJSON: []byte(`{"amount":100}`),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WithArgs(log.Key, log.EntryID, log.ResponseJSON, log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	key := domain.BuildIdempotencyKey(uuid.New(), "allocate", "corr-456")
	entryID := uuid.New()
	created := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows([]string{"key", "entry_id", "response_json", "created_at"}).
			AddRow(key, entryID, []byte(`{}`), created))

	log, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, entryID, log.EntryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows([]string{"key", "entry_id", "response_json", "created_at"}))

	log, err := repo.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, log)
	assert.NoError(t, mock.ExpectationsWereMet())
}
