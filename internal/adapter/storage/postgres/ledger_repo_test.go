package postgres

import (
	"context"
	"testing"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeSale,
		Amount:      250,
		SourceActor: domain.NewActorRef(uuid.New(), domain.RoleSeller),
		TargetActor: domain.NewActorRef(uuid.New(), domain.RoleCustomer),
		OccurredAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func ledgerCols() []string {
	return []string{"id", "entry_type", "amount",
		"source_actor_id", "source_role", "target_actor_id", "target_role",
		"occurred_at", "correlation_id", "note"}
}

func ledgerRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(ledgerCols()).AddRow(
		e.ID, e.Type, e.Amount,
		e.SourceActor.ActorID, e.SourceActor.Role,
		e.TargetActor.ActorID, e.TargetActor.Role,
		e.OccurredAt, e.CorrelationID, e.Note,
	)
}

func TestLedgerRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.Type, e.Amount,
			e.SourceActor.ActorID, e.SourceActor.Role,
			e.TargetActor.ActorID, e.TargetActor.Role,
			e.OccurredAt, e.CorrelationID, e.Note).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByActor_SinglePage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()
	actor := e.SourceActor

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(actor.ActorID, actor.Role, 51).
		WillReturnRows(ledgerRow(e))

	entries, cursor, err := repo.ListByActor(context.Background(), actor, ports.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Empty(t, cursor, "page smaller than limit should not return a cursor")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByActor_ReturnsCursorWhenMore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	actor := domain.NewActorRef(uuid.New(), domain.RoleSeller)

	rows := pgxmock.NewRows(ledgerCols())
	for i := 0; i < 3; i++ {
		e := newTestEntry()
		e.SourceActor = actor
		rows.AddRow(e.ID, e.Type, e.Amount,
			e.SourceActor.ActorID, e.SourceActor.Role,
			e.TargetActor.ActorID, e.TargetActor.Role,
			e.OccurredAt, e.CorrelationID, e.Note)
	}

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(actor.ActorID, actor.Role, 3).
		WillReturnRows(rows)

	entries, cursor, err := repo.ListByActor(context.Background(), actor, ports.LedgerFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the extra detection row should be trimmed")
	assert.NotEmpty(t, cursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_CursorRoundTrip(t *testing.T) {
	at := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()

	cursor := encodeLedgerCursor(at, id)
	gotAt, gotID, err := decodeLedgerCursor(cursor)
	require.NoError(t, err)
	assert.True(t, at.Equal(gotAt))
	assert.Equal(t, id, gotID)
}

func TestLedgerRepo_DecodeCursor_Garbage(t *testing.T) {
	_, _, err := decodeLedgerCursor("!!!not-base64!!!")
	assert.Error(t, err)

	_, _, err = decodeLedgerCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	assert.Error(t, err)
}
