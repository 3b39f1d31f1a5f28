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

func newTestSubmission() *domain.CashSubmission {
	return &domain.CashSubmission{
		ID:            uuid.New(),
		SubmittedBy:   uuid.New(),
		SubmitterRole: domain.RoleSeller,
		Amount:        1200,
		Status:        domain.SubmissionStatusPending,
		SubmittedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func submissionCols() []string {
	return []string{"id", "submitted_by", "submitter_role", "amount", "status", "received_by",
		"note", "included_context", "confirmation_note", "submitted_at", "claimed_at", "resolved_at"}
}

func submissionRow(s *domain.CashSubmission) *pgxmock.Rows {
	return pgxmock.NewRows(submissionCols()).AddRow(
		s.ID, s.SubmittedBy, s.SubmitterRole, s.Amount, s.Status, s.ReceivedBy,
		s.Note, s.IncludedContext, s.ConfirmationNote,
		s.SubmittedAt, s.ClaimedAt, s.ResolvedAt,
	)
}

func TestSubmissionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)
	s := newTestSubmission()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cash_submissions").
		WithArgs(s.ID, s.SubmittedBy, s.SubmitterRole, s.Amount, s.Status, s.ReceivedBy,
			s.Note, s.IncludedContext, s.ConfirmationNote,
			s.SubmittedAt, s.ClaimedAt, s.ResolvedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepo_Claim_Wins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)
	s := newTestSubmission()
	clerkID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE cash_submissions SET received_by .+ WHERE id .+ AND received_by IS NULL").
		WithArgs(clerkID, at, s.ID, domain.SubmissionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Claim(context.Background(), s.ID, clerkID, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepo_Claim_AlreadyHeld(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)
	s := newTestSubmission()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE cash_submissions SET received_by .+ WHERE id .+ AND received_by IS NULL").
		WithArgs(pgxmock.AnyArg(), at, s.ID, domain.SubmissionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.Claim(context.Background(), s.ID, uuid.New(), at)
	require.NoError(t, err)
	assert.False(t, ok, "claim CAS should report false when another clerk holds it")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepo_MarkConfirmed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)
	s := newTestSubmission()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cash_submissions SET status").
		WithArgs(domain.SubmissionStatusConfirmed, "counted and banked", at, s.ID, domain.SubmissionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkConfirmed(context.Background(), tx, s.ID, "counted and banked", at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepo_ListPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)
	s1 := newTestSubmission()
	s2 := newTestSubmission()

	rows := pgxmock.NewRows(submissionCols()).
		AddRow(s1.ID, s1.SubmittedBy, s1.SubmitterRole, s1.Amount, s1.Status, s1.ReceivedBy,
			s1.Note, s1.IncludedContext, s1.ConfirmationNote, s1.SubmittedAt, s1.ClaimedAt, s1.ResolvedAt).
		AddRow(s2.ID, s2.SubmittedBy, s2.SubmitterRole, s2.Amount, s2.Status, s2.ReceivedBy,
			s2.Note, s2.IncludedContext, s2.ConfirmationNote, s2.SubmittedAt, s2.ClaimedAt, s2.ResolvedAt)

	mock.ExpectQuery("SELECT .+ FROM cash_submissions WHERE status").
		WithArgs(domain.SubmissionStatusPending).
		WillReturnRows(rows)

	subs, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubmissionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM cash_submissions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(submissionCols()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
