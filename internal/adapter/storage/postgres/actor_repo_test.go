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

func newTestActor() *domain.Actor {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Actor{
		ID:          uuid.New(),
		DisplayName: "Booth 14",
		IdentityTag: "festival-2026",
		OrgID:       uuid.New(),
		Roles:       []domain.Role{domain.RoleSeller},
		Status:      domain.ActorStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func actorCols() []string {
	return []string{"id", "display_name", "identity_tag", "org_id", "roles", "merchant_id",
		"status", "pin_hash", "created_at", "updated_at"}
}

func TestActorRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActorRepo(mock)
	a := newTestActor()

	mock.ExpectExec("INSERT INTO actors .+ ON CONFLICT").
		WithArgs(a.ID, a.DisplayName, a.IdentityTag, a.OrgID, []string{"SELLER"}, a.MerchantID,
			a.Status, a.PINHash, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActorRepo(mock)
	a := newTestActor()

	mock.ExpectQuery("SELECT .+ FROM actors WHERE id").
		WithArgs(a.ID).
		WillReturnRows(pgxmock.NewRows(actorCols()).AddRow(
			a.ID, a.DisplayName, a.IdentityTag, a.OrgID, []string{"SELLER"}, a.MerchantID,
			a.Status, a.PINHash, a.CreatedAt, a.UpdatedAt,
		))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []domain.Role{domain.RoleSeller}, result.Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActorRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM actors WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(actorCols()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorRepo_ListByIdentityTag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActorRepo(mock)
	a := newTestActor()
	a.Roles = []domain.Role{domain.RoleCustomer}

	mock.ExpectQuery("SELECT .+ FROM actors WHERE org_id").
		WithArgs(a.OrgID, a.IdentityTag, domain.ActorStatusActive).
		WillReturnRows(pgxmock.NewRows(actorCols()).AddRow(
			a.ID, a.DisplayName, a.IdentityTag, a.OrgID, []string{"CUSTOMER"}, a.MerchantID,
			a.Status, a.PINHash, a.CreatedAt, a.UpdatedAt,
		))

	actors, err := repo.ListByIdentityTag(context.Background(), a.OrgID, a.IdentityTag)
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, []domain.Role{domain.RoleCustomer}, actors[0].Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorRepo_SetPINHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActorRepo(mock)
	a := newTestActor()

	mock.ExpectExec("UPDATE actors SET pin_hash").
		WithArgs("$argon2id$hash", pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SetPINHash(context.Background(), a.ID, "$argon2id$hash")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
