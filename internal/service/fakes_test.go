package service

import (
	"context"
	"testing"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

// Shared test doubles for the command-service tests. The fakes keep the
// minimum state each service touches; locking is irrelevant at this
// level, so the transactor hands out inert transactions.

type noopTx struct{}

func (noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(ctx context.Context) error          { return nil }
func (noopTx) Rollback(ctx context.Context) error        { return nil }
func (noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (noopTx) Conn() *pgx.Conn                                               { return nil }

type noopTransactor struct{}

func (noopTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type fakeIdempRepo struct {
	logs map[string]*domain.IdempotencyLog
}

func newFakeIdempRepo() *fakeIdempRepo {
	return &fakeIdempRepo{logs: map[string]*domain.IdempotencyLog{}}
}

func (f *fakeIdempRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	f.logs[log.Key] = log
	return nil
}

func (f *fakeIdempRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	return f.logs[key], nil
}

type fakeIdempCache struct {
	vals map[string][]byte
}

func newFakeIdempCache() *fakeIdempCache {
	return &fakeIdempCache{vals: map[string][]byte{}}
}

func (f *fakeIdempCache) Get(ctx context.Context, key string) ([]byte, error) {
	return f.vals[key], nil
}

func (f *fakeIdempCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.vals[key] = value
	return nil
}

type fakeActorRepo struct {
	actors map[uuid.UUID]*domain.Actor
}

func newFakeActorRepo(actors ...*domain.Actor) *fakeActorRepo {
	f := &fakeActorRepo{actors: map[uuid.UUID]*domain.Actor{}}
	for _, a := range actors {
		f.actors[a.ID] = a
	}
	return f
}

func (f *fakeActorRepo) Upsert(ctx context.Context, actor *domain.Actor) error {
	f.actors[actor.ID] = actor
	return nil
}

func (f *fakeActorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	return f.actors[id], nil
}

func (f *fakeActorRepo) ListByIdentityTag(ctx context.Context, orgID uuid.UUID, tag string) ([]domain.Actor, error) {
	var out []domain.Actor
	for _, a := range f.actors {
		if a.OrgID == orgID && a.IdentityTag == tag && a.Status == domain.ActorStatusActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeActorRepo) SetPINHash(ctx context.Context, actorID uuid.UUID, pinHash string) error {
	if a, ok := f.actors[actorID]; ok {
		a.PINHash = &pinHash
	}
	return nil
}

type fakeTransactionRepo struct {
	txns map[uuid.UUID]*domain.MerchantTransaction
}

func newFakeTransactionRepo(txns ...*domain.MerchantTransaction) *fakeTransactionRepo {
	f := &fakeTransactionRepo{txns: map[uuid.UUID]*domain.MerchantTransaction{}}
	for _, txn := range txns {
		f.txns[txn.ID] = txn
	}
	return f
}

func (f *fakeTransactionRepo) Create(ctx context.Context, txn *domain.MerchantTransaction) error {
	f.txns[txn.ID] = txn
	return nil
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error) {
	return f.txns[id], nil
}

func (f *fakeTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MerchantTransaction, error) {
	return f.txns[id], nil
}

func (f *fakeTransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, collectedBy uuid.UUID, at time.Time) (bool, error) {
	txn, ok := f.txns[id]
	if !ok || txn.Status != domain.PaymentStatusPending {
		return false, nil
	}
	txn.Status = domain.PaymentStatusCompleted
	txn.CollectedBy = &collectedBy
	txn.CompletedAt = &at
	return true, nil
}

func (f *fakeTransactionRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	txn, ok := f.txns[id]
	if !ok || txn.Status != domain.PaymentStatusPending {
		return false, nil
	}
	txn.Status = domain.PaymentStatusCancelled
	txn.ReasonNote = &reason
	txn.ClosedAt = &at
	return true, nil
}

func (f *fakeTransactionRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, at time.Time) (bool, error) {
	txn, ok := f.txns[id]
	if !ok || txn.Status != domain.PaymentStatusCompleted {
		return false, nil
	}
	txn.Status = domain.PaymentStatusRefunded
	txn.ReasonNote = &reason
	txn.ClosedAt = &at
	return true, nil
}

type fakeCardRepo struct {
	cards map[uuid.UUID]*domain.PointCard
}

func newFakeCardRepo(cards ...*domain.PointCard) *fakeCardRepo {
	f := &fakeCardRepo{cards: map[uuid.UUID]*domain.PointCard{}}
	for _, c := range cards {
		f.cards[c.ID] = c
	}
	return f
}

func (f *fakeCardRepo) Create(ctx context.Context, tx pgx.Tx, card *domain.PointCard) error {
	f.cards[card.ID] = card
	return nil
}

func (f *fakeCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PointCard, error) {
	return f.cards[id], nil
}

func (f *fakeCardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PointCard, error) {
	return f.cards[id], nil
}

func (f *fakeCardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, newBalance int64) error {
	if c, ok := f.cards[cardID]; ok {
		c.CurrentBalance = newBalance
	}
	return nil
}

func (f *fakeCardRepo) SetActive(ctx context.Context, cardID uuid.UUID, active bool) error {
	if c, ok := f.cards[cardID]; ok {
		c.IsActive = active
	}
	return nil
}

type fakeSubmissionRepo struct {
	subs map[uuid.UUID]*domain.CashSubmission
}

func newFakeSubmissionRepo(subs ...*domain.CashSubmission) *fakeSubmissionRepo {
	f := &fakeSubmissionRepo{subs: map[uuid.UUID]*domain.CashSubmission{}}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx pgx.Tx, submission *domain.CashSubmission) error {
	f.subs[submission.ID] = submission
	return nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashSubmission, error) {
	return f.subs[id], nil
}

func (f *fakeSubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashSubmission, error) {
	return f.subs[id], nil
}

func (f *fakeSubmissionRepo) Claim(ctx context.Context, id uuid.UUID, clerkID uuid.UUID, at time.Time) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.ReceivedBy != nil || sub.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	sub.ReceivedBy = &clerkID
	sub.ClaimedAt = &at
	return true, nil
}

func (f *fakeSubmissionRepo) MarkConfirmed(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	sub.Status = domain.SubmissionStatusConfirmed
	sub.ResolvedAt = &at
	if note != "" {
		sub.ConfirmationNote = &note
	}
	return true, nil
}

func (f *fakeSubmissionRepo) MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	sub.Status = domain.SubmissionStatusDisputed
	sub.ConfirmationNote = &reason
	sub.ResolvedAt = &at
	return true, nil
}

func (f *fakeSubmissionRepo) ListPending(ctx context.Context) ([]domain.CashSubmission, error) {
	var out []domain.CashSubmission
	for _, s := range f.subs {
		if s.Status == domain.SubmissionStatusPending {
			out = append(out, *s)
		}
	}
	return out, nil
}
