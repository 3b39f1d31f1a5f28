package integration

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Actor Repo ---

type inMemoryActorRepo struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]*domain.Actor
}

func newInMemoryActorRepo() *inMemoryActorRepo {
	return &inMemoryActorRepo{actors: make(map[uuid.UUID]*domain.Actor)}
}

func (r *inMemoryActorRepo) Upsert(ctx context.Context, actor *domain.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *actor
	// Directory upserts never overwrite a locally managed PIN hash.
	if existing, ok := r.actors[actor.ID]; ok {
		cp.PINHash = existing.PINHash
	}
	r.actors[actor.ID] = &cp
	return nil
}

func (r *inMemoryActorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryActorRepo) ListByIdentityTag(ctx context.Context, orgID uuid.UUID, tag string) ([]domain.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Actor
	for _, a := range r.actors {
		if a.OrgID == orgID && a.IdentityTag == tag && a.Status == domain.ActorStatusActive {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *inMemoryActorRepo) SetPINHash(ctx context.Context, actorID uuid.UUID, pinHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[actorID]
	if !ok {
		return fmt.Errorf("actor not found")
	}
	a.PINHash = &pinHash
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByActor(ctx context.Context, actor domain.ActorRef, filter ports.LedgerFilter) ([]domain.LedgerEntry, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.LedgerEntry
	for _, e := range r.entries {
		if e.SourceActor != actor && e.TargetActor != actor {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, e.Type) {
			continue
		}
		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.OccurredAt.After(*filter.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Cursor != "" {
		n, err := strconv.Atoi(filter.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor")
		}
		offset = n
	}
	if offset >= len(matched) {
		return nil, "", nil
	}

	end := offset + limit
	nextCursor := ""
	if end < len(matched) {
		nextCursor = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	return matched[offset:end], nextCursor, nil
}

func containsType(types []domain.EntryType, t domain.EntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// --- In-Memory Balance Repo ---

type inMemoryBalanceRepo struct {
	mu       sync.RWMutex
	balances map[domain.ActorRef]*domain.Balance
}

func newInMemoryBalanceRepo() *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{balances: make(map[domain.ActorRef]*domain.Balance)}
}

func (r *inMemoryBalanceRepo) Get(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[actor]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *inMemoryBalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, actor domain.ActorRef) (*domain.Balance, error) {
	return r.Get(ctx, actor)
}

func (r *inMemoryBalanceRepo) Save(ctx context.Context, tx pgx.Tx, balance *domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *balance
	cp.Version++
	r.balances[domain.NewActorRef(balance.ActorID, balance.Role)] = &cp
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.MerchantTransaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.MerchantTransaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, txn *domain.MerchantTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	r.transactions[txn.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MerchantTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, collectedBy uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.PaymentStatusPending {
		return false, nil
	}
	t.Status = domain.PaymentStatusCompleted
	t.CollectedBy = &collectedBy
	t.CompletedAt = &at
	return true, nil
}

func (r *inMemoryTransactionRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.PaymentStatusPending {
		return false, nil
	}
	t.Status = domain.PaymentStatusCancelled
	t.ReasonNote = &reason
	t.ClosedAt = &at
	return true, nil
}

func (r *inMemoryTransactionRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.PaymentStatusCompleted {
		return false, nil
	}
	t.Status = domain.PaymentStatusRefunded
	t.ReasonNote = &reason
	t.ClosedAt = &at
	return true, nil
}

// --- In-Memory Card Repo ---

type inMemoryCardRepo struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]*domain.PointCard
}

func newInMemoryCardRepo() *inMemoryCardRepo {
	return &inMemoryCardRepo{cards: make(map[uuid.UUID]*domain.PointCard)}
}

func (r *inMemoryCardRepo) Create(ctx context.Context, tx pgx.Tx, card *domain.PointCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *inMemoryCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PointCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryCardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PointCard, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	c.CurrentBalance = newBalance
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryCardRepo) SetActive(ctx context.Context, cardID uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Submission Repo ---

type inMemorySubmissionRepo struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.CashSubmission
}

func newInMemorySubmissionRepo() *inMemorySubmissionRepo {
	return &inMemorySubmissionRepo{submissions: make(map[uuid.UUID]*domain.CashSubmission)}
}

func (r *inMemorySubmissionRepo) Create(ctx context.Context, tx pgx.Tx, submission *domain.CashSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *submission
	r.submissions[submission.ID] = &cp
	return nil
}

func (r *inMemorySubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashSubmission, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemorySubmissionRepo) Claim(ctx context.Context, id uuid.UUID, clerkID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.ReceivedBy != nil || s.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	s.ReceivedBy = &clerkID
	s.ClaimedAt = &at
	return true, nil
}

func (r *inMemorySubmissionRepo) MarkConfirmed(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	s.Status = domain.SubmissionStatusConfirmed
	if note != "" {
		s.ConfirmationNote = &note
	}
	s.ResolvedAt = &at
	return true, nil
}

func (r *inMemorySubmissionRepo) MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.Status != domain.SubmissionStatusPending {
		return false, nil
	}
	s.Status = domain.SubmissionStatusDisputed
	s.ConfirmationNote = &reason
	s.ResolvedAt = &at
	return true, nil
}

func (r *inMemorySubmissionRepo) ListPending(ctx context.Context) ([]domain.CashSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.CashSubmission
	for _, s := range r.submissions {
		if s.Status == domain.SubmissionStatusPending {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result, nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu   sync.RWMutex
	logs map[string]*domain.IdempotencyLog
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{logs: make(map[string]*domain.IdempotencyLog)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.Key] = &cp
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[key]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

// --- Serializing Transactor ---

// serialTransactor emulates the pessimistic locking the SQL layer
// provides: Begin takes a global lock that is held until Commit or
// Rollback, so whole transactions execute one at a time.
type serialTransactor struct {
	mu sync.Mutex
}

func newSerialTransactor() *serialTransactor {
	return &serialTransactor{}
}

func (t *serialTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: t.mu.Unlock}, nil
}

// serialTx is a pgx.Tx stub whose only real behavior is releasing the
// transactor lock exactly once.
type serialTx struct {
	mu      sync.Mutex
	release func()
	done    bool
}

func (t *serialTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release()
	}
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
