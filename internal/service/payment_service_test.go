package service

import (
	"context"
	"testing"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	svc      *PaymentServiceImpl
	txns     *fakeTransactionRepo
	balances *fakeBalanceRepo
	cards    *fakeCardRepo
	ledger   *fakeLedgerRepo
	actors   *fakeActorRepo
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		txns:     newFakeTransactionRepo(),
		balances: &fakeBalanceRepo{balances: map[domain.ActorRef]*domain.Balance{}},
		cards:    newFakeCardRepo(),
		ledger:   &fakeLedgerRepo{},
		actors:   newFakeActorRepo(),
	}
	f.svc = NewPaymentService(f.txns, f.balances, f.cards, f.ledger, f.actors, noopTransactor{}, zerolog.Nop())
	return f
}

func (f *paymentFixture) seedCustomer(id uuid.UUID, available int64) {
	f.actors.actors[id] = &domain.Actor{
		ID:     id,
		OrgID:  uuid.New(),
		Roles:  []domain.Role{domain.RoleCustomer},
		Status: domain.ActorStatusActive,
	}
	ref := domain.NewActorRef(id, domain.RoleCustomer)
	f.balances.balances[ref] = &domain.Balance{ActorID: id, Role: domain.RoleCustomer, AvailablePoints: available}
}

func (f *paymentFixture) pendingPayment(merchant, customer uuid.UUID, amount int64) *domain.MerchantTransaction {
	txn := &domain.MerchantTransaction{
		ID:         uuid.New(),
		MerchantID: merchant,
		CustomerID: &customer,
		Amount:     amount,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	f.txns.txns[txn.ID] = txn
	return txn
}

func TestPaymentService_Initiate_CreatesPending(t *testing.T) {
	f := newPaymentFixture()
	customer := uuid.New()
	f.seedCustomer(customer, 1000)

	txn, err := f.svc.Initiate(context.Background(), ports.InitiatePaymentRequest{
		MerchantID: uuid.New(),
		CustomerID: &customer,
		Amount:     400,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPending, txn.Status)
	// Nothing moves until confirmation.
	ref := domain.NewActorRef(customer, domain.RoleCustomer)
	assert.Equal(t, int64(1000), f.balances.balances[ref].AvailablePoints)
	assert.Empty(t, f.ledger.entries)
}

func TestPaymentService_Initiate_RequiresExactlyOnePayer(t *testing.T) {
	f := newPaymentFixture()
	customer := uuid.New()
	card := uuid.New()

	_, err := f.svc.Initiate(context.Background(), ports.InitiatePaymentRequest{
		MerchantID: uuid.New(),
		Amount:     100,
	})
	assertCode(t, err, "VAL_001")

	_, err = f.svc.Initiate(context.Background(), ports.InitiatePaymentRequest{
		MerchantID: uuid.New(),
		CustomerID: &customer,
		CardID:     &card,
		Amount:     100,
	})
	assertCode(t, err, "VAL_001")
}

func TestPaymentService_Initiate_UnknownCustomer(t *testing.T) {
	f := newPaymentFixture()
	customer := uuid.New()

	_, err := f.svc.Initiate(context.Background(), ports.InitiatePaymentRequest{
		MerchantID: uuid.New(),
		CustomerID: &customer,
		Amount:     100,
	})
	assertCode(t, err, "NF_001")
}

func TestPaymentService_Initiate_SuspendedCustomer(t *testing.T) {
	f := newPaymentFixture()
	customer := uuid.New()
	f.actors.actors[customer] = &domain.Actor{
		ID:     customer,
		Roles:  []domain.Role{domain.RoleCustomer},
		Status: domain.ActorStatusSuspended,
	}

	_, err := f.svc.Initiate(context.Background(), ports.InitiatePaymentRequest{
		MerchantID: uuid.New(),
		CustomerID: &customer,
		Amount:     100,
	})
	assertCode(t, err, "AUTH_003")
}

func TestPaymentService_Confirm_MovesBalances(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	customer := uuid.New()
	owner := uuid.New()
	f.seedCustomer(customer, 1000)
	txn := f.pendingPayment(merchant, customer, 400)

	confirmed, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		ConfirmedBy:   owner,
		OperatorRole:  domain.RoleMerchantOwner,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, confirmed.Status)
	require.NotNil(t, confirmed.CollectedBy)
	assert.Equal(t, owner, *confirmed.CollectedBy)

	payerRef := domain.NewActorRef(customer, domain.RoleCustomer)
	merchantRef := domain.NewActorRef(merchant, domain.RoleMerchant)
	assert.Equal(t, int64(600), f.balances.balances[payerRef].AvailablePoints)
	assert.Equal(t, int64(400), f.balances.balances[payerRef].TotalSpent)
	assert.Equal(t, int64(400), f.balances.balances[merchantRef].AvailablePoints)
	assert.Equal(t, int64(400), f.balances.balances[merchantRef].TotalRevenue)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, domain.EntryTypeMerchantPayment, f.ledger.entries[0].Type)
}

func TestPaymentService_Confirm_OtherMerchantForbidden(t *testing.T) {
	f := newPaymentFixture()
	merchantA := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 1000)
	txn := f.pendingPayment(merchantA, customer, 400)

	_, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    uuid.New(),
		ConfirmedBy:   uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	assertCode(t, err, "AUTH_002")

	// Nothing settled for the intruding merchant.
	assert.Equal(t, domain.PaymentStatusPending, f.txns.txns[txn.ID].Status)
	ref := domain.NewActorRef(customer, domain.RoleCustomer)
	assert.Equal(t, int64(1000), f.balances.balances[ref].AvailablePoints)
	assert.Empty(t, f.ledger.entries)
}

func TestPaymentService_Refund_OtherMerchantForbidden(t *testing.T) {
	f := newPaymentFixture()
	merchantA := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 600)
	txn := f.pendingPayment(merchantA, customer, 400)
	txn.Status = domain.PaymentStatusCompleted

	_, err := f.svc.Refund(context.Background(), ports.RefundPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    uuid.New(),
		Reason:        "not mine",
		AuthorizedBy:  uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	assertCode(t, err, "AUTH_002")
	assert.Equal(t, domain.PaymentStatusCompleted, f.txns.txns[txn.ID].Status)
}

func TestPaymentService_Cancel_OtherMerchantForbidden(t *testing.T) {
	f := newPaymentFixture()
	merchantA := uuid.New()
	txn := f.pendingPayment(merchantA, uuid.New(), 200)

	_, err := f.svc.Cancel(context.Background(), ports.CancelPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    uuid.New(),
		Reason:        "not mine",
	})
	assertCode(t, err, "AUTH_002")
	assert.Equal(t, domain.PaymentStatusPending, f.txns.txns[txn.ID].Status)
}

func TestPaymentService_Confirm_RequiresOperatorRole(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: uuid.New(),
		ConfirmedBy:   uuid.New(),
		OperatorRole:  domain.RoleCustomer,
	})
	assertCode(t, err, "AUTH_002")
}

func TestPaymentService_Confirm_InsufficientLeavesPending(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 100)
	txn := f.pendingPayment(merchant, customer, 400)

	_, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		ConfirmedBy:   uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	assertCode(t, err, "BAL_001")

	// The row stays pending so the customer can top up and retry.
	assert.Equal(t, domain.PaymentStatusPending, f.txns.txns[txn.ID].Status)
	assert.Empty(t, f.ledger.entries)
}

func TestPaymentService_Confirm_AlreadyCompleted(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 1000)
	txn := f.pendingPayment(merchant, customer, 400)
	txn.Status = domain.PaymentStatusCompleted

	_, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		ConfirmedBy:   uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	assertCode(t, err, "STATE_001")
}

func TestPaymentService_Confirm_CardPayment(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	cardID := uuid.New()
	f.cards.cards[cardID] = &domain.PointCard{ID: cardID, CurrentBalance: 500, IsActive: true}

	txn := &domain.MerchantTransaction{
		ID:         uuid.New(),
		MerchantID: merchant,
		CardID:     &cardID,
		Amount:     150,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	f.txns.txns[txn.ID] = txn

	confirmed, err := f.svc.Confirm(context.Background(), ports.ConfirmPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		ConfirmedBy:   uuid.New(),
		OperatorRole:  domain.RoleMerchantAssistant,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, confirmed.Status)
	assert.Equal(t, int64(350), f.cards.cards[cardID].CurrentBalance)

	merchantRef := domain.NewActorRef(merchant, domain.RoleMerchant)
	assert.Equal(t, int64(150), f.balances.balances[merchantRef].AvailablePoints)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, domain.EntryTypeCardSpend, f.ledger.entries[0].Type)
}

func TestPaymentService_Cancel_PendingOnly(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	txn := f.pendingPayment(merchant, uuid.New(), 200)

	cancelled, err := f.svc.Cancel(context.Background(), ports.CancelPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		Reason:        "customer walked away",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), ports.CancelPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		Reason:        "again",
	})
	assertCode(t, err, "STATE_001")
}

func TestPaymentService_Refund_RequiresOwner(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.Refund(context.Background(), ports.RefundPaymentRequest{
		TransactionID: uuid.New(),
		Reason:        "mischarge",
		AuthorizedBy:  uuid.New(),
		OperatorRole:  domain.RoleMerchantAssistant,
	})
	assertCode(t, err, "AUTH_002")
}

func TestPaymentService_Refund_ReversesCompleted(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 600)
	payerRef := domain.NewActorRef(customer, domain.RoleCustomer)
	f.balances.balances[payerRef].TotalSpent = 400
	merchantRef := domain.NewActorRef(merchant, domain.RoleMerchant)
	f.balances.balances[merchantRef] = &domain.Balance{
		ActorID: merchant, Role: domain.RoleMerchant, AvailablePoints: 400, TotalRevenue: 400,
	}

	txn := f.pendingPayment(merchant, customer, 400)
	txn.Status = domain.PaymentStatusCompleted

	refunded, err := f.svc.Refund(context.Background(), ports.RefundPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		Reason:        "double charged",
		AuthorizedBy:  uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, int64(1000), f.balances.balances[payerRef].AvailablePoints)
	assert.Equal(t, int64(0), f.balances.balances[payerRef].TotalSpent)
	assert.Equal(t, int64(0), f.balances.balances[merchantRef].AvailablePoints)
	assert.Equal(t, int64(0), f.balances.balances[merchantRef].TotalRevenue)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, domain.EntryTypeRefund, f.ledger.entries[0].Type)
}

func TestPaymentService_Refund_CardPaymentReversed(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	cardID := uuid.New()
	f.cards.cards[cardID] = &domain.PointCard{ID: cardID, CurrentBalance: 350, IsActive: true}
	merchantRef := domain.NewActorRef(merchant, domain.RoleMerchant)
	f.balances.balances[merchantRef] = &domain.Balance{
		ActorID: merchant, Role: domain.RoleMerchant, AvailablePoints: 150, TotalRevenue: 150,
	}

	txn := &domain.MerchantTransaction{
		ID:         uuid.New(),
		MerchantID: merchant,
		CardID:     &cardID,
		Amount:     150,
		Status:     domain.PaymentStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
	f.txns.txns[txn.ID] = txn

	refunded, err := f.svc.Refund(context.Background(), ports.RefundPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		Reason:        "returned goods",
		AuthorizedBy:  uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, int64(500), f.cards.cards[cardID].CurrentBalance)
	assert.Equal(t, int64(0), f.balances.balances[merchantRef].AvailablePoints)
	assert.Equal(t, int64(0), f.balances.balances[merchantRef].TotalRevenue)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, domain.EntryTypeRefund, f.ledger.entries[0].Type)
}

func TestPaymentService_Refund_MerchantCannotGoNegative(t *testing.T) {
	f := newPaymentFixture()
	merchant := uuid.New()
	customer := uuid.New()
	f.seedCustomer(customer, 600)
	// The merchant already moved the revenue out; the refund must not
	// drive the merchant balance below zero.
	merchantRef := domain.NewActorRef(merchant, domain.RoleMerchant)
	f.balances.balances[merchantRef] = &domain.Balance{
		ActorID: merchant, Role: domain.RoleMerchant, AvailablePoints: 100,
	}

	txn := f.pendingPayment(merchant, customer, 400)
	txn.Status = domain.PaymentStatusCompleted

	_, err := f.svc.Refund(context.Background(), ports.RefundPaymentRequest{
		TransactionID: txn.ID,
		MerchantID:    merchant,
		Reason:        "mischarge",
		AuthorizedBy:  uuid.New(),
		OperatorRole:  domain.RoleMerchantOwner,
	})
	assertCode(t, err, "BAL_001")
	assert.Equal(t, domain.PaymentStatusCompleted, f.txns.txns[txn.ID].Status)
}
