package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_AllocatesTo(t *testing.T) {
	tests := []struct {
		name   string
		from   Role
		to     Role
		want   bool
	}{
		{"organizer to manager", RoleOrganizer, RoleSellerManager, true},
		{"manager to seller", RoleSellerManager, RoleSeller, true},
		{"organizer skip-level to seller", RoleOrganizer, RoleSeller, false},
		{"seller downward", RoleSeller, RoleCustomer, false},
		{"manager upward", RoleSellerManager, RoleOrganizer, false},
		{"sideways", RoleSeller, RoleSeller, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AllocatesTo(tt.to))
		})
	}
}

func TestRole_CanAuthorizeRefund(t *testing.T) {
	assert.True(t, RoleMerchantOwner.CanAuthorizeRefund())
	assert.False(t, RoleMerchantAssistant.CanAuthorizeRefund())
	assert.False(t, RoleClerk.CanAuthorizeRefund())
}

func TestRole_HandlesCash(t *testing.T) {
	assert.True(t, RoleSeller.HandlesCash())
	assert.True(t, RoleSellerManager.HandlesCash())
	assert.False(t, RoleCustomer.HandlesCash())
	assert.False(t, RoleMerchant.HandlesCash())
}

func TestLedgerEntry_Validate(t *testing.T) {
	valid := func() *LedgerEntry {
		return &LedgerEntry{
			ID:          uuid.New(),
			Type:        EntryTypeSale,
			Amount:      40,
			SourceActor: NewActorRef(uuid.New(), RoleSeller),
			TargetActor: NewActorRef(uuid.New(), RoleCustomer),
			OccurredAt:  time.Now().UTC(),
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("zero amount", func(t *testing.T) {
		e := valid()
		e.Amount = 0
		assert.Error(t, e.Validate())
	})

	t.Run("negative amount", func(t *testing.T) {
		e := valid()
		e.Amount = -5
		assert.Error(t, e.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		e := valid()
		e.Type = "BOGUS"
		assert.Error(t, e.Validate())
	})

	t.Run("unresolved source", func(t *testing.T) {
		e := valid()
		e.SourceActor = ActorRef{}
		assert.Error(t, e.Validate())
	})
}

func TestMerchantTransaction_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		status     PaymentStatus
		canConfirm bool
		canCancel  bool
		canRefund  bool
	}{
		{"pending", PaymentStatusPending, true, true, false},
		{"completed", PaymentStatusCompleted, false, false, true},
		{"cancelled", PaymentStatusCancelled, false, false, false},
		{"refunded", PaymentStatusRefunded, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &MerchantTransaction{Status: tt.status}
			assert.Equal(t, tt.canConfirm, tx.CanConfirm())
			assert.Equal(t, tt.canCancel, tx.CanCancel())
			assert.Equal(t, tt.canRefund, tx.CanRefund())
		})
	}
}

func TestMerchantTransaction_Validate(t *testing.T) {
	customerID := uuid.New()
	cardID := uuid.New()
	merchantID := uuid.New()

	t.Run("customer payer", func(t *testing.T) {
		tx := &MerchantTransaction{MerchantID: merchantID, CustomerID: &customerID, Amount: 20}
		require.NoError(t, tx.Validate())
		assert.False(t, tx.IsCardPayment())
		assert.Equal(t, RoleCustomer, tx.PayerRef().Role)
	})

	t.Run("card payer", func(t *testing.T) {
		tx := &MerchantTransaction{MerchantID: merchantID, CardID: &cardID, Amount: 20}
		require.NoError(t, tx.Validate())
		assert.True(t, tx.IsCardPayment())
		assert.Equal(t, RoleCard, tx.PayerRef().Role)
	})

	t.Run("both payers set", func(t *testing.T) {
		tx := &MerchantTransaction{MerchantID: merchantID, CustomerID: &customerID, CardID: &cardID, Amount: 20}
		assert.Error(t, tx.Validate())
	})

	t.Run("no payer", func(t *testing.T) {
		tx := &MerchantTransaction{MerchantID: merchantID, Amount: 20}
		assert.Error(t, tx.Validate())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		tx := &MerchantTransaction{MerchantID: merchantID, CustomerID: &customerID, Amount: 0}
		assert.Error(t, tx.Validate())
	})
}

func TestPointCard_CanSpend(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		card    PointCard
		amount  int64
		want    bool
	}{
		{"active with funds", PointCard{IsActive: true, CurrentBalance: 15}, 10, true},
		{"exact balance", PointCard{IsActive: true, CurrentBalance: 15}, 15, true},
		{"insufficient", PointCard{IsActive: true, CurrentBalance: 15}, 20, false},
		{"inactive", PointCard{IsActive: false, CurrentBalance: 100}, 10, false},
		{"expired", PointCard{IsActive: true, CurrentBalance: 100, ExpiresAt: &past}, 10, false},
		{"not yet expired", PointCard{IsActive: true, CurrentBalance: 100, ExpiresAt: &future}, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.card.CanSpend(tt.amount, now))
		})
	}
}

func TestCashSubmission_Claim(t *testing.T) {
	clerkA := uuid.New()
	clerkB := uuid.New()

	s := &CashSubmission{
		ID:            uuid.New(),
		SubmittedBy:   uuid.New(),
		SubmitterRole: RoleSeller,
		Amount:        500,
		Status:        SubmissionStatusPending,
	}
	require.NoError(t, s.Validate())
	assert.False(t, s.IsClaimed())

	s.ReceivedBy = &clerkA
	assert.True(t, s.IsClaimed())
	assert.True(t, s.ClaimedBy(clerkA))
	assert.False(t, s.ClaimedBy(clerkB))
}

func TestCashSubmission_Validate(t *testing.T) {
	t.Run("customer cannot submit cash", func(t *testing.T) {
		s := &CashSubmission{SubmittedBy: uuid.New(), SubmitterRole: RoleCustomer, Amount: 100}
		assert.Error(t, s.Validate())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		s := &CashSubmission{SubmittedBy: uuid.New(), SubmitterRole: RoleSeller, Amount: 0}
		assert.Error(t, s.Validate())
	})
}

func TestBuildIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildIdempotencyKey(id, "sell", "POS-001")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:sell:POS-001", key)
}

func TestIdentity_HasRole(t *testing.T) {
	ident := Identity{ActorID: uuid.New(), Roles: []Role{RoleSeller, RoleCustomer}}
	assert.True(t, ident.HasRole(RoleSeller))
	assert.False(t, ident.HasRole(RoleClerk))
	assert.Equal(t, RoleSeller, ident.Ref(RoleSeller).Role)
}
