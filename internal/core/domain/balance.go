package domain

import (
	"time"

	"github.com/google/uuid"
)

// Balance is the materialized per actor-role view of the ledger. It is
// maintained in the same database transaction as each ledger append, so
// the two can never disagree. The ledger remains the source of truth.
type Balance struct {
	ActorID         uuid.UUID `json:"actor_id"`
	Role            Role      `json:"role"`
	AvailablePoints int64     `json:"available_points"`
	TotalReceived   int64     `json:"total_received"`
	TotalSpent      int64     `json:"total_spent"`
	TotalSold       int64     `json:"total_sold"`
	TotalRevenue    int64     `json:"total_revenue"`
	// Cash-handling roles only: physical cash owed upstream and cash
	// already confirmed through reconciliation.
	PendingCollection  int64 `json:"pending_collection"`
	TotalCashCollected int64 `json:"total_cash_collected"`

	Version   int64     `json:"-"` // bumped on every write, row-lock witness
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBalance returns an explicit zero-balance record for an actor-role.
func NewBalance(actorID uuid.UUID, role Role) *Balance {
	return &Balance{ActorID: actorID, Role: role, UpdatedAt: time.Now().UTC()}
}

// CanDebit reports whether amount can be taken from available points.
func (b *Balance) CanDebit(amount int64) bool {
	return b.AvailablePoints >= amount
}
