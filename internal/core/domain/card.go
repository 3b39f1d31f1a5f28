package domain

import (
	"time"

	"github.com/google/uuid"
)

// PointCard is an anonymous bearer instrument. Possession of the card id
// plus its printed secret is the only credential; the engine performs no
// identity check beyond card state.
type PointCard struct {
	ID             uuid.UUID  `json:"id"`
	SecretEnc      string     `json:"-"` // AES-256-GCM encrypted printed secret
	InitialBalance int64      `json:"initial_balance"`
	CurrentBalance int64      `json:"current_balance"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IssuedBy       uuid.UUID  `json:"issued_by"` // funding seller
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsExpired reports whether the card has passed its expiry.
func (c *PointCard) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// CanSpend reports whether the card may be charged the given amount.
func (c *PointCard) CanSpend(amount int64, now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && c.CurrentBalance >= amount
}

// Ref returns the ledger actor for the card.
func (c *PointCard) Ref() ActorRef {
	return ActorRef{ActorID: c.ID, Role: RoleCard}
}
