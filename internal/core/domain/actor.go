package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the capacity in which an actor holds a balance or
// invokes a command. A person can hold several roles at once; each
// role has its own independent balance.
type Role string

const (
	RoleOrganizer         Role = "ORGANIZER"
	RoleSellerManager     Role = "SELLER_MANAGER"
	RoleSeller            Role = "SELLER"
	RoleCustomer          Role = "CUSTOMER"
	RoleMerchantOwner     Role = "MERCHANT_OWNER"
	RoleMerchantAssistant Role = "MERCHANT_ASSISTANT"
	RoleClerk             Role = "CLERK"

	// RoleMerchant is the shared balance role for a merchant. Owner and
	// assistant operate against one merchant balance keyed by merchant id.
	RoleMerchant Role = "MERCHANT"

	// RoleCard attributes ledger entries to a bearer point card.
	RoleCard Role = "CARD"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleOrganizer, RoleSellerManager, RoleSeller, RoleCustomer,
		RoleMerchantOwner, RoleMerchantAssistant, RoleClerk,
		RoleMerchant, RoleCard:
		return true
	}
	return false
}

// AllocatesTo reports whether r sits exactly one level above target in
// the allocation hierarchy organizer -> seller_manager -> seller.
func (r Role) AllocatesTo(target Role) bool {
	switch r {
	case RoleOrganizer:
		return target == RoleSellerManager
	case RoleSellerManager:
		return target == RoleSeller
	}
	return false
}

// IsMerchantOperator reports whether r may confirm merchant payments.
func (r Role) IsMerchantOperator() bool {
	return r == RoleMerchantOwner || r == RoleMerchantAssistant
}

// CanAuthorizeRefund reports whether r may authorize a merchant refund.
// Only the primary operator has refund authority.
func (r Role) CanAuthorizeRefund() bool {
	return r == RoleMerchantOwner
}

// HandlesCash reports whether r collects physical cash that must be
// reconciled upstream.
func (r Role) HandlesCash() bool {
	return r == RoleSeller || r == RoleSellerManager
}

// ActorRef addresses one role-scoped balance holder.
type ActorRef struct {
	ActorID uuid.UUID `json:"actor_id"`
	Role    Role      `json:"role"`
}

// NewActorRef builds an ActorRef.
func NewActorRef(id uuid.UUID, role Role) ActorRef {
	return ActorRef{ActorID: id, Role: role}
}

// IsZero reports whether the ref is unset.
func (a ActorRef) IsZero() bool {
	return a.ActorID == uuid.Nil
}

func (a ActorRef) String() string {
	return string(a.Role) + ":" + a.ActorID.String()
}

// ActorStatus represents the state of a directory record.
type ActorStatus string

const (
	ActorStatusActive    ActorStatus = "ACTIVE"
	ActorStatusSuspended ActorStatus = "SUSPENDED"
)

// Actor is the directory record for a balance holder. The record is fed
// from the external identity provider; the engine only caches the facts
// it needs (tag for cohort grants, merchant binding, clerk PIN hash).
type Actor struct {
	ID          uuid.UUID   `json:"id"`
	DisplayName string      `json:"display_name"`
	IdentityTag string      `json:"identity_tag"`
	OrgID       uuid.UUID   `json:"org_id"`
	Roles       []Role      `json:"roles"`
	MerchantID  *uuid.UUID  `json:"merchant_id,omitempty"` // set for merchant operators
	Status      ActorStatus `json:"status"`
	PINHash     *string     `json:"-"` // Argon2id transaction PIN, clerks only
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsActive returns true if the actor may initiate or receive transfers.
func (a *Actor) IsActive() bool {
	return a.Status == ActorStatusActive
}

// HasRole reports whether the actor holds the given role.
func (a *Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the per-request fact set supplied by the identity/role
// provider. The engine trusts it as given; it never accepts role claims
// from client-controlled storage.
type Identity struct {
	ActorID     uuid.UUID
	Roles       []Role
	IdentityTag string
	OrgID       uuid.UUID
	MerchantID  *uuid.UUID
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Ref builds the ActorRef for one of the identity's roles.
func (i Identity) Ref(role Role) ActorRef {
	return ActorRef{ActorID: i.ActorID, Role: role}
}
