package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/repository"
)

// Directory is the slice of the user store the policy consults.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Assignments answers membership questions about the slot-admin
// relation.
type Assignments interface {
	IsAssigned(ctx context.Context, slotID, adminID uint64) (bool, error)
}

// AccessPolicy decides who may book and who may manage a given slot.
// Booking requires presence in the authorized identity set (and an
// active account); managing requires the ADMIN role, optionally
// narrowed to slots the admin is explicitly assigned to when scoped
// mode is enabled. The policy is consulted before any ledger mutation
// is attempted.
type AccessPolicy struct {
	users       Directory
	assignments Assignments
	scoped      bool
}

// NewAccessPolicy builds the policy. scoped enables per-slot admin
// assignment checks; when false any admin manages any slot.
func NewAccessPolicy(users Directory, assignments Assignments, scoped bool) *AccessPolicy {
	if users == nil {
		panic("nil directory passed to NewAccessPolicy")
	}
	if scoped && assignments == nil {
		panic("scoped policy requires assignments")
	}
	return &AccessPolicy{users: users, assignments: assignments, scoped: scoped}
}

// CanBook reports whether the identity may create bookings. Unknown or
// deactivated identities are rejected.
func (p *AccessPolicy) CanBook(ctx context.Context, email string) (bool, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return u.IsActive, nil
}

// CanManage reports whether the identity may view and mutate bookings
// on the slot. Only admins qualify; in scoped mode the admin must also
// hold an assignment row for the slot.
func (p *AccessPolicy) CanManage(ctx context.Context, email string, slotID uint64) (bool, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if !u.IsActive || u.Role != model.RoleAdmin {
		return false, nil
	}
	if !p.scoped {
		return true, nil
	}
	return p.assignments.IsAssigned(ctx, slotID, u.ID)
}

// Require wraps CanManage into the sentinel-error form handlers expect.
func (p *AccessPolicy) Require(ctx context.Context, email string, slotID uint64) error {
	ok, err := p.CanManage(ctx, email, slotID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrForbidden
	}
	return nil
}
