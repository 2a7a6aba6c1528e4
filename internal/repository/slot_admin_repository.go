package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// SlotAdminRepo persists the many-to-many relation between slots and
// the admins assigned to oversee them. The (slot_id, admin_id) pair is
// unique, so Assign and Unassign are idempotent at the storage layer:
// assigning an already-assigned admin changes nothing and unassigning
// a missing pair deletes zero rows.
type SlotAdminRepo struct {
	db *sql.DB
}

// NewSlotAdminRepo constructs a SlotAdminRepo given a DB handle.
func NewSlotAdminRepo(db *sql.DB) *SlotAdminRepo { return &SlotAdminRepo{db: db} }

// Assign records that the admin oversees the slot. Returns true when a
// new row was created and false when the assignment already existed.
func (r *SlotAdminRepo) Assign(ctx context.Context, slotID, adminID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO slot_admins (slot_id, admin_id) VALUES (?, ?)",
		slotID, adminID)
	if err != nil {
		// Unknown slot or admin id trips the foreign keys (1452).
		if strings.Contains(strings.ToLower(err.Error()), "1452") {
			return false, ErrSlotNotFound
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Unassign removes the assignment. Returns true when a row was
// deleted and false when the pair was not assigned.
func (r *SlotAdminRepo) Unassign(ctx context.Context, slotID, adminID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM slot_admins WHERE slot_id=? AND admin_id=?",
		slotID, adminID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsAssigned reports whether the admin is assigned to the slot.
func (r *SlotAdminRepo) IsAssigned(ctx context.Context, slotID, adminID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM slot_admins WHERE slot_id=? AND admin_id=? LIMIT 1",
		slotID, adminID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AssignmentDetail is an assignment joined with the admin's profile,
// shaped for the admin dashboard.
type AssignmentDetail struct {
	ID        uint64    `json:"id"`
	SlotID    uint64    `json:"slot_id"`
	AdminID   uint64    `json:"admin_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ListBySlots returns assignments for many slots in one query, grouped
// by slot id and joined with each admin's name and email.
func (r *SlotAdminRepo) ListBySlots(ctx context.Context, slotIDs []uint64) (map[uint64][]AssignmentDetail, error) {
	grouped := make(map[uint64][]AssignmentDetail, len(slotIDs))
	if len(slotIDs) == 0 {
		return grouped, nil
	}
	placeholders := make([]string, 0, len(slotIDs))
	args := make([]interface{}, 0, len(slotIDs))
	for _, id := range slotIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT sa.id, sa.slot_id, sa.admin_id, COALESCE(u.name, ''), u.email, sa.created_at
	      FROM slot_admins sa
	      JOIN authorized_users u ON u.id = sa.admin_id
	      WHERE sa.slot_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY sa.slot_id, u.email`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d AssignmentDetail
		if err := rows.Scan(&d.ID, &d.SlotID, &d.AdminID, &d.Name, &d.Email, &d.CreatedAt); err != nil {
			return nil, err
		}
		grouped[d.SlotID] = append(grouped[d.SlotID], d)
	}
	return grouped, rows.Err()
}

// ListSlotIDsForAdmin returns the ids of all slots the admin is
// assigned to. Used by the scoped access policy.
func (r *SlotAdminRepo) ListSlotIDsForAdmin(ctx context.Context, adminID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT slot_id FROM slot_admins WHERE admin_id=?", adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
