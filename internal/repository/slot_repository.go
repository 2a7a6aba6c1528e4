// Package repository contains the data access layer. This file defines
// persistence for slots. A slot is a bookable time window with a fixed
// capacity; the current_bookings and is_full columns are a cached
// aggregate of the bookings table and are only ever written from a
// fresh recount, never by arithmetic on their previous values.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/slot-reservation/internal/model"
)

// SlotRepo encapsulates database operations for slots.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

const slotColumns = `id, start_time, end_time, capacity, current_bookings, is_full, created_at, updated_at`

func scanSlot(row interface {
	Scan(dest ...interface{}) error
}) (model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.Capacity, &s.CurrentBookings, &s.IsFull, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a new slot and populates the generated ID and the
// DB-default fields on the provided struct.  The caller must have
// validated end > start and capacity >= 1.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	const q = `INSERT INTO slots (start_time, end_time, capacity) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.StartTime.UTC(), s.EndTime.UTC(), s.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	got, err := scanSlot(r.db.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// GetByID fetches a single slot.  ErrSlotNotFound is returned when the
// id does not exist.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// ListUpcoming returns slots whose window has not yet closed, ordered
// by start time ascending.  This is the bookable listing: past slots
// are filtered by end_time >= now.
func (r *SlotRepo) ListUpcoming(ctx context.Context, now time.Time) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE end_time >= ? ORDER BY start_time ASC`
	return r.list(ctx, q, now.UTC())
}

// ListAll returns every slot ordered by start time ascending,
// including past ones.  Used by the admin history view.
func (r *SlotRepo) ListAll(ctx context.Context) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots ORDER BY start_time ASC`
	return r.list(ctx, q)
}

func (r *SlotRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LockTx loads a slot within the given transaction using SELECT ...
// FOR UPDATE.  The row lock serializes concurrent book/cancel calls on
// the same slot so the capacity check and the insert that follows it
// cannot interleave with another writer.  ErrSlotNotFound is returned
// when the id does not exist.
func (r *SlotRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ? FOR UPDATE`
	s, err := scanSlot(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// WriteOccupancyTx stores a freshly recounted occupancy on the slot
// row.  The count must come from COUNT(*) over the bookings table, so
// it can never be negative and repeated writes for the same ledger
// state are identical.
func (r *SlotRepo) WriteOccupancyTx(ctx context.Context, tx *sql.Tx, slotID uint64, count uint32, isFull bool) error {
	const q = `UPDATE slots SET current_bookings = ?, is_full = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, count, isFull, slotID)
	return err
}

// Delete removes a slot that has no bookings referencing it.
// ErrConflict is returned when bookings still reference the slot (the
// foreign key would reject the delete anyway; checking first gives the
// caller a clean error).  ErrSlotNotFound is returned for unknown ids.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var n uint32
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE slot_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSlotNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
