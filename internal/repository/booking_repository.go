package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/slot-reservation/internal/model"
)

// BookingRepo provides CRUD operations for the bookings ledger.  The
// ledger is the authoritative record of who holds a place in which
// slot; the occupancy numbers on the slots table are derived from it.
// All timestamp fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, slot_id, email, name, phone, created_at`

func scanBooking(row interface {
	Scan(dest ...interface{}) error
}) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.Email, &b.Name, &b.Phone, &b.CreatedAt)
	return b, err
}

// InsertTx inserts a booking within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided record.  The email must already be normalized.  The unique
// index on bookings.email turns a duplicate insert into
// ErrAlreadyBooked, which closes the race window between any prior
// existence check and this insert.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (slot_id, email, name, phone) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.SlotID, b.Email, b.Name, b.Phone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrAlreadyBooked
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	got, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID))
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// GetByID loads a booking by id outside any transaction. Handlers use
// it to resolve the slot for authorization before invoking the engine.
// ErrBookingNotFound is returned for unknown ids.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// GetTx loads a booking by id within a transaction, locking the row so
// a concurrent cancel of the same booking serializes behind this one.
// ErrBookingNotFound is returned for unknown ids.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// DeleteTx removes a booking within a transaction.  A repeated delete
// of the same id reports ErrBookingNotFound instead of silently
// succeeding, so retrying a cancel can never decrement occupancy
// twice.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// CountBySlotTx recounts ledger rows referencing the slot within a
// transaction.  This is the ground-truth aggregate the cached
// occupancy columns are derived from.
func (r *BookingRepo) CountBySlotTx(ctx context.Context, tx *sql.Tx, slotID uint64) (uint32, error) {
	var n uint32
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE slot_id = ?`, slotID).Scan(&n)
	return n, err
}

// GetByEmailTx returns the active booking for a normalized email
// within a transaction, or ErrBookingNotFound when the user holds
// none.  Used as the pre-check before inserting; the unique index is
// the backstop.
func (r *BookingRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE email = ? LIMIT 1`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, email))
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// UserBookingDetail is a booking joined with its slot's window, shaped
// for the "my booking" endpoint.
type UserBookingDetail struct {
	ID        uint64    `json:"id"`
	SlotID    uint64    `json:"slot_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// GetDetailByEmail returns the caller's active booking together with
// the slot window, or ErrBookingNotFound when none exists.
func (r *BookingRepo) GetDetailByEmail(ctx context.Context, email string) (UserBookingDetail, error) {
	const q = `SELECT b.id, b.slot_id, b.email, b.name, b.phone, b.created_at,
	                  s.start_time, s.end_time
	           FROM bookings b
	           JOIN slots s ON s.id = b.slot_id
	           WHERE b.email = ?
	           ORDER BY b.created_at DESC
	           LIMIT 1`
	var d UserBookingDetail
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&d.ID, &d.SlotID, &d.Email, &d.Name, &d.Phone, &d.CreatedAt,
		&d.StartTime, &d.EndTime,
	)
	if err == sql.ErrNoRows {
		return UserBookingDetail{}, ErrBookingNotFound
	}
	return d, err
}

// ListBySlot returns all bookings for one slot ordered by creation
// time ascending.  Used when assembling the admin dashboard.
func (r *BookingRepo) ListBySlot(ctx context.Context, slotID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE slot_id = ? ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBySlots returns bookings for many slots in one query, grouped by
// slot id.  The admin dashboard uses this to avoid a query per slot.
func (r *BookingRepo) ListBySlots(ctx context.Context, slotIDs []uint64) (map[uint64][]model.Booking, error) {
	grouped := make(map[uint64][]model.Booking, len(slotIDs))
	if len(slotIDs) == 0 {
		return grouped, nil
	}
	placeholders := make([]string, 0, len(slotIDs))
	args := make([]interface{}, 0, len(slotIDs))
	for _, id := range slotIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE slot_id IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY slot_id, created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		grouped[b.SlotID] = append(grouped[b.SlotID], b)
	}
	return grouped, rows.Err()
}
