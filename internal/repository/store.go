package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/slot-reservation/internal/model"
)

// Store bundles the slot and booking repositories behind a single
// transactional entry point for the booking engine. Every engine
// mutation runs inside exactly one InTx call; within it the engine
// sees the ledger through the txView, whose slot lock serializes
// concurrent writers on the same slot.
type Store struct {
	db       *sql.DB
	slots    *SlotRepo
	bookings *BookingRepo
}

// NewStore builds a Store over the shared DB handle and repositories.
func NewStore(db *sql.DB, slots *SlotRepo, bookings *BookingRepo) *Store {
	return &Store{db: db, slots: slots, bookings: bookings}
}

// txView is the per-transaction view handed to the engine callback.
type txView struct {
	ctx      context.Context
	tx       *sql.Tx
	slots    *SlotRepo
	bookings *BookingRepo
}

// InTx opens a transaction, runs fn against it and commits when fn
// returns nil. Any error from fn rolls the whole transaction back, so
// a multi-step mutation (cancel + rebook) either lands completely or
// not at all.
func (s *Store) InTx(ctx context.Context, fn func(tx TxView) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&txView{ctx: ctx, tx: tx, slots: s.slots, bookings: s.bookings}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// TxView is what an engine mutation can do inside one transaction.
// The MySQL implementation is txView above; tests substitute an
// in-memory ledger with the same contract.
type TxView interface {
	// LockSlot loads the slot row and takes an exclusive lock on it
	// (SELECT ... FOR UPDATE). ErrSlotNotFound for unknown ids.
	LockSlot(slotID uint64) (model.Slot, error)
	// CountBookings recounts ledger rows referencing the slot.
	CountBookings(slotID uint64) (uint32, error)
	// BookingByEmail returns the active booking for a normalized
	// email, or ErrBookingNotFound.
	BookingByEmail(email string) (model.Booking, error)
	// GetBooking loads and locks a booking row, or ErrBookingNotFound.
	GetBooking(bookingID uint64) (model.Booking, error)
	// InsertBooking appends to the ledger. ErrAlreadyBooked when the
	// email already holds a booking (unique index backstop).
	InsertBooking(b *model.Booking) error
	// DeleteBooking removes a ledger row. ErrBookingNotFound when the
	// id no longer exists, so retried cancels fail cleanly.
	DeleteBooking(bookingID uint64) error
	// WriteOccupancy stores a freshly recounted occupancy on the slot.
	WriteOccupancy(slotID uint64, count uint32, isFull bool) error
}

func (v *txView) LockSlot(slotID uint64) (model.Slot, error) {
	return v.slots.LockTx(v.ctx, v.tx, slotID)
}

func (v *txView) CountBookings(slotID uint64) (uint32, error) {
	return v.bookings.CountBySlotTx(v.ctx, v.tx, slotID)
}

func (v *txView) BookingByEmail(email string) (model.Booking, error) {
	return v.bookings.GetByEmailTx(v.ctx, v.tx, email)
}

func (v *txView) GetBooking(bookingID uint64) (model.Booking, error) {
	return v.bookings.GetTx(v.ctx, v.tx, bookingID)
}

func (v *txView) InsertBooking(b *model.Booking) error {
	return v.bookings.InsertTx(v.ctx, v.tx, b)
}

func (v *txView) DeleteBooking(bookingID uint64) error {
	return v.bookings.DeleteTx(v.ctx, v.tx, bookingID)
}

func (v *txView) WriteOccupancy(slotID uint64, count uint32, isFull bool) error {
	return v.slots.WriteOccupancyTx(v.ctx, v.tx, slotID, count, isFull)
}
