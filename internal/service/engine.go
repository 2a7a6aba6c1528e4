package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/queue"
	"github.com/iliyamo/slot-reservation/internal/repository"
)

// Ledger is the transactional store the engine mutates. The MySQL
// implementation is repository.Store; tests substitute an in-memory
// ledger honoring the same locking contract.
type Ledger interface {
	InTx(ctx context.Context, fn func(tx repository.TxView) error) error
}

// Notifier receives change events after a mutation commits. The live
// view hub is the primary notifier; cmd/server wraps it together with
// the broker publisher.
type Notifier interface {
	Broadcast(ev queue.ChangeEvent)
}

// Engine enforces the two booking invariants: a slot never holds more
// bookings than its capacity, and a normalized email never holds more
// than one active booking. Every mutation runs in a single
// transaction that locks the affected slot row before checking
// capacity, so two concurrent bookers on the same slot serialize and
// the loser sees the winner's insert when it recounts. The uniqueness
// invariant is additionally enforced by the unique index on
// bookings.email — the engine's pre-check only exists to produce a
// friendly error without burning an insert.
//
// Slot occupancy is a cached aggregate: after every mutation the
// engine recounts the ledger inside the same transaction and writes
// the result, and RecomputeOccupancy exposes the same recount as a
// standalone repair primitive for drift left behind by partial
// failures.
type Engine struct {
	ledger Ledger
	events Notifier
	now    func() time.Time
}

// NewEngine constructs the engine. notifier may be nil when no live
// view is attached (e.g. in maintenance tooling).
func NewEngine(ledger Ledger, events Notifier) *Engine {
	if ledger == nil {
		panic("nil ledger passed to NewEngine")
	}
	return &Engine{ledger: ledger, events: events, now: func() time.Time { return time.Now().UTC() }}
}

func (e *Engine) notify(evs ...queue.ChangeEvent) {
	if e.events == nil {
		return
	}
	for _, ev := range evs {
		e.events.Broadcast(ev)
	}
}

// refreshOccupancy recounts the ledger for the slot and writes the
// derived pair back. Called with the slot row already locked.
func refreshOccupancy(tx repository.TxView, slot model.Slot) (uint32, error) {
	count, err := tx.CountBookings(slot.ID)
	if err != nil {
		return 0, err
	}
	if err := tx.WriteOccupancy(slot.ID, count, count >= slot.Capacity); err != nil {
		return 0, err
	}
	return count, nil
}

// Book reserves a place in the slot for the given identity. The email
// must already be normalized and the caller authorized. Fails with
// repository.ErrSlotNotFound, ErrSlotEnded, ErrAlreadyBooked or
// ErrSlotFull; on any failure the ledger is untouched.
func (e *Engine) Book(ctx context.Context, slotID uint64, email, name, phone string) (model.Booking, error) {
	var booking model.Booking
	err := e.ledger.InTx(ctx, func(tx repository.TxView) error {
		slot, err := tx.LockSlot(slotID)
		if err != nil {
			return err
		}
		if slot.Ended(e.now()) {
			return repository.ErrSlotEnded
		}
		if _, err := tx.BookingByEmail(email); err == nil {
			return repository.ErrAlreadyBooked
		} else if !errors.Is(err, repository.ErrBookingNotFound) {
			return err
		}
		// Capacity check against the ledger, not the cached counter:
		// the row lock guarantees no other booker is between their own
		// check and insert right now.
		count, err := tx.CountBookings(slotID)
		if err != nil {
			return err
		}
		if count >= slot.Capacity {
			return repository.ErrSlotFull
		}
		booking = model.Booking{SlotID: slotID, Email: email, Name: name, Phone: phone}
		if err := tx.InsertBooking(&booking); err != nil {
			return err
		}
		_, err = refreshOccupancy(tx, slot)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	e.notify(
		queue.NewChangeEvent(queue.TopicBookings, queue.ActionCreated, booking.ID, slotID),
		queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, slotID, slotID),
	)
	return booking, nil
}

// Cancel removes a booking and repairs the slot's occupancy in the
// same transaction. A repeated cancel fails with ErrBookingNotFound
// and changes nothing, so retries after a network error are safe.
func (e *Engine) Cancel(ctx context.Context, bookingID uint64) error {
	var slotID uint64
	err := e.ledger.InTx(ctx, func(tx repository.TxView) error {
		booking, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		slot, err := tx.LockSlot(booking.SlotID)
		if err != nil {
			return err
		}
		if err := tx.DeleteBooking(bookingID); err != nil {
			return err
		}
		slotID = slot.ID
		_, err = refreshOccupancy(tx, slot)
		return err
	})
	if err != nil {
		return err
	}
	e.notify(
		queue.NewChangeEvent(queue.TopicBookings, queue.ActionDeleted, bookingID, slotID),
		queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, slotID, slotID),
	)
	return nil
}

// Modify moves a booking to a new slot. Cancel and rebook run in ONE
// transaction: if the new slot is full, past or missing, the whole
// thing rolls back and the original booking survives. This is
// deliberately stronger than cancel-then-book issued separately, where
// a failed second step would leave the user with nothing. Slots are
// locked in ascending id order so two crossing Modify calls cannot
// deadlock.
func (e *Engine) Modify(ctx context.Context, bookingID, newSlotID uint64, name, phone string) (model.Booking, error) {
	var (
		rebooked  model.Booking
		oldSlotID uint64
	)
	err := e.ledger.InTx(ctx, func(tx repository.TxView) error {
		booking, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		oldSlotID = booking.SlotID
		if oldSlotID == newSlotID {
			return repository.ErrConflict
		}
		first, second := oldSlotID, newSlotID
		if second < first {
			first, second = second, first
		}
		slots := make(map[uint64]model.Slot, 2)
		for _, id := range []uint64{first, second} {
			s, err := tx.LockSlot(id)
			if err != nil {
				return err
			}
			slots[id] = s
		}
		newSlot := slots[newSlotID]
		if newSlot.Ended(e.now()) {
			return repository.ErrSlotEnded
		}
		if err := tx.DeleteBooking(bookingID); err != nil {
			return err
		}
		count, err := tx.CountBookings(newSlotID)
		if err != nil {
			return err
		}
		if count >= newSlot.Capacity {
			return repository.ErrSlotFull
		}
		rebooked = model.Booking{SlotID: newSlotID, Email: booking.Email, Name: name, Phone: phone}
		if err := tx.InsertBooking(&rebooked); err != nil {
			return err
		}
		if _, err := refreshOccupancy(tx, slots[oldSlotID]); err != nil {
			return err
		}
		_, err = refreshOccupancy(tx, newSlot)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	e.notify(
		queue.NewChangeEvent(queue.TopicBookings, queue.ActionDeleted, bookingID, oldSlotID),
		queue.NewChangeEvent(queue.TopicBookings, queue.ActionCreated, rebooked.ID, newSlotID),
		queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, oldSlotID, oldSlotID),
		queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, newSlotID, newSlotID),
	)
	return rebooked, nil
}

// RecomputeOccupancy recounts the ledger for one slot and writes the
// corrected current_bookings/is_full pair. It is a pure function of
// the ledger: calling it any number of times against the same ledger
// state produces the same row, which is what makes it a safe repair
// primitive after partial failures.
func (e *Engine) RecomputeOccupancy(ctx context.Context, slotID uint64) error {
	err := e.ledger.InTx(ctx, func(tx repository.TxView) error {
		slot, err := tx.LockSlot(slotID)
		if err != nil {
			return err
		}
		_, err = refreshOccupancy(tx, slot)
		return err
	})
	if err != nil {
		return err
	}
	e.notify(queue.NewChangeEvent(queue.TopicSlots, queue.ActionRecounted, slotID, slotID))
	return nil
}
