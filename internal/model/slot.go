package model

import "time"

// Slot represents a bookable time window with a fixed capacity as
// stored in the `slots` table.  CurrentBookings and IsFull are
// derived values cached on the row for cheap listing queries; the
// bookings table remains the ground truth and the cached pair is
// rewritten after every mutation (and on demand via the recount
// endpoint).
//
// Fields:
//  ID              – primary key identifier.
//  StartTime       – when the window opens.
//  EndTime         – when the window closes (must be after StartTime).
//  Capacity        – maximum number of bookings the slot accepts.
//  CurrentBookings – cached count of bookings referencing the slot.
//  IsFull          – cached CurrentBookings >= Capacity flag.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type Slot struct {
	ID              uint64    // slots.id
	StartTime       time.Time // slots.start_time
	EndTime         time.Time // slots.end_time
	Capacity        uint32    // slots.capacity
	CurrentBookings uint32    // slots.current_bookings (derived)
	IsFull          bool      // slots.is_full (derived)
	CreatedAt       time.Time // slots.created_at
	UpdatedAt       time.Time // slots.updated_at
}

// Ended reports whether the slot's window has closed relative to the
// given instant.  Past slots are excluded from bookable listings but
// kept for the admin history view.
func (s Slot) Ended(now time.Time) bool {
	return s.EndTime.Before(now)
}
