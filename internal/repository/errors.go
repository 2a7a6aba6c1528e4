// Package repository defines error types that are reused across multiple
// repositories and by the booking engine. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios. For example, ErrSlotFull indicates a booking was
// rejected at the capacity boundary, while ErrConflict signals that an
// operation cannot proceed due to existing dependent records (e.g.
// deleting a slot that still has bookings).
package repository

import "errors"

// ErrSlotNotFound is returned when a referenced slot does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrSlotNotFound = errors.New("slot not found")

// ErrBookingNotFound is returned when a booking id does not match any
// ledger row. A repeated cancel lands here and fails cleanly instead
// of touching counts again. Handlers should translate this into an
// HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSlotFull is returned when a booking attempt would exceed the
// slot's capacity. Handlers should translate this into an HTTP 409
// response; callers are expected to pick another slot rather than
// retry.
var ErrSlotFull = errors.New("slot is full")

// ErrAlreadyBooked is returned when the normalized email already holds
// an active booking. The unique index on bookings.email raises this
// even when two requests race past the pre-check. Handlers should
// translate this into an HTTP 409 response.
var ErrAlreadyBooked = errors.New("user already has an active booking")

// ErrSlotEnded is returned when the target slot's window has already
// closed. Past slots are not bookable. Handlers should translate this
// into an HTTP 410 response.
var ErrSlotEnded = errors.New("slot already ended")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they are not allowed to manage. Handlers should translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a slot that still has
// bookings. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
