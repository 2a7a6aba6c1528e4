package model

import "time"

// Booking is one user's reservation against one slot, a row in the
// `bookings` table.  The email column carries the normalized
// (lowercased) identity and is unique across the whole table, which
// is what enforces the one-active-booking-per-user rule at the
// storage layer rather than in application code.
//
// Fields:
//  ID        – primary key identifier.
//  SlotID    – slot the booking reserves a place in.
//  Email     – normalized user identity (unique).
//  Name      – display name captured at booking time.
//  Phone     – contact phone captured at booking time.
//  CreatedAt – timestamp of creation.
type Booking struct {
	ID        uint64    // bookings.id
	SlotID    uint64    // bookings.slot_id
	Email     string    // bookings.email (lowercased, unique)
	Name      string    // bookings.name
	Phone     string    // bookings.phone
	CreatedAt time.Time // bookings.created_at
}

// SlotAdmin links an admin user to a slot they oversee, a row in the
// `slot_admins` relation.  The (slot_id, admin_id) pair is unique so
// assigning the same admin twice is a no-op at the storage layer.
//
// Fields:
//  ID        – primary key identifier.
//  SlotID    – slot being overseen.
//  AdminID   – authorized_users.id of the admin.
//  CreatedAt – timestamp of creation.
type SlotAdmin struct {
	ID        uint64    // slot_admins.id
	SlotID    uint64    // slot_admins.slot_id
	AdminID   uint64    // slot_admins.admin_id
	CreatedAt time.Time // slot_admins.created_at
}
