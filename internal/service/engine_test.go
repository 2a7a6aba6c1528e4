package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/queue"
	"github.com/iliyamo/slot-reservation/internal/repository"
)

// fakeLedger is an in-memory Ledger with the same transactional
// contract as the MySQL store: InTx serializes writers, and a callback
// error rolls every change in that callback back.
type fakeLedger struct {
	mu       sync.Mutex
	slots    map[uint64]model.Slot
	bookings map[uint64]model.Booking
	nextID   uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		slots:    make(map[uint64]model.Slot),
		bookings: make(map[uint64]model.Booking),
	}
}

func (l *fakeLedger) addSlot(id uint64, capacity uint32, end time.Time) {
	l.slots[id] = model.Slot{ID: id, StartTime: end.Add(-time.Hour), EndTime: end, Capacity: capacity}
}

func (l *fakeLedger) InTx(ctx context.Context, fn func(tx repository.TxView) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Work on copies; swap in only when the callback succeeds.
	v := &fakeTx{
		slots:    make(map[uint64]model.Slot, len(l.slots)),
		bookings: make(map[uint64]model.Booking, len(l.bookings)),
		nextID:   l.nextID,
	}
	for k, s := range l.slots {
		v.slots[k] = s
	}
	for k, b := range l.bookings {
		v.bookings[k] = b
	}

	if err := fn(v); err != nil {
		return err
	}
	l.slots = v.slots
	l.bookings = v.bookings
	l.nextID = v.nextID
	return nil
}

type fakeTx struct {
	slots    map[uint64]model.Slot
	bookings map[uint64]model.Booking
	nextID   uint64
}

func (v *fakeTx) LockSlot(slotID uint64) (model.Slot, error) {
	s, ok := v.slots[slotID]
	if !ok {
		return model.Slot{}, repository.ErrSlotNotFound
	}
	return s, nil
}

func (v *fakeTx) CountBookings(slotID uint64) (uint32, error) {
	var n uint32
	for _, b := range v.bookings {
		if b.SlotID == slotID {
			n++
		}
	}
	return n, nil
}

func (v *fakeTx) BookingByEmail(email string) (model.Booking, error) {
	for _, b := range v.bookings {
		if b.Email == email {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrBookingNotFound
}

func (v *fakeTx) GetBooking(bookingID uint64) (model.Booking, error) {
	b, ok := v.bookings[bookingID]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (v *fakeTx) InsertBooking(b *model.Booking) error {
	for _, existing := range v.bookings {
		if existing.Email == b.Email {
			return repository.ErrAlreadyBooked
		}
	}
	v.nextID++
	b.ID = v.nextID
	b.CreatedAt = time.Now().UTC()
	v.bookings[b.ID] = *b
	return nil
}

func (v *fakeTx) DeleteBooking(bookingID uint64) error {
	if _, ok := v.bookings[bookingID]; !ok {
		return repository.ErrBookingNotFound
	}
	delete(v.bookings, bookingID)
	return nil
}

func (v *fakeTx) WriteOccupancy(slotID uint64, count uint32, isFull bool) error {
	s, ok := v.slots[slotID]
	if !ok {
		return repository.ErrSlotNotFound
	}
	s.CurrentBookings = count
	s.IsFull = isFull
	v.slots[slotID] = s
	return nil
}

// recorder collects broadcast events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []queue.ChangeEvent
}

func (r *recorder) Broadcast(ev queue.ChangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

func newTestEngine(ledger *fakeLedger) (*Engine, *recorder) {
	rec := &recorder{}
	e := NewEngine(ledger, rec)
	e.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return e, rec
}

func futureEnd() time.Time { return time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC) }
func pastEnd() time.Time   { return time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC) }

func TestBookUpdatesOccupancy(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 3, futureEnd())
	e, rec := newTestEngine(ledger)

	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "+4711111111")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, uint64(1), b.SlotID)

	s := ledger.slots[1]
	assert.Equal(t, uint32(1), s.CurrentBookings)
	assert.False(t, s.IsFull)
	assert.Equal(t, []string{queue.TopicBookings, queue.TopicSlots}, rec.topics())
}

func TestBookUnknownSlot(t *testing.T) {
	e, _ := newTestEngine(newFakeLedger())
	_, err := e.Book(context.Background(), 42, "a@example.com", "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrSlotNotFound)
}

func TestBookEndedSlot(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 3, pastEnd())
	e, _ := newTestEngine(ledger)

	_, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrSlotEnded)
}

func TestBookSecondBookingRejected(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 3, futureEnd())
	ledger.addSlot(2, 3, futureEnd())
	e, _ := newTestEngine(ledger)

	_, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	// Same email, even on a different slot.
	_, err = e.Book(context.Background(), 2, "a@example.com", "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrAlreadyBooked)
	assert.Len(t, ledger.bookings, 1)
}

func TestBookCapacityNeverOversold(t *testing.T) {
	const capacity = 3
	const bookers = 20

	ledger := newFakeLedger()
	ledger.addSlot(1, capacity, futureEnd())
	e, _ := newTestEngine(ledger)

	var wg sync.WaitGroup
	errs := make([]error, bookers)
	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := string(rune('a'+i)) + "@example.com"
			_, errs[i] = e.Book(context.Background(), 1, email, "N", "1")
		}(i)
	}
	wg.Wait()

	var won, full int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, repository.ErrSlotFull):
			full++
		}
	}
	assert.Equal(t, capacity, won)
	assert.Equal(t, bookers-capacity, full)
	assert.Equal(t, uint32(capacity), ledger.slots[1].CurrentBookings)
	assert.True(t, ledger.slots[1].IsFull)
}

func TestCancelRepairsOccupancyAndIsSafeToRetry(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 1, futureEnd())
	e, _ := newTestEngine(ledger)

	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)
	assert.True(t, ledger.slots[1].IsFull)

	require.NoError(t, e.Cancel(context.Background(), b.ID))
	assert.Equal(t, uint32(0), ledger.slots[1].CurrentBookings)
	assert.False(t, ledger.slots[1].IsFull)

	// Retrying the cancel must fail cleanly and not touch occupancy.
	err = e.Cancel(context.Background(), b.ID)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
	assert.Equal(t, uint32(0), ledger.slots[1].CurrentBookings)
}

func TestModifyMovesBookingAtomically(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 2, futureEnd())
	ledger.addSlot(2, 2, futureEnd())
	e, _ := newTestEngine(ledger)

	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	moved, err := e.Modify(context.Background(), b.ID, 2, "Ada", "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), moved.SlotID)
	assert.Equal(t, "a@example.com", moved.Email)
	assert.Equal(t, uint32(0), ledger.slots[1].CurrentBookings)
	assert.Equal(t, uint32(1), ledger.slots[2].CurrentBookings)
}

func TestModifyToFullSlotKeepsOriginalBooking(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 2, futureEnd())
	ledger.addSlot(2, 1, futureEnd())
	e, _ := newTestEngine(ledger)

	_, err := e.Book(context.Background(), 2, "other@example.com", "O", "1")
	require.NoError(t, err)
	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	_, err = e.Modify(context.Background(), b.ID, 2, "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrSlotFull)

	// The whole move rolled back: the original booking survives.
	kept, ok := ledger.bookings[b.ID]
	require.True(t, ok)
	assert.Equal(t, uint64(1), kept.SlotID)
	assert.Equal(t, uint32(1), ledger.slots[1].CurrentBookings)
	assert.Equal(t, uint32(1), ledger.slots[2].CurrentBookings)
}

func TestModifyToEndedSlotKeepsOriginalBooking(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 2, futureEnd())
	ledger.addSlot(2, 2, pastEnd())
	e, _ := newTestEngine(ledger)

	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	_, err = e.Modify(context.Background(), b.ID, 2, "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrSlotEnded)
	_, ok := ledger.bookings[b.ID]
	assert.True(t, ok)
}

func TestModifySameSlotRejected(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 2, futureEnd())
	e, _ := newTestEngine(ledger)

	b, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	_, err = e.Modify(context.Background(), b.ID, 1, "Ada", "1")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRecomputeOccupancyRepairsDrift(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addSlot(1, 2, futureEnd())
	e, _ := newTestEngine(ledger)

	_, err := e.Book(context.Background(), 1, "a@example.com", "Ada", "1")
	require.NoError(t, err)

	// Simulate drift left behind by a partial failure.
	s := ledger.slots[1]
	s.CurrentBookings = 7
	s.IsFull = true
	ledger.slots[1] = s

	require.NoError(t, e.RecomputeOccupancy(context.Background(), 1))
	assert.Equal(t, uint32(1), ledger.slots[1].CurrentBookings)
	assert.False(t, ledger.slots[1].IsFull)

	// Pure: running it again yields the same row.
	require.NoError(t, e.RecomputeOccupancy(context.Background(), 1))
	assert.Equal(t, uint32(1), ledger.slots[1].CurrentBookings)
}
