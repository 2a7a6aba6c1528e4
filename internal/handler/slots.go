package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/repository"
)

// SlotHandler serves the public slot listing. This is the bookable
// view: slots whose window has already closed are filtered out, and
// each entry carries the cached occupancy so clients can grey out full
// slots without another round trip.
type SlotHandler struct {
	Slots *repository.SlotRepo
}

func NewSlotHandler(s *repository.SlotRepo) *SlotHandler {
	return &SlotHandler{Slots: s}
}

type slotView struct {
	ID              uint64    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Capacity        uint32    `json:"capacity"`
	CurrentBookings uint32    `json:"current_bookings"`
	IsFull          bool      `json:"is_full"`
	Available       uint32    `json:"available"`
}

func toSlotView(s model.Slot) slotView {
	avail := uint32(0)
	if s.Capacity > s.CurrentBookings {
		avail = s.Capacity - s.CurrentBookings
	}
	return slotView{
		ID:              s.ID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Capacity:        s.Capacity,
		CurrentBookings: s.CurrentBookings,
		IsFull:          s.IsFull,
		Available:       avail,
	}
}

// ListUpcoming returns bookable slots ordered by start time.
func (h *SlotHandler) ListUpcoming(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slots, err := h.Slots.ListUpcoming(ctx, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}
