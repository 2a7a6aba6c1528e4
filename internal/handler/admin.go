package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/queue"
	"github.com/iliyamo/slot-reservation/internal/repository"
	"github.com/iliyamo/slot-reservation/internal/service"
)

// AdminHandler bundles the management surface: slot lifecycle, the
// dashboard aggregate, booking cancellation on behalf of users,
// occupancy reconciliation and the slot-admin assignment relation.
type AdminHandler struct {
	Engine      *service.Engine
	Policy      *service.AccessPolicy
	Slots       *repository.SlotRepo
	Bookings    *repository.BookingRepo
	Users       *repository.UserRepo
	Assignments *repository.SlotAdminRepo
	Events      service.Notifier
}

func NewAdminHandler(e *service.Engine, p *service.AccessPolicy, s *repository.SlotRepo,
	b *repository.BookingRepo, u *repository.UserRepo, a *repository.SlotAdminRepo,
	events service.Notifier) *AdminHandler {
	return &AdminHandler{Engine: e, Policy: p, Slots: s, Bookings: b, Users: u, Assignments: a, Events: events}
}

func (h *AdminHandler) broadcast(ev queue.ChangeEvent) {
	if h.Events != nil {
		h.Events.Broadcast(ev)
	}
}

type createSlotReq struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  uint32    `json:"capacity"`
}

// adminSlotView is one dashboard row: the slot plus its nested
// bookings and assignments.
type adminSlotView struct {
	slotView
	Bookings []model.Booking               `json:"bookings"`
	Admins   []repository.AssignmentDetail `json:"admins"`
	Ended    bool                          `json:"ended"`
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Dashboard returns upcoming slots with nested bookings and slot-admin
// assignments plus aggregate counts. ?include_past=true extends the
// window to full history; past slots stay visible to admins even
// though participants can no longer book them.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	var (
		slots []model.Slot
		err   error
	)
	if c.QueryParam("include_past") == "true" {
		slots, err = h.Slots.ListAll(ctx)
	} else {
		slots, err = h.Slots.ListUpcoming(ctx, now)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	ids := make([]uint64, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	bookings, err := h.Bookings.ListBySlots(ctx, ids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	assignments, err := h.Assignments.ListBySlots(ctx, ids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]adminSlotView, 0, len(slots))
	var totalBookings, totalCapacity uint64
	for _, s := range slots {
		bs := bookings[s.ID]
		if bs == nil {
			bs = []model.Booking{}
		}
		as := assignments[s.ID]
		if as == nil {
			as = []repository.AssignmentDetail{}
		}
		out = append(out, adminSlotView{
			slotView: toSlotView(s),
			Bookings: bs,
			Admins:   as,
			Ended:    s.Ended(now),
		})
		totalBookings += uint64(len(bs))
		totalCapacity += uint64(s.Capacity)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"slots": out,
		"stats": echo.Map{
			"total_slots":    len(slots),
			"total_bookings": totalBookings,
			"total_capacity": totalCapacity,
		},
	})
}

// CreateSlot adds a bookable window. end must follow start and
// capacity must be at least 1.
func (h *AdminHandler) CreateSlot(c echo.Context) error {
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after start_time"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be at least 1"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := model.Slot{StartTime: req.StartTime.UTC(), EndTime: req.EndTime.UTC(), Capacity: req.Capacity}
	if err := h.Slots.Create(ctx, &s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slot failed"})
	}
	h.broadcast(queue.NewChangeEvent(queue.TopicSlots, queue.ActionCreated, s.ID, s.ID))
	return c.JSON(http.StatusCreated, echo.Map{"slot": toSlotView(s)})
}

// DeleteSlot removes a slot with no bookings. 409 when bookings still
// reference it.
func (h *AdminHandler) DeleteSlot(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Policy.Require(ctx, getEmail(c), slotID); err != nil {
		return engineError(c, err)
	}
	if err := h.Slots.Delete(ctx, slotID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot has bookings"})
		}
		return engineError(c, err)
	}
	h.broadcast(queue.NewChangeEvent(queue.TopicSlots, queue.ActionDeleted, slotID, slotID))
	return c.NoContent(http.StatusNoContent)
}

// CancelBooking cancels any user's booking.
func (h *AdminHandler) CancelBooking(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return engineError(c, err)
	}
	if err := h.Policy.Require(ctx, getEmail(c), b.SlotID); err != nil {
		return engineError(c, err)
	}
	if err := h.Engine.Cancel(ctx, bookingID); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Recount rederives a slot's occupancy from the ledger. Safe to call
// any number of times; used to repair drift after partial failures.
func (h *AdminHandler) Recount(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Policy.Require(ctx, getEmail(c), slotID); err != nil {
		return engineError(c, err)
	}
	if err := h.Engine.RecomputeOccupancy(ctx, slotID); err != nil {
		return engineError(c, err)
	}
	slot, err := h.Slots.GetByID(ctx, slotID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slot": toSlotView(slot)})
}

// targetAdmin resolves the :adminID path param and verifies the target
// actually holds the ADMIN role. Assigning a participant is a client
// error, not a silent no-op.
func (h *AdminHandler) targetAdmin(ctx context.Context, c echo.Context) (model.User, bool) {
	adminID, ok := pathID(c, "adminID")
	if !ok {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid admin id"})
		return model.User{}, false
	}
	u, err := h.Users.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "admin not found"})
			return model.User{}, false
		}
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
		return model.User{}, false
	}
	if u.Role != model.RoleAdmin {
		_ = c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "user is not an admin"})
		return model.User{}, false
	}
	return u, true
}

// ToggleAssignment flips the admin's assignment on the slot: assigned
// becomes unassigned and vice versa. The response reports the new
// state.
func (h *AdminHandler) ToggleAssignment(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admin, ok := h.targetAdmin(ctx, c)
	if !ok {
		return nil
	}

	assigned, err := h.Assignments.IsAssigned(ctx, slotID, admin.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if assigned {
		if _, err := h.Assignments.Unassign(ctx, slotID, admin.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unassign failed"})
		}
		h.broadcast(queue.NewChangeEvent(queue.TopicSlotAdmins, queue.ActionDeleted, admin.ID, slotID))
		return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "admin_id": admin.ID, "assigned": false})
	}
	if _, err := h.Assignments.Assign(ctx, slotID, admin.ID); err != nil {
		return engineError(c, err)
	}
	h.broadcast(queue.NewChangeEvent(queue.TopicSlotAdmins, queue.ActionCreated, admin.ID, slotID))
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "admin_id": admin.ID, "assigned": true})
}

// AssignAdmin records an assignment. Idempotent: assigning an
// already-assigned admin succeeds and reports created=false.
func (h *AdminHandler) AssignAdmin(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admin, ok := h.targetAdmin(ctx, c)
	if !ok {
		return nil
	}

	created, err := h.Assignments.Assign(ctx, slotID, admin.ID)
	if err != nil {
		return engineError(c, err)
	}
	if created {
		h.broadcast(queue.NewChangeEvent(queue.TopicSlotAdmins, queue.ActionCreated, admin.ID, slotID))
	}
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "admin_id": admin.ID, "assigned": true, "created": created})
}

// UnassignAdmin removes an assignment. Idempotent: removing a missing
// assignment succeeds and reports deleted=false.
func (h *AdminHandler) UnassignAdmin(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admin, ok := h.targetAdmin(ctx, c)
	if !ok {
		return nil
	}

	deleted, err := h.Assignments.Unassign(ctx, slotID, admin.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unassign failed"})
	}
	if deleted {
		h.broadcast(queue.NewChangeEvent(queue.TopicSlotAdmins, queue.ActionDeleted, admin.ID, slotID))
	}
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "admin_id": admin.ID, "assigned": false, "deleted": deleted})
}

// ListAdmins returns every active admin identity for the assignment
// picker.
func (h *AdminHandler) ListAdmins(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admins, err := h.Users.ListAdmins(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userPart, 0, len(admins))
	for _, a := range admins {
		out = append(out, userPart{ID: a.ID, Email: a.Email, Role: a.Role})
	}
	return c.JSON(http.StatusOK, echo.Map{"admins": out})
}
