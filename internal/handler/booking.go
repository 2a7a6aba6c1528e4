package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/repository"
	"github.com/iliyamo/slot-reservation/internal/service"
)

// BookingHandler exposes the participant-facing booking operations.
// Each mutation goes through the engine; the handler's job is to
// resolve the caller's identity, check the access policy, and map
// sentinel errors onto HTTP statuses.
type BookingHandler struct {
	Engine   *service.Engine
	Policy   *service.AccessPolicy
	Users    *repository.UserRepo
	Bookings *repository.BookingRepo
}

func NewBookingHandler(e *service.Engine, p *service.AccessPolicy, u *repository.UserRepo, b *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Engine: e, Policy: p, Users: u, Bookings: b}
}

type modifyReq struct {
	SlotID uint64 `json:"slot_id"`
}

// caller loads the authenticated user and enforces that the profile is
// complete. Bookings carry name and phone, so an un-onboarded caller
// cannot book yet.
func (h *BookingHandler) caller(ctx context.Context, c echo.Context) (model.User, bool) {
	email := getEmail(c)
	if email == "" {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return model.User{}, false
	}
	ok, err := h.Policy.CanBook(ctx, email)
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
		return model.User{}, false
	}
	if !ok {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "not authorized to book"})
		return model.User{}, false
	}
	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
		return model.User{}, false
	}
	if !u.Onboarded() {
		_ = c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "complete your profile before booking"})
		return model.User{}, false
	}
	return u, true
}

// Book reserves a place in the slot named by the path for the caller.
func (h *BookingHandler) Book(c echo.Context) error {
	slotID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || slotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, ok := h.caller(ctx, c)
	if !ok {
		return nil
	}

	booking, err := h.Engine.Book(ctx, slotID, u.Email, u.Name, u.Phone)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": booking})
}

// MyBooking returns the caller's active booking joined with its slot
// window, or 404 when none exists.
func (h *BookingHandler) MyBooking(c echo.Context) error {
	email := getEmail(c)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Bookings.GetDetailByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": d})
}

// CancelMyBooking cancels the caller's active booking.
func (h *BookingHandler) CancelMyBooking(c echo.Context) error {
	email := getEmail(c)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Bookings.GetDetailByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Engine.Cancel(ctx, d.ID); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ModifyMyBooking moves the caller's booking to a different slot. The
// move is atomic: if the target slot is full, past or missing, the
// original booking is untouched.
func (h *BookingHandler) ModifyMyBooking(c echo.Context) error {
	var req modifyReq
	if err := c.Bind(&req); err != nil || req.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, ok := h.caller(ctx, c)
	if !ok {
		return nil
	}

	d, err := h.Bookings.GetDetailByEmail(ctx, u.Email)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	rebooked, err := h.Engine.Modify(ctx, d.ID, req.SlotID, u.Name, u.Phone)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": rebooked})
}
