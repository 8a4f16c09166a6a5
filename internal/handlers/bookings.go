package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epicgather/epicgather/internal/middleware"
	"github.com/epicgather/epicgather/internal/services"
	"github.com/epicgather/epicgather/pkg/errors"
	"github.com/epicgather/epicgather/pkg/response"
)

// BookingHandler serves the authenticated user's bookings.
type BookingHandler struct {
	bookings *services.BookingService
	users    *services.UserService
}

func NewBookingHandler(bookings *services.BookingService, users *services.UserService) *BookingHandler {
	return &BookingHandler{bookings: bookings, users: users}
}

// POST /api/events/:id/book
func (h *BookingHandler) Book(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Book(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, booking)
}

// GET /api/bookings
func (h *BookingHandler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 0)
	perPage := parseIntQuery(c, "size", 20)

	bookings, total, err := h.bookings.ListForUser(c.Request.Context(), user.ID, page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, bookings, response.NewMeta(page, perPage, total))
}

// DELETE /api/bookings/:id
func (h *BookingHandler) Cancel(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.bookings.Cancel(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "booking cancelled"})
}

// currentUser resolves the authenticated principal from the token subject.
func (h *BookingHandler) currentUser(c *gin.Context) (*profileUser, bool) {
	email := c.GetString(middleware.CtxEmailKey)
	if email == "" {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}

	user, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}

	return &profileUser{ID: user.ID, Email: user.Email}, true
}

type profileUser struct {
	ID    string
	Email string
}
