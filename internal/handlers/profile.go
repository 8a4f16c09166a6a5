package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epicgather/epicgather/internal/middleware"
	"github.com/epicgather/epicgather/internal/services"
	"github.com/epicgather/epicgather/pkg/errors"
	"github.com/epicgather/epicgather/pkg/response"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	users *services.UserService
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GET /api/users/me
func (h *ProfileHandler) Me(c *gin.Context) {
	email := c.GetString(middleware.CtxEmailKey)
	if email == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	profile, err := h.users.ProfileByEmail(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}
