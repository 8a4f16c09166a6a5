package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epicgather/epicgather/internal/services"
	"github.com/epicgather/epicgather/pkg/response"
)

// EventHandler serves the public event catalogue and the admin CRUD surface.
type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

type eventRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	ImageURL    string    `json:"image_url" validate:"omitempty,max=255"`
	Price       float64   `json:"price" validate:"gte=0"`
	Venue       string    `json:"venue" validate:"required,max=100"`
	CategoryID  *string   `json:"category_id"`
	TagIDs      []string  `json:"tag_ids"`
}

// GET /api/events
func (h *EventHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 0)
	perPage := parseIntQuery(c, "size", 20)

	events, total, err := h.events.ListUpcoming(c.Request.Context(), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, events, response.NewMeta(page, perPage, total))
}

// GET /api/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, event)
}

// POST /api/admin/events
func (h *EventHandler) Create(c *gin.Context) {
	var req eventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Create(c.Request.Context(), toEventInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, event)
}

// PUT /api/admin/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	var req eventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Update(c.Request.Context(), c.Param("id"), toEventInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, event)
}

// DELETE /api/admin/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "event deleted"})
}

func toEventInput(req eventRequest) services.EventInput {
	return services.EventInput{
		Name:        req.Name,
		Description: req.Description,
		EventDate:   req.EventDate,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Venue:       req.Venue,
		CategoryID:  req.CategoryID,
		TagIDs:      req.TagIDs,
	}
}
