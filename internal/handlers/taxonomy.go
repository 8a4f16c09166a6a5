package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epicgather/epicgather/internal/services"
	"github.com/epicgather/epicgather/pkg/response"
)

// TaxonomyHandler serves the category and tag lookup tables.
type TaxonomyHandler struct {
	categories *services.CategoryService
	tags       *services.TagService
}

func NewTaxonomyHandler(categories *services.CategoryService, tags *services.TagService) *TaxonomyHandler {
	return &TaxonomyHandler{categories: categories, tags: tags}
}

type nameRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// GET /api/categories
func (h *TaxonomyHandler) ListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, categories)
}

// POST /api/admin/categories
func (h *TaxonomyHandler) CreateCategory(c *gin.Context) {
	var req nameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	category, err := h.categories.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, category)
}

// DELETE /api/admin/categories/:id
func (h *TaxonomyHandler) DeleteCategory(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "category deleted"})
}

// GET /api/tags
func (h *TaxonomyHandler) ListTags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tags)
}

// POST /api/admin/tags
func (h *TaxonomyHandler) CreateTag(c *gin.Context) {
	var req nameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tag, err := h.tags.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, tag)
}

// DELETE /api/admin/tags/:id
func (h *TaxonomyHandler) DeleteTag(c *gin.Context) {
	if err := h.tags.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "tag deleted"})
}
