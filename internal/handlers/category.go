package handlers

import (
	"net/http"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	directory services.Directory
}

func NewCategoryHandler(directory services.Directory) *CategoryHandler {
	return &CategoryHandler{directory: directory}
}

// List 所有分类
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.directory.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": categories})
}
