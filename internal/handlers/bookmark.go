package handlers

import (
	"net/http"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

type BookmarkHandler struct {
	engagement *services.EngagementService
}

func NewBookmarkHandler(engagement *services.EngagementService) *BookmarkHandler {
	return &BookmarkHandler{engagement: engagement}
}

// Toggle 切换收藏状态 - 收藏/取消收藏
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	bookmarked, err := h.engagement.ToggleBookmark(ctx, currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// 获取当前收藏数
	count, err := h.engagement.BookmarkCount(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discussion_id":  id,
		"bookmarked":     bookmarked,
		"bookmark_count": count,
	})
}

// List 我的收藏
func (h *BookmarkHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	bookmarks, err := h.engagement.ListBookmarks(c.Request.Context(), currentUserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": bookmarks})
}
