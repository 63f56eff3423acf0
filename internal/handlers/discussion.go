package handlers

import (
	"net/http"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

type DiscussionHandler struct {
	discussions *services.DiscussionService
	engagement  *services.EngagementService
}

func NewDiscussionHandler(discussions *services.DiscussionService, engagement *services.EngagementService) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, engagement: engagement}
}

// List 讨论列表，支持分类、标签、关键词、作者过滤
func (h *DiscussionHandler) List(c *gin.Context) {
	categoryID, ok := queryUint(c, "category_id")
	if !ok {
		return
	}
	authorID, ok := queryUint(c, "author_id")
	if !ok {
		return
	}
	page := pageFromQuery(c)

	result, err := h.discussions.ListDiscussions(c.Request.Context(), services.DiscussionFilter{
		Limit:      page.Limit,
		Offset:     page.Offset,
		CategoryID: categoryID,
		Tag:        c.Query("tag"),
		Search:     c.Query("search"),
		SortBy:     services.DiscussionSort(c.Query("sort_by")),
		AuthorID:   authorID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Detail 讨论详情，含投票与浏览数；浏览记录由前端单独上报
func (h *DiscussionHandler) Detail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	discussion, err := h.discussions.GetDiscussion(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"discussion": discussion}
	if userID := currentUserID(c); userID != 0 {
		bookmarked, err := h.engagement.IsBookmarked(ctx, userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["bookmarked"] = bookmarked
	}
	c.JSON(http.StatusOK, resp)
}

// Create 发布讨论
func (h *DiscussionHandler) Create(c *gin.Context) {
	var in services.DiscussionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	discussion, err := h.discussions.CreateDiscussion(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, discussion)
}

// Update 编辑讨论，仅作者
func (h *DiscussionHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.DiscussionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	discussion, err := h.discussions.UpdateDiscussion(c.Request.Context(), id, currentUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, discussion)
}

// Delete 软删除讨论
func (h *DiscussionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.discussions.DeleteDiscussion(c.Request.Context(), id, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordView 记录一次浏览，匿名访问也计数
func (h *DiscussionHandler) RecordView(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in := services.ViewInput{DiscussionID: id}
	if userID := currentUserID(c); userID != 0 {
		in.UserID = &userID
	}
	if ip := c.ClientIP(); ip != "" {
		in.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		in.UserAgent = &ua
	}

	ctx := c.Request.Context()
	if err := h.engagement.RecordView(ctx, in); err != nil {
		respondError(c, err)
		return
	}
	count, err := h.engagement.ViewCount(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discussion_id": id, "view_count": count})
}

// Report 举报讨论
func (h *DiscussionHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	in.ReporterID = currentUserID(c)
	in.DiscussionID = &id
	in.CommentID = nil

	report, err := h.engagement.ReportContent(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
