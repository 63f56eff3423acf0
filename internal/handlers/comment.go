package handlers

import (
	"net/http"
	"zhutan/internal/models"
	"zhutan/internal/services"
	"zhutan/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments   *services.CommentService
	engagement *services.EngagementService
}

func NewCommentHandler(comments *services.CommentService, engagement *services.EngagementService) *CommentHandler {
	return &CommentHandler{comments: comments, engagement: engagement}
}

// commentResponse 评论附带渲染后的 HTML
type commentResponse struct {
	models.Comment
	ContentHTML string `json:"content_html"`
}

func toCommentResponse(c models.Comment) commentResponse {
	return commentResponse{Comment: c, ContentHTML: utils.RenderMarkdown(c.Content)}
}

func toCommentResponses(list []models.Comment) []commentResponse {
	out := make([]commentResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCommentResponse(c))
	}
	return out
}

type commentRequest struct {
	ParentID *uint  `json:"parent_id"`
	Content  string `json:"content"`
}

// List 讨论下的评论，parent_id 为空时列出根评论
func (h *CommentHandler) List(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	parentID, ok := queryUint(c, "parent_id")
	if !ok {
		return
	}
	comments, err := h.comments.ListComments(c.Request.Context(), discussionID, parentID,
		services.CommentSort(c.Query("sort_by")), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toCommentResponses(comments)})
}

// Create 发表评论或回复
func (h *CommentHandler) Create(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.comments.CreateComment(c.Request.Context(), discussionID, req.ParentID, currentUserID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCommentResponse(*comment))
}

func (h *CommentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	comment, err := h.comments.GetComment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCommentResponse(*comment))
}

// Subtree 评论的全部后代
func (h *CommentHandler) Subtree(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	comments, err := h.comments.Subtree(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toCommentResponses(comments)})
}

func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.comments.UpdateComment(c.Request.Context(), id, currentUserID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCommentResponse(*comment))
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.DeleteComment(c.Request.Context(), id, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Report 举报评论
func (h *CommentHandler) Report(c *gin.Context) {
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
	in.CommentID = &id
	in.DiscussionID = nil

	report, err := h.engagement.ReportContent(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
