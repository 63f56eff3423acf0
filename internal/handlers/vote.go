package handlers

import (
	"net/http"
	"zhutan/internal/models"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type voteRequest struct {
	Type models.VoteType `json:"type"`
}

// VoteDiscussion 点赞讨论，type=down 表示取消点赞
func (h *VoteHandler) VoteDiscussion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.votes.VoteOnDiscussion(c.Request.Context(), id, currentUserID(c), req.Type)
	if err != nil {
		if respondStale(c, err, result) {
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VoteComment 评论投票：up / down / neutral
func (h *VoteHandler) VoteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.votes.VoteOnComment(c.Request.Context(), id, currentUserID(c), req.Type)
	if err != nil {
		if respondStale(c, err, result) {
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
