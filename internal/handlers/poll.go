package handlers

import (
	"net/http"
	"zhutan/internal/models"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	polls *services.PollService
}

func NewPollHandler(polls *services.PollService) *PollHandler {
	return &PollHandler{polls: polls}
}

// pollResponse 投票详情；登录用户附带自己的选择
type pollResponse struct {
	Poll      *models.Poll `json:"poll"`
	MyOptions []uint       `json:"my_options,omitempty"`
}

func (h *PollHandler) withUserVotes(c *gin.Context, poll *models.Poll) (pollResponse, error) {
	resp := pollResponse{Poll: poll}
	userID := currentUserID(c)
	if userID == 0 {
		return resp, nil
	}
	ids, err := h.polls.UserVotes(c.Request.Context(), poll.ID, userID)
	if err != nil {
		return resp, err
	}
	resp.MyOptions = ids
	return resp, nil
}

// Get 讨论的投票
func (h *PollHandler) Get(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	poll, err := h.polls.GetPoll(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.withUserVotes(c, poll)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create 为投票型讨论补建投票
func (h *PollHandler) Create(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.CreatePollInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	in.DiscussionID = discussionID

	poll, err := h.polls.CreatePoll(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pollResponse{Poll: poll})
}

type castRequest struct {
	OptionIDs []uint `json:"option_ids"`
}

// Cast 用提交的选项集合替换当前选择，空集合表示撤销
func (h *PollHandler) Cast(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req castRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.respondVote(c, func() (*models.Poll, error) {
		return h.polls.CastVotes(c.Request.Context(), pollID, req.OptionIDs, currentUserID(c))
	})
}

// Toggle 切换单个选项
func (h *PollHandler) Toggle(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}
	optionID, ok := pathID(c, "optionId")
	if !ok {
		return
	}
	h.respondVote(c, func() (*models.Poll, error) {
		return h.polls.ToggleOption(c.Request.Context(), pollID, optionID, currentUserID(c))
	})
}

func (h *PollHandler) respondVote(c *gin.Context, vote func() (*models.Poll, error)) {
	poll, err := vote()
	if err != nil && poll == nil {
		respondError(c, err)
		return
	}
	resp, rerr := h.withUserVotes(c, poll)
	if rerr != nil {
		respondError(c, rerr)
		return
	}
	if err != nil {
		if respondStale(c, err, resp) {
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Voters 各选项投票人，匿名投票返回 403
func (h *PollHandler) Voters(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}
	voters, err := h.polls.Voters(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll_id": pollID, "voters": voters})
}
