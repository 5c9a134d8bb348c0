package handlers

import (
	"net/http"

	"discussable/internal/middleware"
	"discussable/internal/models"
	"discussable/internal/services"
	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes   *services.VoteService
	ranking *services.RankingService
}

func NewVoteHandler(votes *services.VoteService, ranking *services.RankingService) *VoteHandler {
	return &VoteHandler{votes: votes, ranking: ranking}
}

type voteRequest struct {
	Value *int `json:"value"`
}

// Vote POST /api/vote/:type/:id  首次投票 201，修改投票 200
func (h *VoteHandler) Vote(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		badRequest(c, utils.ErrInvalidVoteValue, "vote value must be 1 or -1")
		return
	}

	result, err := h.votes.CastVote(c.Request.Context(), middleware.UserID(c), ref, models.VoteValue(*req.Value))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"created": result.Created,
		"value":   result.Value,
		"votable": ref,
		"stats":   result.Stats,
	})
}

// Refresh POST /api/stats/:type/:id/refresh  异步重新计算统计数据
func (h *VoteHandler) Refresh(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}
	if !h.ranking.ScheduleRecompute(ref) {
		respondError(c, utils.NewAppError(utils.ErrTooManyRequests, "recompute queue is full", nil))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scheduled": ref})
}
