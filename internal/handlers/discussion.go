package handlers

import (
	"net/http"
	"strconv"

	"discussable/internal/middleware"
	"discussable/internal/services"
	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
)

type DiscussionHandler struct {
	discussions *services.DiscussionService
}

func NewDiscussionHandler(discussions *services.DiscussionService) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions}
}

type createDiscussionRequest struct {
	Subject  string  `json:"subject"`
	Category *string `json:"category"`
	Comment  *struct {
		Content string `json:"content"`
	} `json:"comment"`
}

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

// Create POST /api/discussions
func (h *DiscussionHandler) Create(c *gin.Context) {
	var req createDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, utils.ErrInvalidInput, "invalid request body")
		return
	}

	in := services.CreateDiscussionInput{Subject: req.Subject, Category: req.Category}
	if req.Comment != nil {
		in.InitialComment = &req.Comment.Content
	}

	discussion, comment, err := h.discussions.CreateDiscussion(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"discussion": discussion}
	if comment != nil {
		resp["comment"] = services.CommentView{
			Comment:     comment,
			ContentHTML: utils.RenderMarkdown(comment.Content),
			Replies:     []*services.CommentView{},
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// List GET /api/discussions?sort=popularity&page=2&include_hidden=true
func (h *DiscussionHandler) List(c *gin.Context) {
	page := 1
	if p := c.Query("page"); p != "" {
		if pageNum, err := strconv.Atoi(p); err == nil && pageNum > 0 {
			page = pageNum
		}
	}
	includeHidden, _ := strconv.ParseBool(c.Query("include_hidden"))
	order := services.NormalizeOrder(c.Query("sort"))

	views, err := h.discussions.ListDiscussions(c.Request.Context(), services.ListOptions{
		OrderBy:       order,
		Viewer:        middleware.UserID(c),
		IncludeHidden: includeHidden,
		Page:          page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discussions": views, "sort": order, "page": page})
}

// Detail GET /api/discussions/:id
func (h *DiscussionHandler) Detail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	thread, err := h.discussions.GetDiscussion(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// CreateComment POST /api/discussions/:id/comments
func (h *DiscussionHandler) CreateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, utils.ErrInvalidInput, "invalid request body")
		return
	}

	comment, err := h.discussions.CreateComment(c.Request.Context(), middleware.UserID(c), id, req.Content, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, services.CommentView{
		Comment:     comment,
		ContentHTML: utils.RenderMarkdown(comment.Content),
		Replies:     []*services.CommentView{},
	})
}

// Delete DELETE /api/discussions/:id
func (h *DiscussionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.discussions.DeleteDiscussion(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
