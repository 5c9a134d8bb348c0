package handlers

import (
	"net/http"

	"discussable/internal/middleware"
	"discussable/internal/models"
	"discussable/internal/services"
	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	prefs *services.PreferenceService
}

func NewPreferenceHandler(prefs *services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

type preferenceRequest struct {
	Preference string `json:"preference"`
}

// Set POST /api/preferences/:type/:id
func (h *PreferenceHandler) Set(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, utils.ErrInvalidPref, "preference must be show, hide or none")
		return
	}
	pref, ok := models.ParsePreference(req.Preference)
	if !ok {
		badRequest(c, utils.ErrInvalidPref, "preference must be show, hide or none")
		return
	}

	if err := h.prefs.SetPreference(c.Request.Context(), middleware.UserID(c), ref, pref); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votable": ref, "preference": pref})
}

// HideAuthor POST /api/users/:id/hide  隐藏该用户的全部评论
func (h *PreferenceHandler) HideAuthor(c *gin.Context) {
	authorID, ok := parseID(c, "id")
	if !ok {
		return
	}

	n, err := h.prefs.HideAllFrom(c.Request.Context(), middleware.UserID(c), authorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"author_id": authorID, "hidden": n})
}
