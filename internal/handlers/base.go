package handlers

import (
	"net/http"
	"strconv"

	"discussable/internal/models"
	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层错误转换为 JSON 响应
func respondError(c *gin.Context, err error) {
	code := utils.ErrorCode(err)
	status := utils.AppErrorToHTTPStatus(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		// 不向调用方暴露数据库错误细节
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(status, gin.H{"code": code, "error": message})
}

func badRequest(c *gin.Context, code, message string) {
	respondError(c, utils.NewAppError(code, message, nil))
}

// parseID 解析路径中的正整数 ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, utils.NewNotFoundError(name))
		return 0, false
	}
	return uint(id), true
}

// parseRef 解析 /:type/:id 形式的内容引用
func parseRef(c *gin.Context) (models.VotableRef, bool) {
	kind, ok := models.ParseVotableKind(c.Param("type"))
	if !ok {
		respondError(c, utils.NewNotFoundError("votable kind "+c.Param("type")))
		return models.VotableRef{}, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return models.VotableRef{}, false
	}
	return models.VotableRef{Kind: kind, ID: id}, true
}
