package handler

import (
	"net/http"

	"gail-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 负责处理用户聚合画像相关的 API 请求。
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetProfile 查询指定用户的聚合画像。
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.Param("userId")

	profile, err := h.profileService.GetProfile(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    profile,
	})
}

// ListUsers 返回所有已有画像的用户 ID。
func (h *ProfileHandler) ListUsers(c *gin.Context) {
	ids, err := h.profileService.ListUserIDs()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"user_ids": ids, "count": len(ids)},
	})
}
