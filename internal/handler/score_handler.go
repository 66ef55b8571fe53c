package handler

import (
	"net/http"

	"gail-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ScoreHandler 负责处理行为维度评分相关的 API 请求。
type ScoreHandler struct {
	scoreService service.ScoreService
}

// NewScoreHandler 创建一个新的 ScoreHandler 实例。
func NewScoreHandler(scoreService service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

// Generate 同步触发一次指定用户的评分生成。
func (h *ScoreHandler) Generate(c *gin.Context) {
	userID := c.Param("userId")

	scores, err := h.scoreService.GenerateScores(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "评分生成成功",
		"data":    scores,
	})
}

// GetScores 查询指定用户当前存储的维度评分。
func (h *ScoreHandler) GetScores(c *gin.Context) {
	userID := c.Param("userId")

	scores, err := h.scoreService.GetScores(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    scores,
	})
}

// EnqueueBatch 把所有已知用户的评分任务投递到 Kafka。
func (h *ScoreHandler) EnqueueBatch(c *gin.Context) {
	enqueued, err := h.scoreService.EnqueueBatch()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "批量评分任务已发送到 Kafka",
		"data":    gin.H{"enqueued": enqueued},
	})
}
