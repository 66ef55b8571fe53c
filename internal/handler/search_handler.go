package handler

import (
	"net/http"
	"strconv"

	"gail-go/internal/config"
	"gail-go/pkg/es"
	"gail-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理消息全文检索相关的 API 请求。
type SearchHandler struct{}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler() *SearchHandler {
	return &SearchHandler{}
}

// SearchMessages 按关键词检索已导入的消息，可选按 user_id 过滤。
func (h *SearchHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 q 参数"})
		return
	}
	userID := c.Query("user_id")

	size := 10
	if s := c.Query("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			size = v
		}
	}

	hits, err := es.SearchMessages(c.Request.Context(), config.Conf.Elasticsearch.IndexName, query, userID, size)
	if err != nil {
		log.Error("SearchMessages: search failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"hits": hits, "count": len(hits)},
	})
}
