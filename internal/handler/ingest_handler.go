// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"net/http"

	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/service"
	"gail-go/pkg/log"
	"gail-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

// IngestHandler 负责处理数据导入任务相关的 API 请求。
type IngestHandler struct {
	ingestService service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// CreateJobRequest 定义了创建导入任务 API 的请求体结构。
type CreateJobRequest struct {
	Filename     string `json:"filename" binding:"required"`
	TotalRecords int    `json:"total_records"`
}

// CreateJob 处理创建导入任务的请求。
func (h *IngestHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	job, err := h.ingestService.CreateJob(req.Filename, req.TotalRecords)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "导入任务创建成功",
		"data":    job,
	})
}

// SubmitChunkRequest 定义了提交分片 API 的请求体结构。
type SubmitChunkRequest struct {
	Filename string                     `json:"filename"`
	Records  []model.ConversationRecord `json:"records" binding:"required"`
}

// SubmitChunk 处理提交一个记录分片的请求。
func (h *IngestHandler) SubmitChunk(c *gin.Context) {
	jobID := c.Param("jobId")

	var req SubmitChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	result, err := h.ingestService.SubmitChunk(c.Request.Context(), jobID, req.Filename, req.Records)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "分片处理成功",
		"data": gin.H{
			"processed":     result.Processed,
			"conversations": result.Conversations,
			"users":         result.Users,
		},
	})
}

// UpdateStatusRequest 定义了更新任务状态 API 的请求体结构。
type UpdateStatusRequest struct {
	Status           string `json:"status" binding:"required"`
	ProcessedRecords *int   `json:"processed_records"`
	ErrorMessage     string `json:"error_message"`
}

// UpdateStatus 处理更新任务状态的请求。
func (h *IngestHandler) UpdateStatus(c *gin.Context) {
	jobID := c.Param("jobId")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	job, err := h.ingestService.UpdateJobStatus(jobID, req.Status, req.ProcessedRecords, req.ErrorMessage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "任务状态更新成功",
		"data":    job,
	})
}

// GetJob 处理查询导入任务的请求。
func (h *IngestHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := h.ingestService.GetJob(jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    job,
	})
}

// UploadDataset 处理上传 JSONL 数据集文件的请求。
// 文件先落入对象存储，随后可通过 IngestDataset 触发导入。
func (h *IngestHandler) UploadDataset(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "未能获取上传的文件"})
		return
	}
	defer file.Close()

	bucket := config.Conf.MinIO.BucketName
	if err := storage.PutDataset(c.Request.Context(), bucket, header.Filename, file, header.Size); err != nil {
		log.Error("UploadDataset: failed to store dataset", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "数据集存储失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "数据集上传成功",
		"data":    gin.H{"object_name": header.Filename},
	})
}

// IngestDatasetRequest 定义了触发服务端导入 API 的请求体结构。
type IngestDatasetRequest struct {
	ObjectName string `json:"object_name" binding:"required"`
	ChunkSize  int    `json:"chunk_size"`
}

// IngestDataset 从对象存储读取数据集并在后台执行完整导入。
// 立即返回 202，任务进度通过 GET /jobs/:jobId 查询。
func (h *IngestHandler) IngestDataset(c *gin.Context) {
	var req IngestDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.Conf.Ingest.ChunkSize
	}

	go func() {
		// 与请求生命周期解耦，导入过程可能远超请求超时
		job, err := h.ingestService.IngestDataset(context.Background(), req.ObjectName, chunkSize)
		if err != nil {
			log.Errorf("后台导入数据集失败: object=%s, err=%v", req.ObjectName, err)
			return
		}
		log.Infof("后台导入数据集完成: object=%s, job_id=%s, processed=%d", req.ObjectName, job.ID, job.ProcessedRecords)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "导入任务已提交，正在后台处理",
		"data":    gin.H{"object_name": req.ObjectName},
	})
}
