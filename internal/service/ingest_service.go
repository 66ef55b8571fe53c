// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"
	"time"

	"gail-go/internal/apperr"
	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/pipeline"
	"gail-go/internal/repository"
	"gail-go/pkg/ingest"
	"gail-go/pkg/log"
	"gail-go/pkg/storage"

	"github.com/google/uuid"
)

// IngestService 接口定义了分片导入协调相关的业务操作。
type IngestService interface {
	// CreateJob 纯插入一条导入任务，totalRecords 为调用方提供的估计值，不做核对。
	CreateJob(filename string, totalRecords int) (*model.IngestionJob, error)
	// SubmitChunk 处理一个分片并将任务进度推进到新的累计值。
	SubmitChunk(ctx context.Context, jobID, filename string, records []model.ConversationRecord) (*pipeline.ChunkResult, error)
	// UpdateJobStatus 由调用方显式推进任务状态，终态不可再变更。
	UpdateJobStatus(jobID, status string, processedRecords *int, errorMessage string) (*model.IngestionJob, error)
	GetJob(jobID string) (*model.IngestionJob, error)
	// IngestDataset 从对象存储读取 JSONL 数据集并完整执行解析-分片-提交流程。
	IngestDataset(ctx context.Context, objectName string, chunkSize int) (*model.IngestionJob, error)
	// FailStaleJobs 把长时间未推进的 processing 任务标记为 failed，返回处理个数。
	FailStaleJobs(idleFor time.Duration) (int, error)
}

type ingestService struct {
	jobRepo   repository.JobRepository
	builder   *pipeline.Builder
	ingestCfg config.IngestConfig
	minioCfg  config.MinIOConfig

	// 每个任务一把锁，保证同一任务的分片串行处理（单写者不变量）。
	jobLocks sync.Map // key: jobID, value: *sync.Mutex
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(
	jobRepo repository.JobRepository,
	builder *pipeline.Builder,
	ingestCfg config.IngestConfig,
	minioCfg config.MinIOConfig,
) IngestService {
	return &ingestService{
		jobRepo:   jobRepo,
		builder:   builder,
		ingestCfg: ingestCfg,
		minioCfg:  minioCfg,
	}
}

// CreateJob 创建一条新的导入任务记录。
func (s *ingestService) CreateJob(filename string, totalRecords int) (*model.IngestionJob, error) {
	if filename == "" {
		return nil, apperr.Validationf("filename 不能为空")
	}
	job := &model.IngestionJob{
		ID:           uuid.NewString(),
		Filename:     filename,
		Status:       model.JobStatusPending,
		TotalRecords: totalRecords,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}
	log.Infof("[IngestService] 创建导入任务: id=%s, filename=%s, totalRecords=%d", job.ID, filename, totalRecords)
	return job, nil
}

// SubmitChunk 串行处理一个分片。
// 成功后把 processed_records 设置为旧累计值加本分片条数（直接设值，不是数据库自增），
// 失败时不回滚已成功的分片，是否标记任务失败由调用方通过 UpdateJobStatus 决定。
func (s *ingestService) SubmitChunk(ctx context.Context, jobID, filename string, records []model.ConversationRecord) (*pipeline.ChunkResult, error) {
	if len(records) == 0 {
		return nil, apperr.Validationf("分片为空 (job_id=%s)", jobID)
	}

	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, apperr.Validationf("任务已处于终态，不再接受分片 (job_id=%s, status=%s)", jobID, job.Status)
	}
	if job.Status == model.JobStatusPending {
		if err := s.jobRepo.UpdateStatus(jobID, model.JobStatusProcessing, nil, ""); err != nil {
			return nil, err
		}
	}

	result, err := s.builder.ProcessChunk(ctx, records)
	if err != nil {
		log.Errorf("[IngestService] 分片处理失败: job_id=%s, filename=%s, err=%v", jobID, filename, err)
		return nil, err
	}

	newTotal := job.ProcessedRecords + len(records)
	if err := s.jobRepo.UpdateProgress(jobID, newTotal); err != nil {
		return nil, err
	}
	log.Infof("[IngestService] 分片处理完成: job_id=%s, processed=%d/%d", jobID, newTotal, job.TotalRecords)
	return result, nil
}

// UpdateJobStatus 显式推进任务状态机。
func (s *ingestService) UpdateJobStatus(jobID, status string, processedRecords *int, errorMessage string) (*model.IngestionJob, error) {
	switch status {
	case model.JobStatusPending, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
	default:
		return nil, apperr.Validationf("非法的任务状态: %s", status)
	}

	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, apperr.Validationf("任务已处于终态 (job_id=%s, status=%s)", jobID, job.Status)
	}

	if err := s.jobRepo.UpdateStatus(jobID, status, processedRecords, errorMessage); err != nil {
		return nil, err
	}
	return s.jobRepo.FindByID(jobID)
}

// GetJob 返回任务的当前状态。
func (s *ingestService) GetJob(jobID string) (*model.IngestionJob, error) {
	return s.jobRepo.FindByID(jobID)
}

// IngestDataset 从 MinIO 读取数据集对象并跑完整导入流程。
// 数据集在切分之前整体解析，任何坏行都让整次导入在建任务之前就失败。
func (s *ingestService) IngestDataset(ctx context.Context, objectName string, chunkSize int) (*model.IngestionJob, error) {
	if objectName == "" {
		return nil, apperr.Validationf("objectName 不能为空")
	}
	if chunkSize <= 0 {
		chunkSize = s.ingestCfg.ChunkSize
	}

	reader, err := storage.GetDataset(ctx, s.minioCfg.BucketName, objectName)
	if err != nil {
		return nil, apperr.Storagef(err, "读取数据集对象失败 (object=%s)", objectName)
	}
	defer reader.Close()

	records, err := ingest.ParseJSONL(reader)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.Validationf("数据集为空 (object=%s)", objectName)
	}

	job, err := s.CreateJob(objectName, len(records))
	if err != nil {
		return nil, err
	}

	chunks := ingest.SplitRecords(records, chunkSize)
	log.Infof("[IngestService] 数据集 %s 解析出 %d 条记录, 切分为 %d 个分片", objectName, len(records), len(chunks))

	for i, chunk := range chunks {
		if _, err := s.SubmitChunk(ctx, job.ID, objectName, chunk); err != nil {
			// 已成功的分片不回滚，进度停留在最后一个成功分片的边界
			if _, stErr := s.UpdateJobStatus(job.ID, model.JobStatusFailed, nil, err.Error()); stErr != nil {
				log.Errorf("[IngestService] 标记任务失败时出错: job_id=%s, err=%v", job.ID, stErr)
			}
			return nil, err
		}
		log.Debugf("[IngestService] 分片 %d/%d 完成: job_id=%s", i+1, len(chunks), job.ID)
	}

	processed := len(records)
	return s.UpdateJobStatus(job.ID, model.JobStatusCompleted, &processed, "")
}

// FailStaleJobs 清扫孤儿任务：客户端崩溃会让任务永远停在 processing，
// 由定期清扫把超时任务标记为 failed。
func (s *ingestService) FailStaleJobs(idleFor time.Duration) (int, error) {
	stale, err := s.jobRepo.FindStaleProcessing(time.Now().Add(-idleFor))
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, job := range stale {
		err := s.jobRepo.UpdateStatus(job.ID, model.JobStatusFailed, nil, "任务长时间未推进，被判定为孤儿任务")
		if err != nil {
			log.Errorf("[IngestService] 标记孤儿任务失败: job_id=%s, err=%v", job.ID, err)
			continue
		}
		failed++
	}
	if failed > 0 {
		log.Infof("[IngestService] 已清扫 %d 个孤儿任务", failed)
	}
	return failed, nil
}

func (s *ingestService) lockFor(jobID string) *sync.Mutex {
	lock, _ := s.jobLocks.LoadOrStore(jobID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
