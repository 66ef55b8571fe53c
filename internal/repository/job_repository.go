// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"time"

	"gail-go/internal/apperr"
	"gail-go/internal/model"

	"gorm.io/gorm"
)

// JobRepository 接口定义了导入任务相关的数据持久化操作。
type JobRepository interface {
	Create(job *model.IngestionJob) error
	FindByID(id string) (*model.IngestionJob, error)
	// UpdateProgress 将 processed_records 直接设置为给定的累计值（不是自增）。
	UpdateProgress(id string, processedRecords int) error
	UpdateStatus(id, status string, processedRecords *int, errorMessage string) error
	// FindStaleProcessing 查找在给定时间点之前就停止推进的 processing 任务。
	FindStaleProcessing(idleSince time.Time) ([]model.IngestionJob, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建一个新的 JobRepository 实例。
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create 在数据库中创建一个新的导入任务记录。
func (r *jobRepository) Create(job *model.IngestionJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return apperr.Storagef(err, "创建导入任务失败 (id=%s)", job.ID)
	}
	return nil
}

// FindByID 根据任务 ID 检索导入任务。
func (r *jobRepository) FindByID(id string) (*model.IngestionJob, error) {
	var job model.IngestionJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("导入任务不存在 (id=%s)", id)
		}
		return nil, apperr.Storagef(err, "查询导入任务失败 (id=%s)", id)
	}
	return &job, nil
}

// UpdateProgress 更新任务的累计已处理记录数。
func (r *jobRepository) UpdateProgress(id string, processedRecords int) error {
	err := r.db.Model(&model.IngestionJob{}).Where("id = ?", id).
		Update("processed_records", processedRecords).Error
	if err != nil {
		return apperr.Storagef(err, "更新任务进度失败 (id=%s)", id)
	}
	return nil
}

// UpdateStatus 更新任务状态，可选地同时更新进度与错误信息。
func (r *jobRepository) UpdateStatus(id, status string, processedRecords *int, errorMessage string) error {
	updates := map[string]interface{}{"status": status}
	if processedRecords != nil {
		updates["processed_records"] = *processedRecords
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	err := r.db.Model(&model.IngestionJob{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return apperr.Storagef(err, "更新任务状态失败 (id=%s, status=%s)", id, status)
	}
	return nil
}

// FindStaleProcessing 查找长时间未更新的 processing 任务，供孤儿任务清扫使用。
func (r *jobRepository) FindStaleProcessing(idleSince time.Time) ([]model.IngestionJob, error) {
	var jobs []model.IngestionJob
	err := r.db.Where("status = ? AND updated_at < ?", model.JobStatusProcessing, idleSince).
		Find(&jobs).Error
	if err != nil {
		return nil, apperr.Storagef(err, "查询超时任务失败")
	}
	return jobs, nil
}
