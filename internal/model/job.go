package model

import "time"

// 导入任务的状态机：pending → processing → {completed | failed}。
// completed 与 failed 均为终态。
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestionJob 对应于数据库中的 'ingestion_jobs' 表。
// total_records 在创建时固定，为调用方提供的估计值；
// processed_records 记录所有成功分片的累计记录数，只增不减。
type IngestionJob struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Filename         string    `gorm:"type:varchar(255);not null" json:"filename"`
	Status           string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalRecords     int       `gorm:"not null;default:0" json:"totalRecords"`
	ProcessedRecords int       `gorm:"not null;default:0" json:"processedRecords"`
	ErrorMessage     string    `gorm:"type:text" json:"errorMessage"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}

// Terminal 判断任务是否已处于终态。
func (j *IngestionJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
