package repository

import (
	"gail-go/internal/apperr"
	"gail-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreRepository 接口定义了维度评分相关的数据持久化操作。
type ScoreRepository interface {
	// UpsertAll 以 (user_id, dimension) 为冲突键整体覆盖本次返回的全部维度。
	// 要么全部写入成功，要么整体失败，不持久化子集。
	UpsertAll(scores []*model.DimensionScore) error
	FindByUser(userID string) ([]model.DimensionScore, error)
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository 创建一个新的 ScoreRepository 实例。
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

// UpsertAll 在单个事务内覆盖写入全部维度评分。
func (r *scoreRepository) UpsertAll(scores []*model.DimensionScore) error {
	if len(scores) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dimension"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "confidence", "evidence_summary", "updated_at"}),
		}).Create(&scores).Error
	})
	if err != nil {
		return apperr.Storagef(err, "写入维度评分失败 (user_id=%s)", scores[0].UserID)
	}
	return nil
}

// FindByUser 检索用户当前的全部维度评分。
func (r *scoreRepository) FindByUser(userID string) ([]model.DimensionScore, error) {
	var scores []model.DimensionScore
	err := r.db.Where("user_id = ?", userID).Find(&scores).Error
	if err != nil {
		return nil, apperr.Storagef(err, "查询维度评分失败 (user_id=%s)", userID)
	}
	return scores, nil
}
