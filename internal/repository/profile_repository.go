package repository

import (
	"errors"

	"gail-go/internal/apperr"
	"gail-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 接口定义了用户滚动统计相关的数据持久化操作。
type ProfileRepository interface {
	// FindByID 检索用户画像，不存在时返回 nil 而不是错误。
	FindByID(userID string) (*model.UserProfile, error)
	// Upsert 以 user_id 为冲突键整行写入合并后的画像。
	Upsert(profile *model.UserProfile) error
	SetProfileGenerated(userID string, generated bool) error
	ListUserIDs() ([]string, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// FindByID 根据用户 ID 检索画像。
func (r *profileRepository) FindByID(userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Storagef(err, "查询用户画像失败 (user_id=%s)", userID)
	}
	return &profile, nil
}

// Upsert 写入画像，user_id 冲突时覆盖全部统计列。
// 调用方负责先读取旧值并完成合并，这里只做落库。
func (r *profileRepository) Upsert(profile *model.UserProfile) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(profile).Error
	if err != nil {
		return apperr.Storagef(err, "写入用户画像失败 (user_id=%s)", profile.UserID)
	}
	return nil
}

// SetProfileGenerated 更新画像的评分完成标记。
func (r *profileRepository) SetProfileGenerated(userID string, generated bool) error {
	err := r.db.Model(&model.UserProfile{}).Where("user_id = ?", userID).
		Update("profile_generated", generated).Error
	if err != nil {
		return apperr.Storagef(err, "更新 profile_generated 失败 (user_id=%s)", userID)
	}
	return nil
}

// ListUserIDs 返回全部已建档用户的 ID 列表。
func (r *profileRepository) ListUserIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&model.UserProfile{}).Order("user_id asc").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, apperr.Storagef(err, "查询用户列表失败")
	}
	return ids, nil
}
