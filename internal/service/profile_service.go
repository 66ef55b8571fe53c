package service

import (
	"gail-go/internal/apperr"
	"gail-go/internal/model"
	"gail-go/internal/repository"
)

// ProfileService 接口定义了用户画像的只读业务操作。
type ProfileService interface {
	GetProfile(userID string) (*model.UserProfile, error)
	ListUserIDs() ([]string, error)
}

type profileService struct {
	profileRepo repository.ProfileRepository
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(profileRepo repository.ProfileRepository) ProfileService {
	return &profileService{profileRepo: profileRepo}
}

// GetProfile 返回用户的滚动统计画像。
func (s *profileService) GetProfile(userID string) (*model.UserProfile, error) {
	profile, err := s.profileRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperr.NotFoundf("用户画像不存在 (user_id=%s)", userID)
	}
	return profile, nil
}

// ListUserIDs 返回全部已建档用户的 ID。
func (s *profileService) ListUserIDs() ([]string, error) {
	return s.profileRepo.ListUserIDs()
}
