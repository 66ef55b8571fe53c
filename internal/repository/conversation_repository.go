package repository

import (
	"errors"

	"gail-go/internal/apperr"
	"gail-go/internal/model"

	"gorm.io/gorm"
)

// UserConversationStats 是按用户聚合 conversations 表得到的统计值。
type UserConversationStats struct {
	ConversationCount int
	TurnSum           int
	MessageSum        int
}

// ConversationRepository 接口定义了对话与消息相关的数据持久化操作。
type ConversationRepository interface {
	FindByID(conversationID string) (*model.Conversation, error)
	Create(conv *model.Conversation) error
	// UpdateCounters 写回合并后的计数器与元数据。
	UpdateCounters(conv *model.Conversation) error

	// CreateMessages 批量插入消息。任何一条命中 (conversation_id, message_index)
	// 唯一键冲突都会以 ErrDuplicateKey 失败，不做静默去重。
	CreateMessages(messages []*model.Message) error
	CountMessagesByUser(userID string) (int64, error)
	// FindMessagesByUser 返回用户消息的有界前缀，按 (conversation_id, message_index) 升序。
	FindMessagesByUser(userID string, limit int) ([]model.Message, error)

	// StatsByUser 对该用户的全部已存储对话做聚合（个数、轮数之和、消息数之和）。
	StatsByUser(userID string) (*UserConversationStats, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindByID 根据对话 ID 检索对话，不存在时返回 nil 而不是错误。
func (r *conversationRepository) FindByID(conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("conversation_id = ?", conversationID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Storagef(err, "查询对话失败 (conversation_id=%s)", conversationID)
	}
	return &conv, nil
}

// Create 在数据库中创建一条新对话记录。
func (r *conversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return apperr.Storagef(err, "创建对话失败 (conversation_id=%s)", conv.ConversationID)
	}
	return nil
}

// UpdateCounters 将合并后的 turn_count/message_count 与元数据写回数据库。
func (r *conversationRepository) UpdateCounters(conv *model.Conversation) error {
	err := r.db.Model(&model.Conversation{}).
		Where("conversation_id = ?", conv.ConversationID).
		Updates(map[string]interface{}{
			"turn_count":    conv.TurnCount,
			"message_count": conv.MessageCount,
			"model":         conv.Model,
			"language":      conv.Language,
		}).Error
	if err != nil {
		return apperr.Storagef(err, "更新对话计数失败 (conversation_id=%s)", conv.ConversationID)
	}
	return nil
}

// CreateMessages 批量插入消息，重复键冲突翻译为 ErrDuplicateKey。
func (r *conversationRepository) CreateMessages(messages []*model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := r.db.Create(messages).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.DuplicateKeyf("消息已存在，疑似重复提交同一分片 (conversation_id=%s)", messages[0].ConversationID)
		}
		return apperr.Storagef(err, "批量插入消息失败")
	}
	return nil
}

// CountMessagesByUser 统计用户的消息总数。
func (r *conversationRepository) CountMessagesByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, apperr.Storagef(err, "统计用户消息数失败 (user_id=%s)", userID)
	}
	return count, nil
}

// FindMessagesByUser 返回用户消息的有界前缀。
func (r *conversationRepository) FindMessagesByUser(userID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("user_id = ?", userID).
		Order("conversation_id asc, message_index asc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Storagef(err, "查询用户消息失败 (user_id=%s)", userID)
	}
	return messages, nil
}

// StatsByUser 基于已存储的全部对话行计算用户统计，
// 这保证了跨分片的去重个数与累计和都来自合并后的真实状态。
func (r *conversationRepository) StatsByUser(userID string) (*UserConversationStats, error) {
	var stats UserConversationStats
	err := r.db.Model(&model.Conversation{}).
		Select("COUNT(*) AS conversation_count, COALESCE(SUM(turn_count),0) AS turn_sum, COALESCE(SUM(message_count),0) AS message_sum").
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, apperr.Storagef(err, "聚合用户对话统计失败 (user_id=%s)", userID)
	}
	return &stats, nil
}
