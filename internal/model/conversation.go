// Package model 包含了应用的数据模型定义。
package model

import "time"

// Conversation 对应于数据库中的 'conversations' 表。
// turn_count 与 message_count 在多次导入间只增不减：
// 后到的分片通过取最大值/累加的方式合并，绝不向下覆盖。
type Conversation struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(64)" json:"conversationId"`
	UserID         string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	Model          string    `gorm:"type:varchar(50)" json:"model"`
	Language       string    `gorm:"type:varchar(50)" json:"language"`
	TurnCount      int       `gorm:"not null;default:0" json:"turnCount"`
	MessageCount   int       `gorm:"not null;default:0" json:"messageCount"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message 对应于数据库中的 'messages' 表。
// 以 (conversation_id, message_index) 为唯一键，只追加、不修改。
type Message struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID   string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_conv_msg" json:"conversationId"`
	MessageIndex     int       `gorm:"not null;uniqueIndex:uk_conv_msg" json:"messageIndex"`
	UserID           string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	Role             string    `gorm:"type:varchar(20);not null" json:"role"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	ConversationTurn int       `gorm:"not null;default:0" json:"conversationTurn"`
	Redacted         bool      `gorm:"not null;default:false" json:"redacted"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
