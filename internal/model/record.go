// Package model 定义了与数据库表对应的 Go 结构体。
package model

// ConversationRecord 是批量导入的输入单元，对应 JSONL 数据集中的一行。
// 记录一经导入即不可变；message_index 定义对话内消息的顺序，且在同一对话内唯一。
type ConversationRecord struct {
	UserID           string `json:"user_id"`
	ConversationID   string `json:"conversation_id"`
	Model            string `json:"model,omitempty"`
	Language         string `json:"language,omitempty"`
	ConversationTurn int    `json:"conversation_turn,omitempty"`
	MessageIndex     int    `json:"message_index"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	Redacted         bool   `json:"redacted,omitempty"`
}

// Valid 校验一条记录是否具备必要字段。
func (r ConversationRecord) Valid() bool {
	return r.UserID != "" && r.ConversationID != "" && r.Role != ""
}
