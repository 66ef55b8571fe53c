package model

// EsMessage 是写入 Elasticsearch 消息索引的文档结构。
type EsMessage struct {
	DocID            string `json:"doc_id"`
	ConversationID   string `json:"conversation_id"`
	UserID           string `json:"user_id"`
	MessageIndex     int    `json:"message_index"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	Language         string `json:"language,omitempty"`
	ConversationTurn int    `json:"conversation_turn"`
}
