// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ChatMessage 代表存储在 Redis 中的单条实时对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistoryRepository 定义了实时对话历史与系统提示词缓存的操作接口。
type ChatHistoryRepository interface {
	GetHistory(ctx context.Context, userID string) ([]ChatMessage, error)
	AppendExchange(ctx context.Context, userID, question, answer string) error

	// 系统提示词缓存：合成结果按用户缓存，评分重算后必须失效。
	GetCachedPrompt(ctx context.Context, userID string) (string, bool, error)
	SetCachedPrompt(ctx context.Context, userID, prompt string, ttl time.Duration) error
	InvalidatePrompt(ctx context.Context, userID string) error
}

type redisChatHistoryRepository struct {
	redisClient *redis.Client
}

// NewChatHistoryRepository 创建一个新的 ChatHistoryRepository 实例。
func NewChatHistoryRepository(redisClient *redis.Client) ChatHistoryRepository {
	return &redisChatHistoryRepository{redisClient: redisClient}
}

func historyKey(userID string) string {
	return fmt.Sprintf("chat:%s:history", userID)
}

func promptKey(userID string) string {
	return fmt.Sprintf("prompt:%s", userID)
}

// GetHistory 从 Redis 获取用户的实时对话历史。
func (r *redisChatHistoryRepository) GetHistory(ctx context.Context, userID string) ([]ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, historyKey(userID)).Result()
	if err == redis.Nil {
		return []ChatMessage{}, nil // 尚无历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	var messages []ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
	}
	return messages, nil
}

// AppendExchange 将一轮问答追加到历史中，只保留最近 20 条。
func (r *redisChatHistoryRepository) AppendExchange(ctx context.Context, userID, question, answer string) error {
	messages, err := r.GetHistory(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	messages = append(messages,
		ChatMessage{Role: "user", Content: question, Timestamp: now},
		ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(messages) > 20 {
		messages = messages[len(messages)-20:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	if err := r.redisClient.Set(ctx, historyKey(userID), jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set chat history: %w", err)
	}
	return nil
}

// GetCachedPrompt 读取缓存的系统提示词。
func (r *redisChatHistoryRepository) GetCachedPrompt(ctx context.Context, userID string) (string, bool, error) {
	prompt, err := r.redisClient.Get(ctx, promptKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached prompt: %w", err)
	}
	return prompt, true, nil
}

// SetCachedPrompt 缓存系统提示词。
func (r *redisChatHistoryRepository) SetCachedPrompt(ctx context.Context, userID, prompt string, ttl time.Duration) error {
	if err := r.redisClient.Set(ctx, promptKey(userID), prompt, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache prompt: %w", err)
	}
	return nil
}

// InvalidatePrompt 使缓存的系统提示词失效。评分重算后调用。
func (r *redisChatHistoryRepository) InvalidatePrompt(ctx context.Context, userID string) error {
	if err := r.redisClient.Del(ctx, promptKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached prompt: %w", err)
	}
	return nil
}
