package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gail-go/internal/agent"
	"gail-go/internal/config"
	"gail-go/internal/repository"
	"gail-go/pkg/llm"
	"gail-go/pkg/log"

	"github.com/gorilla/websocket"
)

// ChatService 定义了自适应实时对话的接口。
type ChatService interface {
	// ComposeSystemPrompt 合成（或从缓存读取）用户的自适应系统提示词。
	ComposeSystemPrompt(ctx context.Context, userID string) (string, error)
	// StreamResponse 以合成的系统提示词驱动一轮流式对话。
	StreamResponse(ctx context.Context, userID, query string, ws *websocket.Conn, shouldStop func() bool) error
}

type chatService struct {
	profileRepo repository.ProfileRepository
	scoreRepo   repository.ScoreRepository
	chatRepo    repository.ChatHistoryRepository
	llmClient   llm.Client
	profileCfg  config.ProfileConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	profileRepo repository.ProfileRepository,
	scoreRepo repository.ScoreRepository,
	chatRepo repository.ChatHistoryRepository,
	llmClient llm.Client,
	profileCfg config.ProfileConfig,
) ChatService {
	return &chatService{
		profileRepo: profileRepo,
		scoreRepo:   scoreRepo,
		chatRepo:    chatRepo,
		llmClient:   llmClient,
		profileCfg:  profileCfg,
	}
}

// ComposeSystemPrompt 查询评分与画像事实并合成系统提示词。
// 合成本身是纯函数，这里只负责取数与缓存。
func (s *chatService) ComposeSystemPrompt(ctx context.Context, userID string) (string, error) {
	if cached, ok, err := s.chatRepo.GetCachedPrompt(ctx, userID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warnf("[ChatService] 读取提示词缓存失败: user_id=%s, err=%v", userID, err)
	}

	facts := agent.ProfileFacts{UserID: userID}
	profile, err := s.profileRepo.FindByID(userID)
	if err != nil {
		return "", err
	}
	if profile != nil {
		facts.TotalConversations = profile.TotalConversations
		facts.Languages = profile.Languages
	}

	scores, err := s.scoreRepo.FindByUser(userID)
	if err != nil {
		return "", err
	}

	prompt := agent.ComposeSystemPrompt(facts, scores)

	ttl := time.Duration(s.profileCfg.CacheTTLSeconds) * time.Second
	if err := s.chatRepo.SetCachedPrompt(ctx, userID, prompt, ttl); err != nil {
		log.Warnf("[ChatService] 缓存提示词失败: user_id=%s, err=%v", userID, err)
	}
	return prompt, nil
}

// StreamResponse 组装消息并把 LLM 的流式回复写入 websocket。
func (s *chatService) StreamResponse(ctx context.Context, userID, query string, ws *websocket.Conn, shouldStop func() bool) error {
	systemMsg, err := s.ComposeSystemPrompt(ctx, userID)
	if err != nil {
		return err
	}

	history, err := s.chatRepo.GetHistory(ctx, userID)
	if err != nil {
		log.Errorf("Failed to load chat history: %v", err)
		history = []repository.ChatMessage{}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	// 生成参数为 nil 时客户端会回落到配置中的默认值
	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor); err != nil {
		return err
	}

	// 发送完成通知，并把这一轮问答写回历史
	sendCompletion(ws)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// 使用后台上下文：即使原始请求被取消，也要保存已成功生成的答案
		if err := s.chatRepo.AppendExchange(context.Background(), userID, query, fullAnswer); err != nil {
			// 只记录错误，不返回给客户端，因为流式响应已经成功
			log.Errorf("Failed to save chat history: %v", err)
		}
	}
	return nil
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(ws *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
