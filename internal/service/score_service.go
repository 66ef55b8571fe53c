package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gail-go/internal/apperr"
	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/repository"
	"gail-go/pkg/kafka"
	"gail-go/pkg/log"
	"gail-go/pkg/tasks"
)

// Classifier 是评分服务对分类提供方的唯一依赖。
// llm.Client 满足该接口；测试中用确定性桩替换。
type Classifier interface {
	Classify(ctx context.Context, system, user string) (string, error)
}

// ScoreService 接口定义了行为评分相关的业务操作。
type ScoreService interface {
	// GenerateScores 对用户做一次完整的重新评分，整体覆盖既有评分。
	GenerateScores(ctx context.Context, userID string) ([]model.DimensionScore, error)
	GetScores(userID string) ([]model.DimensionScore, error)
	// EnqueueBatch 为全部已建档用户各投递一条异步评分任务，返回投递条数。
	EnqueueBatch() (int, error)
	// Process 实现 kafka.TaskProcessor，由后台消费者调用。
	Process(ctx context.Context, task tasks.ScoreGenerationTask) error
}

type scoreService struct {
	convRepo    repository.ConversationRepository
	profileRepo repository.ProfileRepository
	scoreRepo   repository.ScoreRepository
	chatRepo    repository.ChatHistoryRepository
	classifier  Classifier
	profileCfg  config.ProfileConfig
}

// NewScoreService 创建一个新的 ScoreService 实例。
func NewScoreService(
	convRepo repository.ConversationRepository,
	profileRepo repository.ProfileRepository,
	scoreRepo repository.ScoreRepository,
	chatRepo repository.ChatHistoryRepository,
	classifier Classifier,
	profileCfg config.ProfileConfig,
) ScoreService {
	return &scoreService{
		convRepo:    convRepo,
		profileRepo: profileRepo,
		scoreRepo:   scoreRepo,
		chatRepo:    chatRepo,
		classifier:  classifier,
		profileCfg:  profileCfg,
	}
}

// classifiedScore 对应分类服务返回的单个维度条目。
type classifiedScore struct {
	Dimension       string  `json:"dimension"`
	Score           float64 `json:"score"`
	Confidence      float64 `json:"confidence"`
	EvidenceSummary string  `json:"evidence_summary"`
}

type classifyResponse struct {
	Scores []classifiedScore `json:"scores"`
}

// GenerateScores 采样用户消息、调用分类服务并整体写回维度评分。
// 分类调用失败或返回不可用输出时，既有评分保持原样不被触碰。
func (s *scoreService) GenerateScores(ctx context.Context, userID string) ([]model.DimensionScore, error) {
	count, err := s.convRepo.CountMessagesByUser(userID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.NotFoundf("用户没有任何消息，无法评分 (user_id=%s)", userID)
	}

	// 有界前缀采样：控制成本与时延，不追求统计代表性
	messages, err := s.convRepo.FindMessagesByUser(userID, s.profileCfg.SampleLimit)
	if err != nil {
		return nil, err
	}

	transcript := s.buildTranscript(messages)
	log.Infof("[ScoreService] 开始评分: user_id=%s, 采样消息数=%d", userID, len(messages))

	raw, err := s.classifier.Classify(ctx, classifySystemPrompt, fmt.Sprintf(classifyUserPromptTemplate, transcript))
	if err != nil {
		return nil, apperr.Generationf("分类服务调用失败: %v", err)
	}

	scores, err := s.parseScores(userID, raw)
	if err != nil {
		return nil, err
	}

	// 全量写入成功后才推进 profile_generated 标记
	if err := s.scoreRepo.UpsertAll(scores); err != nil {
		return nil, err
	}
	if err := s.profileRepo.SetProfileGenerated(userID, true); err != nil {
		return nil, err
	}

	// 评分变更后缓存的系统提示词必须失效
	if s.chatRepo != nil {
		if err := s.chatRepo.InvalidatePrompt(ctx, userID); err != nil {
			log.Warnf("[ScoreService] 失效提示词缓存失败: user_id=%s, err=%v", userID, err)
		}
	}

	result := make([]model.DimensionScore, 0, len(scores))
	for _, sc := range scores {
		result = append(result, *sc)
	}
	log.Infof("[ScoreService] 评分完成: user_id=%s, 维度数=%d", userID, len(result))
	return result, nil
}

// buildTranscript 把采样消息拼接为角色标注的转录文本，单条消息做截断。
func (s *scoreService) buildTranscript(messages []model.Message) string {
	limit := s.profileCfg.MessageTruncate
	var b strings.Builder
	for _, m := range messages {
		content := m.Content
		if runes := []rune(content); len(runes) > limit {
			content = string(runes[:limit]) + "... [truncated]"
		}
		b.WriteString(fmt.Sprintf("[%s]: %s\n\n", strings.ToUpper(m.Role), content))
	}
	return b.String()
}

// parseScores 校验分类输出：未知维度丢弃，score 压到 1-10，confidence 压到 0-1。
// 没有任何可用维度时整体失败。
func (s *scoreService) parseScores(userID, raw string) ([]*model.DimensionScore, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.Generationf("分类服务返回了空输出 (user_id=%s)", userID)
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperr.Generationf("分类输出不是合法 JSON (user_id=%s): %v", userID, err)
	}

	var scores []*model.DimensionScore
	for _, item := range parsed.Scores {
		dim := normalizeDimension(item.Dimension)
		if !model.IsKnownDimension(dim) {
			log.Warnf("[ScoreService] 丢弃未知维度: %q (user_id=%s)", item.Dimension, userID)
			continue
		}
		scores = append(scores, &model.DimensionScore{
			UserID:          userID,
			Dimension:       dim,
			Score:           clamp(item.Score, 1, 10),
			Confidence:      clamp(item.Confidence, 0, 1),
			EvidenceSummary: item.EvidenceSummary,
		})
	}
	if len(scores) == 0 {
		return nil, apperr.Generationf("分类输出不包含任何可用维度 (user_id=%s)", userID)
	}
	return scores, nil
}

// GetScores 返回用户当前的全部维度评分。
func (s *scoreService) GetScores(userID string) ([]model.DimensionScore, error) {
	return s.scoreRepo.FindByUser(userID)
}

// EnqueueBatch 为每个已建档用户投递一条评分任务。
func (s *scoreService) EnqueueBatch() (int, error) {
	userIDs, err := s.profileRepo.ListUserIDs()
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, uid := range userIDs {
		if err := kafka.ProduceScoreTask(tasks.ScoreGenerationTask{UserID: uid, Reason: "batch"}); err != nil {
			log.Errorf("[ScoreService] 投递评分任务失败: user_id=%s, err=%v", uid, err)
			continue
		}
		enqueued++
	}
	log.Infof("[ScoreService] 批量评分任务已投递: %d/%d", enqueued, len(userIDs))
	return enqueued, nil
}

// Process 处理一条异步评分任务。
// 用户没有消息属于不可重试的情况，直接吞掉并记日志。
func (s *scoreService) Process(ctx context.Context, task tasks.ScoreGenerationTask) error {
	_, err := s.GenerateScores(ctx, task.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warnf("[ScoreService] 跳过无消息用户的评分任务: user_id=%s", task.UserID)
		return nil
	}
	return err
}

// normalizeDimension 宽容处理分类服务返回的维度命名差异。
func normalizeDimension(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
