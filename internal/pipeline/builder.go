// Package pipeline 定义了分片导入的核心处理流程。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"gail-go/internal/apperr"
	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/repository"
	"gail-go/pkg/es"
	"gail-go/pkg/log"
)

// ChunkResult 是单个分片处理完成后返回给调用方的计数。
type ChunkResult struct {
	Processed     int `json:"processed"`
	Conversations int `json:"conversations"`
	Users         int `json:"users"`
}

// Builder 将扁平的记录分片还原为对话与消息，并把增量统计合并进用户画像。
type Builder struct {
	convRepo    repository.ConversationRepository
	profileRepo repository.ProfileRepository
	esCfg       config.ElasticsearchConfig
}

// NewBuilder 创建一个新的 Builder 实例。
func NewBuilder(
	convRepo repository.ConversationRepository,
	profileRepo repository.ProfileRepository,
	esCfg config.ElasticsearchConfig,
) *Builder {
	return &Builder{
		convRepo:    convRepo,
		profileRepo: profileRepo,
		esCfg:       esCfg,
	}
}

// ProcessChunk 处理一个分片：追加消息、合并对话计数、合并用户统计。
// 消息先于计数器写入：重复提交同一分片会在唯一键上直接失败，
// 此时对话与画像的累计值尚未被触碰。
func (b *Builder) ProcessChunk(ctx context.Context, records []model.ConversationRecord) (*ChunkResult, error) {
	if len(records) == 0 {
		return nil, apperr.Validationf("分片为空")
	}
	for i, r := range records {
		if !r.Valid() {
			return nil, apperr.Validationf("分片中第 %d 条记录缺少必要字段", i+1)
		}
	}

	// 1. 追加写入消息，重复提交同一分片会以 ErrDuplicateKey 失败
	messages := make([]*model.Message, 0, len(records))
	for _, r := range records {
		messages = append(messages, &model.Message{
			ConversationID:   r.ConversationID,
			MessageIndex:     r.MessageIndex,
			UserID:           r.UserID,
			Role:             r.Role,
			Content:          r.Content,
			ConversationTurn: r.ConversationTurn,
			Redacted:         r.Redacted,
		})
	}
	if err := b.convRepo.CreateMessages(messages); err != nil {
		return nil, err
	}

	// 2. 按 conversation_id 分组并合并对话计数
	groups := groupByConversation(records)
	log.Infof("[Builder] 分片包含 %d 条记录, %d 个对话", len(records), len(groups))
	for _, group := range groups {
		if err := b.mergeConversation(group); err != nil {
			return nil, err
		}
	}

	// 3. 尽力而为地索引到 Elasticsearch，失败只记日志，绝不使分片失败
	b.indexMessages(ctx, records)

	// 4. 按用户合并滚动统计
	userGroups := groupByUser(records)
	for userID, group := range userGroups {
		if err := b.mergeProfile(userID, group); err != nil {
			return nil, err
		}
	}

	return &ChunkResult{
		Processed:     len(records),
		Conversations: len(groups),
		Users:         len(userGroups),
	}, nil
}

// mergeConversation 以读取-合并-写回的方式更新单个对话：
// turn_count 取历史最大值，message_count 累加本分片条数，计数器只增不减。
func (b *Builder) mergeConversation(group []model.ConversationRecord) error {
	chunkTurn := 0
	for _, r := range group {
		if r.ConversationTurn > chunkTurn {
			chunkTurn = r.ConversationTurn
		}
	}
	first := group[0]

	existing, err := b.convRepo.FindByID(first.ConversationID)
	if err != nil {
		return err
	}
	if existing == nil {
		return b.convRepo.Create(&model.Conversation{
			ConversationID: first.ConversationID,
			UserID:         first.UserID,
			Model:          first.Model,
			Language:       first.Language,
			TurnCount:      chunkTurn,
			MessageCount:   len(group),
		})
	}

	if chunkTurn > existing.TurnCount {
		existing.TurnCount = chunkTurn
	}
	existing.MessageCount += len(group)
	if existing.Model == "" {
		existing.Model = first.Model
	}
	if existing.Language == "" {
		existing.Language = first.Language
	}
	return b.convRepo.UpdateCounters(existing)
}

// mergeProfile 以读取-合并-写回的方式更新用户画像。
// 个数与平均值基于合并后的 conversations 表重新聚合，
// 语言/模型集合与既有集合求并，绝不用单个分片的局部值覆盖累计状态。
func (b *Builder) mergeProfile(userID string, group []model.ConversationRecord) error {
	stats, err := b.convRepo.StatsByUser(userID)
	if err != nil {
		return err
	}

	existing, err := b.profileRepo.FindByID(userID)
	if err != nil {
		return err
	}

	now := time.Now()
	profile := existing
	if profile == nil {
		profile = &model.UserProfile{
			UserID:    userID,
			FirstSeen: now,
		}
	}
	if profile.FirstSeen.IsZero() {
		profile.FirstSeen = now
	}
	profile.LastSeen = now

	var languages, models []string
	for _, r := range group {
		languages = append(languages, r.Language)
		models = append(models, r.Model)
	}
	profile.Languages = profile.Languages.Union(languages...)
	profile.ModelsUsed = profile.ModelsUsed.Union(models...)

	profile.TotalConversations = stats.ConversationCount
	profile.TotalMessages = stats.MessageSum
	if stats.ConversationCount > 0 {
		profile.AvgTurnsPerConversation = float64(stats.TurnSum) / float64(stats.ConversationCount)
		profile.AvgMessagesPerConversation = float64(stats.MessageSum) / float64(stats.ConversationCount)
	}

	return b.profileRepo.Upsert(profile)
}

// indexMessages 把本分片的消息写入 Elasticsearch 消息索引。
func (b *Builder) indexMessages(ctx context.Context, records []model.ConversationRecord) {
	if es.ESClient == nil {
		return
	}
	for _, r := range records {
		doc := model.EsMessage{
			DocID:            fmt.Sprintf("%s-%d", r.ConversationID, r.MessageIndex),
			ConversationID:   r.ConversationID,
			UserID:           r.UserID,
			MessageIndex:     r.MessageIndex,
			Role:             r.Role,
			Content:          r.Content,
			Language:         r.Language,
			ConversationTurn: r.ConversationTurn,
		}
		if err := es.IndexMessage(ctx, b.esCfg.IndexName, doc); err != nil {
			log.Warnf("[Builder] 索引消息到 ES 失败 (doc_id=%s): %v", doc.DocID, err)
		}
	}
}

// groupByConversation 按 conversation_id 分组。
func groupByConversation(records []model.ConversationRecord) map[string][]model.ConversationRecord {
	groups := make(map[string][]model.ConversationRecord)
	for _, r := range records {
		groups[r.ConversationID] = append(groups[r.ConversationID], r)
	}
	return groups
}

// groupByUser 按 user_id 分组。
func groupByUser(records []model.ConversationRecord) map[string][]model.ConversationRecord {
	groups := make(map[string][]model.ConversationRecord)
	for _, r := range records {
		groups[r.UserID] = append(groups[r.UserID], r)
	}
	return groups
}
