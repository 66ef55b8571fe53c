package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gail-go/internal/apperr"
	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/repository"
	"gail-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	m.Run()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Conversation{},
		&model.Message{},
		&model.UserProfile{},
	))
	return db
}

func newTestBuilder(t *testing.T) (*Builder, repository.ConversationRepository, repository.ProfileRepository) {
	t.Helper()
	db := newTestDB(t)
	convRepo := repository.NewConversationRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	return NewBuilder(convRepo, profileRepo, config.ElasticsearchConfig{}), convRepo, profileRepo
}

func record(userID, convID string, turn, index int, role string) model.ConversationRecord {
	return model.ConversationRecord{
		UserID:           userID,
		ConversationID:   convID,
		Model:            "gpt-4",
		Language:         "en",
		ConversationTurn: turn,
		MessageIndex:     index,
		Role:             role,
		Content:          fmt.Sprintf("message %d", index),
	}
}

func TestProcessChunkRejectsEmptyAndInvalid(t *testing.T) {
	builder, _, _ := newTestBuilder(t)

	_, err := builder.ProcessChunk(context.Background(), nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = builder.ProcessChunk(context.Background(), []model.ConversationRecord{
		{ConversationID: "c1", Role: "user"}, // 缺 user_id
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestProcessChunkCreatesConversationAndMessages(t *testing.T) {
	builder, convRepo, _ := newTestBuilder(t)

	result, err := builder.ProcessChunk(context.Background(), []model.ConversationRecord{
		record("u1", "c1", 1, 0, "user"),
		record("u1", "c1", 1, 1, "assistant"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Conversations)
	assert.Equal(t, 1, result.Users)

	conv, err := convRepo.FindByID("c1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, 1, conv.TurnCount)
	assert.Equal(t, 2, conv.MessageCount)
	assert.Equal(t, "gpt-4", conv.Model)
}

func TestProcessChunkMergesAcrossChunks(t *testing.T) {
	builder, convRepo, _ := newTestBuilder(t)
	ctx := context.Background()

	// 分片 A：两条消息，turn 最大 2
	_, err := builder.ProcessChunk(ctx, []model.ConversationRecord{
		record("u1", "c1", 1, 0, "user"),
		record("u1", "c1", 2, 1, "assistant"),
	})
	require.NoError(t, err)

	// 分片 B：同一对话的后续消息，turn 3
	_, err = builder.ProcessChunk(ctx, []model.ConversationRecord{
		record("u1", "c1", 3, 2, "user"),
	})
	require.NoError(t, err)

	conv, err := convRepo.FindByID("c1")
	require.NoError(t, err)
	assert.Equal(t, 3, conv.TurnCount, "turn_count 取历史最大值")
	assert.Equal(t, 3, conv.MessageCount, "message_count 跨分片累加")

	// 乱序到达的低 turn 分片不能把计数拉低
	_, err = builder.ProcessChunk(ctx, []model.ConversationRecord{
		record("u1", "c1", 1, 3, "assistant"),
	})
	require.NoError(t, err)
	conv, err = convRepo.FindByID("c1")
	require.NoError(t, err)
	assert.Equal(t, 3, conv.TurnCount)
	assert.Equal(t, 4, conv.MessageCount)
}

func TestProcessChunkDuplicateMessagesFail(t *testing.T) {
	builder, _, _ := newTestBuilder(t)
	ctx := context.Background()

	chunk := []model.ConversationRecord{record("u1", "c1", 1, 0, "user")}
	_, err := builder.ProcessChunk(ctx, chunk)
	require.NoError(t, err)

	// 同一 (conversation_id, message_index) 重复提交
	_, err = builder.ProcessChunk(ctx, chunk)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateKey))
}

func TestProcessChunkAggregatesProfile(t *testing.T) {
	builder, _, profileRepo := newTestBuilder(t)
	ctx := context.Background()

	// 两个对话分布在两个分片里
	_, err := builder.ProcessChunk(ctx, []model.ConversationRecord{
		record("u1", "c1", 1, 0, "user"),
		record("u1", "c1", 2, 1, "assistant"),
	})
	require.NoError(t, err)

	recs := []model.ConversationRecord{
		record("u1", "c2", 4, 0, "user"),
		record("u1", "c2", 4, 1, "assistant"),
	}
	recs[0].Language = "zh"
	recs[0].Model = "claude"
	_, err = builder.ProcessChunk(ctx, recs)
	require.NoError(t, err)

	profile, err := profileRepo.FindByID("u1")
	require.NoError(t, err)
	require.NotNil(t, profile)

	assert.Equal(t, 2, profile.TotalConversations)
	assert.Equal(t, 4, profile.TotalMessages)
	// turn 合计 2+4=6，对话数 2
	assert.InDelta(t, 3.0, profile.AvgTurnsPerConversation, 1e-9)
	assert.InDelta(t, 2.0, profile.AvgMessagesPerConversation, 1e-9)
	// 集合求并，不覆盖
	assert.ElementsMatch(t, []string{"en", "zh"}, []string(profile.Languages))
	assert.ElementsMatch(t, []string{"gpt-4", "claude"}, []string(profile.ModelsUsed))
	assert.False(t, profile.FirstSeen.IsZero())
	assert.False(t, profile.LastSeen.Before(profile.FirstSeen))
}

func TestProcessChunkMultipleUsers(t *testing.T) {
	builder, _, profileRepo := newTestBuilder(t)

	result, err := builder.ProcessChunk(context.Background(), []model.ConversationRecord{
		record("u1", "c1", 1, 0, "user"),
		record("u2", "c2", 1, 0, "user"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Users)

	for _, uid := range []string{"u1", "u2"} {
		p, err := profileRepo.FindByID(uid)
		require.NoError(t, err)
		require.NotNil(t, p, uid)
		assert.Equal(t, 1, p.TotalConversations)
	}
}
