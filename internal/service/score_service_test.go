package service

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
	"gail-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubClassifier 是确定性的分类桩，记录收到的用户提示词。
type stubClassifier struct {
	response string
	err      error
	lastUser string
}

func (s *stubClassifier) Classify(_ context.Context, _, user string) (string, error) {
	s.lastUser = user
	return s.response, s.err
}

type scoreFixture struct {
	db          *gorm.DB
	convRepo    repository.ConversationRepository
	profileRepo repository.ProfileRepository
	scoreRepo   repository.ScoreRepository
	classifier  *stubClassifier
	service     ScoreService
}

func newScoreFixture(t *testing.T, cfg config.ProfileConfig) *scoreFixture {
	t.Helper()
	if cfg.SampleLimit == 0 {
		cfg.SampleLimit = 200
	}
	if cfg.MessageTruncate == 0 {
		cfg.MessageTruncate = 500
	}

	db := newTestDB(t)
	convRepo := repository.NewConversationRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	classifier := &stubClassifier{}
	svc := NewScoreService(convRepo, profileRepo, scoreRepo, nil, classifier, cfg)
	return &scoreFixture{
		db:          db,
		convRepo:    convRepo,
		profileRepo: profileRepo,
		scoreRepo:   scoreRepo,
		classifier:  classifier,
		service:     svc,
	}
}

func (f *scoreFixture) seedMessages(t *testing.T, userID string, contents ...string) {
	t.Helper()
	messages := make([]*model.Message, 0, len(contents))
	for i, c := range contents {
		messages = append(messages, &model.Message{
			ConversationID: "c-" + userID,
			MessageIndex:   i,
			UserID:         userID,
			Role:           "user",
			Content:        c,
		})
	}
	require.NoError(t, f.convRepo.CreateMessages(messages))
	require.NoError(t, f.profileRepo.Upsert(&model.UserProfile{UserID: userID}))
}

func fullClassifyResponse() string {
	entries := make([]string, 0, len(model.CanonicalDimensions))
	for i, dim := range model.CanonicalDimensions {
		entries = append(entries, fmt.Sprintf(
			`{"dimension":%q,"score":%d,"confidence":0.8,"evidence_summary":"evidence"}`, dim, i+2))
	}
	return fmt.Sprintf(`{"scores":[%s]}`, strings.Join(entries, ","))
}

func TestGenerateScoresNoMessages(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})

	_, err := f.service.GenerateScores(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGenerateScoresSuccess(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "how do I configure this?", "it still fails")
	f.classifier.response = fullClassifyResponse()

	scores, err := f.service.GenerateScores(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, scores, len(model.CanonicalDimensions))

	// 转录文本进入了分类提示词
	assert.Contains(t, f.classifier.lastUser, "[USER]: how do I configure this?")

	stored, err := f.service.GetScores("u1")
	require.NoError(t, err)
	require.Len(t, stored, len(model.CanonicalDimensions))
	dims := make([]string, 0, len(stored))
	for _, s := range stored {
		dims = append(dims, s.Dimension)
		assert.Equal(t, "u1", s.UserID)
		assert.InDelta(t, 0.8, s.Confidence, 1e-9)
	}
	assert.ElementsMatch(t, model.CanonicalDimensions, dims)

	// 评分成功后推进建档标记
	profile, err := f.profileRepo.FindByID("u1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.True(t, profile.ProfileGenerated)
}

func TestGenerateScoresGarbageOutputLeavesScoresUntouched(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "hello")

	// 先写入一份既有评分
	prior := []*model.DimensionScore{
		{UserID: "u1", Dimension: model.DimPatience, Score: 4, Confidence: 0.5},
	}
	require.NoError(t, f.scoreRepo.UpsertAll(prior))

	f.classifier.response = "this is not json at all"
	_, err := f.service.GenerateScores(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGeneration))

	stored, err := f.service.GetScores("u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.DimPatience, stored[0].Dimension)
	assert.InDelta(t, 4.0, stored[0].Score, 1e-9)
}

func TestGenerateScoresClassifierFailure(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "hello")
	f.classifier.err = errors.New("upstream timeout")

	_, err := f.service.GenerateScores(context.Background(), "u1")
	assert.True(t, errors.Is(err, apperr.ErrGeneration))
}

func TestGenerateScoresClampsValues(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "hello")
	f.classifier.response = `{"scores":[
		{"dimension":"patience","score":15,"confidence":2.5,"evidence_summary":"x"},
		{"dimension":"verbosity","score":-3,"confidence":-0.5,"evidence_summary":"y"}
	]}`

	scores, err := f.service.GenerateScores(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, scores, 2)

	byDim := make(map[string]model.DimensionScore)
	for _, s := range scores {
		byDim[s.Dimension] = s
	}
	assert.InDelta(t, 10.0, byDim[model.DimPatience].Score, 1e-9)
	assert.InDelta(t, 1.0, byDim[model.DimPatience].Confidence, 1e-9)
	assert.InDelta(t, 1.0, byDim[model.DimVerbosity].Score, 1e-9)
	assert.InDelta(t, 0.0, byDim[model.DimVerbosity].Confidence, 1e-9)
}

func TestGenerateScoresNormalizesAndDropsUnknownDimensions(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "hello")
	f.classifier.response = `{"scores":[
		{"dimension":"Technical Depth","score":8,"confidence":0.9},
		{"dimension":"astrology","score":5,"confidence":0.9}
	]}`

	scores, err := f.service.GenerateScores(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, scores, 1, "未知维度被丢弃")
	assert.Equal(t, model.DimTechnicalDepth, scores[0].Dimension)
}

func TestGenerateScoresAllUnknownDimensionsFails(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})
	f.seedMessages(t, "u1", "hello")
	f.classifier.response = `{"scores":[{"dimension":"astrology","score":5,"confidence":0.9}]}`

	_, err := f.service.GenerateScores(context.Background(), "u1")
	assert.True(t, errors.Is(err, apperr.ErrGeneration))
}

func TestGenerateScoresTruncatesLongMessages(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{MessageTruncate: 10})
	long := strings.Repeat("a", 50)
	f.seedMessages(t, "u1", long)
	f.classifier.response = fullClassifyResponse()

	_, err := f.service.GenerateScores(context.Background(), "u1")
	require.NoError(t, err)

	assert.Contains(t, f.classifier.lastUser, strings.Repeat("a", 10)+"... [truncated]")
	assert.NotContains(t, f.classifier.lastUser, long)
}

func TestGenerateScoresRespectsSampleLimit(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{SampleLimit: 1})
	f.seedMessages(t, "u1", "first message", "second message")
	f.classifier.response = fullClassifyResponse()

	_, err := f.service.GenerateScores(context.Background(), "u1")
	require.NoError(t, err)

	assert.Contains(t, f.classifier.lastUser, "first message")
	assert.NotContains(t, f.classifier.lastUser, "second message")
}

func TestProcessSkipsUsersWithoutMessages(t *testing.T) {
	f := newScoreFixture(t, config.ProfileConfig{})

	// 无消息用户属于不可重试情况，任务被吞掉
	err := f.service.Process(context.Background(), tasks.ScoreGenerationTask{UserID: "ghost"})
	assert.NoError(t, err)
}
