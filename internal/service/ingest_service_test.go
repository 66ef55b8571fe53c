package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gail-go/internal/apperr"
	"gail-go/internal/config"
	"gail-go/internal/model"
	"gail-go/internal/pipeline"
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
		&model.IngestionJob{},
		&model.Conversation{},
		&model.Message{},
		&model.UserProfile{},
		&model.DimensionScore{},
	))
	return db
}

type ingestFixture struct {
	db      *gorm.DB
	jobRepo repository.JobRepository
	service IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	db := newTestDB(t)
	jobRepo := repository.NewJobRepository(db)
	convRepo := repository.NewConversationRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	builder := pipeline.NewBuilder(convRepo, profileRepo, config.ElasticsearchConfig{})
	svc := NewIngestService(jobRepo, builder, config.IngestConfig{ChunkSize: 500, StaleJobMinutes: 30}, config.MinIOConfig{})
	return &ingestFixture{db: db, jobRepo: jobRepo, service: svc}
}

func chunkRecord(userID, convID string, index int) model.ConversationRecord {
	return model.ConversationRecord{
		UserID:           userID,
		ConversationID:   convID,
		ConversationTurn: index/2 + 1,
		MessageIndex:     index,
		Role:             "user",
		Content:          fmt.Sprintf("content %d", index),
	}
}

func TestCreateJob(t *testing.T) {
	f := newIngestFixture(t)

	job, err := f.service.CreateJob("dataset.jsonl", 100)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, 100, job.TotalRecords)
	assert.Equal(t, 0, job.ProcessedRecords)

	_, err = f.service.CreateJob("", 10)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSubmitChunkLifecycle(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob("dataset.jsonl", 4)
	require.NoError(t, err)

	// 第一个分片把任务推进到 processing
	result, err := f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", []model.ConversationRecord{
		chunkRecord("u1", "c1", 0),
		chunkRecord("u1", "c1", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)

	got, err := f.service.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Equal(t, 2, got.ProcessedRecords)

	// 第二个分片累计进度
	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", []model.ConversationRecord{
		chunkRecord("u1", "c1", 2),
		chunkRecord("u1", "c1", 3),
	})
	require.NoError(t, err)

	got, err = f.service.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ProcessedRecords, "进度是累计设值")
}

func TestSubmitChunkRejectsEmptyAndUnknownJob(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob("dataset.jsonl", 1)
	require.NoError(t, err)

	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.service.SubmitChunk(ctx, "no-such-job", "dataset.jsonl", []model.ConversationRecord{
		chunkRecord("u1", "c1", 0),
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSubmitChunkTerminalJobRejected(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob("dataset.jsonl", 1)
	require.NoError(t, err)
	_, err = f.service.UpdateJobStatus(job.ID, model.JobStatusFailed, nil, "boom")
	require.NoError(t, err)

	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", []model.ConversationRecord{
		chunkRecord("u1", "c1", 0),
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSubmitChunkDuplicateDoesNotAdvanceProgress(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob("dataset.jsonl", 2)
	require.NoError(t, err)

	chunk := []model.ConversationRecord{chunkRecord("u1", "c1", 0)}
	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", chunk)
	require.NoError(t, err)

	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", chunk)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateKey))

	got, err := f.service.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ProcessedRecords, "失败的分片不推进进度")
	assert.Equal(t, model.JobStatusProcessing, got.Status, "是否标记失败由调用方决定")
}

func TestUpdateJobStatus(t *testing.T) {
	f := newIngestFixture(t)

	job, err := f.service.CreateJob("dataset.jsonl", 10)
	require.NoError(t, err)

	// 非法状态
	_, err = f.service.UpdateJobStatus(job.ID, "exploded", nil, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	processed := 10
	got, err := f.service.UpdateJobStatus(job.ID, model.JobStatusCompleted, &processed, "")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 10, got.ProcessedRecords)

	// 终态不可再变更
	_, err = f.service.UpdateJobStatus(job.ID, model.JobStatusProcessing, nil, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFailStaleJobs(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob("dataset.jsonl", 2)
	require.NoError(t, err)
	_, err = f.service.SubmitChunk(ctx, job.ID, "dataset.jsonl", []model.ConversationRecord{
		chunkRecord("u1", "c1", 0),
	})
	require.NoError(t, err)

	// 模拟任务停止推进
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, f.db.Model(&model.IngestionJob{}).Where("id = ?", job.ID).
		UpdateColumn("updated_at", past).Error)

	failed, err := f.service.FailStaleJobs(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	got, err := f.service.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)

	// 幂等：再次清扫不命中任何任务
	failed, err = f.service.FailStaleJobs(30 * time.Minute)
	require.NoError(t, err)
	assert.Zero(t, failed)
}
