package ingest

import (
	"errors"
	"strings"
	"testing"

	"gail-go/internal/apperr"
	"gail-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONL(t *testing.T) {
	input := `{"user_id":"u1","conversation_id":"c1","message_index":0,"role":"user","content":"你好"}

{"user_id":"u1","conversation_id":"c1","message_index":1,"role":"assistant","content":"hello","model":"gpt-4","language":"en"}
`
	records, err := ParseJSONL(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "u1", records[0].UserID)
	assert.Equal(t, "c1", records[0].ConversationID)
	assert.Equal(t, 0, records[0].MessageIndex)
	assert.Equal(t, "gpt-4", records[1].Model)
	assert.Equal(t, "en", records[1].Language)
}

func TestParseJSONLMalformedLineFailsWholeFile(t *testing.T) {
	input := `{"user_id":"u1","conversation_id":"c1","message_index":0,"role":"user","content":"ok"}
{not valid json}
{"user_id":"u1","conversation_id":"c1","message_index":1,"role":"assistant","content":"ok"}`

	records, err := ParseJSONL(strings.NewReader(input))
	assert.Nil(t, records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "第 2 行")
}

func TestParseJSONLMissingRequiredFields(t *testing.T) {
	input := `{"conversation_id":"c1","message_index":0,"role":"user","content":"no user id"}`

	_, err := ParseJSONL(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestParseJSONLEmptyInput(t *testing.T) {
	records, err := ParseJSONL(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSplitRecords(t *testing.T) {
	records := make([]model.ConversationRecord, 7)
	for i := range records {
		records[i] = model.ConversationRecord{
			UserID:         "u1",
			ConversationID: "c1",
			MessageIndex:   i,
			Role:           "user",
		}
	}

	chunks := SplitRecords(records, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)
	// 分片保持原始顺序
	assert.Equal(t, 6, chunks[2][0].MessageIndex)
}

func TestSplitRecordsInvalidChunkSizeFallsBack(t *testing.T) {
	records := make([]model.ConversationRecord, 10)
	chunks := SplitRecords(records, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 10)
}
