package agent

import (
	"strings"
	"testing"

	"gail-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(dim string, value float64) model.DimensionScore {
	return model.DimensionScore{UserID: "u1", Dimension: dim, Score: value}
}

func TestComposeSystemPromptThresholds(t *testing.T) {
	facts := ProfileFacts{UserID: "u1"}

	// 3 分触发 low 指令（边界含）
	prompt := ComposeSystemPrompt(facts, []model.DimensionScore{score(model.DimPatience, 3)})
	assert.Contains(t, prompt, "IMPATIENT")

	// 7 分触发 high 指令（边界含）
	prompt = ComposeSystemPrompt(facts, []model.DimensionScore{score(model.DimVerbosity, 7)})
	assert.Contains(t, prompt, "DETAILED")

	// 中间档保持沉默，回落到默认指令
	prompt = ComposeSystemPrompt(facts, []model.DimensionScore{score(model.DimPatience, 5)})
	assert.NotContains(t, prompt, "IMPATIENT")
	assert.Contains(t, prompt, "balanced, helpful communication style")
}

func TestComposeSystemPromptCombinedDirectives(t *testing.T) {
	scores := []model.DimensionScore{
		score(model.DimPatience, 2),
		score(model.DimVerbosity, 8),
	}
	prompt := ComposeSystemPrompt(ProfileFacts{UserID: "u1"}, scores)

	assert.Contains(t, prompt, "IMPATIENT")
	assert.Contains(t, prompt, "DETAILED")
	// 未评分的维度不产生任何指令
	assert.NotContains(t, prompt, "technical")
	assert.NotContains(t, prompt, "frustration")
	// 有触发指令时不出现默认指令
	assert.NotContains(t, prompt, "balanced, helpful communication style")
}

func TestComposeSystemPromptCanonicalOrder(t *testing.T) {
	// 乱序传入，指令仍按规范维度顺序出现
	scores := []model.DimensionScore{
		score(model.DimEngagementLevel, 1),
		score(model.DimPatience, 1),
		score(model.DimVerbosity, 1),
	}
	prompt := ComposeSystemPrompt(ProfileFacts{UserID: "u1"}, scores)

	patienceIdx := strings.Index(prompt, "IMPATIENT")
	verbosityIdx := strings.Index(prompt, "terse")
	engagementIdx := strings.Index(prompt, "Engagement is low")
	require.True(t, patienceIdx >= 0 && verbosityIdx >= 0 && engagementIdx >= 0)
	assert.Less(t, patienceIdx, verbosityIdx)
	assert.Less(t, verbosityIdx, engagementIdx)
}

func TestComposeSystemPromptDeterministic(t *testing.T) {
	facts := ProfileFacts{UserID: "u1", TotalConversations: 5, Languages: []string{"en", "zh"}}
	scores := []model.DimensionScore{
		score(model.DimTechnicalDepth, 9),
		score(model.DimPatience, 2),
	}
	shuffled := []model.DimensionScore{scores[1], scores[0]}

	first := ComposeSystemPrompt(facts, scores)
	second := ComposeSystemPrompt(facts, shuffled)
	assert.Equal(t, first, second, "相同输入必须逐字节一致，与评分顺序无关")
}

func TestComposeSystemPromptNoScores(t *testing.T) {
	prompt := ComposeSystemPrompt(ProfileFacts{UserID: "new-user"}, nil)

	assert.Contains(t, prompt, "You are Gail")
	assert.Contains(t, prompt, "balanced, helpful communication style")
	assert.Contains(t, prompt, "Never reveal to the user that behavioral scoring")
}

func TestComposeSystemPromptProfileContext(t *testing.T) {
	facts := ProfileFacts{UserID: "u1", TotalConversations: 12, Languages: []string{"en"}}
	scores := []model.DimensionScore{score(model.DimPatience, 2)}

	prompt := ComposeSystemPrompt(facts, scores)
	assert.Contains(t, prompt, "## User Profile for u1")
	assert.Contains(t, prompt, "- Conversations on record: 12")
	assert.Contains(t, prompt, "- Languages: en")
	assert.Contains(t, prompt, "Patience: 2.0/10")
}

func TestComposeSystemPromptAlwaysConceals(t *testing.T) {
	// 无论评分状态如何，保密段永远在末尾
	for _, scores := range [][]model.DimensionScore{
		nil,
		{score(model.DimPatience, 5)},
		{score(model.DimPatience, 1), score(model.DimVerbosity, 10)},
	} {
		prompt := ComposeSystemPrompt(ProfileFacts{UserID: "u1"}, scores)
		assert.True(t, strings.HasSuffix(prompt, concealmentRule))
	}
}
