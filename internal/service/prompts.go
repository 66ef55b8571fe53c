package service

// 行为信号分类使用的提示词。要求模型只返回 JSON，不带任何解释。

const classifySystemPrompt = `You are a behavioral analysis system. You rate a user's conversational behavior from transcripts of their conversations with an AI assistant.

You MUST return valid JSON and nothing else. No markdown, no explanation, just the JSON object.`

const classifyUserPromptTemplate = `Analyze the following transcript and rate the user (not the assistant) on six fixed behavioral dimensions. Base every rating ONLY on evidence present in the transcript.

## Transcript
%s

## Instructions
Rate each dimension on a 1-10 scale and return this exact JSON structure:
{
  "scores": [
    {
      "dimension": "<one of: patience, technical_depth, frustration_tolerance, verbosity, politeness, engagement_level>",
      "score": <1-10>,
      "confidence": <0.0-1.0>,
      "evidence_summary": "<brief quote or description from the transcript>"
    }
  ]
}

Include exactly one entry per dimension:
- patience: 1=very impatient, 10=very patient
- technical_depth: 1=layperson, 10=highly technical
- frustration_tolerance: 1=escalates instantly, 10=tolerates setbacks calmly
- verbosity: 1=very terse, 10=very verbose
- politeness: 1=rude, 10=very courteous
- engagement_level: 1=disengaged, 10=deeply engaged`
