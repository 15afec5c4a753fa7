// Package questiongen produces assessment questions for a job posting
// using OpenAI chat completions.
package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/job"
)

// QuestionGenerator implements question generation against the OpenAI API
type QuestionGenerator struct {
	client *openai.Client
	model  string
}

// NewQuestionGenerator creates a new question generator
func NewQuestionGenerator(apiKey, model string) *QuestionGenerator {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)
	if model == "" {
		model = "gpt-4o"
	}

	return &QuestionGenerator{
		client: &client,
		model:  model,
	}
}

type questionsPayload struct {
	Questions []struct {
		Question string `json:"question"`
		Category string `json:"category"`
	} `json:"questions"`
}

const systemPrompt = `You are an experienced technical interviewer. You design assessment questions for job openings and return ONLY valid JSON.`

const userPromptTemplate = `Write %d assessment questions for the following job opening. Return ONLY this JSON structure:

{
  "questions": [{
    "question": string (the full question text),
    "category": string (e.g. "technical", "behavioral", "situational")
  }]
}

Mix technical and behavioral questions appropriate for the role. Return ONLY the JSON.

Job title: %s

Job description:
%s`

// GenerateQuestions produces count assessment questions for the job
func (g *QuestionGenerator) GenerateQuestions(ctx context.Context, title kernel.JobTitle, description kernel.JobDescription, count int) ([]job.AssessmentQuestion, error) {
	userPrompt := fmt.Sprintf(userPromptTemplate, count, title, description)

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: g.model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: constant.JSONObject("json_object"),
			},
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New("no response from openai")
	}

	var payload questionsPayload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse questions JSON: %w", err)
	}
	if len(payload.Questions) == 0 {
		return nil, errors.New("model returned no questions")
	}

	questions := make([]job.AssessmentQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		questions = append(questions, job.AssessmentQuestion{
			Question: q.Question,
			Category: q.Category,
		})
	}

	return questions, nil
}
