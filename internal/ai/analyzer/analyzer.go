// Package analyzer scores CV text against a job description using
// OpenAI chat completions in JSON mode.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"

	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/candidate"
)

// CVAnalyzer implements the analysis against the OpenAI API
type CVAnalyzer struct {
	client *openai.Client
	model  string
}

// NewCVAnalyzer creates a new CV analyzer
func NewCVAnalyzer(apiKey, model string) *CVAnalyzer {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)
	if model == "" {
		model = "gpt-4o"
	}

	return &CVAnalyzer{
		client: &client,
		model:  model,
	}
}

// analysisPayload mirrors the JSON structure the model is asked for
type analysisPayload struct {
	CVRate          int                  `json:"cv_rate"`
	MatchingSkills  []string             `json:"matching_skills"`
	MissingSkills   []string             `json:"missing_skills"`
	Summary         string               `json:"summary"`
	ImprovementTips []improvementPayload `json:"improvement_tips"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Phone           string               `json:"phone"`
}

type improvementPayload struct {
	Category string `json:"category"`
	Tip      string `json:"tip"`
}

const systemPrompt = `You are an experienced technical recruiter. You evaluate how well a CV matches a job description and return ONLY valid JSON.`

const userPromptTemplate = `Evaluate the following CV against the job description and return ONLY this JSON structure:

{
  "cv_rate": integer 0-100 (how well the candidate fits the role),
  "matching_skills": string[] (skills from the CV that the job asks for),
  "missing_skills": string[] (skills the job asks for that the CV lacks),
  "summary": string (3-5 sentence assessment of the fit),
  "improvement_tips": [{
    "category": string (e.g. "skills", "experience", "presentation"),
    "tip": string (concrete, actionable advice)
  }],
  "name": string (full name from the CV, empty string if absent),
  "email": string (email from the CV, empty string if absent),
  "phone": string (phone number from the CV, empty string if absent)
}

IMPORTANT:
- cv_rate must reflect concrete evidence in the CV, not the CV's tone
- Do not invent contact details that are not in the CV
- Return ONLY the JSON, no explanatory text

Job title: %s

Job description:
%s

CV text:
%s`

// Analyze scores one CV against one job
func (a *CVAnalyzer) Analyze(ctx context.Context, req analysis.AnalysisRequest) (*candidate.AnalysisResult, error) {
	userPrompt := fmt.Sprintf(userPromptTemplate, req.JobTitle, req.JobDescription, req.CVText)

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: a.model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: constant.JSONObject("json_object"),
			},
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New("no response from openai")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	// Clamp rather than reject; the model occasionally drifts a point
	// outside the range.
	if payload.CVRate < 0 {
		payload.CVRate = 0
	}
	if payload.CVRate > 100 {
		payload.CVRate = 100
	}

	result := &candidate.AnalysisResult{
		CVRate: payload.CVRate,
		Relevance: candidate.RelevanceAnalysis{
			MatchingSkills: payload.MatchingSkills,
			MissingSkills:  payload.MissingSkills,
			Summary:        payload.Summary,
		},
		Name:  payload.Name,
		Email: payload.Email,
		Phone: payload.Phone,
	}
	for _, tip := range payload.ImprovementTips {
		result.ImprovementTips = append(result.ImprovementTips, candidate.ImprovementTip{
			Category: tip.Category,
			Tip:      tip.Tip,
		})
	}

	return result, nil
}
