package candidate

import "github.com/talentsift/sift/pkg/kernel"

// AnalysisResult is what the analysis worker writes back for one CV.
type AnalysisResult struct {
	CVRate          int               `json:"cv_rate"`
	Relevance       RelevanceAnalysis `json:"relevance_analysis"`
	ImprovementTips []ImprovementTip  `json:"improvement_tips"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty"`
	Phone           string            `json:"phone,omitempty"`
}

// UpdateRequest carries the user-editable candidate fields. Nil means
// leave the field unchanged.
type UpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Unlocked *bool   `json:"unlocked,omitempty"`
	Favorite *bool   `json:"favorite,omitempty"`
}

// DeleteRequest names the candidates to remove in one call
type DeleteRequest struct {
	IDs []kernel.CandidateID `json:"ids"`
}

// SignedURLResponse carries a short-lived download link for the raw CV
type SignedURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}
