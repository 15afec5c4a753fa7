package upload

import (
	"context"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/candidate"
)

// TextExtractor pulls plain text out of a PDF
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// AnalysisDispatcher starts the asynchronous analysis for a candidate
type AnalysisDispatcher interface {
	Dispatch(ctx context.Context, accountID kernel.AccountID, cand *candidate.Candidate) (*analysis.DispatchResult, error)
}
