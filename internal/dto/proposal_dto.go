package dto

import (
	"strings"
	"time"
)

// DecisionStatus is the final originality verdict.
type DecisionStatus string

const (
	DecisionOK      DecisionStatus = "OK"
	DecisionBlocked DecisionStatus = "BLOCKED"
)

// Fingerprint is the structured logic summary of a proposal.
type Fingerprint struct {
	ProblemStatement string `json:"problem_statement"`
	InputSources     string `json:"input_sources"`
	CoreProcess      string `json:"core_process"`
	ExpectedOutput   string `json:"expected_output"`
	PrimaryTech      string `json:"primary_tech"`
}

// IsZero reports whether every field is blank.
func (f *Fingerprint) IsZero() bool {
	if f == nil {
		return true
	}
	return strings.TrimSpace(f.ProblemStatement+f.InputSources+f.CoreProcess+f.ExpectedOutput+f.PrimaryTech) == ""
}

// CandidateSubmission is one prior proposal compared against a new submission.
type CandidateSubmission struct {
	ID              uint         `json:"id,omitempty"`
	Title           string       `json:"title" validate:"max=255"`
	AbstractText    string       `json:"abstract_text" validate:"max=20000"`
	StudentUsername string       `json:"student_username,omitempty" validate:"max=128"`
	Fingerprint     *Fingerprint `json:"fingerprint,omitempty"`
}

// SimilaritySummary exposes the numeric layer behind a decision.
// SemanticBest is nil when no semantic signal was available.
type SimilaritySummary struct {
	SemanticBest *float64 `json:"semantic_best"`
	LexicalBest  float64  `json:"lexical_best"`
	CombinedBest float64  `json:"combined_best"`
}

// Decision is the result of one originality evaluation.
type Decision struct {
	Status            DecisionStatus       `json:"status"`
	PlagiarismScore   int                  `json:"plagiarism_score"`
	Relevance         int                  `json:"relevance"`
	Feasibility       int                  `json:"feasibility"`
	Innovation        int                  `json:"innovation"`
	MostSimilar       *CandidateSubmission `json:"most_similar"`
	SuggestedFeatures []string             `json:"suggested_features"`
	FullReport        string               `json:"full_report"`
	Fingerprint       *Fingerprint         `json:"fingerprint"`
	Similarity        SimilaritySummary    `json:"similarity"`
	EvaluatedAt       time.Time            `json:"evaluated_at"`
}

// EvaluateProposalRequest asks for an originality decision. When
// ExistingSubmissions is omitted the stored corpus is used.
type EvaluateProposalRequest struct {
	Title               string                `json:"title" validate:"required,max=255"`
	Abstract            string                `json:"abstract" validate:"required,max=20000"`
	ExistingSubmissions []CandidateSubmission `json:"existing_submissions" validate:"omitempty,max=1000,dive"`
}

// RegisterProposalRequest adds an accepted proposal to the corpus.
type RegisterProposalRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	Abstract        string `json:"abstract" validate:"required,max=20000"`
	StudentUsername string `json:"student_username" validate:"omitempty,max=128"`
}

// ProposalResponse is a stored corpus entry.
type ProposalResponse struct {
	ID              uint         `json:"id"`
	Title           string       `json:"title"`
	AbstractText    string       `json:"abstract_text"`
	StudentUsername string       `json:"student_username,omitempty"`
	Fingerprint     *Fingerprint `json:"fingerprint,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// PaginationMeta describes list pagination.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ProposalListResponse is a page of the corpus.
type ProposalListResponse struct {
	Items      []ProposalResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// DecisionEvent is broadcast after every evaluation.
type DecisionEvent struct {
	ID            string         `json:"id"`
	Source        string         `json:"source"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Title         string         `json:"title"`
	Status        DecisionStatus `json:"status"`
	Score         int            `json:"plagiarism_score"`
	MostSimilarID uint           `json:"most_similar_id,omitempty"`
	EvaluatedAt   time.Time      `json:"evaluated_at"`
}
