package dto

import "encoding/json"

// Completion priorities select the cascade used for a raw completion.
const (
	PriorityFast    = "fast"
	PriorityQuality = "quality"
)

// CompletionRequest is a raw prompt routed through a provider cascade.
type CompletionRequest struct {
	Prompt     string `json:"prompt" validate:"required,max=48000"`
	System     string `json:"system" validate:"max=4000"`
	ExpectJSON bool   `json:"expect_json"`
	Priority   string `json:"priority" validate:"omitempty,oneof=fast quality"`
}

// CompletionResponse carries the provider text and, when requested, the extracted JSON.
type CompletionResponse struct {
	Text string          `json:"text"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// SummaryRequest asks for a short summary of free text.
type SummaryRequest struct {
	Text string `json:"text" validate:"required,max=48000"`
}

// SummaryResponse is the generated summary.
type SummaryResponse struct {
	Summary  string `json:"summary"`
	Fallback bool   `json:"fallback"`
}

// ResumePointsRequest asks for resume bullet points describing a project.
type ResumePointsRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Abstract string `json:"abstract" validate:"max=20000"`
	Tasks    string `json:"tasks" validate:"max=8000"`
}

// ProjectTasksRequest asks for a starter Kanban backlog.
type ProjectTasksRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Abstract string `json:"abstract" validate:"max=20000"`
}

// ListResponse is a generated list of short strings.
type ListResponse struct {
	Items    []string `json:"items"`
	Fallback bool     `json:"fallback"`
}

// VivaQuestionsRequest asks for viva voce questions.
type VivaQuestionsRequest struct {
	Title              string   `json:"title" validate:"required,max=255"`
	Abstract           string   `json:"abstract" validate:"max=20000"`
	ProgressPercentage int      `json:"progress_percentage" validate:"min=0,max=100"`
	ProgressHistory    []string `json:"progress_history" validate:"omitempty,max=50"`
}

// VivaEvaluationRequest asks for a grade on one viva answer.
type VivaEvaluationRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
	Answer   string `json:"answer" validate:"required,max=8000"`
	Abstract string `json:"abstract" validate:"max=20000"`
}

// VivaEvaluationResponse is the graded answer.
type VivaEvaluationResponse struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Fallback bool   `json:"fallback"`
}

// ProgressRequest asks for a completion estimate from a progress log entry.
type ProgressRequest struct {
	Abstract string `json:"abstract" validate:"max=20000"`
	Update   string `json:"update" validate:"required,max=8000"`
}

// ProgressResponse is the estimated completion percentage.
type ProgressResponse struct {
	Percentage int  `json:"percentage"`
	Fallback   bool `json:"fallback"`
}

// Chat audiences.
const (
	AudienceStudent = "student"
	AudienceTeacher = "teacher"
)

// ChatRequest is one assistant conversation turn.
type ChatRequest struct {
	Message  string `json:"message" validate:"required,max=8000"`
	Context  string `json:"context" validate:"max=48000"`
	Audience string `json:"audience" validate:"omitempty,oneof=student teacher"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}
