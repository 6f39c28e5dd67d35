package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/observability"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// ErrAssistantUnavailable is returned by Complete when every provider failed.
var ErrAssistantUnavailable = errors.New("ai providers unavailable")

const (
	summaryFallback     = "Summary unavailable."
	studentChatFallback = "I'm currently experiencing high traffic. Please try again shortly."
	teacherChatFallback = "AI Service unavailable"
	vivaFeedbackDefault = "Good attempt."
	vivaFeedbackOffline = "AI evaluation unavailable. Answer recorded."
	maxVivaQuestions    = 5
	maxProgressHistory  = 5
)

var (
	resumeFallback = []string{
		"Developed a full-stack application.",
		"Implemented robust API endpoints.",
	}
	tasksFallback = []string{
		"Setup Environment",
		"Design Database",
		"Implement API",
		"Build Frontend",
	}
	vivaFallback = []string{
		"Can you explain the core architecture of your project?",
		"What were the major technical challenges you faced?",
		"How does your database schema support the features?",
		"What security measures have you implemented?",
		"How would you scale this application?",
	}
)

// AssistantService answers the project assistant tasks. Every task except
// Complete has a deterministic fallback when the providers are down.
type AssistantService interface {
	Complete(ctx context.Context, req dto.CompletionRequest) (dto.CompletionResponse, error)
	Summarize(ctx context.Context, req dto.SummaryRequest) (dto.SummaryResponse, error)
	ResumePoints(ctx context.Context, req dto.ResumePointsRequest) (dto.ListResponse, error)
	ProjectTasks(ctx context.Context, req dto.ProjectTasksRequest) (dto.ListResponse, error)
	VivaQuestions(ctx context.Context, req dto.VivaQuestionsRequest) (dto.ListResponse, error)
	EvaluateViva(ctx context.Context, req dto.VivaEvaluationRequest) (dto.VivaEvaluationResponse, error)
	AnalyzeProgress(ctx context.Context, req dto.ProgressRequest) (dto.ProgressResponse, error)
	Chat(ctx context.Context, req dto.ChatRequest) (dto.ChatResponse, error)
}

type assistantService struct {
	fast      Completer
	quality   Completer
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAssistantService constructs the assistant. fast serves student-facing and
// bulk tasks, quality serves grading and teacher-facing tasks.
func NewAssistantService(fast, quality Completer, validate *validator.Validate, logger zerolog.Logger) AssistantService {
	if quality == nil {
		quality = fast
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &assistantService{
		fast:      fast,
		quality:   quality,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assistant_service").Logger(),
	}
}

func (s *assistantService) clean(value string) string {
	return plainText(s.sanitizer, value)
}

func (s *assistantService) fallback(task string, err error) {
	observability.AssistantFallbacks().WithLabelValues(task).Inc()
	if err != nil {
		s.logger.Warn().Err(err).Str("task", task).Msg("assistant task fell back to default answer")
		return
	}
	s.logger.Warn().Str("task", task).Msg("assistant response unusable, using default answer")
}

func (s *assistantService) Complete(ctx context.Context, req dto.CompletionRequest) (dto.CompletionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CompletionResponse{}, err
	}

	completer := s.fast
	if req.Priority == dto.PriorityQuality {
		completer = s.quality
	}

	text, err := completer.Complete(ctx, clampPrompt(req.Prompt), ai.CompletionOptions{
		System:     req.System,
		ExpectJSON: req.ExpectJSON,
	})
	if err != nil {
		return dto.CompletionResponse{}, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	response := dto.CompletionResponse{Text: text}
	if req.ExpectJSON {
		if raw, ok := ai.ExtractJSON(text); ok {
			response.JSON = raw
		}
	}
	return response, nil
}

func (s *assistantService) Summarize(ctx context.Context, req dto.SummaryRequest) (dto.SummaryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SummaryResponse{}, err
	}

	prompt := fmt.Sprintf(`Summarize the following text in 2-3 plain sentences. Do not add a preamble.

%s`, s.clean(req.Text))

	text, err := s.fast.Complete(ctx, clampPrompt(prompt), ai.CompletionOptions{})
	if err != nil || strings.TrimSpace(text) == "" {
		s.fallback("summary", err)
		return dto.SummaryResponse{Summary: summaryFallback, Fallback: true}, nil
	}
	return dto.SummaryResponse{Summary: strings.TrimSpace(text)}, nil
}

func (s *assistantService) ResumePoints(ctx context.Context, req dto.ResumePointsRequest) (dto.ListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ListResponse{}, err
	}

	prompt := fmt.Sprintf(`Write 3 professional resume bullet points (STAR method) for:
Project: %s
Summary: %s
Tech Stack/Tasks: %s

Output ONLY a JSON list of strings.`, s.clean(req.Title), s.clean(req.Abstract), s.clean(req.Tasks))

	return s.generateList(ctx, s.fast, "resume_points", prompt, 0, resumeFallback), nil
}

func (s *assistantService) ProjectTasks(ctx context.Context, req dto.ProjectTasksRequest) (dto.ListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ListResponse{}, err
	}

	prompt := fmt.Sprintf(`Create 8 technical Kanban tasks for: %s
Abstract: %s
Output ONLY a JSON list of strings.`, s.clean(req.Title), s.clean(req.Abstract))

	return s.generateList(ctx, s.fast, "project_tasks", prompt, 0, tasksFallback), nil
}

func (s *assistantService) VivaQuestions(ctx context.Context, req dto.VivaQuestionsRequest) (dto.ListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ListResponse{}, err
	}

	history := "None"
	if len(req.ProgressHistory) > 0 {
		entries := req.ProgressHistory
		if len(entries) > maxProgressHistory {
			entries = entries[:maxProgressHistory]
		}
		cleaned := make([]string, 0, len(entries))
		for _, entry := range entries {
			cleaned = append(cleaned, s.clean(entry))
		}
		history = strings.Join(cleaned, "\n- ")
	}

	prompt := fmt.Sprintf(`Generate 5 technical viva voce questions for:
Project: "%s"
Abstract: "%s"
Current Progress: %d%%

Recent Progress Updates:
- %s

Task:
Generate questions that verify the work mentioned in the Progress Updates and the Abstract.
If they say they implemented the database, ask about schema/normalization.
If they say they built the API, ask about endpoints/security.

Output ONLY a JSON list of strings:
["Question 1?", "Question 2?", ...]`, s.clean(req.Title), s.clean(req.Abstract), req.ProgressPercentage, history)

	return s.generateList(ctx, s.quality, "viva_questions", prompt, maxVivaQuestions, vivaFallback), nil
}

func (s *assistantService) EvaluateViva(ctx context.Context, req dto.VivaEvaluationRequest) (dto.VivaEvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VivaEvaluationResponse{}, err
	}

	prompt := fmt.Sprintf(`Evaluate this viva answer.
Context (Abstract): "%s"
Question: "%s"
Student Answer: "%s"

Output JSON:
{
    "score": <0-10>,
    "feedback": "<Concise, constructive feedback>"
}`, s.clean(req.Abstract), s.clean(req.Question), s.clean(req.Answer))

	text, err := s.quality.Complete(ctx, clampPrompt(prompt), ai.CompletionOptions{ExpectJSON: true})
	var payload map[string]interface{}
	if err != nil || !ai.ExtractInto(text, &payload) {
		s.fallback("viva_evaluation", err)
		return dto.VivaEvaluationResponse{Score: neutralScore, Feedback: vivaFeedbackOffline, Fallback: true}, nil
	}

	feedback := stringFromJSON(payload["feedback"])
	if feedback == "" {
		feedback = vivaFeedbackDefault
	}
	return dto.VivaEvaluationResponse{
		Score:    intFromJSON(payload["score"], neutralScore, 0, 10),
		Feedback: feedback,
	}, nil
}

func (s *assistantService) AnalyzeProgress(ctx context.Context, req dto.ProgressRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgressResponse{}, err
	}

	update := s.clean(req.Update)
	prompt := fmt.Sprintf(`Analyze this progress log for a software project.
Project Abstract: "%s"
Log Entry: "%s"

Estimate the TOTAL project completion percentage (0-100) based on standard SDLC phases (Requirements -> Design -> Dev -> Test -> Deploy).
Output ONLY JSON: { "percentage": <int> }`, s.clean(req.Abstract), update)

	text, err := s.fast.Complete(ctx, clampPrompt(prompt), ai.CompletionOptions{ExpectJSON: true})
	var payload map[string]interface{}
	if err == nil && ai.ExtractInto(text, &payload) {
		if _, ok := numberFromJSON(payload["percentage"]); ok {
			return dto.ProgressResponse{Percentage: intFromJSON(payload["percentage"], 0, 0, 100)}, nil
		}
	}

	s.fallback("progress", err)
	return dto.ProgressResponse{Percentage: estimateProgress(update), Fallback: true}, nil
}

// estimateProgress is the keyword heuristic used when no provider answers.
func estimateProgress(update string) int {
	lower := strings.ToLower(update)
	switch {
	case strings.Contains(lower, "completed"), strings.Contains(lower, "final"):
		return 90
	case strings.Contains(lower, "testing"):
		return 75
	case strings.Contains(lower, "implemented"):
		return 50
	case strings.Contains(lower, "designed"):
		return 30
	default:
		return 10
	}
}

func (s *assistantService) Chat(ctx context.Context, req dto.ChatRequest) (dto.ChatResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatResponse{}, err
	}

	completer := s.fast
	fallbackReply := studentChatFallback
	var prompt string

	if req.Audience == dto.AudienceTeacher {
		completer = s.quality
		fallbackReply = teacherChatFallback
		prompt = fmt.Sprintf(`Act as an intelligent Teaching Assistant analyzing a student project.

=== PROJECT RECORDS ===
%s

=== TEACHER'S QUESTION ===
"%s"

INSTRUCTIONS:
1. Answer only from the PROJECT RECORDS. If the records contradict each other, point out the discrepancy.
2. Use Markdown tables for lists of scores, viva results or issues.
3. Be concise and start directly with the answer.

Return standard Markdown. Do NOT use JSON.`, s.clean(req.Context), s.clean(req.Message))
	} else {
		prompt = fmt.Sprintf(`You are a helpful Project Guide Assistant.
Context Info:
%s

User Query: %s

Instructions:
1. If the project status is 'Completed', you can still discuss it, answer questions about its architecture, or help with future improvements.
2. If the user asks about the team, look at the Context Info.
3. Answer concisely and helpfully.`, s.clean(req.Context), s.clean(req.Message))
	}

	text, err := completer.Complete(ctx, clampPrompt(prompt), ai.CompletionOptions{})
	if err != nil || strings.TrimSpace(text) == "" {
		s.fallback("chat", err)
		return dto.ChatResponse{Reply: fallbackReply, Fallback: true}, nil
	}
	return dto.ChatResponse{Reply: strings.TrimSpace(text)}, nil
}

func (s *assistantService) generateList(ctx context.Context, completer Completer, task, prompt string, limit int, fallback []string) dto.ListResponse {
	text, err := completer.Complete(ctx, clampPrompt(prompt), ai.CompletionOptions{ExpectJSON: true})
	if err == nil {
		var raw interface{}
		if ai.ExtractInto(text, &raw) {
			if items := stringListFromJSON(listFromJSON(raw)); len(items) > 0 {
				if limit > 0 && len(items) > limit {
					items = items[:limit]
				}
				return dto.ListResponse{Items: items}
			}
		}
	}

	s.fallback(task, err)
	items := make([]string, len(fallback))
	copy(items, fallback)
	return dto.ListResponse{Items: items, Fallback: true}
}

// listFromJSON returns the value itself when it is a list, or the first list
// field of an object. JSON-mode providers wrap lists in an object.
func listFromJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if list, ok := v[key].([]interface{}); ok {
				return list
			}
		}
	}
	return nil
}
