package handler_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/handler"
	"github.com/noah-isme/gema-proposal-api/internal/service"
)

type mockAssistantService struct {
	completeErr error
	lastChat    dto.ChatRequest
}

func (m *mockAssistantService) Complete(_ context.Context, req dto.CompletionRequest) (dto.CompletionResponse, error) {
	if m.completeErr != nil {
		return dto.CompletionResponse{}, m.completeErr
	}
	return dto.CompletionResponse{Text: "echo: " + req.Prompt}, nil
}

func (m *mockAssistantService) Summarize(_ context.Context, _ dto.SummaryRequest) (dto.SummaryResponse, error) {
	return dto.SummaryResponse{Summary: "Summary unavailable.", Fallback: true}, nil
}

func (m *mockAssistantService) ResumePoints(_ context.Context, _ dto.ResumePointsRequest) (dto.ListResponse, error) {
	return dto.ListResponse{Items: []string{"Built it"}}, nil
}

func (m *mockAssistantService) ProjectTasks(_ context.Context, _ dto.ProjectTasksRequest) (dto.ListResponse, error) {
	return dto.ListResponse{Items: []string{"Design schema"}}, nil
}

func (m *mockAssistantService) VivaQuestions(_ context.Context, req dto.VivaQuestionsRequest) (dto.ListResponse, error) {
	return dto.ListResponse{}, validator.New().Struct(req)
}

func (m *mockAssistantService) EvaluateViva(_ context.Context, _ dto.VivaEvaluationRequest) (dto.VivaEvaluationResponse, error) {
	return dto.VivaEvaluationResponse{Score: 7, Feedback: "Good attempt."}, nil
}

func (m *mockAssistantService) AnalyzeProgress(_ context.Context, _ dto.ProgressRequest) (dto.ProgressResponse, error) {
	return dto.ProgressResponse{Percentage: 50}, nil
}

func (m *mockAssistantService) Chat(_ context.Context, req dto.ChatRequest) (dto.ChatResponse, error) {
	m.lastChat = req
	return dto.ChatResponse{Reply: "hello"}, nil
}

func newAssistantApp(svc service.AssistantService) *fiber.App {
	app := fiber.New()
	handler.NewAssistantHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/ai"))
	return app
}

func TestAssistantHandler_CompleteSuccess(t *testing.T) {
	app := newAssistantApp(&mockAssistantService{})

	resp := postJSON(t, app, "/api/v1/ai/complete", dto.CompletionRequest{Prompt: "ping"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.CompletionResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "echo: ping", response.Data.Text)
}

func TestAssistantHandler_CompleteUnavailable(t *testing.T) {
	app := newAssistantApp(&mockAssistantService{completeErr: fmt.Errorf("%w: groq rate limited", service.ErrAssistantUnavailable)})

	resp := postJSON(t, app, "/api/v1/ai/complete", dto.CompletionRequest{Prompt: "ping"})
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestAssistantHandler_TaskRoutes(t *testing.T) {
	svc := &mockAssistantService{}
	app := newAssistantApp(svc)

	cases := []struct {
		path    string
		payload interface{}
		message string
	}{
		{"/api/v1/ai/summary", dto.SummaryRequest{Text: "long"}, "summary generated"},
		{"/api/v1/ai/resume-points", dto.ResumePointsRequest{Title: "Library"}, "resume points generated"},
		{"/api/v1/ai/tasks", dto.ProjectTasksRequest{Title: "Library"}, "tasks generated"},
		{"/api/v1/ai/viva/evaluate", dto.VivaEvaluationRequest{Question: "Why?", Answer: "Because."}, "viva evaluation generated"},
		{"/api/v1/ai/progress", dto.ProgressRequest{Update: "implemented login"}, "progress estimate generated"},
		{"/api/v1/ai/chat", dto.ChatRequest{Message: "Hi", Audience: dto.AudienceTeacher}, "chat reply generated"},
	}

	for _, tc := range cases {
		resp := postJSON(t, app, tc.path, tc.payload)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, tc.path)

		var response struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		decodeResponse(t, resp, &response)
		require.True(t, response.Success, tc.path)
		require.Equal(t, tc.message, response.Message)
	}

	require.Equal(t, dto.AudienceTeacher, svc.lastChat.Audience)
}

func TestAssistantHandler_TaskValidationError(t *testing.T) {
	app := newAssistantApp(&mockAssistantService{})

	resp := postJSON(t, app, "/api/v1/ai/viva/questions", map[string]interface{}{"progress_percentage": 140})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
