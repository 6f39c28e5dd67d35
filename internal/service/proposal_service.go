package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/middleware"
	"github.com/noah-isme/gema-proposal-api/internal/models"
	"github.com/noah-isme/gema-proposal-api/internal/repository"
)

// ErrProposalNotFound is returned when a corpus entry does not exist.
var ErrProposalNotFound = errors.New("proposal not found")

const (
	defaultCorpusLimit = 500
	defaultPageSize    = 20
	maxPageSize        = 100
)

// ProposalService is the caller-side boundary around the originality engine:
// it sanitises input, resolves the comparison corpus and announces decisions.
type ProposalService interface {
	Evaluate(ctx context.Context, req dto.EvaluateProposalRequest) (dto.Decision, error)
	Register(ctx context.Context, req dto.RegisterProposalRequest) (dto.ProposalResponse, error)
	Get(ctx context.Context, id uint) (dto.ProposalResponse, error)
	List(ctx context.Context, page, pageSize int, search string) (dto.ProposalListResponse, error)
}

type proposalService struct {
	repo         repository.ProposalRepository
	engine       OriginalityService
	fingerprints FingerprintService
	publisher    DecisionPublisher
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	corpusLimit  int
	nodeID       string
	logger       zerolog.Logger
}

// NewProposalService constructs the proposal service. fingerprints and publisher may be nil.
func NewProposalService(repo repository.ProposalRepository, engine OriginalityService, fingerprints FingerprintService, publisher DecisionPublisher, validate *validator.Validate, corpusLimit int, logger zerolog.Logger) ProposalService {
	if corpusLimit <= 0 {
		corpusLimit = defaultCorpusLimit
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &proposalService{
		repo:         repo,
		engine:       engine,
		fingerprints: fingerprints,
		publisher:    publisher,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		corpusLimit:  corpusLimit,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "proposal_service").Logger(),
	}
}

func (s *proposalService) Evaluate(ctx context.Context, req dto.EvaluateProposalRequest) (dto.Decision, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.Decision{}, err
	}

	title := plainText(s.sanitizer, req.Title)
	abstract := plainText(s.sanitizer, req.Abstract)

	candidates := make([]dto.CandidateSubmission, 0, len(req.ExistingSubmissions))
	if req.ExistingSubmissions == nil {
		stored, err := s.repo.ListCorpus(ctx, s.corpusLimit)
		if err != nil {
			return dto.Decision{}, err
		}
		for _, proposal := range stored {
			candidates = append(candidates, candidateFromModel(proposal))
		}
	} else {
		for _, candidate := range req.ExistingSubmissions {
			candidate.Title = plainText(s.sanitizer, candidate.Title)
			candidate.AbstractText = plainText(s.sanitizer, candidate.AbstractText)
			candidates = append(candidates, candidate)
		}
	}

	decision := s.engine.Evaluate(ctx, title, abstract, candidates)
	s.announce(ctx, title, decision)
	return decision, nil
}

func (s *proposalService) announce(ctx context.Context, title string, decision dto.Decision) {
	if s.publisher == nil {
		return
	}
	event := dto.DecisionEvent{
		ID:            uuid.NewString(),
		Source:        s.nodeID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Title:         title,
		Status:        decision.Status,
		Score:         decision.PlagiarismScore,
		EvaluatedAt:   decision.EvaluatedAt,
	}
	if decision.MostSimilar != nil {
		event.MostSimilarID = decision.MostSimilar.ID
	}
	if err := s.publisher.PublishDecision(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish decision event")
	}
}

func (s *proposalService) Register(ctx context.Context, req dto.RegisterProposalRequest) (dto.ProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProposalResponse{}, err
	}

	proposal := models.Proposal{
		Title:           plainText(s.sanitizer, req.Title),
		AbstractText:    plainText(s.sanitizer, req.Abstract),
		StudentUsername: strings.TrimSpace(req.StudentUsername),
	}

	if s.fingerprints != nil {
		if fingerprint, err := s.fingerprints.Extract(ctx, proposal.Title, proposal.AbstractText); err == nil {
			if encoded, err := json.Marshal(fingerprint); err == nil {
				proposal.Fingerprint = datatypes.JSON(encoded)
			}
		} else {
			s.logger.Warn().Err(err).Msg("registering proposal without fingerprint")
		}
	}

	if err := s.repo.Create(ctx, &proposal); err != nil {
		return dto.ProposalResponse{}, err
	}
	return responseFromModel(proposal), nil
}

func (s *proposalService) Get(ctx context.Context, id uint) (dto.ProposalResponse, error) {
	proposal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProposalResponse{}, ErrProposalNotFound
		}
		return dto.ProposalResponse{}, err
	}
	return responseFromModel(proposal), nil
}

func (s *proposalService) List(ctx context.Context, page, pageSize int, search string) (dto.ProposalListResponse, error) {
	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	items, total, err := s.repo.List(ctx, repository.ProposalFilter{Page: page, PageSize: pageSize, Search: search})
	if err != nil {
		return dto.ProposalListResponse{}, err
	}

	responses := make([]dto.ProposalResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, responseFromModel(item))
	}

	return dto.ProposalListResponse{
		Items: responses,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func decodeFingerprint(raw datatypes.JSON) *dto.Fingerprint {
	if len(raw) == 0 {
		return nil
	}
	var fingerprint dto.Fingerprint
	if err := json.Unmarshal(raw, &fingerprint); err != nil || fingerprint.IsZero() {
		return nil
	}
	return &fingerprint
}

func candidateFromModel(proposal models.Proposal) dto.CandidateSubmission {
	return dto.CandidateSubmission{
		ID:              proposal.ID,
		Title:           proposal.Title,
		AbstractText:    proposal.AbstractText,
		StudentUsername: proposal.StudentUsername,
		Fingerprint:     decodeFingerprint(proposal.Fingerprint),
	}
}

func responseFromModel(proposal models.Proposal) dto.ProposalResponse {
	return dto.ProposalResponse{
		ID:              proposal.ID,
		Title:           proposal.Title,
		AbstractText:    proposal.AbstractText,
		StudentUsername: proposal.StudentUsername,
		Fingerprint:     decodeFingerprint(proposal.Fingerprint),
		CreatedAt:       proposal.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}
