package repository

import (
	"context"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-proposal-api/internal/models"
)

// ProposalFilter filters corpus list queries.
type ProposalFilter struct {
	Page     int
	PageSize int
	Search   string
}

// ProposalRepository persists the proposal corpus.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	FindByID(ctx context.Context, id uint) (models.Proposal, error)
	List(ctx context.Context, filter ProposalFilter) ([]models.Proposal, int64, error)
	ListCorpus(ctx context.Context, limit int) ([]models.Proposal, error)
	UpdateFingerprint(ctx context.Context, id uint, fingerprint datatypes.JSON) error
}

type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository constructs the repository implementation.
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *proposalRepository) FindByID(ctx context.Context, id uint) (models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.WithContext(ctx).First(&proposal, id).Error; err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

func (r *proposalRepository) List(ctx context.Context, filter ProposalFilter) ([]models.Proposal, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Proposal{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(abstract_text) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var items []models.Proposal
	if err := query.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListCorpus returns the most recent proposals, newest first.
func (r *proposalRepository) ListCorpus(ctx context.Context, limit int) ([]models.Proposal, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.Proposal
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *proposalRepository) UpdateFingerprint(ctx context.Context, id uint, fingerprint datatypes.JSON) error {
	result := r.db.WithContext(ctx).Model(&models.Proposal{}).Where("id = ?", id).Update("fingerprint", fingerprint)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
