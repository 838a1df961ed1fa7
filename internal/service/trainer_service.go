package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type trainerRepository interface {
	List(ctx context.Context, filter models.TrainerFilter) ([]models.Trainer, int, error)
	FindByID(ctx context.Context, id string) (*models.Trainer, error)
	Create(ctx context.Context, trainer *models.Trainer) error
	Update(ctx context.Context, trainer *models.Trainer) error
	Deactivate(ctx context.Context, id string) error
}

// TrainerRequest holds payload for creating and updating trainers.
type TrainerRequest struct {
	FullName       string `json:"full_name" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
	Active         bool   `json:"active"`
}

// TrainerService handles trainer use-cases.
type TrainerService struct {
	repo      trainerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTrainerService constructs the trainer service.
func NewTrainerService(repo trainerRepository, validate *validator.Validate, logger *zap.Logger) *TrainerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainerService{repo: repo, validator: validate, logger: logger}
}

// List returns trainers and pagination metadata.
func (s *TrainerService) List(ctx context.Context, filter models.TrainerFilter) ([]models.Trainer, *models.Pagination, error) {
	trainers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return trainers, pagination, nil
}

// Get returns a single trainer.
func (s *TrainerService) Get(ctx context.Context, id string) (*models.Trainer, error) {
	trainer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	return trainer, nil
}

// Create registers a new trainer.
func (s *TrainerService) Create(ctx context.Context, req TrainerRequest) (*models.Trainer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trainer payload")
	}
	trainer := &models.Trainer{
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		Active:         true,
	}
	if err := s.repo.Create(ctx, trainer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create trainer")
	}
	return trainer, nil
}

// Update modifies an existing trainer.
func (s *TrainerService) Update(ctx context.Context, id string, req TrainerRequest) (*models.Trainer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trainer payload")
	}
	trainer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	trainer.FullName = req.FullName
	trainer.Email = req.Email
	trainer.Phone = req.Phone
	trainer.Specialization = req.Specialization
	trainer.Active = req.Active
	if err := s.repo.Update(ctx, trainer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trainer")
	}
	return trainer, nil
}

// Deactivate marks a trainer inactive.
func (s *TrainerService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate trainer")
	}
	return nil
}
