package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type participantRepository interface {
	List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ParticipantDetail, error)
	ExistsByTaxCode(ctx context.Context, taxCode string, excludeID string) (bool, error)
	Create(ctx context.Context, participant *models.Participant) error
	Update(ctx context.Context, participant *models.Participant) error
	Delete(ctx context.Context, id string) error
}

// ParticipantRequest holds payload for creating and updating participants.
type ParticipantRequest struct {
	FirstName         string     `json:"first_name" validate:"required"`
	LastName          string     `json:"last_name" validate:"required"`
	TaxCode           string     `json:"tax_code"`
	Birthplace        string     `json:"birthplace"`
	BirthDate         *time.Time `json:"birth_date"`
	Username          string     `json:"username"`
	Password          string     `json:"password"`
	Mobile            string     `json:"mobile"`
	EducationLevel    string     `json:"education_level"`
	LaborAgreement    string     `json:"labor_agreement"`
	ContractType      string     `json:"contract_type"`
	JobTitle          string     `json:"job_title"`
	HireYear          string     `json:"hire_year"`
	ProtectedCategory bool       `json:"protected_category"`
	CompanyID         *string    `json:"company_id"`
}

// ParticipantService handles participant use-cases.
type ParticipantService struct {
	repo      participantRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParticipantService constructs the participant service.
func NewParticipantService(repo participantRepository, validate *validator.Validate, logger *zap.Logger) *ParticipantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantService{repo: repo, validator: validate, logger: logger}
}

// List returns participants and pagination metadata.
func (s *ParticipantService) List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, *models.Pagination, error) {
	participants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
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
	return participants, pagination, nil
}

// Get returns detailed participant information.
func (s *ParticipantService) Get(ctx context.Context, id string) (*models.ParticipantDetail, error) {
	participant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	return participant, nil
}

// Create registers a new participant.
func (s *ParticipantService) Create(ctx context.Context, req ParticipantRequest, actorID string) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	if req.TaxCode != "" {
		exists, err := s.repo.ExistsByTaxCode(ctx, req.TaxCode, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate tax code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tax code already used")
		}
	}
	participant := req.toModel()
	participant.CreatedBy = actorID
	if err := s.repo.Create(ctx, participant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create participant")
	}
	return participant, nil
}

// Update modifies an existing participant record.
func (s *ParticipantService) Update(ctx context.Context, id string, req ParticipantRequest) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if req.TaxCode != "" {
		exists, err := s.repo.ExistsByTaxCode(ctx, req.TaxCode, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate tax code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tax code already used")
		}
	}
	participant := req.toModel()
	participant.ID = detail.ID
	participant.CreatedBy = detail.CreatedBy
	participant.CreatedAt = detail.CreatedAt
	if err := s.repo.Update(ctx, participant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update participant")
	}
	return participant, nil
}

// Delete removes a participant together with their course enrollments.
func (s *ParticipantService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete participant")
	}
	return nil
}

func (r ParticipantRequest) toModel() *models.Participant {
	return &models.Participant{
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		TaxCode:           r.TaxCode,
		Birthplace:        r.Birthplace,
		BirthDate:         r.BirthDate,
		Username:          r.Username,
		Password:          r.Password,
		Mobile:            r.Mobile,
		EducationLevel:    r.EducationLevel,
		LaborAgreement:    r.LaborAgreement,
		ContractType:      r.ContractType,
		JobTitle:          r.JobTitle,
		HireYear:          r.HireYear,
		ProtectedCategory: r.ProtectedCategory,
		CompanyID:         r.CompanyID,
	}
}
