package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type companyRepository interface {
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error)
	FindByID(ctx context.Context, id string) (*models.Company, error)
	FindByName(ctx context.Context, name string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) (bool, error)
	Update(ctx context.Context, company *models.Company) error
	Delete(ctx context.Context, id string) error
	HasParticipants(ctx context.Context, id string) (bool, error)
}

// CompanyRequest holds payload for creating and updating companies.
type CompanyRequest struct {
	Name          string `json:"name" validate:"required"`
	VATNumber     string `json:"vat_number"`
	Address       string `json:"address"`
	Municipality  string `json:"municipality"`
	PostalCode    string `json:"postal_code"`
	Province      string `json:"province"`
	Phone         string `json:"phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	ContactPerson string `json:"contact_person"`
	ATECOCode     string `json:"ateco_code"`
	MacroSector   string `json:"macro_sector"`
}

// CompanyService handles company use-cases.
type CompanyService struct {
	repo      companyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompanyService constructs the company service.
func NewCompanyService(repo companyRepository, validate *validator.Validate, logger *zap.Logger) *CompanyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{repo: repo, validator: validate, logger: logger}
}

// List returns companies and pagination metadata.
func (s *CompanyService) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, *models.Pagination, error) {
	companies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
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
	return companies, pagination, nil
}

// Get returns a single company.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	return company, nil
}

// Create registers a new company. The legal name is unique.
func (s *CompanyService) Create(ctx context.Context, req CompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	company := req.toModel()
	inserted, err := s.repo.Create(ctx, company)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create company")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "company name already used")
	}
	return company, nil
}

// Update modifies an existing company.
func (s *CompanyService) Update(ctx context.Context, id string, req CompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	if req.Name != existing.Name {
		other, err := s.repo.FindByName(ctx, req.Name)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate company name")
		}
		if other != nil && other.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "company name already used")
		}
	}
	company := req.toModel()
	company.ID = existing.ID
	company.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update company")
	}
	return company, nil
}

// Delete removes a company unless participants still reference it.
func (s *CompanyService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	inUse, err := s.repo.HasParticipants(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check company references")
	}
	if inUse {
		return appErrors.ErrCompanyInUse
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete company")
	}
	return nil
}

func (r CompanyRequest) toModel() *models.Company {
	return &models.Company{
		Name:          r.Name,
		VATNumber:     r.VATNumber,
		Address:       r.Address,
		Municipality:  r.Municipality,
		PostalCode:    r.PostalCode,
		Province:      r.Province,
		Phone:         r.Phone,
		Email:         r.Email,
		ContactPerson: r.ContactPerson,
		ATECOCode:     r.ATECOCode,
		MacroSector:   r.MacroSector,
	}
}
