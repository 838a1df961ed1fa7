package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

type resolverCompanyRepository interface {
	FindByName(ctx context.Context, name string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) (bool, error)
}

// CompanyResolver deduplicates-or-creates companies referenced by import
// rows. The legal name is the only dedup key: when a company already exists
// its stored details win and the draft's other fields are ignored.
type CompanyResolver struct {
	repo   resolverCompanyRepository
	logger *zap.Logger
}

// NewCompanyResolver constructs a CompanyResolver.
func NewCompanyResolver(repo resolverCompanyRepository, logger *zap.Logger) *CompanyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyResolver{repo: repo, logger: logger}
}

// Resolve returns the identifier of the company matching the draft's legal
// name, creating the record when absent. An empty name means no company
// association and is not an error. The insert relies on the unique name
// constraint, so two concurrent resolutions of the same new name converge
// on a single record: the loser of the insert re-reads the winner.
func (r *CompanyResolver) Resolve(ctx context.Context, draft models.CompanyDraft) (id string, created bool, err error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return "", false, nil
	}

	existing, err := r.repo.FindByName(ctx, name)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("lookup company %q: %w", name, err)
	}

	company := &models.Company{
		Name:          name,
		VATNumber:     draft.VATNumber,
		Address:       draft.Address,
		Municipality:  draft.Municipality,
		PostalCode:    draft.PostalCode,
		Province:      draft.Province,
		Phone:         draft.Phone,
		Email:         draft.Email,
		ContactPerson: draft.ContactPerson,
		ATECOCode:     draft.ATECOCode,
		MacroSector:   draft.MacroSector,
	}
	inserted, err := r.repo.Create(ctx, company)
	if err != nil {
		return "", false, fmt.Errorf("create company %q: %w", name, err)
	}
	if inserted {
		r.logger.Debug("company created during import", zap.String("name", name))
		return company.ID, true, nil
	}

	// Lost the unique-name race; read back the winner.
	winner, err := r.repo.FindByName(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("reload company %q: %w", name, err)
	}
	return winner.ID, false, nil
}
