package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

// CompanyRepository manages persistence for company records.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs a CompanyRepository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

const companyColumns = `id, name, vat_number, address, municipality, postal_code, province, phone, email, contact_person, ateco_code, macro_sector, created_at, updated_at`

// List returns companies matching the provided filters.
func (r *CompanyRepository) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error) {
	base := "FROM companies WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Province != "" {
		conditions = append(conditions, fmt.Sprintf("province = $%d", len(args)+1))
		args = append(args, filter.Province)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(vat_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"name":       true,
		"province":   true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", companyColumns, base, sortBy, order, size, offset)

	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}
	return companies, total, nil
}

// FindByID fetches a company by ID.
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*models.Company, error) {
	query := fmt.Sprintf("SELECT %s FROM companies WHERE id = $1", companyColumns)
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// FindByName fetches a company whose legal name exactly equals the given
// name, as stored. Returns sql.ErrNoRows when absent.
func (r *CompanyRepository) FindByName(ctx context.Context, name string) (*models.Company, error) {
	query := fmt.Sprintf("SELECT %s FROM companies WHERE name = $1 LIMIT 1", companyColumns)
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, name); err != nil {
		return nil, err
	}
	return &company, nil
}

// Create inserts a new company record. The insert is a no-op when a company
// with the same legal name already exists; the caller detects that case via
// the returned inserted flag and re-reads the winner.
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) (bool, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now
	const query = `INSERT INTO companies (id, name, vat_number, address, municipality, postal_code, province, phone, email, contact_person, ateco_code, macro_sector, created_at, updated_at)
        VALUES (:id, :name, :vat_number, :address, :municipality, :postal_code, :province, :phone, :email, :contact_person, :ateco_code, :macro_sector, :created_at, :updated_at)
        ON CONFLICT (name) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, company)
	if err != nil {
		return false, fmt.Errorf("create company: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create company result: %w", err)
	}
	return affected > 0, nil
}

// Update modifies an existing company.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now().UTC()
	const query = `UPDATE companies SET name = :name, vat_number = :vat_number, address = :address, municipality = :municipality,
        postal_code = :postal_code, province = :province, phone = :phone, email = :email, contact_person = :contact_person,
        ateco_code = :ateco_code, macro_sector = :macro_sector, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// Delete removes a company record.
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	return nil
}

// HasParticipants reports whether any participant still references the company.
func (r *CompanyRepository) HasParticipants(ctx context.Context, id string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM participants WHERE company_id = $1 LIMIT 1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check company references: %w", err)
	}
	return true, nil
}
