package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

// ParticipantRepository manages persistence for participant records.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs a ParticipantRepository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `p.id, p.first_name, p.last_name, p.tax_code, p.birthplace, p.birth_date, p.username, p.password, p.mobile,
        p.education_level, p.labor_agreement, p.contract_type, p.job_title, p.hire_year, p.protected_category, p.company_id,
        p.created_by, p.created_at, p.updated_at, c.name AS company_name`

// List returns participants matching the provided filters.
func (r *ParticipantRepository) List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, int, error) {
	base := "FROM participants p LEFT JOIN companies c ON c.id = p.company_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.CompanyID != "" {
		conditions = append(conditions, fmt.Sprintf("p.company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("p.id IN (SELECT participant_id FROM course_participants WHERE course_id = $%d)", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.first_name) LIKE $%d OR LOWER(p.last_name) LIKE $%d OR LOWER(p.tax_code) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"last_name":  "p.last_name",
		"first_name": "p.first_name",
		"tax_code":   "p.tax_code",
		"created_at": "p.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "p.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", participantColumns, base, column, order, size, offset)

	var participants []models.ParticipantDetail
	if err := r.db.SelectContext(ctx, &participants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count participants: %w", err)
	}
	return participants, total, nil
}

// FindByID fetches a participant detail by ID.
func (r *ParticipantRepository) FindByID(ctx context.Context, id string) (*models.ParticipantDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM participants p LEFT JOIN companies c ON c.id = p.company_id WHERE p.id = $1", participantColumns)
	var detail models.ParticipantDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new participant record.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = now
	}
	participant.UpdatedAt = now
	const query = `INSERT INTO participants (id, first_name, last_name, tax_code, birthplace, birth_date, username, password, mobile,
        education_level, labor_agreement, contract_type, job_title, hire_year, protected_category, company_id, created_by, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :tax_code, :birthplace, :birth_date, :username, :password, :mobile,
        :education_level, :labor_agreement, :contract_type, :job_title, :hire_year, :protected_category, :company_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// Update modifies an existing participant.
func (r *ParticipantRepository) Update(ctx context.Context, participant *models.Participant) error {
	participant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE participants SET first_name = :first_name, last_name = :last_name, tax_code = :tax_code, birthplace = :birthplace,
        birth_date = :birth_date, username = :username, password = :password, mobile = :mobile, education_level = :education_level,
        labor_agreement = :labor_agreement, contract_type = :contract_type, job_title = :job_title, hire_year = :hire_year,
        protected_category = :protected_category, company_id = :company_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

// Delete removes a participant and its course links.
func (r *ParticipantRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_participants WHERE participant_id = $1`, id); err != nil {
		return fmt.Errorf("delete participant links: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// ExistsByTaxCode checks whether a participant with the given tax code exists,
// optionally excluding an ID.
func (r *ParticipantRepository) ExistsByTaxCode(ctx context.Context, taxCode string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM participants WHERE tax_code = $1"
	args := []interface{}{taxCode}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check tax code: %w", err)
	}
	return true, nil
}
