package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

// TrainerRepository manages persistence for teaching staff.
type TrainerRepository struct {
	db *sqlx.DB
}

// NewTrainerRepository constructs a TrainerRepository.
func NewTrainerRepository(db *sqlx.DB) *TrainerRepository {
	return &TrainerRepository{db: db}
}

// List returns trainers matching the provided filters.
func (r *TrainerRepository) List(ctx context.Context, filter models.TrainerFilter) ([]models.Trainer, int, error) {
	base := "FROM trainers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"full_name":  true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
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

	query := fmt.Sprintf(`SELECT id, full_name, email, phone, specialization, active, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)

	var trainers []models.Trainer
	if err := r.db.SelectContext(ctx, &trainers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainers: %w", err)
	}
	return trainers, total, nil
}

// FindByID fetches a trainer by ID.
func (r *TrainerRepository) FindByID(ctx context.Context, id string) (*models.Trainer, error) {
	const query = `SELECT id, full_name, email, phone, specialization, active, created_at, updated_at FROM trainers WHERE id = $1`
	var trainer models.Trainer
	if err := r.db.GetContext(ctx, &trainer, query, id); err != nil {
		return nil, err
	}
	return &trainer, nil
}

// Create inserts a new trainer record.
func (r *TrainerRepository) Create(ctx context.Context, trainer *models.Trainer) error {
	if trainer.ID == "" {
		trainer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if trainer.CreatedAt.IsZero() {
		trainer.CreatedAt = now
	}
	trainer.UpdatedAt = now
	const query = `INSERT INTO trainers (id, full_name, email, phone, specialization, active, created_at, updated_at)
        VALUES (:id, :full_name, :email, :phone, :specialization, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, trainer); err != nil {
		return fmt.Errorf("create trainer: %w", err)
	}
	return nil
}

// Update modifies an existing trainer.
func (r *TrainerRepository) Update(ctx context.Context, trainer *models.Trainer) error {
	trainer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE trainers SET full_name = :full_name, email = :email, phone = :phone, specialization = :specialization, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, trainer); err != nil {
		return fmt.Errorf("update trainer: %w", err)
	}
	return nil
}

// Deactivate marks a trainer as inactive.
func (r *TrainerRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE trainers SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate trainer: %w", err)
	}
	return nil
}

// ListByCourse returns the trainers assigned to a course.
func (r *TrainerRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Trainer, error) {
	const query = `SELECT t.id, t.full_name, t.email, t.phone, t.specialization, t.active, t.created_at, t.updated_at
        FROM trainers t JOIN course_trainers ct ON ct.trainer_id = t.id WHERE ct.course_id = $1 ORDER BY t.full_name ASC`
	var trainers []models.Trainer
	if err := r.db.SelectContext(ctx, &trainers, query, courseID); err != nil {
		return nil, fmt.Errorf("list course trainers: %w", err)
	}
	return trainers, nil
}

// ReplaceForCourse swaps the trainer assignment set of a course.
func (r *TrainerRepository) ReplaceForCourse(ctx context.Context, courseID string, trainerIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_trainers WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear course trainers: %w", err)
	}
	for _, trainerID := range trainerIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO course_trainers (id, course_id, trainer_id) VALUES ($1, $2, $3)`, uuid.NewString(), courseID, trainerID); err != nil {
			return fmt.Errorf("assign trainer %s: %w", trainerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment tx: %w", err)
	}
	return nil
}
