package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

// CourseParticipantRepository manages the course-to-participant link table.
type CourseParticipantRepository struct {
	db *sqlx.DB
}

// NewCourseParticipantRepository constructs the repository.
func NewCourseParticipantRepository(db *sqlx.DB) *CourseParticipantRepository {
	return &CourseParticipantRepository{db: db}
}

// ListByCourse returns the participants linked to a course.
func (r *CourseParticipantRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ParticipantDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_participants cp
        JOIN participants p ON p.id = cp.participant_id
        LEFT JOIN companies c ON c.id = p.company_id
        WHERE cp.course_id = $1 ORDER BY p.last_name ASC, p.first_name ASC`, participantColumns)
	var participants []models.ParticipantDetail
	if err := r.db.SelectContext(ctx, &participants, query, courseID); err != nil {
		return nil, fmt.Errorf("list course participants: %w", err)
	}
	return participants, nil
}

// Exists reports whether the participant is already linked to the course.
func (r *CourseParticipantRepository) Exists(ctx context.Context, courseID, participantID string) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM course_participants WHERE course_id = $1 AND participant_id = $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &exists, query, courseID, participantID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course link: %w", err)
	}
	return true, nil
}

// Link attaches a participant to a course. Linking twice is a no-op.
func (r *CourseParticipantRepository) Link(ctx context.Context, link *models.CourseParticipant) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.JoinedAt.IsZero() {
		link.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_participants (id, course_id, participant_id, joined_at)
        VALUES (:id, :course_id, :participant_id, :joined_at)
        ON CONFLICT (course_id, participant_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("link participant: %w", err)
	}
	return nil
}

// Unlink removes the link only; the participant record is untouched.
func (r *CourseParticipantRepository) Unlink(ctx context.Context, courseID, participantID string) error {
	const query = `DELETE FROM course_participants WHERE course_id = $1 AND participant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, participantID); err != nil {
		return fmt.Errorf("unlink participant: %w", err)
	}
	return nil
}
