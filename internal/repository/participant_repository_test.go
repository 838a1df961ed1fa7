package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

func newParticipantMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func participantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "tax_code", "birthplace", "birth_date", "username", "password", "mobile",
		"education_level", "labor_agreement", "contract_type", "job_title", "hire_year", "protected_category", "company_id",
		"created_by", "created_at", "updated_at", "company_name"})
}

func TestParticipantRepositoryList(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	rows := participantRows().
		AddRow("p-1", "Mario", "Rossi", "RSSMRA85C15H501X", "Roma", time.Now(), "", "", "",
			"", "", "", "Operaio", "", false, "company-1",
			"admin-1", time.Now(), time.Now(), "Acme Srl")
	mock.ExpectQuery("SELECT .* FROM participants p LEFT JOIN companies c ON c.id = p.company_id WHERE 1=1 ORDER BY p.created_at DESC LIMIT 20 OFFSET 0").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM participants p LEFT JOIN companies c ON c.id = p.company_id WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	participants, total, err := repo.List(context.Background(), models.ParticipantFilter{})
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, participants[0].CompanyName)
	assert.Equal(t, "Acme Srl", *participants[0].CompanyName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryListFiltersByCourse(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("p.id IN (SELECT participant_id FROM course_participants WHERE course_id = $1)")).
		WithArgs("course-1").
		WillReturnRows(participantRows())
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	participants, total, err := repo.List(context.Background(), models.ParticipantFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Empty(t, participants)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectExec("INSERT INTO participants").
		WillReturnResult(sqlmock.NewResult(1, 1))

	participant := &models.Participant{FirstName: "Mario", LastName: "Rossi", CreatedBy: "admin-1"}
	err := repo.Create(context.Background(), participant)
	require.NoError(t, err)
	assert.NotEmpty(t, participant.ID)
	assert.False(t, participant.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryDeleteRemovesLinksFirst(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_participants WHERE participant_id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM participants WHERE id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "p-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryExistsByTaxCode(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM participants WHERE tax_code = $1 LIMIT 1")).
		WithArgs("RSSMRA85C15H501X").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByTaxCode(context.Background(), "RSSMRA85C15H501X", "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParticipantRepositoryExistsByTaxCodeExcludesID(t *testing.T) {
	db, mock, cleanup := newParticipantMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM participants WHERE tax_code = $1 AND id <> $2 LIMIT 1")).
		WithArgs("RSSMRA85C15H501X", "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByTaxCode(context.Background(), "RSSMRA85C15H501X", "p-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
