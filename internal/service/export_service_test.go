package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/pkg/spreadsheet"
	"github.com/forma-labs/corsi-admin-api/pkg/storage"
)

type mockExportParticipantRepo struct {
	participants []models.ParticipantDetail
	gotFilter    models.ParticipantFilter
}

func (m *mockExportParticipantRepo) List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, int, error) {
	m.gotFilter = filter
	return m.participants, len(m.participants), nil
}

type mockExportCourseRepo struct {
	course *models.CourseDetail
}

func (m *mockExportCourseRepo) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	return m.course, nil
}

type mockExportLessonRepo struct {
	lessons []models.Lesson
}

func (m *mockExportLessonRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	return m.lessons, nil
}

type mockExportLinkRepo struct {
	enrolled []models.ParticipantDetail
}

func (m *mockExportLinkRepo) ListByCourse(ctx context.Context, courseID string) ([]models.ParticipantDetail, error) {
	return m.enrolled, nil
}

type mockFileStorage struct {
	saved map[string][]byte
}

func (m *mockFileStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStorage) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }
func (m *mockFileStorage) Delete(filename string) error           { return nil }
func (m *mockFileStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newTestExportService(participants *mockExportParticipantRepo, courses *mockExportCourseRepo, lessons *mockExportLessonRepo, links *mockExportLinkRepo, store *mockFileStorage) *ExportService {
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(participants, courses, lessons, links, store, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil)
}

func TestTemplateCarriesImportableHeaders(t *testing.T) {
	svc := newTestExportService(&mockExportParticipantRepo{}, &mockExportCourseRepo{}, &mockExportLessonRepo{}, &mockExportLinkRepo{}, &mockFileStorage{})

	workbook, err := svc.Template()
	require.NoError(t, err)

	rows, err := spreadsheet.ReadTable("template.xlsx", workbook)
	require.NoError(t, err)
	assert.Empty(t, rows, "template has a header row only")

	// Every column the row parser understands must be offered by the
	// template, otherwise users can never find out a field exists.
	recognized := []string{
		headerFirstName, headerLastName, headerTaxCode, headerBirthplace,
		headerBirthDate, headerUsername, headerPassword, headerMobile,
		headerEducation, headerLaborAgreement, headerContractType,
		headerJobTitle, headerHireYear, headerProtected,
		headerCompanyName, headerCompanyVAT, headerCompanyAddress,
		headerCompanyTown, headerCompanyPostal, headerCompanyProvince,
		headerCompanyPhone, headerCompanyEmail, headerCompanyContact,
		headerCompanyATECO, headerCompanySector,
	}
	offered := make(map[string]bool, len(participantHeaders))
	for _, h := range participantHeaders {
		offered[strings.TrimSuffix(h, "*")] = true
	}
	for _, h := range recognized {
		assert.Truef(t, offered[h], "column %q missing from the template header set", h)
	}
}

func TestParticipantsWorkbookRoundTripsThroughImporter(t *testing.T) {
	birthDate := time.Date(1985, time.March, 15, 0, 0, 0, 0, time.UTC)
	company := "Acme Srl"
	repo := &mockExportParticipantRepo{participants: []models.ParticipantDetail{
		{
			Participant: models.Participant{
				FirstName:         "Mario",
				LastName:          "Rossi",
				TaxCode:           "RSSMRA85C15H501X",
				BirthDate:         &birthDate,
				Username:          "mrossi",
				JobTitle:          "Operaio",
				ProtectedCategory: true,
			},
			CompanyName: &company,
		},
	}}
	svc := newTestExportService(repo, &mockExportCourseRepo{}, &mockExportLessonRepo{}, &mockExportLinkRepo{}, &mockFileStorage{})

	workbook, err := svc.ParticipantsWorkbook(context.Background(), models.ParticipantFilter{})
	require.NoError(t, err)

	// Pagination is forced wide open so the export never truncates.
	assert.Equal(t, 1, repo.gotFilter.Page)
	assert.Equal(t, 10000, repo.gotFilter.PageSize)

	rows, err := spreadsheet.ReadTable("partecipanti.xlsx", workbook)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	draft, err := parseRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "Mario", draft.FirstName)
	assert.Equal(t, "Rossi", draft.LastName)
	assert.Equal(t, "RSSMRA85C15H501X", draft.TaxCode)
	assert.Equal(t, "1985-03-15", draft.BirthDateRaw)
	assert.Equal(t, "mrossi", draft.Username)
	assert.Empty(t, draft.Password, "credentials never round-trip through exports")
	assert.Equal(t, "Operaio", draft.JobTitle)
	assert.True(t, draft.ProtectedCategory)
	require.NotNil(t, draft.Company)
	assert.Equal(t, "Acme Srl", draft.Company.Name)
}

func TestGenerateRegisterCSV(t *testing.T) {
	company := "Acme Srl"
	store := &mockFileStorage{}
	svc := newTestExportService(
		&mockExportParticipantRepo{},
		&mockExportCourseRepo{course: &models.CourseDetail{Course: models.Course{ID: "course-1", Title: "Sicurezza Base"}}},
		&mockExportLessonRepo{lessons: []models.Lesson{
			{Date: time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC), StartTime: "09:00", EndTime: "13:00", Room: "Aula 2"},
			{Date: time.Date(2024, time.May, 7, 0, 0, 0, 0, time.UTC), StartTime: "09:00", EndTime: "13:00", Room: "Aula 2"},
		}},
		&mockExportLinkRepo{enrolled: []models.ParticipantDetail{
			{Participant: models.Participant{FirstName: "Mario", LastName: "Rossi"}, CompanyName: &company},
		}},
		store,
	)

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRegister,
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/export/"))
	assert.NotEmpty(t, result.Token)

	require.Len(t, store.saved, 1)
	var content string
	for _, data := range store.saved {
		content = string(data)
	}
	// One row per lesson day per enrolled participant, signature left blank.
	assert.Contains(t, content, "Data")
	assert.Contains(t, content, "Firma")
	assert.Contains(t, content, "2024-05-06")
	assert.Contains(t, content, "2024-05-07")
	assert.Contains(t, content, "Rossi Mario")
	assert.Contains(t, content, "Acme Srl")
}

func TestGenerateRegisterRequiresCourse(t *testing.T) {
	svc := newTestExportService(&mockExportParticipantRepo{}, &mockExportCourseRepo{}, &mockExportLessonRepo{}, &mockExportLinkRepo{}, &mockFileStorage{})

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRegister,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a course")
}

func TestGenerateRejectsUnknownFormat(t *testing.T) {
	svc := newTestExportService(&mockExportParticipantRepo{}, &mockExportCourseRepo{}, &mockExportLessonRepo{}, &mockExportLinkRepo{}, &mockFileStorage{})

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeParticipants,
		Params: models.ReportJobParams{Format: models.ReportFormat("docx")},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestGeneratedTokenParsesBack(t *testing.T) {
	store := &mockFileStorage{}
	svc := newTestExportService(
		&mockExportParticipantRepo{},
		&mockExportCourseRepo{},
		&mockExportLessonRepo{},
		&mockExportLinkRepo{},
		store,
	)

	job := &models.ReportJob{
		ID:     "job-42",
		Type:   models.ReportTypeParticipants,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, expiresAt, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)
	assert.Equal(t, result.RelativePath, relPath)
	assert.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "all", sanitizeFilename(""))
	assert.Equal(t, "corso_base", sanitizeFilename("corso base"))
	assert.Equal(t, "a-b", sanitizeFilename("a/b"))
}
