package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/pkg/dates"
	"github.com/forma-labs/corsi-admin-api/pkg/export"
	"github.com/forma-labs/corsi-admin-api/pkg/storage"
)

// participantHeaders is the canonical column order shared by the download
// template, the workbook export, and the importer. Keeping import and export
// headers identical makes an exported workbook re-importable as-is.
var participantHeaders = []string{
	headerFirstName + "*",
	headerLastName + "*",
	headerTaxCode,
	headerBirthplace,
	headerBirthDate,
	headerUsername,
	headerPassword,
	headerMobile,
	headerEducation,
	headerLaborAgreement,
	headerContractType,
	headerJobTitle,
	headerHireYear,
	headerProtected,
	headerCompanyName + "*",
	headerCompanyVAT,
	headerCompanyAddress,
	headerCompanyTown,
	headerCompanyPostal,
	headerCompanyProvince,
	headerCompanyPhone,
	headerCompanyEmail,
	headerCompanyContact,
	headerCompanyATECO,
	headerCompanySector,
}

type exportParticipantRepository interface {
	List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, int, error)
}

type exportCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type exportLessonRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type exportLinkRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ParticipantDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files, and
// produces the synchronous participant workbook and empty template downloads.
type ExportService struct {
	participants exportParticipantRepository
	courses      exportCourseRepository
	lessons      exportLessonRepository
	links        exportLinkRepository
	storage      fileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	xlsx         xlsxRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(
	participants exportParticipantRepository,
	courses exportCourseRepository,
	lessons exportLessonRepository,
	links exportLinkRepository,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		participants: participants,
		courses:      courses,
		lessons:      lessons,
		links:        links,
		storage:      store,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		xlsx:         export.NewXLSXExporter(),
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Template returns an empty workbook carrying only the canonical header row.
func (s *ExportService) Template() ([]byte, error) {
	return s.xlsx.Render(export.Dataset{Headers: participantHeaders})
}

// ParticipantsWorkbook renders the filtered participant list as an XLSX
// workbook using the same headers the importer understands.
func (s *ExportService) ParticipantsWorkbook(ctx context.Context, filter models.ParticipantFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 10000
	participants, _, err := s.participants.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load participants for export: %w", err)
	}
	return s.xlsx.Render(export.Dataset{
		Headers: participantHeaders,
		Rows:    participantRows(participants),
	})
}

func participantRows(participants []models.ParticipantDetail) []map[string]string {
	rows := make([]map[string]string, 0, len(participants))
	for _, p := range participants {
		birthDate := ""
		if p.BirthDate != nil {
			birthDate = dates.Canonical(*p.BirthDate)
		}
		protected := ""
		if p.ProtectedCategory {
			protected = "SI"
		}
		companyName := ""
		if p.CompanyName != nil {
			companyName = *p.CompanyName
		}
		// The password column stays blank: credentials are import-only.
		rows = append(rows, map[string]string{
			headerFirstName + "*":   p.FirstName,
			headerLastName + "*":    p.LastName,
			headerTaxCode:           p.TaxCode,
			headerBirthplace:        p.Birthplace,
			headerBirthDate:         birthDate,
			headerUsername:          p.Username,
			headerMobile:            p.Mobile,
			headerEducation:         p.EducationLevel,
			headerLaborAgreement:    p.LaborAgreement,
			headerContractType:      p.ContractType,
			headerJobTitle:          p.JobTitle,
			headerHireYear:          p.HireYear,
			headerProtected:         protected,
			headerCompanyName + "*": companyName,
		})
	}
	return rows
}

// Generate builds the dataset described by the job and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/reports/export/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.CourseID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRegister:
		return s.buildRegisterDataset(ctx, job.Params)
	case models.ReportTypeParticipants:
		return s.buildParticipantsDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildRegisterDataset produces the printable course register: one row per
// lesson day per enrolled participant, with a signature column left blank.
func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.CourseID == "" {
		return export.Dataset{}, "", fmt.Errorf("register report requires a course")
	}
	course, err := s.courses.FindByID(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load course: %w", err)
	}
	lessons, err := s.lessons.ListByCourse(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	enrolled, err := s.links.ListByCourse(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Data", "Orario", "Aula", "Partecipante", "Azienda", "Firma"}
	rows := make([]map[string]string, 0, len(lessons)*len(enrolled))
	for _, lesson := range lessons {
		schedule := lesson.StartTime
		if lesson.EndTime != "" {
			schedule = fmt.Sprintf("%s - %s", lesson.StartTime, lesson.EndTime)
		}
		for _, p := range enrolled {
			companyName := ""
			if p.CompanyName != nil {
				companyName = *p.CompanyName
			}
			rows = append(rows, map[string]string{
				"Data":         dates.Canonical(lesson.Date),
				"Orario":       schedule,
				"Aula":         lesson.Room,
				"Partecipante": fmt.Sprintf("%s %s", p.LastName, p.FirstName),
				"Azienda":      companyName,
				"Firma":        "",
			})
		}
	}

	title := fmt.Sprintf("Registro Presenze %s", course.Title)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildParticipantsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var participants []models.ParticipantDetail
	var err error
	if params.CourseID != "" {
		participants, err = s.links.ListByCourse(ctx, params.CourseID)
	} else {
		participants, _, err = s.participants.List(ctx, models.ParticipantFilter{Page: 1, PageSize: 10000})
	}
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Cognome", "Nome", "Codice Fiscale", "Data di Nascita", "Azienda", "Mansione"}
	rows := make([]map[string]string, 0, len(participants))
	for _, p := range participants {
		birthDate := ""
		if p.BirthDate != nil {
			birthDate = dates.Canonical(*p.BirthDate)
		}
		companyName := ""
		if p.CompanyName != nil {
			companyName = *p.CompanyName
		}
		rows = append(rows, map[string]string{
			"Cognome":         p.LastName,
			"Nome":            p.FirstName,
			"Codice Fiscale":  p.TaxCode,
			"Data di Nascita": birthDate,
			"Azienda":         companyName,
			"Mansione":        p.JobTitle,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Elenco Partecipanti", nil
}
