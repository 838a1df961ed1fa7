package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/pkg/dates"
	"github.com/forma-labs/corsi-admin-api/pkg/spreadsheet"
)

// Spreadsheet column headers recognized by the row parser. Required columns
// are marked with a trailing asterisk in the distributed template, so lookups
// try both the starred and the plain form.
const (
	headerFirstName      = "Nome"
	headerLastName       = "Cognome"
	headerTaxCode        = "Codice Fiscale"
	headerBirthplace     = "Luogo di Nascita"
	headerBirthDate      = "Data di Nascita"
	headerUsername       = "Username"
	headerPassword       = "Password"
	headerMobile         = "Cellulare"
	headerEducation      = "Titolo di Studio"
	headerLaborAgreement = "CCNL"
	headerContractType   = "Tipo Contratto"
	headerJobTitle       = "Mansione"
	headerHireYear       = "Anno Assunzione"
	headerProtected      = "Categoria Protetta"

	headerCompanyName     = "Ragione Sociale Azienda"
	headerCompanyVAT      = "P.IVA Azienda"
	headerCompanyAddress  = "Indirizzo Azienda"
	headerCompanyTown     = "Comune Azienda"
	headerCompanyPostal   = "CAP Azienda"
	headerCompanyProvince = "Provincia Azienda"
	headerCompanyPhone    = "Telefono Azienda"
	headerCompanyEmail    = "Email Azienda"
	headerCompanyContact  = "Referente Azienda"
	headerCompanyATECO    = "Codice ATECO"
	headerCompanySector   = "Macrosettore"
)

type importParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
}

type importLinkRepository interface {
	Link(ctx context.Context, link *models.CourseParticipant) error
}

type companyResolver interface {
	Resolve(ctx context.Context, draft models.CompanyDraft) (id string, created bool, err error)
}

type dateNormalizer interface {
	Normalize(value interface{}) (time.Time, error)
}

// ImportService turns spreadsheet rows into persisted participants. Rows are
// processed strictly in input order and a failing row never aborts the run.
type ImportService struct {
	participants importParticipantRepository
	links        importLinkRepository
	resolver     companyResolver
	normalizer   dateNormalizer
	logger       *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(
	participants importParticipantRepository,
	links importLinkRepository,
	resolver companyResolver,
	normalizer dateNormalizer,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		participants: participants,
		links:        links,
		resolver:     resolver,
		normalizer:   normalizer,
		logger:       logger,
	}
}

// cell reads a column trying the starred header first, then the plain one.
func cell(row spreadsheet.Row, header string) string {
	return row.Value(header+"*", header)
}

var protectedCategoryValues = map[string]bool{
	"si":   true,
	"sì":   true,
	"x":    true,
	"true": true,
	"1":    true,
	"yes":  true,
}

// parseRow maps one spreadsheet row onto a draft. First and last name are the
// only hard requirements; everything else is carried as found.
func parseRow(row spreadsheet.Row) (*models.ParticipantDraft, error) {
	firstName := cell(row, headerFirstName)
	lastName := cell(row, headerLastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("row %d: missing required first or last name", row.Number)
	}

	draft := &models.ParticipantDraft{
		FirstName:         firstName,
		LastName:          lastName,
		TaxCode:           strings.ToUpper(cell(row, headerTaxCode)),
		Birthplace:        cell(row, headerBirthplace),
		BirthDateRaw:      cell(row, headerBirthDate),
		Username:          cell(row, headerUsername),
		Password:          cell(row, headerPassword),
		Mobile:            cell(row, headerMobile),
		EducationLevel:    cell(row, headerEducation),
		LaborAgreement:    cell(row, headerLaborAgreement),
		ContractType:      cell(row, headerContractType),
		JobTitle:          cell(row, headerJobTitle),
		HireYear:          cell(row, headerHireYear),
		ProtectedCategory: protectedCategoryValues[strings.ToLower(cell(row, headerProtected))],
	}

	if name := cell(row, headerCompanyName); name != "" {
		draft.Company = &models.CompanyDraft{
			Name:          name,
			VATNumber:     cell(row, headerCompanyVAT),
			Address:       cell(row, headerCompanyAddress),
			Municipality:  cell(row, headerCompanyTown),
			PostalCode:    cell(row, headerCompanyPostal),
			Province:      cell(row, headerCompanyProvince),
			Phone:         cell(row, headerCompanyPhone),
			Email:         cell(row, headerCompanyEmail),
			ContactPerson: cell(row, headerCompanyContact),
			ATECOCode:     cell(row, headerCompanyATECO),
			MacroSector:   cell(row, headerCompanySector),
		}
	}

	return draft, nil
}

// Import processes rows in order, resolving company associations and
// normalizing birth dates before persisting each participant. actorID tags
// created records; a non-empty courseID additionally enrolls each imported
// participant into that course.
func (s *ImportService) Import(ctx context.Context, rows []spreadsheet.Row, actorID, courseID string) *models.ImportOutcome {
	outcome := &models.ImportOutcome{Messages: []string{}}

	for _, row := range rows {
		draft, err := parseRow(row)
		if err != nil {
			outcome.Errors++
			outcome.Messages = append(outcome.Messages, err.Error())
			continue
		}

		var birthDate *time.Time
		if draft.BirthDateRaw != "" {
			parsed, err := s.normalizer.Normalize(draft.BirthDateRaw)
			if err != nil {
				outcome.DateErrors++
				if errors.Is(err, dates.ErrUnrecognized) {
					outcome.Messages = append(outcome.Messages, fmt.Sprintf("row %d: unrecognized birth date %q", row.Number, draft.BirthDateRaw))
				} else {
					outcome.Messages = append(outcome.Messages, fmt.Sprintf("row %d: birth date: %v", row.Number, err))
				}
				continue
			}
			birthDate = &parsed
		}

		var companyID *string
		if draft.Company != nil {
			id, created, err := s.resolver.Resolve(ctx, *draft.Company)
			if err != nil {
				outcome.Errors++
				outcome.Messages = append(outcome.Messages, fmt.Sprintf("row %d: company %q: %v", row.Number, draft.Company.Name, err))
				continue
			}
			if id != "" {
				companyID = &id
				outcome.CompaniesLinked++
				if created {
					outcome.CompaniesCreated++
				}
			}
		}

		participant := &models.Participant{
			FirstName:         draft.FirstName,
			LastName:          draft.LastName,
			TaxCode:           draft.TaxCode,
			Birthplace:        draft.Birthplace,
			BirthDate:         birthDate,
			Username:          draft.Username,
			Password:          draft.Password,
			Mobile:            draft.Mobile,
			EducationLevel:    draft.EducationLevel,
			LaborAgreement:    draft.LaborAgreement,
			ContractType:      draft.ContractType,
			JobTitle:          draft.JobTitle,
			HireYear:          draft.HireYear,
			ProtectedCategory: draft.ProtectedCategory,
			CompanyID:         companyID,
			CreatedBy:         actorID,
		}
		if err := s.participants.Create(ctx, participant); err != nil {
			outcome.Errors++
			outcome.Messages = append(outcome.Messages, fmt.Sprintf("row %d: save participant: %v", row.Number, err))
			continue
		}

		if courseID != "" {
			link := &models.CourseParticipant{CourseID: courseID, ParticipantID: participant.ID}
			if err := s.links.Link(ctx, link); err != nil {
				s.logger.Warn("participant imported but course link failed",
					zap.String("participant_id", participant.ID),
					zap.String("course_id", courseID),
					zap.Error(err))
				outcome.Messages = append(outcome.Messages, fmt.Sprintf("row %d: enroll in course: %v", row.Number, err))
			}
		}

		outcome.Imported++
	}

	s.logger.Info("participant import finished",
		zap.Int("imported", outcome.Imported),
		zap.Int("errors", outcome.Errors),
		zap.Int("date_errors", outcome.DateErrors),
		zap.Int("companies_created", outcome.CompaniesCreated))

	return outcome
}
