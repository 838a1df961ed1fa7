package models

// ImportOutcome aggregates the result of one participant import run. It is
// constructed fresh per invocation and never persisted. Messages preserve
// strict input-row order.
type ImportOutcome struct {
	Imported         int      `json:"imported"`
	Errors           int      `json:"errors"`
	DateErrors       int      `json:"date_errors"`
	CompaniesCreated int      `json:"companies_created"`
	CompaniesLinked  int      `json:"companies_linked"`
	Messages         []string `json:"messages"`
}

// CompanyDraft holds company attributes extracted from an import row before
// resolution against the store.
type CompanyDraft struct {
	Name          string
	VATNumber     string
	Address       string
	Municipality  string
	PostalCode    string
	Province      string
	Phone         string
	Email         string
	ContactPerson string
	ATECOCode     string
	MacroSector   string
}

// ParticipantDraft is the intermediate, not-yet-persisted representation of
// a participant produced by the row parser. BirthDateRaw carries the cell
// value as found; normalization happens in a later stage.
type ParticipantDraft struct {
	FirstName         string
	LastName          string
	TaxCode           string
	Birthplace        string
	BirthDateRaw      string
	Username          string
	Password          string
	Mobile            string
	EducationLevel    string
	LaborAgreement    string
	ContractType      string
	JobTitle          string
	HireYear          string
	ProtectedCategory bool
	Company           *CompanyDraft
}
