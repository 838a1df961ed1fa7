package models

import "time"

// Participant represents a person enrolled in zero or more courses.
type Participant struct {
	ID                string     `db:"id" json:"id"`
	FirstName         string     `db:"first_name" json:"first_name"`
	LastName          string     `db:"last_name" json:"last_name"`
	TaxCode           string     `db:"tax_code" json:"tax_code"`
	Birthplace        string     `db:"birthplace" json:"birthplace"`
	BirthDate         *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Username          string     `db:"username" json:"username"`
	Password          string     `db:"password" json:"password"`
	Mobile            string     `db:"mobile" json:"mobile"`
	EducationLevel    string     `db:"education_level" json:"education_level"`
	LaborAgreement    string     `db:"labor_agreement" json:"labor_agreement"`
	ContractType      string     `db:"contract_type" json:"contract_type"`
	JobTitle          string     `db:"job_title" json:"job_title"`
	HireYear          string     `db:"hire_year" json:"hire_year"`
	ProtectedCategory bool       `db:"protected_category" json:"protected_category"`
	CompanyID         *string    `db:"company_id" json:"company_id,omitempty"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ParticipantFilter encapsulates allowed search parameters for listings.
type ParticipantFilter struct {
	Search    string
	CompanyID string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ParticipantDetail contains participant information with company context.
type ParticipantDetail struct {
	Participant
	CompanyName *string `db:"company_name" json:"company_name,omitempty"`
}
