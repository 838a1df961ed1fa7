package models

import "time"

// Company represents a legal entity a participant may belong to. The legal
// name is the natural deduplication key used during import.
type Company struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	VATNumber     string    `db:"vat_number" json:"vat_number"`
	Address       string    `db:"address" json:"address"`
	Municipality  string    `db:"municipality" json:"municipality"`
	PostalCode    string    `db:"postal_code" json:"postal_code"`
	Province      string    `db:"province" json:"province"`
	Phone         string    `db:"phone" json:"phone"`
	Email         string    `db:"email" json:"email"`
	ContactPerson string    `db:"contact_person" json:"contact_person"`
	ATECOCode     string    `db:"ateco_code" json:"ateco_code"`
	MacroSector   string    `db:"macro_sector" json:"macro_sector"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CompanyFilter encapsulates search parameters for listing companies.
type CompanyFilter struct {
	Search    string
	Province  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
