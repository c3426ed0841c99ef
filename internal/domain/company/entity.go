package company

import "time"

type Company struct {
	ID          int64
	CompanyName string
	City        string
	Address     string
	PostalCode  string
	State       string
	Phone       string
	Email       string
	Website     string
	Description string
	Industry    string
	LegalForm   string

	IsActive      bool
	IsDuplicate   bool
	DuplicateOfID *int64

	ExtraData map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Columns lists the persisted field names the worker may write. Anything a
// scraper produces outside this set is dropped before the upsert.
var Columns = map[string]struct{}{
	"company_name": {},
	"city":         {},
	"address":      {},
	"postal_code":  {},
	"state":        {},
	"phone":        {},
	"email":        {},
	"website":      {},
	"description":  {},
	"industry":     {},
	"legal_form":   {},
	"extra_data":   {},
}

func IsColumn(field string) bool {
	_, ok := Columns[field]
	return ok
}

type DuplicateCandidate struct {
	ID                int64
	CompanyAID        int64
	CompanyBID        int64
	NameSimilarity    float64
	AddressSimilarity float64
	PhoneSimilarity   float64
	WebsiteSimilarity float64
	OverallSimilarity float64
	Status            string
	CreatedAt         time.Time
}
