package mapping

import "time"

// Category values for traditional-medicine systems covered by the NAMASTE
// code set.
const (
	CategoryAyurveda = "Ayurveda"
	CategorySiddha   = "Siddha"
	CategoryUnani    = "Unani"
)

// Categories lists the valid category values in display order.
var Categories = []string{CategoryAyurveda, CategorySiddha, CategoryUnani}

// ValidCategory reports whether s is one of the three known categories.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if s == c {
			return true
		}
	}
	return false
}

// MappingRecord is one NAMASTE-to-ICD-11 terminology mapping. Code is the
// unique key within a record set. A record whose TargetCodePrimary is empty
// is a valid unmapped placeholder.
type MappingRecord struct {
	Code                     string    `db:"code" json:"code"`
	Term                     string    `db:"term" json:"term"`
	Category                 string    `db:"category" json:"category"`
	ChapterName              string    `db:"chapter_name" json:"chapterName"`
	TargetCodePrimary        string    `db:"target_code_primary" json:"targetCodePrimary"`
	TargetDescriptionPrimary string    `db:"target_description_primary" json:"targetDescriptionPrimary"`
	TargetCodeSecondary      string    `db:"target_code_secondary" json:"targetCodeSecondary,omitempty"`
	Confidence               float64   `db:"confidence" json:"confidence"`
	CreatedAt                time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time `db:"updated_at" json:"updatedAt"`
}

// Mapped reports whether the record carries an ICD-11 primary target, as
// opposed to being an unmapped placeholder.
func (r *MappingRecord) Mapped() bool {
	return r.TargetCodePrimary != ""
}

// ResultPage is a ranked, paginated slice of a filtered record set. Total is
// the number of matches before pagination.
type ResultPage struct {
	Records []MappingRecord `json:"mappings"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

// Stats summarises the full unfiltered record set of a store.
type Stats struct {
	TotalRecords  int      `json:"totalRecords"`
	AvgConfidence float64  `json:"avgConfidence"`
	Categories    []string `json:"categories"`
	Chapters      []string `json:"chapters"`
}

// InsertReport describes the outcome of a bulk insert. Rejected codes failed
// on a duplicate key; the rest of the batch is unaffected.
type InsertReport struct {
	InsertedCount int      `json:"insertedCount"`
	Inserted      []string `json:"inserted"`
	Rejected      []string `json:"rejected"`
}
