package mapping

import (
	"sort"
	"strings"

	"github.com/ayushbridge/api/pkg/pagination"
)

// matchesToken reports whether any searchable field of r contains tok as a
// case-insensitive substring. The searchable fields are term, code, primary
// target description, secondary target code and chapter name.
func matchesToken(r *MappingRecord, tok string) bool {
	for _, field := range []string{
		r.Term,
		r.Code,
		r.TargetDescriptionPrimary,
		r.TargetCodeSecondary,
		r.ChapterName,
	} {
		if strings.Contains(strings.ToLower(field), tok) {
			return true
		}
	}
	return false
}

// matches reports whether r satisfies every filter and every token of d.
// Tokens compose with AND semantics; fields within a token with OR.
func matches(r *MappingRecord, d *QueryDescriptor) bool {
	if d.Category != "" && r.Category != d.Category {
		return false
	}
	if d.Chapter != "" && r.ChapterName != d.Chapter {
		return false
	}
	if d.MinConfidence != nil && r.Confidence < *d.MinConfidence {
		return false
	}
	if d.MaxConfidence != nil && r.Confidence > *d.MaxConfidence {
		return false
	}
	for _, tok := range d.Tokens {
		if !matchesToken(r, tok) {
			return false
		}
	}
	return true
}

// rank orders records by confidence descending, ties broken by code
// ascending. Codes are unique within a record set, so the order is total.
func rank(records []MappingRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Confidence != records[j].Confidence {
			return records[i].Confidence > records[j].Confidence
		}
		return records[i].Code < records[j].Code
	})
}

// executeQuery runs a descriptor against an in-memory record set. The file
// and embedded stores share it so their find semantics cannot drift apart.
func executeQuery(records []MappingRecord, d *QueryDescriptor) *ResultPage {
	matched := make([]MappingRecord, 0, len(records))
	for i := range records {
		if matches(&records[i], d) {
			matched = append(matched, records[i])
		}
	}
	rank(matched)

	start, end := pagination.Params{Page: d.Page, Limit: d.Limit}.Slice(len(matched))
	return &ResultPage{
		Records: matched[start:end],
		Total:   len(matched),
		Page:    d.Page,
		Limit:   d.Limit,
	}
}

// computeStats derives summary statistics over a full record set.
func computeStats(records []MappingRecord) *Stats {
	s := &Stats{TotalRecords: len(records)}
	catSet := make(map[string]struct{})
	chapSet := make(map[string]struct{})

	var sum float64
	for i := range records {
		sum += records[i].Confidence
		catSet[records[i].Category] = struct{}{}
		if records[i].ChapterName != "" {
			chapSet[records[i].ChapterName] = struct{}{}
		}
	}
	if len(records) > 0 {
		s.AvgConfidence = sum / float64(len(records))
	}

	s.Categories = sortedKeys(catSet)
	s.Chapters = sortedKeys(chapSet)
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
