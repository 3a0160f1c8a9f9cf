package mapping

import (
	"testing"
)

// testRecords is the shared fixture. SID-002 and UNA-002 carry the same
// confidence so ranking tie-breaks are observable.
func testRecords() []MappingRecord {
	return []MappingRecord{
		{
			Code:                     "AYU-001",
			Term:                     "Kasa (Cough)",
			Category:                 CategoryAyurveda,
			ChapterName:              "Respiratory System Disorders",
			TargetCodePrimary:        "CA23",
			TargetDescriptionPrimary: "Cough",
			Confidence:               0.95,
		},
		{
			Code:                     "AYU-002",
			Term:                     "Shwasa (Asthma)",
			Category:                 CategoryAyurveda,
			ChapterName:              "Respiratory System Disorders",
			TargetCodePrimary:        "CA23.0",
			TargetDescriptionPrimary: "Asthma",
			Confidence:               0.93,
		},
		{
			Code:                     "AYU-003",
			Term:                     "Jwara (Fever)",
			Category:                 CategoryAyurveda,
			ChapterName:              "General Symptoms",
			TargetCodePrimary:        "MG26",
			TargetDescriptionPrimary: "Fever of other or unknown origin",
			Confidence:               0.91,
		},
		{
			Code:                     "SID-002",
			Term:                     "Irumal (Cough)",
			Category:                 CategorySiddha,
			ChapterName:              "Respiratory System Disorders",
			TargetCodePrimary:        "CA23",
			TargetDescriptionPrimary: "Cough",
			Confidence:               0.85,
		},
		{
			Code:                     "UNA-002",
			Term:                     "Sual (Cough)",
			Category:                 CategoryUnani,
			ChapterName:              "Respiratory System Disorders",
			TargetCodePrimary:        "CA23",
			TargetDescriptionPrimary: "Cough",
			Confidence:               0.85,
		},
		{
			Code:       "SID-003",
			Term:       "Vettai Noi",
			Category:   CategorySiddha,
			Confidence: 0,
		},
	}
}

func mustDescriptor(t *testing.T, p SearchParams) *QueryDescriptor {
	t.Helper()
	d, err := Normalize(p, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return d
}

func TestExecuteQuery_TokenMatchesAcrossFields(t *testing.T) {
	d := mustDescriptor(t, SearchParams{Query: "cough"})
	page := executeQuery(testRecords(), d)

	// "cough" appears in terms and in target descriptions.
	if page.Total != 3 {
		t.Fatalf("expected 3 matches, got %d", page.Total)
	}
	for _, r := range page.Records {
		if r.Code == "AYU-002" || r.Code == "AYU-003" {
			t.Errorf("unexpected match %s", r.Code)
		}
	}
}

func TestExecuteQuery_TokensCompoundWithAND(t *testing.T) {
	d := mustDescriptor(t, SearchParams{Query: "cough irumal"})
	page := executeQuery(testRecords(), d)

	if page.Total != 1 {
		t.Fatalf("expected 1 match, got %d", page.Total)
	}
	if page.Records[0].Code != "SID-002" {
		t.Errorf("expected SID-002, got %s", page.Records[0].Code)
	}
}

func TestExecuteQuery_MatchesCodeSubstring(t *testing.T) {
	d := mustDescriptor(t, SearchParams{Query: "ayu-00"})
	page := executeQuery(testRecords(), d)
	if page.Total != 3 {
		t.Errorf("expected 3 code-prefix matches, got %d", page.Total)
	}
}

func TestExecuteQuery_RankingOrder(t *testing.T) {
	d := mustDescriptor(t, SearchParams{})
	page := executeQuery(testRecords(), d)

	want := []string{"AYU-001", "AYU-002", "AYU-003", "SID-002", "UNA-002", "SID-003"}
	if page.Total != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), page.Total)
	}
	for i, code := range want {
		if page.Records[i].Code != code {
			t.Errorf("position %d: expected %s, got %s", i, code, page.Records[i].Code)
		}
	}
}

func TestExecuteQuery_TotalCountsBeforePagination(t *testing.T) {
	d := mustDescriptor(t, SearchParams{Page: 2, Limit: 2})
	page := executeQuery(testRecords(), d)

	if page.Total != 6 {
		t.Errorf("expected total 6 regardless of page, got %d", page.Total)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records on page 2, got %d", len(page.Records))
	}
	if page.Records[0].Code != "AYU-003" || page.Records[1].Code != "SID-002" {
		t.Errorf("unexpected page 2 contents: %s, %s", page.Records[0].Code, page.Records[1].Code)
	}
}

func TestExecuteQuery_PagePastEndIsEmpty(t *testing.T) {
	d := mustDescriptor(t, SearchParams{Page: 50, Limit: 20})
	page := executeQuery(testRecords(), d)

	if len(page.Records) != 0 {
		t.Errorf("expected empty page past the end, got %d records", len(page.Records))
	}
	if page.Total != 6 {
		t.Errorf("expected total 6, got %d", page.Total)
	}
}

func TestExecuteQuery_Filters(t *testing.T) {
	t.Run("category", func(t *testing.T) {
		d := mustDescriptor(t, SearchParams{Category: CategorySiddha})
		page := executeQuery(testRecords(), d)
		if page.Total != 2 {
			t.Errorf("expected 2 Siddha records, got %d", page.Total)
		}
	})

	t.Run("chapter", func(t *testing.T) {
		d := mustDescriptor(t, SearchParams{Chapter: "General Symptoms"})
		page := executeQuery(testRecords(), d)
		if page.Total != 1 || page.Records[0].Code != "AYU-003" {
			t.Errorf("expected only AYU-003, got total %d", page.Total)
		}
	})

	t.Run("confidence range", func(t *testing.T) {
		d := mustDescriptor(t, SearchParams{MinConfidence: floatPtr(0.85), MaxConfidence: floatPtr(0.93)})
		page := executeQuery(testRecords(), d)
		if page.Total != 4 {
			t.Errorf("expected 4 records in [0.85, 0.93], got %d", page.Total)
		}
	})

	t.Run("filters combine with tokens", func(t *testing.T) {
		d := mustDescriptor(t, SearchParams{Query: "cough", Category: CategoryAyurveda})
		page := executeQuery(testRecords(), d)
		if page.Total != 1 || page.Records[0].Code != "AYU-001" {
			t.Errorf("expected only AYU-001, got total %d", page.Total)
		}
	})
}

func TestComputeStats(t *testing.T) {
	stats := computeStats(testRecords())

	if stats.TotalRecords != 6 {
		t.Errorf("expected 6 records, got %d", stats.TotalRecords)
	}

	sum := 0.95 + 0.93 + 0.91 + 0.85 + 0.85 + 0
	want := sum / 6
	if diff := stats.AvgConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected avg %f, got %f", want, stats.AvgConfidence)
	}

	wantCats := []string{CategoryAyurveda, CategorySiddha, CategoryUnani}
	if len(stats.Categories) != len(wantCats) {
		t.Fatalf("expected %d categories, got %v", len(wantCats), stats.Categories)
	}
	for i, c := range wantCats {
		if stats.Categories[i] != c {
			t.Errorf("category %d: expected %s, got %s", i, c, stats.Categories[i])
		}
	}

	// SID-003 has no chapter; blanks stay out of the facet list.
	if len(stats.Chapters) != 2 {
		t.Errorf("expected 2 chapters, got %v", stats.Chapters)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := computeStats(nil)
	if stats.TotalRecords != 0 || stats.AvgConfidence != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if len(stats.Categories) != 0 || len(stats.Chapters) != 0 {
		t.Errorf("expected empty facets, got %+v", stats)
	}
}
