package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayushbridge/api/internal/domain/audit"
)

// captureSink records every audit event it receives.
type captureSink struct {
	events []audit.Event
	err    error
}

func (s *captureSink) Record(ctx context.Context, ev audit.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func newTestService(t *testing.T) (*Service, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	svc := NewService(seededMemStore(t), sink, zerolog.Nop(), 0)
	return svc, sink
}

func TestService_Search_EmitsAuditEvent(t *testing.T) {
	svc, sink := newTestService(t)

	page, err := svc.Search(context.Background(), SearchParams{Query: "Cough"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("expected 3 matches, got %d", page.Total)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Action != audit.ActionSearch {
		t.Errorf("expected search action, got %s", ev.Action)
	}
	if ev.Query != "cough" {
		t.Errorf("expected normalized query text, got %q", ev.Query)
	}
	if ev.ResultCount != 3 || !ev.Success {
		t.Errorf("unexpected event outcome: count=%d success=%v", ev.ResultCount, ev.Success)
	}
}

func TestService_Search_AuditsValidationFailure(t *testing.T) {
	svc, sink := newTestService(t)

	_, err := svc.Search(context.Background(), SearchParams{Category: "Homeopathy"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(sink.events))
	}
	if sink.events[0].Success {
		t.Error("expected failure event")
	}
}

func TestService_Search_SinkFailureDoesNotFailCall(t *testing.T) {
	sink := &captureSink{err: errors.New("sink down")}
	svc := NewService(seededMemStore(t), sink, zerolog.Nop(), 0)

	if _, err := svc.Search(context.Background(), SearchParams{Query: "cough"}); err != nil {
		t.Fatalf("a dropped audit event must not fail the search: %v", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _ := newTestService(t)

	r, err := svc.Get(context.Background(), " AYU-001 ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Code != "AYU-001" {
		t.Errorf("unexpected record %s", r.Code)
	}

	if _, err := svc.Get(context.Background(), "  "); err == nil {
		t.Error("expected validation error for blank code")
	}

	if _, err := svc.Get(context.Background(), "AYU-999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Insert_ValidatesRecords(t *testing.T) {
	svc, sink := newTestService(t)

	cases := []struct {
		name   string
		record MappingRecord
		field  string
	}{
		{"empty code", MappingRecord{Term: "x", Category: CategoryAyurveda, Confidence: 0.5}, "code"},
		{"empty term", MappingRecord{Code: "X-1", Category: CategoryAyurveda, Confidence: 0.5}, "term"},
		{"bad category", MappingRecord{Code: "X-1", Term: "x", Category: "Other", Confidence: 0.5}, "category"},
		{"confidence above one", MappingRecord{Code: "X-1", Term: "x", Category: CategoryAyurveda, Confidence: 1.5}, "confidence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Insert(context.Background(), []MappingRecord{tc.record})
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, ve.Field)
			}
		})
	}

	if _, err := svc.Insert(context.Background(), nil); err == nil {
		t.Error("expected validation error for empty batch")
	}

	if len(sink.events) != len(cases) {
		t.Errorf("expected one audit event per rejected batch, got %d", len(sink.events))
	}
}

func TestService_Insert_ReportsDuplicates(t *testing.T) {
	svc, sink := newTestService(t)

	report, err := svc.Insert(context.Background(), []MappingRecord{
		{Code: "AYU-001", Term: "Kasa again", Category: CategoryAyurveda, Confidence: 0.5},
		{Code: "AYU-010", Term: "Arsha", Category: CategoryAyurveda, Confidence: 0.94},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if report.InsertedCount != 1 || len(report.Rejected) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	if len(sink.events) != 1 || sink.events[0].Action != audit.ActionInsert {
		t.Fatalf("expected one insert audit event, got %+v", sink.events)
	}
	if sink.events[0].ResultCount != 1 {
		t.Errorf("expected result count 1, got %d", sink.events[0].ResultCount)
	}
}

func TestService_Clear_Audited(t *testing.T) {
	svc, sink := newTestService(t)

	n, err := svc.Clear(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != len(testRecords()) {
		t.Errorf("expected %d deleted, got %d", len(testRecords()), n)
	}

	if len(sink.events) != 1 || sink.events[0].Action != audit.ActionClear {
		t.Fatalf("expected one clear audit event, got %+v", sink.events)
	}
}

func TestService_Stats_Audited(t *testing.T) {
	svc, sink := newTestService(t)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRecords != 6 {
		t.Errorf("expected 6 records, got %d", stats.TotalRecords)
	}

	if len(sink.events) != 1 || sink.events[0].Action != audit.ActionStats {
		t.Fatalf("expected one stats audit event, got %+v", sink.events)
	}
	if sink.events[0].ResultCount != 6 {
		t.Errorf("expected result count 6, got %d", sink.events[0].ResultCount)
	}
}

func TestService_StatsFailure_Audited(t *testing.T) {
	sink := &captureSink{}
	failing := &failingStore{err: &UnreachableError{Err: errors.New("down")}}
	svc := NewService(failing, sink, zerolog.Nop(), 0)

	if _, err := svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error from failing store")
	}
	if len(sink.events) != 1 || sink.events[0].Success {
		t.Fatalf("expected one failure event, got %+v", sink.events)
	}
}

func TestService_CategoriesAndChapters(t *testing.T) {
	svc, _ := newTestService(t)

	cats, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 3 {
		t.Errorf("expected 3 categories, got %v", cats)
	}

	chaps, err := svc.Chapters(context.Background())
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(chaps) != 2 {
		t.Errorf("expected 2 chapters, got %v", chaps)
	}
}
