package services

import (
	"context"
	"testing"
)

type stubCatalogStore struct {
	surveys map[string]*Survey
	audit   []AuditEntry
}

func newStubCatalogStore() *stubCatalogStore {
	return &stubCatalogStore{surveys: map[string]*Survey{}}
}

func (s *stubCatalogStore) InsertSurvey(_ context.Context, sv *Survey) error {
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *stubCatalogStore) GetSurvey(_ context.Context, id string) (*Survey, error) {
	if sv, ok := s.surveys[id]; ok {
		cp := *sv
		return &cp, nil
	}
	return nil, nil
}

func (s *stubCatalogStore) ListSurveys(_ context.Context, activeOnly bool) ([]*Survey, error) {
	out := []*Survey{}
	for _, sv := range s.surveys {
		if activeOnly && !sv.Active {
			continue
		}
		out = append(out, sv)
	}
	return out, nil
}

func (s *stubCatalogStore) SetSurveyActive(_ context.Context, id string, active bool) error {
	s.surveys[id].Active = active
	return nil
}

func (s *stubCatalogStore) AddAudit(_ context.Context, e AuditEntry) { s.audit = append(s.audit, e) }

func TestCatalogCreateSurvey(t *testing.T) {
	store := newStubCatalogStore()
	svc := NewCatalogService(store)
	ctx := context.Background()

	sv, err := svc.CreateSurvey(ctx, "admin", &Survey{
		Title:  "  Health ",
		Active: true,
		Questions: []Question{
			{Prompt: "Clinic within 5km?", Options: []string{"Yes", " No ", "Yes", ""}},
		},
	})
	if err != nil {
		t.Fatalf("CreateSurvey error: %v", err)
	}
	if sv.ID == "" || sv.Title != "Health" || sv.Category != DefaultCategory || sv.OwnerID != "admin" {
		t.Fatalf("unexpected survey: %+v", sv)
	}
	q := sv.Questions[0]
	if q.ID == "" || len(q.Options) != 2 || q.Options[1] != "No" {
		t.Fatalf("question not normalized: %+v", q)
	}
	if len(store.audit) != 1 || store.audit[0].Action != "survey.create" {
		t.Fatalf("audit = %+v", store.audit)
	}

	got, err := svc.GetSurvey(ctx, sv.ID)
	if err != nil || got.Title != "Health" {
		t.Fatalf("GetSurvey = %+v, %v", got, err)
	}
	if _, err := svc.GetSurvey(ctx, "missing"); !HasCode(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogCreateSurveyValidation(t *testing.T) {
	svc := NewCatalogService(newStubCatalogStore())
	ctx := context.Background()
	cases := []*Survey{
		nil,
		{Title: "", Questions: SampleSurvey().Questions},
		{Title: "No questions"},
		{Title: "One option", Questions: []Question{{ID: "a", Prompt: "?", Options: []string{"Yes"}}}},
		{Title: "Dup ids", Questions: []Question{
			{ID: "a", Prompt: "?", Options: []string{"Yes", "No"}},
			{ID: "a", Prompt: "?", Options: []string{"Yes", "No"}},
		}},
	}
	for i, c := range cases {
		if _, err := svc.CreateSurvey(ctx, "admin", c); !HasCode(err, ErrorInvalid) {
			t.Fatalf("case %d: expected invalid, got %v", i, err)
		}
	}
	if _, err := svc.CreateSurvey(ctx, "", SampleSurvey()); !HasCode(err, ErrorForbidden) {
		t.Fatalf("expected forbidden without actor, got %v", err)
	}
}

func TestCatalogSetActive(t *testing.T) {
	store := newStubCatalogStore()
	svc := NewCatalogService(store)
	ctx := context.Background()
	sv, err := svc.CreateSurvey(ctx, "owner", SampleSurvey())
	if err != nil {
		t.Fatalf("CreateSurvey error: %v", err)
	}
	if err := svc.SetActive(ctx, "intruder", sv.ID, false); !HasCode(err, ErrorForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.SetActive(ctx, "owner", sv.ID, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	active, _ := svc.ListSurveys(ctx, true)
	if len(active) != 0 {
		t.Fatalf("closed survey still listed as active")
	}
}
