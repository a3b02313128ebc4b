package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CatalogStore interface {
	InsertSurvey(ctx context.Context, sv *Survey) error
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	ListSurveys(ctx context.Context, activeOnly bool) ([]*Survey, error)
	SetSurveyActive(ctx context.Context, id string, active bool) error
	AddAudit(ctx context.Context, entry AuditEntry)
}

// CatalogService manages the survey definitions respondents answer.
type CatalogService struct {
	store CatalogStore
	now   func() time.Time
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// validateQuestions trims prompts and options and assigns missing question ids.
func validateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return NewInvalidError("at least one question required")
	}
	seen := map[string]bool{}
	for i := range qs {
		q := &qs[i]
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = "q" + shortID(6)
		}
		if seen[q.ID] {
			return NewInvalidError("duplicate question id " + q.ID)
		}
		seen[q.ID] = true
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.Prompt == "" {
			return NewInvalidError("question text required")
		}
		opts := make([]string, 0, len(q.Options))
		dup := map[string]bool{}
		for _, o := range q.Options {
			o = strings.TrimSpace(o)
			if o == "" || dup[o] {
				continue
			}
			dup[o] = true
			opts = append(opts, o)
		}
		if len(opts) < 2 {
			return NewInvalidError("question " + q.ID + " needs at least two options")
		}
		q.Options = opts
	}
	return nil
}

func (s *CatalogService) CreateSurvey(ctx context.Context, actor string, sv *Survey) (*Survey, error) {
	if actor == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	if sv == nil {
		return nil, NewInvalidError("survey required")
	}
	sv.Title = strings.TrimSpace(sv.Title)
	if sv.Title == "" {
		return nil, NewInvalidError("title required")
	}
	if err := validateQuestions(sv.Questions); err != nil {
		return nil, err
	}
	if sv.ID == "" {
		sv.ID = shortID(8)
	}
	if strings.TrimSpace(sv.Category) == "" {
		sv.Category = DefaultCategory
	}
	sv.OwnerID = actor
	sv.CreatedAt = s.now()
	if err := s.store.InsertSurvey(ctx, sv); err != nil {
		return nil, NewStoreUnavailableError("insert survey", err)
	}
	s.store.AddAudit(ctx, AuditEntry{Time: sv.CreatedAt, Actor: actor, Action: "survey.create", Target: sv.ID})
	return sv, nil
}

func (s *CatalogService) GetSurvey(ctx context.Context, id string) (*Survey, error) {
	sv, err := s.store.GetSurvey(ctx, id)
	if err != nil {
		return nil, NewStoreUnavailableError("load survey", err)
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	return sv, nil
}

func (s *CatalogService) ListSurveys(ctx context.Context, activeOnly bool) ([]*Survey, error) {
	out, err := s.store.ListSurveys(ctx, activeOnly)
	if err != nil {
		return nil, NewStoreUnavailableError("list surveys", err)
	}
	return out, nil
}

// SetActive opens or closes a survey. Only its owner may do so.
func (s *CatalogService) SetActive(ctx context.Context, actor, id string, active bool) error {
	sv, err := s.GetSurvey(ctx, id)
	if err != nil {
		return err
	}
	if sv.OwnerID != "" && sv.OwnerID != actor {
		return NewForbiddenError("forbidden")
	}
	if err := s.store.SetSurveyActive(ctx, id, active); err != nil {
		return NewStoreUnavailableError("update survey", err)
	}
	action := "survey.close"
	if active {
		action = "survey.open"
	}
	s.store.AddAudit(ctx, AuditEntry{Time: s.now(), Actor: actor, Action: action, Target: id})
	return nil
}

// SampleSurvey is the connectivity survey loaded by the seed endpoint and CLI.
func SampleSurvey() *Survey {
	return &Survey{
		ID:          "sample-connectivity",
		Title:       "Digital Access in Africa",
		Description: "Annual check-in on how people connect and pay.",
		Category:    "Technology & Innovation",
		Active:      true,
		Questions: []Question{
			{ID: "q1", Prompt: "Do you own a smartphone?", Options: []string{"Yes", "No"}},
			{ID: "q2", Prompt: "How do you mostly access the internet?", Options: []string{"Mobile data", "Home broadband", "Public Wi-Fi", "I don't"}},
			{ID: "q3", Prompt: "Do you use mobile money?", Options: []string{"Daily", "Weekly", "Rarely", "Never"}},
		},
	}
}
