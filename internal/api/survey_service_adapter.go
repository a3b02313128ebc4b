package api

import (
	"context"
	"errors"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

type surveyStoreAdapter struct {
	store Store
}

func newSurveyStoreAdapter(store Store) services.SurveyStore {
	return &surveyStoreAdapter{store: store}
}

func (a *surveyStoreAdapter) GetSurvey(ctx context.Context, id string) (*services.Survey, error) {
	m, err := a.store.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeSurvey(m)
}

func (a *surveyStoreAdapter) ListResponses(ctx context.Context, q services.ResponseQuery) ([]*services.Response, error) {
	mq := models.ResponseQuery{UserID: q.UserID, SurveyID: q.SurveyID, Year: q.Year, Limit: q.Limit}
	if q.OrderByYear {
		mq.OrderBy = models.OrderYearDesc
	}
	rs, err := a.store.ListResponses(ctx, mq)
	if err != nil {
		return nil, err
	}
	return fromModelResponses(rs), nil
}

func (a *surveyStoreAdapter) LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*services.Verification, error) {
	v, err := a.store.LatestVerification(ctx, userID, verifiedOnly)
	if err != nil {
		return nil, err
	}
	return fromModelVerification(v), nil
}

func (a *surveyStoreAdapter) AddResponses(ctx context.Context, rs []*services.Response) error {
	out := make([]*models.SurveyResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toModelResponse(r))
	}
	err := a.store.AddResponses(ctx, out)
	if errors.Is(err, models.ErrDuplicateSubmission) {
		return services.ErrDuplicateSubmission
	}
	return err
}

var _ services.SurveyStore = (*surveyStoreAdapter)(nil)

// NewSurveyService wires a SurveyService to store for callers outside the HTTP server.
func NewSurveyService(store Store) *services.SurveyService {
	return services.NewSurveyService(newSurveyStoreAdapter(store))
}
