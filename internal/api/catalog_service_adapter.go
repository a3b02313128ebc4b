package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

type catalogStoreAdapter struct {
	store  Store
	logger *zap.Logger
}

func newCatalogStoreAdapter(store Store, logger *zap.Logger) *catalogStoreAdapter {
	return &catalogStoreAdapter{store: store, logger: logger}
}

func (a *catalogStoreAdapter) InsertSurvey(ctx context.Context, sv *services.Survey) error {
	m, err := encodeSurvey(sv)
	if err != nil {
		return err
	}
	return a.store.InsertSurvey(ctx, m)
}

func (a *catalogStoreAdapter) GetSurvey(ctx context.Context, id string) (*services.Survey, error) {
	m, err := a.store.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeSurvey(m)
}

// ListSurveys skips rows whose questions cannot be decoded.
func (a *catalogStoreAdapter) ListSurveys(ctx context.Context, activeOnly bool) ([]*services.Survey, error) {
	ms, err := a.store.ListSurveys(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]*services.Survey, 0, len(ms))
	for _, m := range ms {
		sv, err := decodeSurvey(m)
		if err != nil {
			a.logger.Warn("skipping survey with malformed questions", zap.String("survey_id", m.ID), zap.Error(err))
			continue
		}
		out = append(out, sv)
	}
	return out, nil
}

func (a *catalogStoreAdapter) SetSurveyActive(ctx context.Context, id string, active bool) error {
	return a.store.SetSurveyActive(ctx, id, active)
}

func (a *catalogStoreAdapter) AddAudit(ctx context.Context, e services.AuditEntry) {
	entry := models.AuditEntry{Time: e.Time, Actor: e.Actor, Action: e.Action, Target: e.Target, Note: e.Note}
	if err := a.store.AddAudit(ctx, entry); err != nil {
		a.logger.Warn("audit write failed", zap.String("action", e.Action), zap.Error(err))
	}
}

var _ services.CatalogStore = (*catalogStoreAdapter)(nil)

func NewCatalogService(store Store, logger *zap.Logger) *services.CatalogService {
	return services.NewCatalogService(newCatalogStoreAdapter(store, logger))
}
