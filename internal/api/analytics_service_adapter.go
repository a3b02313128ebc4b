package api

import (
	"context"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

type analyticsStoreAdapter struct {
	catalog *catalogStoreAdapter
	store   Store
}

func newAnalyticsStoreAdapter(store Store, catalog *catalogStoreAdapter) services.AnalyticsStore {
	return &analyticsStoreAdapter{catalog: catalog, store: store}
}

func (a *analyticsStoreAdapter) ListSurveys(ctx context.Context, activeOnly bool) ([]*services.Survey, error) {
	return a.catalog.ListSurveys(ctx, activeOnly)
}

func (a *analyticsStoreAdapter) ListResponses(ctx context.Context, f services.ResponseFilter, limit int) ([]*services.Response, error) {
	rs, err := a.store.ListResponses(ctx, models.ResponseQuery{
		Country: f.Country,
		Year:    f.Year,
		Month:   f.Month,
		OrderBy: models.OrderCreatedDesc,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	return fromModelResponses(rs), nil
}

func (a *analyticsStoreAdapter) CountByYear(ctx context.Context, country *string) (map[int]int, error) {
	return a.store.CountResponsesByYear(ctx, models.ResponseQuery{Country: country})
}

var _ services.AnalyticsStore = (*analyticsStoreAdapter)(nil)
