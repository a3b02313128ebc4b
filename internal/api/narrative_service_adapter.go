package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

type narrativeStoreAdapter struct {
	store Store
}

func newNarrativeStoreAdapter(store Store) services.NarrativeStore {
	return &narrativeStoreAdapter{store: store}
}

func (a *narrativeStoreAdapter) AddNarrative(ctx context.Context, n *services.Narrative) error {
	sources, err := json.Marshal(n.DataSources)
	if err != nil {
		return fmt.Errorf("encode data sources: %w", err)
	}
	return a.store.AddInsight(ctx, &models.AIInsight{
		ID:          n.ID,
		UserID:      n.UserID,
		InsightType: string(n.Kind),
		Content:     n.Text,
		DataSources: string(sources),
		Model:       n.Model,
		CreatedAt:   n.CreatedAt,
	})
}

func (a *narrativeStoreAdapter) ListNarratives(ctx context.Context, userID string, limit int) ([]*services.Narrative, error) {
	rows, err := a.store.ListInsights(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*services.Narrative, 0, len(rows))
	for _, m := range rows {
		var sources []string
		if m.DataSources != "" {
			if err := json.Unmarshal([]byte(m.DataSources), &sources); err != nil {
				return nil, fmt.Errorf("decode data sources of insight %s: %w", m.ID, err)
			}
		}
		out = append(out, &services.Narrative{
			ID:          m.ID,
			UserID:      m.UserID,
			Kind:        services.NarrativeKind(m.InsightType),
			Text:        m.Content,
			DataSources: sources,
			Model:       m.Model,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out, nil
}

var _ services.NarrativeStore = (*narrativeStoreAdapter)(nil)
