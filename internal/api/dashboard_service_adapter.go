package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

// The saved filter is stored as a JSON document in the config column.

type dashboardStoreAdapter struct {
	store Store
}

func newDashboardStoreAdapter(store Store) services.DashboardStore {
	return &dashboardStoreAdapter{store: store}
}

func (a *dashboardStoreAdapter) SaveDashboard(ctx context.Context, d *services.SavedDashboard) error {
	cfg, err := json.Marshal(d.Filter)
	if err != nil {
		return fmt.Errorf("encode filter of dashboard %s: %w", d.ID, err)
	}
	return a.store.SaveDashboard(ctx, &models.SavedDashboard{
		ID:          d.ID,
		UserID:      d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		Config:      string(cfg),
		IsPublic:    models.Flag(d.Public),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	})
}

func (a *dashboardStoreAdapter) GetDashboard(ctx context.Context, id string) (*services.SavedDashboard, error) {
	m, err := a.store.GetDashboard(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	return decodeDashboard(m)
}

func (a *dashboardStoreAdapter) ListDashboards(ctx context.Context, ownerID string) ([]*services.SavedDashboard, error) {
	rows, err := a.store.ListDashboards(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*services.SavedDashboard, 0, len(rows))
	for _, m := range rows {
		d, err := decodeDashboard(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeDashboard(m *models.SavedDashboard) (*services.SavedDashboard, error) {
	d := &services.SavedDashboard{
		ID:          m.ID,
		OwnerID:     m.UserID,
		Name:        m.Name,
		Description: m.Description,
		Public:      bool(m.IsPublic),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Config != "" {
		if err := json.Unmarshal([]byte(m.Config), &d.Filter); err != nil {
			return nil, fmt.Errorf("decode filter of dashboard %s: %w", m.ID, err)
		}
	}
	return d, nil
}

var _ services.DashboardStore = (*dashboardStoreAdapter)(nil)
