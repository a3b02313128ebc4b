package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SavedDashboard is a named dashboard filter. Public dashboards can be opened
// by anyone; the rest only by their owner.
type SavedDashboard struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Filter      ResponseFilter `json:"filter"`
	Public      bool           `json:"is_public"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type DashboardStore interface {
	// SaveDashboard inserts d or replaces the dashboard with the same id.
	SaveDashboard(ctx context.Context, d *SavedDashboard) error
	// GetDashboard returns nil, nil when id is unknown.
	GetDashboard(ctx context.Context, id string) (*SavedDashboard, error)
	ListDashboards(ctx context.Context, ownerID string) ([]*SavedDashboard, error)
}

// OpenedDashboard pairs a saved dashboard with the view its filter selects.
type OpenedDashboard struct {
	Saved *SavedDashboard `json:"saved"`
	View  *Dashboard      `json:"dashboard"`
}

const maxDashboardName = 120

type DashboardService struct {
	store     DashboardStore
	analytics *AnalyticsService
	now       func() time.Time
	idGen     func() string
}

func NewDashboardService(store DashboardStore, analytics *AnalyticsService) *DashboardService {
	return &DashboardService{
		store:     store,
		analytics: analytics,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
	}
}

func validateDashboard(d *SavedDashboard) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	if d.Name == "" {
		return NewInvalidError("name required")
	}
	if len(d.Name) > maxDashboardName {
		return NewInvalidError("name too long")
	}
	f := &d.Filter
	if f.Country != nil {
		c := strings.TrimSpace(*f.Country)
		if c == "" || strings.EqualFold(c, "all") {
			f.Country = nil
		} else {
			f.Country = &c
		}
	}
	if f.Year != nil && *f.Year <= 0 {
		return NewInvalidError("year must be a positive integer")
	}
	if f.Month != nil && (*f.Month < 1 || *f.Month > 12) {
		return NewInvalidError("month must be between 1 and 12")
	}
	return nil
}

// Create saves d as a new dashboard owned by owner.
func (s *DashboardService) Create(ctx context.Context, owner string, d *SavedDashboard) (*SavedDashboard, error) {
	if owner == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	if err := validateDashboard(d); err != nil {
		return nil, err
	}
	now := s.now()
	d.ID = s.idGen()
	d.OwnerID = owner
	d.CreatedAt, d.UpdatedAt = now, now
	if err := s.store.SaveDashboard(ctx, d); err != nil {
		return nil, NewStoreUnavailableError("save dashboard", err)
	}
	return d, nil
}

// Update replaces the name, description, filter and visibility of dashboard
// id. Only its owner may do so.
func (s *DashboardService) Update(ctx context.Context, owner, id string, d *SavedDashboard) (*SavedDashboard, error) {
	cur, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.OwnerID != owner {
		return nil, NewForbiddenError("forbidden")
	}
	if err := validateDashboard(d); err != nil {
		return nil, err
	}
	d.ID, d.OwnerID, d.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
	d.UpdatedAt = s.now()
	if err := s.store.SaveDashboard(ctx, d); err != nil {
		return nil, NewStoreUnavailableError("save dashboard", err)
	}
	return d, nil
}

// List returns the dashboards of owner, most recently updated first.
func (s *DashboardService) List(ctx context.Context, owner string) ([]*SavedDashboard, error) {
	if owner == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	list, err := s.store.ListDashboards(ctx, owner)
	if err != nil {
		return nil, NewStoreUnavailableError("list dashboards", err)
	}
	if list == nil {
		list = []*SavedDashboard{}
	}
	return list, nil
}

// Open loads dashboard id for viewer and computes its view.
func (s *DashboardService) Open(ctx context.Context, viewer, id string) (*OpenedDashboard, error) {
	d, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Public && d.OwnerID != viewer {
		return nil, NewForbiddenError("forbidden")
	}
	view, err := s.analytics.Dashboard(ctx, d.Filter)
	if err != nil {
		return nil, err
	}
	return &OpenedDashboard{Saved: d, View: view}, nil
}

func (s *DashboardService) get(ctx context.Context, id string) (*SavedDashboard, error) {
	d, err := s.store.GetDashboard(ctx, id)
	if err != nil {
		return nil, NewStoreUnavailableError("load dashboard", err)
	}
	if d == nil {
		return nil, NewNotFoundError("dashboard not found")
	}
	return d, nil
}
