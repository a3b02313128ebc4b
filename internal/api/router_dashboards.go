package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/services"
)

type dashboardRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Filter      services.ResponseFilter `json:"filter"`
	Public      bool                    `json:"is_public"`
}

func (req dashboardRequest) saved() *services.SavedDashboard {
	return &services.SavedDashboard{Name: req.Name, Description: req.Description, Filter: req.Filter, Public: req.Public}
}

// POST /api/dashboards {name, description, filter:{country,year,month}, is_public}
func (rt *Router) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	d, err := rt.dashboards.Create(r.Context(), currentUser(r), req.saved())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.logger.Info("dashboard saved", zap.String("dashboard_id", d.ID), zap.Bool("public", d.Public))
	writeJSON(w, http.StatusCreated, d)
}

// PUT /api/dashboards/{id}
func (rt *Router) handleUpdateDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	d, err := rt.dashboards.Update(r.Context(), currentUser(r), r.PathValue("id"), req.saved())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/dashboards
func (rt *Router) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := rt.dashboards.List(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboards": list})
}

// GET /api/dashboards/{id}
// Public dashboards open without a token.
func (rt *Router) handleOpenDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := rt.dashboards.Open(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
