package api

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/metrics"
	"github.com/soaringjerry/adi/internal/services"
)

// GET /api/insights
// A store failure degrades to an empty list instead of an error response.
func (rt *Router) handleInsights(w http.ResponseWriter, r *http.Request) {
	list, err := rt.analytics.Basic(r.Context())
	if err != nil {
		if !isCanceled(err) {
			rt.logger.Warn("insights unavailable, serving empty set", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{"insights": []services.SurveyInsight{}, "degraded": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": list, "degraded": false})
}

// parseFilter maps the query parameters onto a ResponseFilter. The legacy
// values country=all, year=0 and month=0 mean no filter.
func parseFilter(r *http.Request) (services.ResponseFilter, error) {
	var f services.ResponseFilter
	q := r.URL.Query()
	if c := strings.TrimSpace(q.Get("country")); c != "" && !strings.EqualFold(c, "all") {
		f.Country = &c
	}
	year, err := optionalInt(q.Get("year"), "year")
	if err != nil {
		return f, err
	}
	f.Year = year
	month, err := optionalInt(q.Get("month"), "month")
	if err != nil {
		return f, err
	}
	if month != nil && (*month < 1 || *month > 12) {
		return f, services.NewInvalidError("month must be between 1 and 12")
	}
	f.Month = month
	return f, nil
}

func optionalInt(v, name string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" || strings.EqualFold(v, "all") {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, services.NewInvalidError(name + " must be a positive integer")
	}
	return &n, nil
}

// GET /api/dashboard?country=&year=&month=
func (rt *Router) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	d, err := rt.analytics.Dashboard(r.Context(), f)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/insights/export?format=questions|responses
// The responses format lists individual answers and requires a signed-in user.
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "questions"
	}
	var (
		b   []byte
		err error
	)
	switch format {
	case "questions":
		var list []services.SurveyInsight
		if list, err = rt.analytics.Basic(r.Context()); err == nil {
			b, err = services.ExportInsightsCSV(list)
		}
	case "responses":
		if currentUser(r) == "" {
			rt.writeError(w, r, services.NewUnauthorizedError("unauthorized"))
			return
		}
		var f services.ResponseFilter
		if f, err = parseFilter(r); err != nil {
			break
		}
		var rs []services.Response
		if rs, err = rt.analytics.Responses(r.Context(), f); err == nil {
			b, err = services.ExportResponsesCSV(rs)
		}
	default:
		err = services.NewInvalidError("unsupported format")
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+format+".csv")
	_, _ = w.Write(b)
}

// POST /api/insights/narrative {kind}
func (rt *Router) handleNarrative(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	kind, err := services.ParseNarrativeKind(req.Kind)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	n, err := rt.narrative.Generate(r.Context(), currentUser(r), kind)
	rt.metrics.NarrativeRequests.WithLabelValues(string(kind), metrics.Result(errorCode(err))).Inc()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GET /api/insights/narratives
func (rt *Router) handleNarrativeHistory(w http.ResponseWriter, r *http.Request) {
	list, err := rt.narrative.History(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"narratives": list})
}
