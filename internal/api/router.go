package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/adi/internal/config"
	"github.com/soaringjerry/adi/internal/metrics"
	"github.com/soaringjerry/adi/internal/middleware"
	"github.com/soaringjerry/adi/internal/services"
	"github.com/soaringjerry/adi/internal/utils"
)

const maxBodyBytes = 1 << 20

// Options wires the router. Zero fields get development defaults.
type Options struct {
	Store      Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Auth       *middleware.Auth
	Generator  services.TextGenerator
	Config     *config.Config
	CodeSender services.CodeSender
}

type Router struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	auth    *middleware.Auth
	cfg     *config.Config

	surveys      *services.SurveyService
	catalog      *services.CatalogService
	analytics    *services.AnalyticsService
	verification *services.VerificationService
	accounts     *services.AuthService
	narrative    *services.NarrativeService
	dashboards   *services.DashboardService
}

func NewRouter(opts Options) *Router {
	if opts.Store == nil {
		opts.Store = newMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Auth == nil {
		opts.Auth = middleware.NewAuth(opts.Config.Auth.JWTSecret)
	}
	if opts.CodeSender == nil {
		opts.CodeSender = newLogCodeSender(opts.Logger)
	}
	cfg := opts.Config
	catalogStore := newCatalogStoreAdapter(opts.Store, opts.Logger)
	analytics := services.NewAnalyticsService(newAnalyticsStoreAdapter(opts.Store, catalogStore)).
		WithLimits(cfg.Analytics.MaxRecords, cfg.Analytics.TopCountries)

	return &Router{
		store:   opts.Store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		auth:    opts.Auth,
		cfg:     cfg,

		surveys: services.NewSurveyService(newSurveyStoreAdapter(opts.Store)).
			RequireVerification(cfg.Survey.RequireVerification),
		catalog:   services.NewCatalogService(catalogStore),
		analytics: analytics,
		verification: services.NewVerificationService(newVerificationStoreAdapter(opts.Store), opts.CodeSender).
			WithPolicy(cfg.GetCodeTTL(), cfg.Verification.MaxAttempts, cfg.Verification.ExposeCode),
		accounts:  services.NewAuthService(newAuthStoreAdapter(opts.Store), opts.Auth.SignToken).WithTokenTTL(cfg.GetTokenTTL()),
		narrative: services.NewNarrativeService(analytics, newNarrativeStoreAdapter(opts.Store),
			opts.Generator, cfg.AI.Model, cfg.AI.MaxTokens),
		dashboards: services.NewDashboardService(newDashboardStoreAdapter(opts.Store), analytics),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)
	mux.Handle("GET /metrics", rt.metrics.Handler(rt.logger))

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("GET /api/auth/me", authed(rt.handleMe))

	mux.HandleFunc("GET /api/countries", rt.handleCountries)

	mux.HandleFunc("GET /api/surveys", rt.handleListSurveys)
	mux.Handle("POST /api/surveys", authed(rt.handleCreateSurvey))
	mux.HandleFunc("GET /api/surveys/{id}", rt.handleGetSurvey)
	mux.Handle("PUT /api/surveys/{id}/active", authed(rt.handleSetActive))
	mux.Handle("GET /api/surveys/{id}/eligibility", authed(rt.handleEligibility))
	mux.Handle("GET /api/surveys/{id}/status", authed(rt.handleStatus))
	mux.Handle("POST /api/surveys/{id}/responses", authed(rt.handleSubmit))

	mux.Handle("POST /api/verification/start", authed(rt.handleVerificationStart))
	mux.Handle("POST /api/verification/confirm", authed(rt.handleVerificationConfirm))
	mux.Handle("GET /api/verification", authed(rt.handleVerificationStatus))

	mux.HandleFunc("GET /api/insights", rt.handleInsights)
	mux.HandleFunc("GET /api/dashboard", rt.handleDashboard)
	mux.HandleFunc("GET /api/insights/export", rt.handleExport)
	mux.Handle("POST /api/insights/narrative", authed(rt.handleNarrative))
	mux.Handle("GET /api/insights/narratives", authed(rt.handleNarrativeHistory))

	mux.Handle("POST /api/dashboards", authed(rt.handleCreateDashboard))
	mux.Handle("GET /api/dashboards", authed(rt.handleListDashboards))
	mux.HandleFunc("GET /api/dashboards/{id}", rt.handleOpenDashboard)
	mux.Handle("PUT /api/dashboards/{id}", authed(rt.handleUpdateDashboard))

	mux.HandleFunc("POST /api/seed", rt.handleSeed)
}

// Handler returns mux wrapped in the standard middleware chain. The access
// log sits directly around mux so it sees the matched route pattern.
func (rt *Router) Handler(mux *http.ServeMux) http.Handler {
	var h http.Handler = middleware.AccessLog(rt.logger, rt.metrics.ObserveHTTP, mux)
	h = rt.auth.WithAuth(h)
	h = middleware.LocaleMiddleware(h)
	h = middleware.NoStore(h)
	h = middleware.CORS(h)
	return middleware.SecureHeaders(h)
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorInvalidAnswer, services.ErrorPhoneFormat, services.ErrorVerificationMismatch:
		return http.StatusUnprocessableEntity
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict, services.ErrorAlreadyCompleted:
		return http.StatusConflict
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorBadGateway:
		return http.StatusBadGateway
	case services.ErrorStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorCode is the metrics label for err: empty on success.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := services.AsServiceError(err); ok {
		return string(se.Code)
	}
	return "internal"
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: "internal"}
	status := http.StatusInternalServerError
	if se, ok := services.AsServiceError(err); ok {
		body.Error = string(se.Code)
		body.Detail = se.Message
		body.Retryable = se.Retryable()
		status = statusFor(se.Code)
	}
	if status >= 500 {
		rt.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", body.Error),
			zap.Error(err))
	}
	body.Message = utils.T(middleware.LocaleFromContext(r.Context()), "error."+body.Error)
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return services.NewInvalidError("invalid json")
	}
	return nil
}

func currentUser(r *http.Request) string {
	uid, _ := middleware.UserIDFromContext(r.Context())
	return uid
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	if err := rt.store.Ping(r.Context()); err != nil {
		rt.logger.Warn("health check: store unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": utils.T(locale, "error.store_unavailable"), "store": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": utils.T(locale, "health.ok"), "store": "ok"})
}

// GET /version
func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"commit": rt.cfg.Build.Commit, "build_time": rt.cfg.Build.BuildTime})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/auth/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := rt.accounts.Me(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "created_at": u.CreatedAt})
}

// GET /api/countries
func (rt *Router) handleCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"countries": services.Countries()})
}

// GET /api/surveys?include_inactive=1
func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if v := r.URL.Query().Get("include_inactive"); v == "1" || v == "true" {
		activeOnly = false
	}
	list, err := rt.catalog.ListSurveys(r.Context(), activeOnly)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": list})
}

// POST /api/surveys
func (rt *Router) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var sv services.Survey
	if err := decodeBody(w, r, &sv); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv.ID = ""
	created, err := rt.catalog.CreateSurvey(r.Context(), currentUser(r), &sv)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/surveys/{id}
func (rt *Router) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := rt.catalog.GetSurvey(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// PUT /api/surveys/{id}/active {active}
func (rt *Router) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if req.Active == nil {
		rt.writeError(w, r, services.NewInvalidError("active required"))
		return
	}
	id := r.PathValue("id")
	if err := rt.catalog.SetActive(r.Context(), currentUser(r), id, *req.Active); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": *req.Active})
}

// yearParam reads ?year=, defaulting to the current year.
func (rt *Router) yearParam(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return rt.surveys.CurrentYear(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y <= 0 {
		return 0, services.NewInvalidError("year must be a positive integer")
	}
	return y, nil
}

// GET /api/surveys/{id}/eligibility?year=
func (rt *Router) handleEligibility(w http.ResponseWriter, r *http.Request) {
	year, err := rt.yearParam(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	el, err := rt.surveys.CheckEligibility(r.Context(), currentUser(r), r.PathValue("id"), year)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.EligibilityChecks.WithLabelValues(strconv.FormatBool(el.Eligible)).Inc()
	writeJSON(w, http.StatusOK, el)
}

type surveyStatus struct {
	Survey       *services.Survey       `json:"survey"`
	Eligibility  *services.Eligibility  `json:"eligibility"`
	Verified     bool                   `json:"verified"`
	Verification *services.Verification `json:"verification,omitempty"`
}

// GET /api/surveys/{id}/status
// Loads the survey, the eligibility for the current year and the verification
// state concurrently.
func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	uid, id := currentUser(r), r.PathValue("id")
	year := rt.surveys.CurrentYear()
	var out surveyStatus

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		sv, err := rt.catalog.GetSurvey(ctx, id)
		out.Survey = sv
		return err
	})
	g.Go(func() error {
		el, err := rt.surveys.CheckEligibility(ctx, uid, id, year)
		out.Eligibility = el
		return err
	})
	g.Go(func() error {
		v, err := rt.verification.Status(ctx, uid)
		out.Verification = v
		return err
	})
	if err := g.Wait(); err != nil {
		rt.writeError(w, r, err)
		return
	}
	out.Verified = out.Verification != nil
	rt.metrics.EligibilityChecks.WithLabelValues(strconv.FormatBool(out.Eligibility.Eligible)).Inc()
	writeJSON(w, http.StatusOK, out)
}

// POST /api/surveys/{id}/responses {answers:{qid:option}, year?}
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers map[string]string `json:"answers"`
		Year    int               `json:"year"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.surveys.Submit(r.Context(), services.SubmitRequest{
		UserID:   currentUser(r),
		SurveyID: r.PathValue("id"),
		Answers:  req.Answers,
		Year:     req.Year,
	})
	rt.metrics.Submissions.WithLabelValues(metrics.Result(errorCode(err))).Inc()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.logger.Info("survey submitted",
		zap.String("survey_id", r.PathValue("id")),
		zap.String("submission_id", res.SubmissionID),
		zap.Int("year", res.Year))
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/verification/start
func (rt *Router) handleVerificationStart(w http.ResponseWriter, r *http.Request) {
	var req services.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	req.UserID = currentUser(r)
	res, err := rt.verification.Start(r.Context(), req)
	rt.metrics.VerificationEvents.WithLabelValues("start", metrics.Result(errorCode(err))).Inc()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/verification/confirm {code}
func (rt *Router) handleVerificationConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	v, err := rt.verification.Confirm(r.Context(), currentUser(r), req.Code)
	rt.metrics.VerificationEvents.WithLabelValues("confirm", metrics.Result(errorCode(err))).Inc()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/verification
func (rt *Router) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	v, err := rt.verification.Status(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": v != nil, "verification": v})
}

// POST /api/seed loads the sample survey. Disabled unless server.enable_seed is set.
func (rt *Router) handleSeed(w http.ResponseWriter, r *http.Request) {
	if !rt.cfg.Server.EnableSeed {
		rt.writeError(w, r, services.NewNotFoundError("seed disabled"))
		return
	}
	sample := services.SampleSurvey()
	existing, err := rt.catalog.GetSurvey(r.Context(), sample.ID)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "created": false, "survey": existing})
		return
	}
	if !services.HasCode(err, services.ErrorNotFound) {
		rt.writeError(w, r, err)
		return
	}
	actor := currentUser(r)
	if actor == "" {
		actor = "system"
	}
	created, err := rt.catalog.CreateSurvey(r.Context(), actor, sample)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "created": true, "survey": created})
}

// isCanceled reports whether err stems from the client going away.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
