// Package storetest holds the behaviour every api.Store implementation must
// share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/models"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func response(id, user, survey string, year, idx int, answer string, at time.Time) *models.SurveyResponse {
	return &models.SurveyResponse{
		ID: id, SurveyID: survey, UserID: user, SubmissionID: "sub-" + user + "-" + survey,
		QuestionIndex: idx, Answer: answer, ResponseYear: year, Country: "Kenya", CreatedAt: at,
	}
}

// Run exercises newStore against the api.Store contract. Each subtest gets a
// fresh store.
func Run(t *testing.T, newStore func(t *testing.T) api.Store) {
	ctx := context.Background()

	t.Run("surveys", func(t *testing.T) {
		s := newStore(t)
		missing, err := s.GetSurvey(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, s.InsertSurvey(ctx, &models.Survey{ID: "a", Title: "A", Questions: `[]`, IsActive: true, CreatedAt: base}))
		require.NoError(t, s.InsertSurvey(ctx, &models.Survey{ID: "b", Title: "B", Questions: `[]`, IsActive: false, CreatedAt: base.Add(time.Hour)}))

		all, err := s.ListSurveys(ctx, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "b", all[0].ID, "newest first")

		active, err := s.ListSurveys(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "a", active[0].ID)

		require.NoError(t, s.SetSurveyActive(ctx, "b", true))
		got, err := s.GetSurvey(ctx, "b")
		require.NoError(t, err)
		assert.True(t, bool(got.IsActive))
		assert.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))

		assert.ErrorIs(t, s.SetSurveyActive(ctx, "zzz", true), models.ErrNotFound)
	})

	t.Run("responses are unique per user survey and year", func(t *testing.T) {
		s := newStore(t)
		first := []*models.SurveyResponse{
			response("r1", "u1", "s1", 2024, 0, "Yes", base),
			response("r2", "u1", "s1", 2024, 1, "No", base),
		}
		require.NoError(t, s.AddResponses(ctx, first))

		err := s.AddResponses(ctx, []*models.SurveyResponse{response("r3", "u1", "s1", 2024, 0, "No", base.Add(time.Minute))})
		assert.True(t, errors.Is(err, models.ErrDuplicateSubmission), "got %v", err)

		require.NoError(t, s.AddResponses(ctx, []*models.SurveyResponse{response("r4", "u1", "s1", 2025, 0, "No", base.AddDate(1, 0, 0))}))
		require.NoError(t, s.AddResponses(ctx, []*models.SurveyResponse{response("r5", "u2", "s1", 2024, 0, "Yes", base.Add(2*time.Minute))}))

		year := 2024
		rs, err := s.ListResponses(ctx, models.ResponseQuery{UserID: "u1", SurveyID: "s1", Year: &year})
		require.NoError(t, err)
		assert.Len(t, rs, 2, "rejected set must leave nothing behind")

		latest, err := s.ListResponses(ctx, models.ResponseQuery{UserID: "u1", SurveyID: "s1", OrderBy: models.OrderYearDesc, Limit: 1})
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, 2025, latest[0].ResponseYear)

		recent, err := s.ListResponses(ctx, models.ResponseQuery{Limit: 2})
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "r4", recent[0].ID)
		assert.Equal(t, "r5", recent[1].ID)

		country := "Ghana"
		none, err := s.ListResponses(ctx, models.ResponseQuery{Country: &country})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("verifications", func(t *testing.T) {
		s := newStore(t)
		v, err := s.LatestVerification(ctx, "u1", false)
		require.NoError(t, err)
		assert.Nil(t, v)

		exp := base.Add(10 * time.Minute)
		require.NoError(t, s.AddVerification(ctx, &models.UserVerification{ID: "v1", UserID: "u1", Country: "Nigeria", PhoneNumber: "+2348000000001", CodeHash: "h1", CreatedAt: base, ExpiresAt: &exp}))
		require.NoError(t, s.AddVerification(ctx, &models.UserVerification{ID: "v2", UserID: "u1", Country: "Ghana", PhoneNumber: "+233200000000", CodeHash: "h2", CreatedAt: base.Add(time.Minute)}))

		v, err = s.LatestVerification(ctx, "u1", false)
		require.NoError(t, err)
		assert.Equal(t, "v2", v.ID)
		v, err = s.LatestVerification(ctx, "u1", true)
		require.NoError(t, err)
		assert.Nil(t, v)

		for i := 0; i < 2; i++ {
			ok, err := s.ReserveVerificationAttempt(ctx, "v1", 5)
			require.NoError(t, err)
			require.True(t, ok)
		}
		yes, at := true, base.Add(3*time.Minute)
		require.NoError(t, s.UpdateVerification(ctx, "v1", models.VerificationPatch{IsVerified: &yes, VerifiedAt: &at}))
		v, err = s.LatestVerification(ctx, "u1", true)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "v1", v.ID)
		assert.Equal(t, "h1", v.CodeHash)
		assert.Equal(t, 2, v.Attempts)
		require.NotNil(t, v.VerifiedAt)
		assert.True(t, v.VerifiedAt.Equal(at))
		require.NotNil(t, v.ExpiresAt)
		assert.True(t, v.ExpiresAt.Equal(exp))

		assert.ErrorIs(t, s.UpdateVerification(ctx, "nope", models.VerificationPatch{IsVerified: &yes}), models.ErrNotFound)
		_, err = s.ReserveVerificationAttempt(ctx, "nope", 5)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("attempt reservations are atomic", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddVerification(ctx, &models.UserVerification{ID: "v1", UserID: "u1", CodeHash: "h", CreatedAt: base}))

		const callers, budget = 25, 5
		var (
			wg      sync.WaitGroup
			granted atomic.Int32
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.ReserveVerificationAttempt(ctx, "v1", budget)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if ok {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(budget), granted.Load())

		v, err := s.LatestVerification(ctx, "u1", false)
		require.NoError(t, err)
		assert.Equal(t, budget, v.Attempts)
	})

	t.Run("year counts and month filter", func(t *testing.T) {
		s := newStore(t)
		jan := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.AddResponses(ctx, []*models.SurveyResponse{response("a", "u1", "s1", 2023, 0, "Yes", jan)}))
		require.NoError(t, s.AddResponses(ctx, []*models.SurveyResponse{response("b", "u2", "s1", 2024, 0, "Yes", base)}))
		undated := response("c", "u3", "s1", 2024, 0, "No", time.Time{})
		undated.Country = "Ghana"
		require.NoError(t, s.AddResponses(ctx, []*models.SurveyResponse{undated}))

		counts, err := s.CountResponsesByYear(ctx, models.ResponseQuery{})
		require.NoError(t, err)
		assert.Equal(t, map[int]int{2023: 1, 2024: 2}, counts)

		ghana, y := "Ghana", 2023
		counts, err = s.CountResponsesByYear(ctx, models.ResponseQuery{Country: &ghana, Year: &y})
		require.NoError(t, err)
		assert.Equal(t, map[int]int{2024: 1}, counts, "year is ignored by the count")

		month := 1
		rs, err := s.ListResponses(ctx, models.ResponseQuery{Month: &month})
		require.NoError(t, err)
		require.Len(t, rs, 1, "undated responses never match a month")
		assert.Equal(t, "a", rs[0].ID)
	})

	t.Run("insights", func(t *testing.T) {
		s := newStore(t)
		for i, kind := range []string{"summary", "trends", "predictions"} {
			require.NoError(t, s.AddInsight(ctx, &models.AIInsight{
				ID: kind, UserID: "u1", InsightType: kind, Content: "text " + kind,
				DataSources: `["survey_responses"]`, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, s.AddInsight(ctx, &models.AIInsight{ID: "other", UserID: "u2", InsightType: "summary", Content: "x", DataSources: `[]`, CreatedAt: base}))

		got, err := s.ListInsights(ctx, "u1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "predictions", got[0].ID)
		assert.Equal(t, "trends", got[1].ID)
		assert.Equal(t, `["survey_responses"]`, got[0].DataSources)

		none, err := s.ListInsights(ctx, "u3", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("dashboards", func(t *testing.T) {
		s := newStore(t)
		missing, err := s.GetDashboard(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		d := &models.SavedDashboard{ID: "d1", UserID: "u1", Name: "Kenya", Config: `{"country":"Kenya"}`, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, s.SaveDashboard(ctx, d))
		require.NoError(t, s.SaveDashboard(ctx, &models.SavedDashboard{ID: "d2", UserID: "u1", Name: "All", Config: `{}`, CreatedAt: base, UpdatedAt: base.Add(time.Minute)}))

		d.Name = "Kenya 2024"
		d.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.SaveDashboard(ctx, d))

		list, err := s.ListDashboards(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "d1", list[0].ID, "most recently updated first")
		assert.Equal(t, "Kenya 2024", list[0].Name)
		assert.True(t, list[0].CreatedAt.Equal(base))

		got, err := s.GetDashboard(ctx, "d2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, `{}`, got.Config)
	})

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddUser(ctx, &models.User{ID: "u1", Email: "a@example.com", PassHash: []byte("hash"), CreatedAt: base}))
		assert.ErrorIs(t, s.AddUser(ctx, &models.User{ID: "u2", Email: "A@example.com", PassHash: []byte("x"), CreatedAt: base}), models.ErrDuplicateEmail)

		u, err := s.FindUserByEmail(ctx, "A@Example.com")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, []byte("hash"), u.PassHash)

		u, err = s.GetUser(ctx, "u2")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("audit", func(t *testing.T) {
		s := newStore(t)
		for _, a := range []string{"survey.create", "survey.close", "survey.open"} {
			require.NoError(t, s.AddAudit(ctx, models.AuditEntry{Time: base, Actor: "admin", Action: a, Target: "s1"}))
		}
		got, err := s.ListAudit(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "survey.open", got[0].Action)
		assert.Equal(t, "survey.close", got[1].Action)
		require.NoError(t, s.Ping(ctx))
	})
}
