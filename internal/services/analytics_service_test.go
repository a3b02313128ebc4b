package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type stubAnalyticsStore struct {
	mu        sync.Mutex
	surveys   []*Survey
	responses []*Response
	err       error
	lastLimit int
}

func (s *stubAnalyticsStore) ListSurveys(_ context.Context, activeOnly bool) ([]*Survey, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []*Survey{}
	for _, sv := range s.surveys {
		if activeOnly && !sv.Active {
			continue
		}
		cp := *sv
		out = append(out, &cp)
	}
	return out, nil
}

// ListResponses filters before capping, newest first, like the real stores.
func (s *stubAnalyticsStore) ListResponses(_ context.Context, f ResponseFilter, limit int) ([]*Response, error) {
	s.mu.Lock()
	s.lastLimit = limit
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	all := make([]Response, 0, len(s.responses))
	for _, r := range s.responses {
		all = append(all, *r)
	}
	matched := FilterResponses(all, f)
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	out := []*Response{}
	for i := range matched {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, &matched[i])
	}
	return out, nil
}

func (s *stubAnalyticsStore) CountByYear(_ context.Context, country *string) (map[int]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	counts := map[int]int{}
	for _, r := range s.responses {
		if country != nil && r.Country != *country {
			continue
		}
		counts[r.ResponseYear]++
	}
	return counts, nil
}

func analyticsFixture() *stubAnalyticsStore {
	inactive := &Survey{ID: "S9", Title: "Old", Questions: []Question{{ID: "x", Options: []string{"A"}}}}
	may := func(y int) time.Time { return time.Date(y, time.May, 3, 0, 0, 0, 0, time.UTC) }
	return &stubAnalyticsStore{
		surveys: []*Survey{sampleSurvey(), inactive},
		responses: []*Response{
			{UserID: "u1", SurveyID: "S1", QuestionIndex: 0, Answer: "Yes", Country: "Kenya", ResponseYear: 2024, CreatedAt: may(2024)},
			{UserID: "u1", SurveyID: "S1", QuestionIndex: 1, Answer: "Daily", Country: "Kenya", ResponseYear: 2024, CreatedAt: may(2024)},
			{UserID: "u2", SurveyID: "S1", QuestionIndex: 0, Answer: "No", Country: "Nigeria", ResponseYear: 2024, CreatedAt: may(2024)},
			{UserID: "u1", SurveyID: "S1", QuestionIndex: 0, Answer: "Yes", Country: "Kenya", ResponseYear: 2025, CreatedAt: may(2025)},
			{UserID: "u3", SurveyID: "S9", QuestionIndex: 0, Answer: "A", Country: "Ghana", ResponseYear: 2025, CreatedAt: may(2025)},
		},
	}
}

func TestAnalyticsBasic(t *testing.T) {
	store := analyticsFixture()
	got, err := NewAnalyticsService(store).Basic(context.Background())
	if err != nil {
		t.Fatalf("Basic error: %v", err)
	}
	if store.lastLimit != DefaultMaxRecords {
		t.Fatalf("limit = %d, want %d", store.lastLimit, DefaultMaxRecords)
	}
	if len(got) != 1 || got[0].SurveyID != "S1" {
		t.Fatalf("expected only the active survey, got %+v", got)
	}
	q1 := got[0].Questions[0]
	if q1.TotalResponses != 3 || q1.Results[0].Option != "Yes" || q1.Results[0].Percentage != 67 {
		t.Fatalf("unexpected q1 insight: %+v", q1)
	}
}

func TestAnalyticsDashboardFilters(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture()).WithLimits(0, 1)
	ctx := context.Background()

	all, err := svc.Dashboard(ctx, ResponseFilter{})
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if all.Participants != 3 || all.TotalResponses != 5 {
		t.Fatalf("unexpected totals: %+v", all)
	}
	if len(all.TopCountries) != 1 || all.TopCountries[0].Country != "Kenya" {
		t.Fatalf("top countries = %+v", all.TopCountries)
	}
	if len(all.AvailableYears) != 2 || all.AvailableYears[0] != 2025 {
		t.Fatalf("years = %v", all.AvailableYears)
	}
	if len(all.MonthlyTrend) != 12 || all.MonthlyTrend[4].Count != 5 {
		t.Fatalf("monthly trend = %+v", all.MonthlyTrend)
	}

	kenya, y := "Kenya", 2024
	d, err := svc.Dashboard(ctx, ResponseFilter{Country: &kenya, Year: &y})
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if d.TotalResponses != 2 || d.Participants != 1 {
		t.Fatalf("filtered totals: %+v", d)
	}
	// The yearly trend ignores the year filter so the whole history stays visible.
	if len(d.YearlyTrend) != 2 || d.YearlyTrend[1].Count != 1 {
		t.Fatalf("yearly trend = %+v", d.YearlyTrend)
	}
	if d.MonthlyTrend[4].Count != 2 {
		t.Fatalf("monthly trend = %+v", d.MonthlyTrend)
	}
	if len(d.AvailableYears) != 2 {
		t.Fatalf("available years must not be filtered: %v", d.AvailableYears)
	}
}

func TestAnalyticsStoreFailure(t *testing.T) {
	svc := NewAnalyticsService(&stubAnalyticsStore{err: errors.New("offline")})
	if _, err := svc.Basic(context.Background()); !HasCode(err, ErrorStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if _, err := svc.Dashboard(context.Background(), ResponseFilter{}); !HasCode(err, ErrorStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestAnalyticsFiltersReachPastRecordCap(t *testing.T) {
	store := &stubAnalyticsStore{surveys: []*Survey{sampleSurvey()}}
	old := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.responses = append(store.responses, &Response{
			UserID: fmt.Sprintf("g%d", i), SurveyID: "S1", Answer: "Yes",
			Country: "Ghana", ResponseYear: 2023, CreatedAt: old.Add(time.Duration(i) * time.Hour),
		})
	}
	recent := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		store.responses = append(store.responses, &Response{
			UserID: fmt.Sprintf("k%d", i), SurveyID: "S1", Answer: "No",
			Country: "Kenya", ResponseYear: 2024, CreatedAt: recent.Add(time.Duration(i) * time.Hour),
		})
	}
	svc := NewAnalyticsService(store).WithLimits(10, 0)
	ctx := context.Background()

	y2023 := 2023
	d, err := svc.Dashboard(ctx, ResponseFilter{Year: &y2023})
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if d.TotalResponses != 5 || d.Participants != 5 {
		t.Fatalf("2023 totals = %d/%d, want 5/5", d.TotalResponses, d.Participants)
	}
	if len(d.AvailableYears) != 2 || d.AvailableYears[0] != 2024 || d.AvailableYears[1] != 2023 {
		t.Fatalf("available years = %v", d.AvailableYears)
	}

	ghana := "Ghana"
	d, err = svc.Dashboard(ctx, ResponseFilter{Country: &ghana})
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if d.TotalResponses != 5 {
		t.Fatalf("Ghana total = %d, want 5", d.TotalResponses)
	}
	if len(d.YearlyTrend) != 1 || d.YearlyTrend[0].Bucket != 2023 || d.YearlyTrend[0].Count != 5 {
		t.Fatalf("Ghana yearly trend = %+v", d.YearlyTrend)
	}

	d, err = svc.Dashboard(ctx, ResponseFilter{})
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if d.TotalResponses != 10 {
		t.Fatalf("unfiltered total = %d, want the cap of 10", d.TotalResponses)
	}
	if len(d.YearlyTrend) != 2 || d.YearlyTrend[0].Count != 5 || d.YearlyTrend[1].Count != 20 {
		t.Fatalf("yearly trend must count the whole history: %+v", d.YearlyTrend)
	}
	if len(d.DailyTrend) != 1 || d.DailyTrend[0].Label != "2024-06-01" || d.DailyTrend[0].Count != 10 {
		t.Fatalf("daily trend = %+v", d.DailyTrend)
	}
}
