package services

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type AnalyticsStore interface {
	ListSurveys(ctx context.Context, activeOnly bool) ([]*Survey, error)
	// ListResponses returns at most limit responses matching f, newest first.
	ListResponses(ctx context.Context, f ResponseFilter, limit int) ([]*Response, error)
	// CountByYear counts every stored response per response year. A non-nil
	// country narrows the count to that country.
	CountByYear(ctx context.Context, country *string) (map[int]int, error)
}

const (
	DefaultMaxRecords   = 1000
	DefaultTopCountries = 10
)

type AnalyticsService struct {
	store        AnalyticsStore
	maxRecords   int
	topCountries int
}

// Dashboard is the detailed insights view for one filter.
type Dashboard struct {
	Participants   int               `json:"participants"`
	TotalResponses int               `json:"total_responses"`
	AvailableYears []int             `json:"available_years"`
	TopCountries   []CountryCount    `json:"top_countries"`
	YearlyTrend    []TimeBucket      `json:"yearly_trend"`
	MonthlyTrend   []TimeBucket      `json:"monthly_trend"`
	DailyTrend     []TimeBucket      `json:"daily_trend"`
	Categories     []CategoryRollup  `json:"categories"`
	Details        []DetailedInsight `json:"details"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store, maxRecords: DefaultMaxRecords, topCountries: DefaultTopCountries}
}

// WithLimits overrides the record cap and the number of countries shown.
func (s *AnalyticsService) WithLimits(maxRecords, topCountries int) *AnalyticsService {
	if maxRecords > 0 {
		s.maxRecords = maxRecords
	}
	if topCountries > 0 {
		s.topCountries = topCountries
	}
	return s
}

// list loads the newest responses matching f. The record cap applies after
// filtering, so older data stays reachable through a narrower filter.
func (s *AnalyticsService) list(ctx context.Context, f ResponseFilter) ([]Response, error) {
	rs, err := s.store.ListResponses(ctx, f, s.maxRecords)
	if err != nil {
		return nil, NewStoreUnavailableError("list responses", err)
	}
	responses := make([]Response, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			responses = append(responses, *r)
		}
	}
	return responses, nil
}

func (s *AnalyticsService) surveys(ctx context.Context, activeOnly bool) ([]*Survey, error) {
	surveys, err := s.store.ListSurveys(ctx, activeOnly)
	if err != nil {
		return nil, NewStoreUnavailableError("list surveys", err)
	}
	return surveys, nil
}

func (s *AnalyticsService) countByYear(ctx context.Context, country *string) (map[int]int, error) {
	counts, err := s.store.CountByYear(ctx, country)
	if err != nil {
		return nil, NewStoreUnavailableError("count responses by year", err)
	}
	return counts, nil
}

// Basic returns question insights for every active survey.
func (s *AnalyticsService) Basic(ctx context.Context) ([]SurveyInsight, error) {
	surveys, err := s.surveys(ctx, true)
	if err != nil {
		return nil, err
	}
	responses, err := s.list(ctx, ResponseFilter{})
	if err != nil {
		return nil, err
	}
	return AggregateSurveys(responses, surveys), nil
}

// Dashboard builds every view of f. The yearly trend honours the country only
// and the monthly trend the country and year. Available years and the yearly
// trend count the whole history, not the capped record set.
func (s *AnalyticsService) Dashboard(ctx context.Context, f ResponseFilter) (*Dashboard, error) {
	var (
		surveys      []*Survey
		full, byYear []Response
		allYears     map[int]int
		countryYears map[int]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		surveys, err = s.surveys(gctx, false)
		return err
	})
	g.Go(func() (err error) {
		full, err = s.list(gctx, f)
		return err
	})
	if f.Month != nil {
		g.Go(func() (err error) {
			byYear, err = s.list(gctx, ResponseFilter{Country: f.Country, Year: f.Year})
			return err
		})
	}
	g.Go(func() (err error) {
		allYears, err = s.countByYear(gctx, nil)
		return err
	})
	if f.Country != nil {
		g.Go(func() (err error) {
			countryYears, err = s.countByYear(gctx, f.Country)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if f.Month == nil {
		byYear = full
	}
	if f.Country == nil {
		countryYears = allYears
	}

	details := DetailedInsights(full, surveys)
	return &Dashboard{
		Participants:   UniqueParticipants(full),
		TotalResponses: len(full),
		AvailableYears: AvailableYears(allYears),
		TopCountries:   AggregateByCountry(full, s.topCountries),
		YearlyTrend:    YearlyBuckets(countryYears),
		MonthlyTrend:   AggregateByTimeBucket(byYear, Monthly),
		DailyTrend:     AggregateByTimeBucket(full, Daily),
		Categories:     AggregateByCategory(details),
		Details:        details,
	}, nil
}

// Responses returns the capped response list used by the CSV export.
func (s *AnalyticsService) Responses(ctx context.Context, f ResponseFilter) ([]Response, error) {
	return s.list(ctx, f)
}
