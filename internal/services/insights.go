package services

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// DefaultCategory labels surveys that were stored without one.
const DefaultCategory = "General"

type OptionResult struct {
	Option     string  `json:"option"`
	Count      int     `json:"count"`
	Percentage int     `json:"percentage"`
	Share      float64 `json:"share"`
}

type QuestionInsight struct {
	QuestionID     string         `json:"question_id"`
	Question       string         `json:"question"`
	Index          int            `json:"index"`
	Results        []OptionResult `json:"results"`
	TotalResponses int            `json:"total_responses"`
}

type SurveyInsight struct {
	SurveyID    string            `json:"survey_id"`
	SurveyTitle string            `json:"survey_title"`
	Category    string            `json:"category"`
	Questions   []QuestionInsight `json:"question_insights"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type Granularity int

const (
	Yearly Granularity = iota
	Monthly
	Daily
)

// TimeBucket is a trend point. Bucket is the year, the month number 1..12, or
// the day as yyyymmdd.
type TimeBucket struct {
	Bucket int    `json:"bucket"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// ResponseFilter narrows a response set. A nil field does not filter.
type ResponseFilter struct {
	Country *string `json:"country,omitempty"`
	Year    *int    `json:"year,omitempty"`
	Month   *int    `json:"month,omitempty"`
}

// DetailedInsight tallies the raw answers given to one survey question.
type DetailedInsight struct {
	SurveyID       string         `json:"survey_id"`
	SurveyTitle    string         `json:"survey_title"`
	Category       string         `json:"category"`
	QuestionIndex  int            `json:"question_index"`
	Question       string         `json:"question"`
	Answers        []OptionResult `json:"answers"`
	TotalResponses int            `json:"total_responses"`
}

type CategoryRollup struct {
	Category  string `json:"category"`
	Responses int    `json:"responses"`
	Questions int    `json:"questions"`
}

func roundPercent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(count)*100/float64(total) + 0.5))
}

func roundShare(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Floor(float64(count)*1000/float64(total)+0.5) / 10
}

// AggregateByQuestion tallies the declared options of every question of survey.
// Answers outside the option set are ignored and do not count toward the total.
func AggregateByQuestion(responses []Response, survey *Survey) []QuestionInsight {
	if survey == nil {
		return nil
	}
	counts := make([]map[string]int, len(survey.Questions))
	for i := range survey.Questions {
		counts[i] = map[string]int{}
	}
	for _, r := range responses {
		if r.SurveyID != survey.ID || r.QuestionIndex < 0 || r.QuestionIndex >= len(survey.Questions) {
			continue
		}
		if survey.Questions[r.QuestionIndex].HasOption(r.Answer) {
			counts[r.QuestionIndex][r.Answer]++
		}
	}
	out := make([]QuestionInsight, 0, len(survey.Questions))
	for i, q := range survey.Questions {
		total := 0
		for _, c := range counts[i] {
			total += c
		}
		results := make([]OptionResult, 0, len(q.Options))
		seen := map[string]bool{}
		for _, opt := range q.Options {
			if seen[opt] {
				continue
			}
			seen[opt] = true
			c := counts[i][opt]
			results = append(results, OptionResult{
				Option:     opt,
				Count:      c,
				Percentage: roundPercent(c, total),
				Share:      roundShare(c, total),
			})
		}
		sort.SliceStable(results, func(a, b int) bool { return results[a].Count > results[b].Count })
		out = append(out, QuestionInsight{
			QuestionID:     q.ID,
			Question:       q.Prompt,
			Index:          i,
			Results:        results,
			TotalResponses: total,
		})
	}
	return out
}

// AggregateSurveys runs AggregateByQuestion for each survey.
func AggregateSurveys(responses []Response, surveys []*Survey) []SurveyInsight {
	bySurvey := map[string][]Response{}
	for _, r := range responses {
		bySurvey[r.SurveyID] = append(bySurvey[r.SurveyID], r)
	}
	out := make([]SurveyInsight, 0, len(surveys))
	for _, sv := range surveys {
		if sv == nil {
			continue
		}
		out = append(out, SurveyInsight{
			SurveyID:    sv.ID,
			SurveyTitle: sv.Title,
			Category:    categoryOf(sv),
			Questions:   AggregateByQuestion(bySurvey[sv.ID], sv),
		})
	}
	return out
}

// AggregateByCountry counts responses per country, most frequent first.
// Responses without a country are skipped. topN <= 0 keeps every country.
func AggregateByCountry(responses []Response, topN int) []CountryCount {
	counts := map[string]int{}
	for _, r := range responses {
		if r.Country == "" {
			continue
		}
		counts[r.Country]++
	}
	out := make([]CountryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CountryCount{Country: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// AggregateByTimeBucket groups responses by response year (ascending, years with
// data only), by creation month (always January through December) or by
// creation day (ascending, days with data only).
func AggregateByTimeBucket(responses []Response, g Granularity) []TimeBucket {
	if g == Daily {
		return dailyBuckets(responses)
	}
	if g == Monthly {
		var months [12]int
		for _, r := range responses {
			if r.CreatedAt.IsZero() {
				continue
			}
			months[r.CreatedAt.UTC().Month()-1]++
		}
		out := make([]TimeBucket, 12)
		for i := range out {
			out[i] = TimeBucket{Bucket: i + 1, Label: time.Month(i + 1).String(), Count: months[i]}
		}
		return out
	}
	counts := map[int]int{}
	for _, r := range responses {
		if r.ResponseYear == 0 {
			continue
		}
		counts[r.ResponseYear]++
	}
	return YearlyBuckets(counts)
}

// YearlyBuckets turns per-year counts into an ascending trend. Zero years and
// empty counts are dropped.
func YearlyBuckets(counts map[int]int) []TimeBucket {
	years := make([]int, 0, len(counts))
	for y, n := range counts {
		if y == 0 || n == 0 {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]TimeBucket, 0, len(years))
	for _, y := range years {
		out = append(out, TimeBucket{Bucket: y, Label: strconv.Itoa(y), Count: counts[y]})
	}
	return out
}

func dailyBuckets(responses []Response) []TimeBucket {
	counts := map[int]int{}
	for _, r := range responses {
		if r.CreatedAt.IsZero() {
			continue
		}
		y, m, d := r.CreatedAt.UTC().Date()
		counts[y*10000+int(m)*100+d]++
	}
	days := make([]int, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Ints(days)
	out := make([]TimeBucket, 0, len(days))
	for _, d := range days {
		day := time.Date(d/10000, time.Month(d/100%100), d%100, 0, 0, 0, 0, time.UTC)
		out = append(out, TimeBucket{Bucket: d, Label: day.Format(time.DateOnly), Count: counts[d]})
	}
	return out
}

// FilterResponses applies the equality filters set in f.
func FilterResponses(responses []Response, f ResponseFilter) []Response {
	out := make([]Response, 0, len(responses))
	for _, r := range responses {
		if f.Country != nil && r.Country != *f.Country {
			continue
		}
		if f.Year != nil && r.ResponseYear != *f.Year {
			continue
		}
		if f.Month != nil && (r.CreatedAt.IsZero() || int(r.CreatedAt.UTC().Month()) != *f.Month) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// UniqueParticipants counts distinct users in responses.
func UniqueParticipants(responses []Response) int {
	seen := map[string]struct{}{}
	for _, r := range responses {
		seen[r.UserID] = struct{}{}
	}
	return len(seen)
}

// AvailableYears lists the years with at least one response, newest first.
func AvailableYears(counts map[int]int) []int {
	buckets := YearlyBuckets(counts)
	out := make([]int, len(buckets))
	for i, b := range buckets {
		out[len(buckets)-1-i] = b.Bucket
	}
	return out
}

// DetailedInsights tallies every answer given per (survey, question), including
// answers outside the declared options. Responses for unknown surveys are skipped.
func DetailedInsights(responses []Response, surveys []*Survey) []DetailedInsight {
	byID := map[string]*Survey{}
	for _, sv := range surveys {
		if sv != nil {
			byID[sv.ID] = sv
		}
	}
	type key struct {
		survey string
		index  int
	}
	counts := map[key]map[string]int{}
	for _, r := range responses {
		if byID[r.SurveyID] == nil {
			continue
		}
		k := key{r.SurveyID, r.QuestionIndex}
		if counts[k] == nil {
			counts[k] = map[string]int{}
		}
		counts[k][r.Answer]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].survey != keys[j].survey {
			return keys[i].survey < keys[j].survey
		}
		return keys[i].index < keys[j].index
	})
	out := make([]DetailedInsight, 0, len(keys))
	for _, k := range keys {
		sv := byID[k.survey]
		total := 0
		for _, c := range counts[k] {
			total += c
		}
		answers := make([]OptionResult, 0, len(counts[k]))
		for a, c := range counts[k] {
			answers = append(answers, OptionResult{Option: a, Count: c, Percentage: roundPercent(c, total), Share: roundShare(c, total)})
		}
		sort.Slice(answers, func(i, j int) bool {
			if answers[i].Count != answers[j].Count {
				return answers[i].Count > answers[j].Count
			}
			return answers[i].Option < answers[j].Option
		})
		prompt := ""
		if k.index >= 0 && k.index < len(sv.Questions) {
			prompt = sv.Questions[k.index].Prompt
		}
		out = append(out, DetailedInsight{
			SurveyID:       sv.ID,
			SurveyTitle:    sv.Title,
			Category:       categoryOf(sv),
			QuestionIndex:  k.index,
			Question:       prompt,
			Answers:        answers,
			TotalResponses: total,
		})
	}
	return out
}

// AggregateByCategory sums detailed insights per survey category.
func AggregateByCategory(insights []DetailedInsight) []CategoryRollup {
	idx := map[string]int{}
	var out []CategoryRollup
	for _, in := range insights {
		i, ok := idx[in.Category]
		if !ok {
			i = len(out)
			idx[in.Category] = i
			out = append(out, CategoryRollup{Category: in.Category})
		}
		out[i].Responses += in.TotalResponses
		out[i].Questions++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Responses > out[j].Responses })
	return out
}

func categoryOf(sv *Survey) string {
	if sv.Category == "" {
		return DefaultCategory
	}
	return sv.Category
}
