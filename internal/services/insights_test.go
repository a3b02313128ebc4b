package services

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleSurvey() *Survey {
	return &Survey{
		ID:       "S1",
		Title:    "Mobile money",
		Category: "Economic & Financial",
		Active:   true,
		Questions: []Question{
			{ID: "q1", Prompt: "Do you use mobile money?", Options: []string{"Yes", "No"}},
			{ID: "q2", Prompt: "How often?", Options: []string{"Daily", "Weekly", "Monthly"}},
		},
	}
}

func at(y int, m time.Month) time.Time { return time.Date(y, m, 10, 12, 0, 0, 0, time.UTC) }

func TestAggregateByQuestionCountsAndOrder(t *testing.T) {
	sv := sampleSurvey()
	responses := []Response{
		{SurveyID: "S1", QuestionIndex: 0, Answer: "No"},
		{SurveyID: "S1", QuestionIndex: 0, Answer: "Yes"},
		{SurveyID: "S1", QuestionIndex: 0, Answer: "No"},
		{SurveyID: "S1", QuestionIndex: 0, Answer: "Maybe"},
		{SurveyID: "S1", QuestionIndex: 1, Answer: "Weekly"},
		{SurveyID: "S2", QuestionIndex: 0, Answer: "Yes"},
		{SurveyID: "S1", QuestionIndex: 7, Answer: "Yes"},
	}
	got := AggregateByQuestion(responses, sv)
	want := []QuestionInsight{
		{
			QuestionID: "q1", Question: "Do you use mobile money?", Index: 0, TotalResponses: 3,
			Results: []OptionResult{
				{Option: "No", Count: 2, Percentage: 67, Share: 66.7},
				{Option: "Yes", Count: 1, Percentage: 33, Share: 33.3},
			},
		},
		{
			QuestionID: "q2", Question: "How often?", Index: 1, TotalResponses: 1,
			Results: []OptionResult{
				{Option: "Weekly", Count: 1, Percentage: 100, Share: 100},
				{Option: "Daily", Count: 0, Percentage: 0, Share: 0},
				{Option: "Monthly", Count: 0, Percentage: 0, Share: 0},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateByQuestion mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateByQuestionPercentagesSumTo100(t *testing.T) {
	sv := sampleSurvey()
	sets := [][]string{
		{"Daily", "Weekly", "Monthly"},
		{"Daily", "Daily", "Weekly"},
		{"Daily", "Weekly", "Weekly", "Monthly", "Monthly", "Monthly"},
		{"Monthly"},
	}
	for _, answers := range sets {
		var rs []Response
		for _, a := range answers {
			rs = append(rs, Response{SurveyID: "S1", QuestionIndex: 1, Answer: a})
		}
		q := AggregateByQuestion(rs, sv)[1]
		sum := 0
		for _, r := range q.Results {
			sum += r.Percentage
		}
		if sum < 99 || sum > 101 {
			t.Fatalf("answers %v: percentages sum to %d", answers, sum)
		}
	}
}

func TestAggregateByQuestionNoResponses(t *testing.T) {
	for _, q := range AggregateByQuestion(nil, sampleSurvey()) {
		if q.TotalResponses != 0 {
			t.Fatalf("total = %d, want 0", q.TotalResponses)
		}
		for i, r := range q.Results {
			if r.Count != 0 || r.Percentage != 0 || r.Share != 0 {
				t.Fatalf("non-zero result %+v", r)
			}
			if r.Option != sampleSurvey().Questions[q.Index].Options[i] {
				t.Fatalf("tie order broken: %q at %d", r.Option, i)
			}
		}
	}
}

func TestAggregateByCountry(t *testing.T) {
	rs := []Response{{Country: "Kenya"}, {Country: "Kenya"}, {Country: "Nigeria"}, {}}
	got := AggregateByCountry(rs, 0)
	want := []CountryCount{{Country: "Kenya", Count: 2}, {Country: "Nigeria", Count: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateByCountry mismatch (-want +got):\n%s", diff)
	}
	if top := AggregateByCountry(rs, 1); len(top) != 1 || top[0].Country != "Kenya" {
		t.Fatalf("top 1 = %+v", top)
	}
}

func TestAggregateByTimeBucketMonthly(t *testing.T) {
	rs := []Response{
		{CreatedAt: at(2024, time.March)},
		{CreatedAt: at(2024, time.March)},
		{CreatedAt: at(2023, time.December)},
	}
	got := AggregateByTimeBucket(rs, Monthly)
	if len(got) != 12 {
		t.Fatalf("monthly buckets = %d, want 12", len(got))
	}
	for i, b := range got {
		if b.Bucket != i+1 || b.Label != time.Month(i+1).String() {
			t.Fatalf("bucket %d = %+v", i, b)
		}
	}
	if got[2].Count != 2 || got[11].Count != 1 || got[0].Count != 0 {
		t.Fatalf("unexpected monthly counts: %+v", got)
	}
	if empty := AggregateByTimeBucket(nil, Monthly); len(empty) != 12 {
		t.Fatalf("empty monthly buckets = %d, want 12", len(empty))
	}
}

func TestAggregateByTimeBucketYearly(t *testing.T) {
	rs := []Response{{ResponseYear: 2025}, {ResponseYear: 2023}, {ResponseYear: 2025}, {}}
	got := AggregateByTimeBucket(rs, Yearly)
	want := []TimeBucket{{Bucket: 2023, Label: "2023", Count: 1}, {Bucket: 2025, Label: "2025", Count: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("yearly mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterResponses(t *testing.T) {
	rs := []Response{
		{ID: "1", Country: "Kenya", ResponseYear: 2024, CreatedAt: at(2024, time.May)},
		{ID: "2", Country: "Ghana", ResponseYear: 2024, CreatedAt: at(2024, time.June)},
		{ID: "3", Country: "Kenya", ResponseYear: 2025, CreatedAt: at(2025, time.May)},
	}
	ids := func(in []Response) []string {
		out := []string{}
		for _, r := range in {
			out = append(out, r.ID)
		}
		return out
	}
	kenya, y2024, may := "Kenya", 2024, 5
	if got := ids(FilterResponses(rs, ResponseFilter{})); len(got) != 3 {
		t.Fatalf("no filter = %v", got)
	}
	if diff := cmp.Diff([]string{"1", "3"}, ids(FilterResponses(rs, ResponseFilter{Country: &kenya}))); diff != "" {
		t.Fatalf("country filter (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1"}, ids(FilterResponses(rs, ResponseFilter{Country: &kenya, Year: &y2024, Month: &may}))); diff != "" {
		t.Fatalf("combined filter (-want +got):\n%s", diff)
	}
	zero := 0
	if got := FilterResponses(rs, ResponseFilter{Year: &zero}); len(got) != 0 {
		t.Fatalf("year 0 is a literal value, got %d matches", len(got))
	}
}

func TestFilterByMonthSkipsUndatedResponses(t *testing.T) {
	rs := []Response{{ID: "undated"}, {ID: "jan", CreatedAt: at(2024, time.January)}}
	jan := 1
	got := FilterResponses(rs, ResponseFilter{Month: &jan})
	if len(got) != 1 || got[0].ID != "jan" {
		t.Fatalf("month filter = %+v", got)
	}
	if n := AggregateByTimeBucket(rs, Monthly)[0].Count; n != len(got) {
		t.Fatalf("january bucket %d disagrees with month filter %d", n, len(got))
	}
}

func TestAggregateByTimeBucketDaily(t *testing.T) {
	day := func(m time.Month, d, h int) time.Time { return time.Date(2024, m, d, h, 0, 0, 0, time.UTC) }
	rs := []Response{
		{CreatedAt: day(time.March, 2, 23)},
		{CreatedAt: day(time.February, 29, 8)},
		{CreatedAt: day(time.March, 2, 1)},
		{},
	}
	want := []TimeBucket{
		{Bucket: 20240229, Label: "2024-02-29", Count: 1},
		{Bucket: 20240302, Label: "2024-03-02", Count: 2},
	}
	if diff := cmp.Diff(want, AggregateByTimeBucket(rs, Daily)); diff != "" {
		t.Fatalf("daily mismatch (-want +got):\n%s", diff)
	}
	if got := AggregateByTimeBucket(nil, Daily); len(got) != 0 {
		t.Fatalf("empty daily = %+v", got)
	}
}

func TestYearlyBucketsDropsEmptyYears(t *testing.T) {
	got := YearlyBuckets(map[int]int{2025: 3, 0: 4, 2022: 1, 2023: 0})
	want := []TimeBucket{{Bucket: 2022, Label: "2022", Count: 1}, {Bucket: 2025, Label: "2025", Count: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("yearly buckets (-want +got):\n%s", diff)
	}
}

func TestDetailedInsightsAndCategories(t *testing.T) {
	sv := sampleSurvey()
	other := &Survey{ID: "S2", Title: "Health", Questions: []Question{{ID: "h1", Prompt: "Clinic nearby?", Options: []string{"Yes", "No"}}}}
	rs := []Response{
		{UserID: "u1", SurveyID: "S1", QuestionIndex: 0, Answer: "Yes", ResponseYear: 2024},
		{UserID: "u1", SurveyID: "S1", QuestionIndex: 1, Answer: "Daily", ResponseYear: 2024},
		{UserID: "u2", SurveyID: "S1", QuestionIndex: 0, Answer: "Yes", ResponseYear: 2025},
		{UserID: "u2", SurveyID: "S2", QuestionIndex: 0, Answer: "No", ResponseYear: 2025},
		{UserID: "u3", SurveyID: "gone", QuestionIndex: 0, Answer: "No", ResponseYear: 2025},
	}
	details := DetailedInsights(rs, []*Survey{sv, other})
	if len(details) != 3 {
		t.Fatalf("details = %d, want 3", len(details))
	}
	if details[0].SurveyID != "S1" || details[0].QuestionIndex != 0 || details[0].TotalResponses != 2 {
		t.Fatalf("first detail = %+v", details[0])
	}
	if details[2].Category != DefaultCategory {
		t.Fatalf("category = %q, want %q", details[2].Category, DefaultCategory)
	}
	cats := AggregateByCategory(details)
	want := []CategoryRollup{
		{Category: "Economic & Financial", Responses: 3, Questions: 2},
		{Category: DefaultCategory, Responses: 1, Questions: 1},
	}
	if diff := cmp.Diff(want, cats); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
	if n := UniqueParticipants(rs); n != 3 {
		t.Fatalf("participants = %d, want 3", n)
	}
	if diff := cmp.Diff([]int{2025, 2024}, AvailableYears(map[int]int{2024: 2, 2025: 1, 0: 1})); diff != "" {
		t.Fatalf("years (-want +got):\n%s", diff)
	}
}
