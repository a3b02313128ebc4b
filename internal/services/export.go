package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// ExportInsightsCSV renders one row per survey question option.
func ExportInsightsCSV(insights []SurveyInsight) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"survey_id", "survey_title", "category", "question_index", "question", "option", "count", "percentage", "total_responses"})
	for _, si := range insights {
		for _, q := range si.Questions {
			for _, r := range q.Results {
				rec := []string{
					si.SurveyID,
					si.SurveyTitle,
					si.Category,
					strconv.Itoa(q.Index),
					q.Question,
					r.Option,
					strconv.Itoa(r.Count),
					strconv.Itoa(r.Percentage),
					strconv.Itoa(q.TotalResponses),
				}
				if err := w.Write(rec); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportResponsesCSV renders raw responses in long format. Contact fields are
// left out; only the country of the snapshot is kept.
func ExportResponsesCSV(responses []Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"submission_id", "survey_id", "user_id", "question_index", "answer", "response_year", "country", "is_verified", "created_at"})
	for _, r := range responses {
		rec := []string{
			r.SubmissionID,
			r.SurveyID,
			r.UserID,
			strconv.Itoa(r.QuestionIndex),
			r.Answer,
			strconv.Itoa(r.ResponseYear),
			r.Country,
			strconv.FormatBool(r.Verified),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
