package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/models"
)

// Snapshot is a table export of the hosted backend: one array per table.
type Snapshot struct {
	Surveys           []snapshotSurvey           `json:"surveys"`
	SurveyResponses   []*models.SurveyResponse   `json:"survey_responses"`
	UserVerifications []*models.UserVerification `json:"user_verifications"`
}

// snapshotSurvey accepts questions either as the JSON-encoded string the
// backend stores or as a plain array.
type snapshotSurvey struct {
	models.Survey
	RawQuestions json.RawMessage `json:"questions"`
}

var errNoQuestions = errors.New("survey has no questions")

func (s snapshotSurvey) questions() (string, error) {
	raw := s.RawQuestions
	if len(raw) == 0 || string(raw) == "null" {
		return "", errNoQuestions
	}
	var encoded string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return "", err
		}
		raw = json.RawMessage(encoded)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", fmt.Errorf("questions are not a JSON array: %w", err)
	}
	if len(items) == 0 {
		return "", errNoQuestions
	}
	return string(raw), nil
}

type ImportStats struct {
	Surveys        int `json:"surveys"`
	Responses      int `json:"responses"`
	Verifications  int `json:"verifications"`
	SkippedSurveys int `json:"skipped_surveys"`
	SkippedSets    int `json:"skipped_sets"`
	SkippedVerifs  int `json:"skipped_verifications"`
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

type completion struct {
	user, survey string
	year         int
}

// ImportSnapshot copies snap into dst. Responses are written one (user,
// survey, year) set at a time; a set the store already holds is skipped, so
// importing the same snapshot twice is harmless.
func ImportSnapshot(ctx context.Context, snap *Snapshot, dst api.Store, logger *zap.Logger) (ImportStats, error) {
	var stats ImportStats
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()

	for i := range snap.Surveys {
		ss := snap.Surveys[i]
		qs, err := ss.questions()
		if err != nil || ss.ID == "" {
			logger.Warn("skipping survey", zap.String("id", ss.ID), zap.Error(err))
			stats.SkippedSurveys++
			continue
		}
		sv := ss.Survey
		sv.Questions = qs
		if sv.CreatedAt.IsZero() {
			sv.CreatedAt = now
		}
		if err := dst.InsertSurvey(ctx, &sv); err != nil {
			return stats, fmt.Errorf("import survey %s: %w", sv.ID, err)
		}
		stats.Surveys++
	}

	var order []completion
	sets := map[completion][]*models.SurveyResponse{}
	for _, r := range snap.SurveyResponses {
		if r == nil {
			continue
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.ResponseYear == 0 {
			r.ResponseYear = r.CreatedAt.Year()
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		k := completion{r.UserID, r.SurveyID, r.ResponseYear}
		if _, ok := sets[k]; !ok {
			order = append(order, k)
		}
		sets[k] = append(sets[k], r)
	}
	for _, k := range order {
		set := sets[k]
		submission := set[0].SubmissionID
		if submission == "" {
			submission = uuid.NewString()
		}
		for _, r := range set {
			if r.SubmissionID == "" {
				r.SubmissionID = submission
			}
		}
		err := dst.AddResponses(ctx, set)
		if errors.Is(err, models.ErrDuplicateSubmission) {
			logger.Debug("response set already present",
				zap.String("user_id", k.user), zap.String("survey_id", k.survey), zap.Int("year", k.year))
			stats.SkippedSets++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("import responses: %w", err)
		}
		stats.Responses += len(set)
	}

	for _, v := range snap.UserVerifications {
		if v == nil || v.UserID == "" {
			stats.SkippedVerifs++
			continue
		}
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		if err := dst.AddVerification(ctx, v); err != nil {
			if isConstraint(err) {
				stats.SkippedVerifs++
				continue
			}
			return stats, fmt.Errorf("import verification %s: %w", v.ID, err)
		}
		stats.Verifications++
	}
	return stats, nil
}
