package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SurveyStore abstracts persistence operations required by SurveyService.
type SurveyStore interface {
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	ListResponses(ctx context.Context, q ResponseQuery) ([]*Response, error)
	LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*Verification, error)
	AddResponses(ctx context.Context, rs []*Response) error
}

// ErrDuplicateSubmission is returned by AddResponses when the store already
// holds a response set for the same (user, survey, year). Store adapters
// translate their own duplicate error into this one.
var ErrDuplicateSubmission = errors.New("response set already stored for this year")

// Eligibility is the outcome of the annual gate for one (user, survey, year).
type Eligibility struct {
	Eligible          bool `json:"eligible"`
	Year              int  `json:"year"`
	LastCompletedYear *int `json:"last_completed_year,omitempty"`
}

// SubmitRequest carries one response set. Answers maps question id to the chosen option.
type SubmitRequest struct {
	UserID   string
	SurveyID string
	Answers  map[string]string
	Year     int
}

type SubmitResult struct {
	SubmissionID   string `json:"submission_id"`
	ResponsesCount int    `json:"responses_count"`
	Year           int    `json:"year"`
}

// SurveyService hosts the annual eligibility gate and the submission workflow.
type SurveyService struct {
	store               SurveyStore
	now                 func() time.Time
	idGenerator         func() string
	requireVerification bool
}

func NewSurveyService(store SurveyStore) *SurveyService {
	return &SurveyService{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// RequireVerification makes Submit reject users without a verified record.
func (s *SurveyService) RequireVerification(on bool) *SurveyService {
	s.requireVerification = on
	return s
}

// CurrentYear is the calendar year used for new submissions.
func (s *SurveyService) CurrentYear() int {
	return s.now().Year()
}

func (s *SurveyService) CheckEligibility(ctx context.Context, userID, surveyID string, year int) (*Eligibility, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(surveyID) == "" {
		return nil, NewInvalidError("user and survey required")
	}
	if year <= 0 {
		return nil, NewInvalidError("year required")
	}
	existing, err := s.store.ListResponses(ctx, ResponseQuery{UserID: userID, SurveyID: surveyID, Year: &year, Limit: 1})
	if err != nil {
		return nil, NewStoreUnavailableError("check eligibility", err)
	}
	el := &Eligibility{Eligible: len(existing) == 0, Year: year}

	latest, err := s.store.ListResponses(ctx, ResponseQuery{UserID: userID, SurveyID: surveyID, OrderByYear: true, Limit: 1})
	if err != nil {
		return nil, NewStoreUnavailableError("load last completed year", err)
	}
	if len(latest) > 0 && latest[0] != nil {
		y := latest[0].ResponseYear
		el.LastCompletedYear = &y
	}
	return el, nil
}

// Submit stores one response per answered question, tagged with req.Year.
// Partial answer sets are accepted; completeness is the caller's concern.
func (s *SurveyService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if s.store == nil {
		return nil, errors.New("survey service store is nil")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, NewUnauthorizedError("user required")
	}
	if req.Year <= 0 {
		req.Year = s.CurrentYear()
	}

	sv, err := s.store.GetSurvey(ctx, req.SurveyID)
	if err != nil {
		return nil, NewStoreUnavailableError("load survey", err)
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	if !sv.Active {
		return nil, NewInvalidError("survey is not active")
	}

	el, err := s.CheckEligibility(ctx, req.UserID, req.SurveyID, req.Year)
	if err != nil {
		return nil, err
	}
	if !el.Eligible {
		return nil, NewAlreadyCompletedError("survey already completed this year")
	}

	if len(req.Answers) == 0 {
		return nil, NewInvalidError("answers required")
	}
	for qid, answer := range req.Answers {
		idx := sv.QuestionIndex(qid)
		if idx < 0 {
			return nil, NewInvalidAnswerError("unknown question " + qid)
		}
		if !sv.Questions[idx].HasOption(answer) {
			return nil, NewInvalidAnswerError("answer for " + qid + " is not one of its options")
		}
	}

	var snap *Verification
	if v, err := s.store.LatestVerification(ctx, req.UserID, true); err != nil {
		return nil, NewStoreUnavailableError("load verification", err)
	} else if v != nil && v.Verified {
		snap = v
	}
	if s.requireVerification && snap == nil {
		return nil, NewForbiddenError("verification required")
	}

	submissionID := s.idGenerator()
	createdAt := s.now()
	responses := make([]*Response, 0, len(req.Answers))
	for i, q := range sv.Questions {
		answer, ok := req.Answers[q.ID]
		if !ok {
			continue
		}
		r := &Response{
			ID:            s.idGenerator(),
			SurveyID:      sv.ID,
			UserID:        req.UserID,
			SubmissionID:  submissionID,
			QuestionIndex: i,
			Answer:        answer,
			ResponseYear:  req.Year,
			CreatedAt:     createdAt,
		}
		if snap != nil {
			r.FirstName = snap.FirstName
			r.LastName = snap.LastName
			r.PhoneNumber = snap.PhoneNumber
			r.Country = snap.Country
			r.Verified = snap.Verified
		}
		responses = append(responses, r)
	}

	if err := s.store.AddResponses(ctx, responses); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			return nil, NewAlreadyCompletedError("survey already completed this year")
		}
		return nil, NewStoreUnavailableError("store responses", err)
	}

	return &SubmitResult{
		SubmissionID:   submissionID,
		ResponsesCount: len(responses),
		Year:           req.Year,
	}, nil
}
