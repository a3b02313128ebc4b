package services

import (
	"context"
	"fmt"
	"sync"
)

// SessionState is a step of one survey-taking session.
type SessionState int

const (
	StateLoading SessionState = iota
	StateEligible
	StateIneligible
	StateAnswering
	StateSubmitting
	StateCompleted
	StateFailed
)

var sessionStateNames = [...]string{"loading", "eligible", "ineligible", "answering", "submitting", "completed", "failed"}

func (s SessionState) String() string {
	if int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SurveySession walks one user through one survey. It is not persisted; answers
// survive a failed submission so the user can retry.
type SurveySession struct {
	mu      sync.Mutex
	svc     *SurveyService
	survey  *Survey
	userID  string
	year    int
	state   SessionState
	current int
	answers map[string]string
	elig    *Eligibility
	result  *SubmitResult
	lastErr error
}

func NewSurveySession(svc *SurveyService, survey *Survey, userID string) *SurveySession {
	return &SurveySession{
		svc:     svc,
		survey:  survey,
		userID:  userID,
		year:    svc.CurrentYear(),
		state:   StateLoading,
		answers: map[string]string{},
	}
}

// ForYear answers the survey for year instead of the current year. Call it
// before Load.
func (s *SurveySession) ForYear(year int) *SurveySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if year > 0 && s.state == StateLoading {
		s.year = year
	}
	return s
}

func (s *SurveySession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SurveySession) Eligibility() *Eligibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elig
}

func (s *SurveySession) Result() *SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err is the error of the last failed submission.
func (s *SurveySession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load runs the eligibility check and leaves the session Eligible or Ineligible.
// A survey without questions cannot be taken and stays Loading.
func (s *SurveySession) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return s.transitionErr("load")
	}
	if s.survey == nil || len(s.survey.Questions) == 0 {
		return NewInvalidError("survey has no questions")
	}
	el, err := s.svc.CheckEligibility(ctx, s.userID, s.survey.ID, s.year)
	if err != nil {
		return err
	}
	s.elig = el
	if el.Eligible {
		s.state = StateEligible
	} else {
		s.state = StateIneligible
	}
	return nil
}

// Question returns the question under the cursor and its position. ok is
// false when the survey has no questions.
func (s *SurveySession) Question() (q Question, pos int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= len(s.survey.Questions) {
		return Question{}, 0, false
	}
	return s.survey.Questions[s.current], s.current, true
}

// Answer records the option chosen for question id.
func (s *SurveySession) Answer(questionID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateEligible, StateAnswering, StateFailed:
	default:
		return s.transitionErr("answer")
	}
	idx := s.survey.QuestionIndex(questionID)
	if idx < 0 {
		return NewInvalidAnswerError("unknown question " + questionID)
	}
	if !s.survey.Questions[idx].HasOption(option) {
		return NewInvalidAnswerError("answer for " + questionID + " is not one of its options")
	}
	s.answers[questionID] = option
	s.state = StateAnswering
	return nil
}

// Next moves the cursor forward once the current question has an answer.
func (s *SurveySession) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= len(s.survey.Questions) {
		return false
	}
	if _, ok := s.answers[s.survey.Questions[s.current].ID]; !ok {
		return false
	}
	if s.current >= len(s.survey.Questions)-1 {
		return false
	}
	s.current++
	return true
}

func (s *SurveySession) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == 0 {
		return false
	}
	s.current--
	return true
}

// Progress is the share of the survey reached by the cursor, in percent.
func (s *SurveySession) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.survey.Questions) == 0 {
		return 0
	}
	return float64(s.current+1) / float64(len(s.survey.Questions)) * 100
}

// Complete reports whether every question has an answer.
func (s *SurveySession) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

func (s *SurveySession) completeLocked() bool {
	for _, q := range s.survey.Questions {
		if _, ok := s.answers[q.ID]; !ok {
			return false
		}
	}
	return len(s.survey.Questions) > 0
}

// Submit sends the answers. A store failure leaves the session Failed with the
// answers kept; an already-completed rejection makes it Ineligible.
func (s *SurveySession) Submit(ctx context.Context) (*SubmitResult, error) {
	s.mu.Lock()
	if s.state != StateAnswering && s.state != StateFailed {
		defer s.mu.Unlock()
		return nil, s.transitionErr("submit")
	}
	if !s.completeLocked() {
		s.mu.Unlock()
		return nil, NewInvalidError("all questions must be answered")
	}
	s.state = StateSubmitting
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	s.mu.Unlock()

	res, err := s.svc.Submit(ctx, SubmitRequest{UserID: s.userID, SurveyID: s.survey.ID, Answers: answers, Year: s.year})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.state = StateCompleted
		s.result = res
		s.lastErr = nil
	case HasCode(err, ErrorAlreadyCompleted):
		s.state = StateIneligible
		y := s.year
		s.elig = &Eligibility{Eligible: false, Year: s.year, LastCompletedYear: &y}
		s.lastErr = err
	default:
		s.state = StateFailed
		s.lastErr = err
	}
	return res, err
}

func (s *SurveySession) transitionErr(op string) error {
	return NewConflictError(fmt.Sprintf("cannot %s while %s", op, s.state))
}
