package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Flag is a boolean that also accepts the "1"/"0" strings the hosted backend
// uses for its boolean columns.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "0", "false":
		*f = false
		return nil
	case "1", "true":
		*f = true
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = n > 0
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// Survey is the stored survey row. Questions holds the JSON-encoded question list.
type Survey struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Questions   string    `json:"questions"`
	IsActive    Flag      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id,omitempty"`
}

// SurveyResponse is one answered question. One row per (user, survey, question).
type SurveyResponse struct {
	ID            string    `json:"id"`
	SurveyID      string    `json:"survey_id"`
	UserID        string    `json:"user_id"`
	SubmissionID  string    `json:"submission_id,omitempty"`
	QuestionIndex int       `json:"question_index"`
	Answer        string    `json:"answer"`
	ResponseYear  int       `json:"response_year"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Country       string    `json:"country,omitempty"`
	IsVerified    Flag      `json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserVerification is a phone/locale claim. CodeHash is a bcrypt hash of the issued code.
type UserVerification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber string     `json:"phone_number"`
	Country     string     `json:"country"`
	CodeHash    string     `json:"verification_code,omitempty"`
	IsVerified  Flag       `json:"is_verified"`
	Attempts    int        `json:"attempts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// VerificationPatch lists the fields UpdateVerification may merge into a record.
// Attempts only move through Store.ReserveVerificationAttempt.
type VerificationPatch struct {
	IsVerified *bool
	VerifiedAt *time.Time
}

// ResponseOrder selects the sort applied by ListResponses.
type ResponseOrder int

const (
	OrderCreatedDesc ResponseOrder = iota
	OrderYearDesc
)

// ResponseQuery is an equality filter over stored responses. Nil pointers do not filter.
type ResponseQuery struct {
	UserID   string
	SurveyID string
	Year     *int
	Month    *int // month of CreatedAt (UTC); undated rows never match
	Country  *string
	OrderBy  ResponseOrder
	Limit    int
}

// User is an account able to sign in.
type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

// AIInsight is a generated narrative kept in the user's history. DataSources
// holds a JSON-encoded list of source names.
type AIInsight struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	InsightType string    `json:"insight_type"`
	Content     string    `json:"content"`
	DataSources string    `json:"data_sources"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SavedDashboard is a named dashboard filter owned by a user. Config holds the
// JSON-encoded filter.
type SavedDashboard struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Config      string    `json:"config"`
	IsPublic    Flag      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditEntry records a state-changing action.
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

// Matches reports whether r passes every filter set on q.
func (q ResponseQuery) Matches(r *SurveyResponse) bool {
	if q.UserID != "" && r.UserID != q.UserID {
		return false
	}
	if q.SurveyID != "" && r.SurveyID != q.SurveyID {
		return false
	}
	if q.Year != nil && r.ResponseYear != *q.Year {
		return false
	}
	if q.Country != nil && r.Country != *q.Country {
		return false
	}
	if q.Month != nil && (r.CreatedAt.IsZero() || int(r.CreatedAt.UTC().Month()) != *q.Month) {
		return false
	}
	return true
}
