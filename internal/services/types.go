package services

import "time"

// Question is a closed-choice prompt. Options keep their declaration order.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// HasOption reports whether answer is one of the declared options.
func (q Question) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}

type Survey struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Questions   []Question `json:"questions"`
	Active      bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	OwnerID     string     `json:"owner_id,omitempty"`
}

// QuestionIndex returns the position of the question with id, or -1.
func (s *Survey) QuestionIndex(id string) int {
	for i, q := range s.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Response is one stored answer, tagged with the calendar year it was submitted in.
type Response struct {
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
	Verified      bool      `json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type Verification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber string     `json:"phone_number"`
	Country     string     `json:"country"`
	CodeHash    string     `json:"-"`
	Verified    bool       `json:"is_verified"`
	Attempts    int        `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"-"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// ResponseQuery is the service-side view of a store list call.
type ResponseQuery struct {
	UserID      string
	SurveyID    string
	Year        *int
	OrderByYear bool
	Limit       int
}

type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}
