package api

import (
	"encoding/json"
	"fmt"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

// Questions are stored as a JSON string on the survey row and decoded here.

func encodeSurvey(sv *services.Survey) (*models.Survey, error) {
	qs := sv.Questions
	if qs == nil {
		qs = []services.Question{}
	}
	b, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("encode questions of survey %s: %w", sv.ID, err)
	}
	return &models.Survey{
		ID:          sv.ID,
		Title:       sv.Title,
		Description: sv.Description,
		Category:    sv.Category,
		Questions:   string(b),
		IsActive:    models.Flag(sv.Active),
		CreatedAt:   sv.CreatedAt,
		UserID:      sv.OwnerID,
	}, nil
}

func decodeSurvey(m *models.Survey) (*services.Survey, error) {
	if m == nil {
		return nil, nil
	}
	var qs []services.Question
	if m.Questions != "" {
		if err := json.Unmarshal([]byte(m.Questions), &qs); err != nil {
			return nil, fmt.Errorf("decode questions of survey %s: %w", m.ID, err)
		}
	}
	return &services.Survey{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		Questions:   qs,
		Active:      bool(m.IsActive),
		CreatedAt:   m.CreatedAt,
		OwnerID:     m.UserID,
	}, nil
}

func toModelResponse(r *services.Response) *models.SurveyResponse {
	return &models.SurveyResponse{
		ID:            r.ID,
		SurveyID:      r.SurveyID,
		UserID:        r.UserID,
		SubmissionID:  r.SubmissionID,
		QuestionIndex: r.QuestionIndex,
		Answer:        r.Answer,
		ResponseYear:  r.ResponseYear,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		PhoneNumber:   r.PhoneNumber,
		Country:       r.Country,
		IsVerified:    models.Flag(r.Verified),
		CreatedAt:     r.CreatedAt,
	}
}

func fromModelResponse(m *models.SurveyResponse) *services.Response {
	return &services.Response{
		ID:            m.ID,
		SurveyID:      m.SurveyID,
		UserID:        m.UserID,
		SubmissionID:  m.SubmissionID,
		QuestionIndex: m.QuestionIndex,
		Answer:        m.Answer,
		ResponseYear:  m.ResponseYear,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		PhoneNumber:   m.PhoneNumber,
		Country:       m.Country,
		Verified:      bool(m.IsVerified),
		CreatedAt:     m.CreatedAt,
	}
}

func fromModelResponses(ms []*models.SurveyResponse) []*services.Response {
	out := make([]*services.Response, 0, len(ms))
	for _, m := range ms {
		out = append(out, fromModelResponse(m))
	}
	return out
}

func toModelVerification(v *services.Verification) *models.UserVerification {
	return &models.UserVerification{
		ID:          v.ID,
		UserID:      v.UserID,
		FirstName:   v.FirstName,
		LastName:    v.LastName,
		PhoneNumber: v.PhoneNumber,
		Country:     v.Country,
		CodeHash:    v.CodeHash,
		IsVerified:  models.Flag(v.Verified),
		Attempts:    v.Attempts,
		CreatedAt:   v.CreatedAt,
		ExpiresAt:   v.ExpiresAt,
		VerifiedAt:  v.VerifiedAt,
	}
}

func fromModelVerification(m *models.UserVerification) *services.Verification {
	if m == nil {
		return nil
	}
	return &services.Verification{
		ID:          m.ID,
		UserID:      m.UserID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		PhoneNumber: m.PhoneNumber,
		Country:     m.Country,
		CodeHash:    m.CodeHash,
		Verified:    bool(m.IsVerified),
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		VerifiedAt:  m.VerifiedAt,
	}
}
