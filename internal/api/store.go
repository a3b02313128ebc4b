package api

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/soaringjerry/adi/internal/models"
)

type completionKey struct {
	userID, surveyID string
	year             int
}

// memoryStore keeps every record in process memory. It is the default store
// for development and tests.
type memoryStore struct {
	mu            sync.RWMutex
	surveys       map[string]*models.Survey
	responses     []*models.SurveyResponse
	completions   map[completionKey]struct{}
	verifications []*models.UserVerification
	insights      []*models.AIInsight
	dashboards    map[string]*models.SavedDashboard
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	audit         []models.AuditEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		surveys:      map[string]*models.Survey{},
		responses:    []*models.SurveyResponse{},
		completions:  map[completionKey]struct{}{},
		dashboards:   map[string]*models.SavedDashboard{},
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		audit:        []models.AuditEntry{},
	}
}

// NewMemoryStore returns an empty in-process Store.
func NewMemoryStore() Store { return newMemoryStore() }

func (s *memoryStore) InsertSurvey(_ context.Context, sv *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *memoryStore) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *sv
	return &cp, nil
}

func (s *memoryStore) ListSurveys(_ context.Context, activeOnly bool) ([]*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		if activeOnly && !bool(sv.IsActive) {
			continue
		}
		cp := *sv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) SetSurveyActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[id]
	if !ok {
		return models.ErrNotFound
	}
	sv.IsActive = models.Flag(active)
	return nil
}

func (s *memoryStore) AddResponses(_ context.Context, rs []*models.SurveyResponse) error {
	if len(rs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := map[completionKey]struct{}{}
	for _, r := range rs {
		k := completionKey{r.UserID, r.SurveyID, r.ResponseYear}
		if _, done := s.completions[k]; done {
			return models.ErrDuplicateSubmission
		}
		keys[k] = struct{}{}
	}
	for k := range keys {
		s.completions[k] = struct{}{}
	}
	for _, r := range rs {
		cp := *r
		s.responses = append(s.responses, &cp)
	}
	return nil
}

func (s *memoryStore) ListResponses(_ context.Context, q models.ResponseQuery) ([]*models.SurveyResponse, error) {
	s.mu.RLock()
	out := make([]*models.SurveyResponse, 0)
	for _, r := range s.responses {
		if q.Matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	switch q.OrderBy {
	case models.OrderYearDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ResponseYear > out[j].ResponseYear })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memoryStore) CountResponsesByYear(_ context.Context, q models.ResponseQuery) (map[int]int, error) {
	q.Year = nil
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[int]int{}
	for _, r := range s.responses {
		if q.Matches(r) {
			counts[r.ResponseYear]++
		}
	}
	return counts, nil
}

func (s *memoryStore) AddVerification(_ context.Context, v *models.UserVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.verifications = append(s.verifications, &cp)
	return nil
}

func (s *memoryStore) UpdateVerification(_ context.Context, id string, p models.VerificationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.verifications {
		if v.ID != id {
			continue
		}
		if p.IsVerified != nil {
			v.IsVerified = models.Flag(*p.IsVerified)
		}
		if p.VerifiedAt != nil {
			t := *p.VerifiedAt
			v.VerifiedAt = &t
		}
		return nil
	}
	return models.ErrNotFound
}

func (s *memoryStore) ReserveVerificationAttempt(_ context.Context, id string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.verifications {
		if v.ID != id {
			continue
		}
		if v.Attempts >= limit {
			return false, nil
		}
		v.Attempts++
		return true, nil
	}
	return false, models.ErrNotFound
}

func (s *memoryStore) LatestVerification(_ context.Context, userID string, verifiedOnly bool) (*models.UserVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.UserVerification
	for _, v := range s.verifications {
		if v.UserID != userID || (verifiedOnly && !bool(v.IsVerified)) {
			continue
		}
		// later inserts win ties
		if latest == nil || !v.CreatedAt.Before(latest.CreatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memoryStore) AddInsight(_ context.Context, in *models.AIInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.insights = append(s.insights, &cp)
	return nil
}

func (s *memoryStore) ListInsights(_ context.Context, userID string, limit int) ([]*models.AIInsight, error) {
	s.mu.RLock()
	out := []*models.AIInsight{}
	for _, in := range s.insights {
		if in.UserID == userID {
			cp := *in
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	// oldest first, then reversed so later inserts win ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) SaveDashboard(_ context.Context, d *models.SavedDashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.dashboards[d.ID] = &cp
	return nil
}

func (s *memoryStore) GetDashboard(_ context.Context, id string) (*models.SavedDashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *memoryStore) ListDashboards(_ context.Context, userID string) ([]*models.SavedDashboard, error) {
	s.mu.RLock()
	out := []*models.SavedDashboard{}
	for _, d := range s.dashboards {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) AddUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.usersByEmail[key]; ok {
		return models.ErrDuplicateEmail
	}
	cp := *u
	s.usersByEmail[key] = &cp
	s.usersByID[u.ID] = &cp
	return nil
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) AddAudit(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
	return nil
}

// ListAudit returns the newest entries first.
func (s *memoryStore) ListAudit(_ context.Context, limit int) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.audit)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.AuditEntry, 0, n)
	for i := len(s.audit) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }
