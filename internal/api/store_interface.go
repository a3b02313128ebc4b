package api

import (
	"context"

	"github.com/soaringjerry/adi/internal/models"
)

// Store is the record store behind every service. Lookups of a single missing
// record return (nil, nil); updates of a missing record return models.ErrNotFound.
type Store interface {
	InsertSurvey(ctx context.Context, sv *models.Survey) error
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	ListSurveys(ctx context.Context, activeOnly bool) ([]*models.Survey, error)
	SetSurveyActive(ctx context.Context, id string, active bool) error

	// AddResponses stores one response set atomically. A second set for the
	// same (user, survey, year) fails with models.ErrDuplicateSubmission.
	AddResponses(ctx context.Context, rs []*models.SurveyResponse) error
	ListResponses(ctx context.Context, q models.ResponseQuery) ([]*models.SurveyResponse, error)
	// CountResponsesByYear counts matching responses per response year. The
	// Year, OrderBy and Limit fields of q are ignored.
	CountResponsesByYear(ctx context.Context, q models.ResponseQuery) (map[int]int, error)

	AddVerification(ctx context.Context, v *models.UserVerification) error
	UpdateVerification(ctx context.Context, id string, patch models.VerificationPatch) error
	LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*models.UserVerification, error)
	// ReserveVerificationAttempt increments the attempt counter of record id
	// unless it already reached limit, in one atomic step. It reports whether
	// the attempt was granted.
	ReserveVerificationAttempt(ctx context.Context, id string, limit int) (bool, error)

	AddInsight(ctx context.Context, in *models.AIInsight) error
	// ListInsights returns a user's insights, newest first.
	ListInsights(ctx context.Context, userID string, limit int) ([]*models.AIInsight, error)

	// SaveDashboard inserts or replaces a dashboard by id.
	SaveDashboard(ctx context.Context, d *models.SavedDashboard) error
	GetDashboard(ctx context.Context, id string) (*models.SavedDashboard, error)
	// ListDashboards returns a user's dashboards, most recently updated first.
	ListDashboards(ctx context.Context, userID string) ([]*models.SavedDashboard, error)

	AddUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)

	AddAudit(ctx context.Context, e models.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*memoryStore)(nil)
