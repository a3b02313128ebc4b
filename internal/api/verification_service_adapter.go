package api

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

type verificationStoreAdapter struct {
	store Store
}

func newVerificationStoreAdapter(store Store) services.VerificationStore {
	return &verificationStoreAdapter{store: store}
}

func (a *verificationStoreAdapter) AddVerification(ctx context.Context, v *services.Verification) error {
	return a.store.AddVerification(ctx, toModelVerification(v))
}

func (a *verificationStoreAdapter) LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*services.Verification, error) {
	v, err := a.store.LatestVerification(ctx, userID, verifiedOnly)
	if err != nil {
		return nil, err
	}
	return fromModelVerification(v), nil
}

func (a *verificationStoreAdapter) UpdateVerification(ctx context.Context, id string, p services.VerificationPatch) error {
	return a.store.UpdateVerification(ctx, id, models.VerificationPatch{IsVerified: p.Verified, VerifiedAt: p.VerifiedAt})
}

func (a *verificationStoreAdapter) ReserveAttempt(ctx context.Context, id string, limit int) (bool, error) {
	return a.store.ReserveVerificationAttempt(ctx, id, limit)
}

var _ services.VerificationStore = (*verificationStoreAdapter)(nil)

// logCodeSender stands in for an SMS gateway: it writes the issued code to the log.
type logCodeSender struct {
	logger *zap.Logger
}

func newLogCodeSender(logger *zap.Logger) services.CodeSender {
	return &logCodeSender{logger: logger}
}

func (s *logCodeSender) SendCode(_ context.Context, v *services.Verification, code string) error {
	s.logger.Info("verification code issued",
		zap.String("user_id", v.UserID),
		zap.String("country", v.Country),
		zap.String("phone", maskPhone(v.PhoneNumber)))
	s.logger.Debug("verification code", zap.String("user_id", v.UserID), zap.String("code", code))
	return nil
}

func maskPhone(p string) string {
	p = strings.ReplaceAll(p, " ", "")
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
