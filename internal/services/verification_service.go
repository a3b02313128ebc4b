package services

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// VerificationStore abstracts persistence operations required by VerificationService.
type VerificationStore interface {
	AddVerification(ctx context.Context, v *Verification) error
	LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*Verification, error)
	UpdateVerification(ctx context.Context, id string, patch VerificationPatch) error
	// ReserveAttempt atomically counts one confirmation attempt against record
	// id. It reports false, without counting, once max attempts are used.
	ReserveAttempt(ctx context.Context, id string, limit int) (bool, error)
}

// VerificationPatch lists the fields Confirm may change on a stored record.
type VerificationPatch struct {
	Verified   *bool
	VerifiedAt *time.Time
}

// CodeSender delivers a plaintext verification code to the user.
type CodeSender interface {
	SendCode(ctx context.Context, v *Verification, code string) error
}

// CodeSenderFunc adapts a function to CodeSender.
type CodeSenderFunc func(ctx context.Context, v *Verification, code string) error

func (f CodeSenderFunc) SendCode(ctx context.Context, v *Verification, code string) error {
	return f(ctx, v, code)
}

type StartRequest struct {
	UserID      string `json:"-"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phone_number"`
}

type StartResult struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}

const (
	DefaultCodeTTL     = 10 * time.Minute
	DefaultMaxAttempts = 5
)

type VerificationService struct {
	store       VerificationStore
	sender      CodeSender
	now         func() time.Time
	idGenerator func() string
	codeGen     func() (string, error)
	codeTTL     time.Duration
	maxAttempts int
	exposeCode  bool
}

func NewVerificationService(store VerificationStore, sender CodeSender) *VerificationService {
	return &VerificationService{
		store:       store,
		sender:      sender,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
		codeGen:     randomCode,
		codeTTL:     DefaultCodeTTL,
		maxAttempts: DefaultMaxAttempts,
	}
}

// WithPolicy overrides the code lifetime and attempt budget. Zero keeps the default.
func (s *VerificationService) WithPolicy(ttl time.Duration, maxAttempts int, exposeCode bool) *VerificationService {
	if ttl > 0 {
		s.codeTTL = ttl
	}
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.exposeCode = exposeCode
	return s
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func (s *VerificationService) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Country = strings.TrimSpace(req.Country)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.UserID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	if req.FirstName == "" || req.LastName == "" {
		return nil, NewInvalidError("first and last name required")
	}
	if err := ValidatePhone(req.Country, req.PhoneNumber); err != nil {
		return nil, err
	}

	code, err := s.codeGen()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expires := now.Add(s.codeTTL)
	v := &Verification{
		ID:          s.idGenerator(),
		UserID:      req.UserID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
		CodeHash:    string(hash),
		CreatedAt:   now,
		ExpiresAt:   &expires,
	}
	if err := s.store.AddVerification(ctx, v); err != nil {
		return nil, NewStoreUnavailableError("store verification", err)
	}
	if s.sender != nil {
		if err := s.sender.SendCode(ctx, v, code); err != nil {
			return nil, NewBadGatewayError("deliver verification code", err)
		}
	}
	res := &StartResult{ID: v.ID, ExpiresAt: expires}
	if s.exposeCode {
		res.Code = code
	}
	return res, nil
}

// Confirm checks code against the user's most recent verification record.
func (s *VerificationService) Confirm(ctx context.Context, userID, code string) (*Verification, error) {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	if code == "" {
		return nil, NewInvalidError("code required")
	}
	v, err := s.store.LatestVerification(ctx, userID, false)
	if err != nil {
		return nil, NewStoreUnavailableError("load verification", err)
	}
	if v == nil {
		return nil, NewNotFoundError("no verification in progress")
	}
	if v.Verified {
		return v, nil
	}
	now := s.now()
	if v.ExpiresAt != nil && now.After(*v.ExpiresAt) {
		return nil, NewVerificationMismatchError("verification code expired")
	}
	// Reserve before comparing: every concurrent confirm must use up an attempt.
	ok, err := s.store.ReserveAttempt(ctx, v.ID, s.maxAttempts)
	if err != nil {
		return nil, NewStoreUnavailableError("record attempt", err)
	}
	if !ok {
		return nil, NewVerificationMismatchError("too many attempts")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, err
		}
		return nil, NewVerificationMismatchError("verification code does not match")
	}

	verified := true
	if err := s.store.UpdateVerification(ctx, v.ID, VerificationPatch{Verified: &verified, VerifiedAt: &now}); err != nil {
		return nil, NewStoreUnavailableError("mark verified", err)
	}
	v.Verified = true
	v.VerifiedAt = &now
	return v, nil
}

// Status returns the latest verified record, or nil when the user has none.
func (s *VerificationService) Status(ctx context.Context, userID string) (*Verification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewUnauthorizedError("user required")
	}
	v, err := s.store.LatestVerification(ctx, userID, true)
	if err != nil {
		return nil, NewStoreUnavailableError("load verification", err)
	}
	return v, nil
}
