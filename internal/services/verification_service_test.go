package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerificationStore struct {
	mu      sync.Mutex
	records []*Verification
	addErr  error
}

func (s *stubVerificationStore) AddVerification(_ context.Context, v *Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	cp := *v
	s.records = append(s.records, &cp)
	return nil
}

func (s *stubVerificationStore) LatestVerification(_ context.Context, userID string, verifiedOnly bool) (*Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*Verification
	for _, v := range s.records {
		if v.UserID == userID && (!verifiedOnly || v.Verified) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	cp := *matches[0]
	return &cp, nil
}

func (s *stubVerificationStore) UpdateVerification(_ context.Context, id string, p VerificationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.records {
		if v.ID != id {
			continue
		}
		if p.Verified != nil {
			v.Verified = *p.Verified
		}
		if p.VerifiedAt != nil {
			v.VerifiedAt = p.VerifiedAt
		}
		return nil
	}
	return errors.New("not found")
}

func (s *stubVerificationStore) ReserveAttempt(_ context.Context, id string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.records {
		if v.ID != id {
			continue
		}
		if v.Attempts >= limit {
			return false, nil
		}
		v.Attempts++
		return true, nil
	}
	return false, errors.New("not found")
}

type capturedCode struct {
	codes []string
}

func (c *capturedCode) SendCode(_ context.Context, _ *Verification, code string) error {
	c.codes = append(c.codes, code)
	return nil
}

func newTestVerificationService(store VerificationStore, sender CodeSender) (*VerificationService, *time.Time) {
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewVerificationService(store, sender)
	svc.now = func() time.Time { return clock }
	n := 0
	svc.idGenerator = func() string { n++; return "v-" + strconv.Itoa(n) }
	return svc, &clock
}

func nigeriaStart() StartRequest {
	return StartRequest{UserID: "U1", FirstName: " Amina ", LastName: "Okafor", Country: "Nigeria", PhoneNumber: "+234801234567"}
}

func TestVerificationStartAndConfirm(t *testing.T) {
	store := &stubVerificationStore{}
	sender := &capturedCode{}
	svc, _ := newTestVerificationService(store, sender)
	ctx := context.Background()

	res, err := svc.Start(ctx, nigeriaStart())
	require.NoError(t, err)
	assert.Equal(t, "v-1", res.ID)
	assert.Empty(t, res.Code, "code must not be exposed by default")
	require.Len(t, sender.codes, 1)
	code := sender.codes[0]
	require.Len(t, code, 6)
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	assert.True(t, n >= 100000 && n <= 999999)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "Amina", rec.FirstName)
	assert.NotEqual(t, code, rec.CodeHash)
	assert.False(t, rec.Verified)

	st, err := svc.Status(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, st)

	v, err := svc.Confirm(ctx, "U1", code)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	require.NotNil(t, v.VerifiedAt)

	st, err = svc.Status(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "Nigeria", st.Country)

	again, err := svc.Confirm(ctx, "U1", "000000")
	require.NoError(t, err, "already verified record is returned as is")
	assert.True(t, again.Verified)
}

func TestVerificationStartValidation(t *testing.T) {
	svc, _ := newTestVerificationService(&stubVerificationStore{}, nil)
	ctx := context.Background()

	req := nigeriaStart()
	req.PhoneNumber = "0234555"
	_, err := svc.Start(ctx, req)
	assert.True(t, HasCode(err, ErrorPhoneFormat), "got %v", err)

	req = nigeriaStart()
	req.Country = "Atlantis"
	_, err = svc.Start(ctx, req)
	assert.True(t, HasCode(err, ErrorInvalid), "got %v", err)

	req = nigeriaStart()
	req.LastName = "  "
	_, err = svc.Start(ctx, req)
	assert.True(t, HasCode(err, ErrorInvalid), "got %v", err)

	req = nigeriaStart()
	req.UserID = ""
	_, err = svc.Start(ctx, req)
	assert.True(t, HasCode(err, ErrorUnauthorized), "got %v", err)
}

func TestVerificationExposeCode(t *testing.T) {
	svc, _ := newTestVerificationService(&stubVerificationStore{}, nil)
	svc.WithPolicy(0, 0, true)
	svc.codeGen = func() (string, error) { return "123456", nil }

	res, err := svc.Start(context.Background(), nigeriaStart())
	require.NoError(t, err)
	assert.Equal(t, "123456", res.Code)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC), res.ExpiresAt)
}

func TestVerificationMismatchCountsAttempts(t *testing.T) {
	store := &stubVerificationStore{}
	svc, _ := newTestVerificationService(store, nil)
	svc.WithPolicy(time.Minute, 2, false)
	svc.codeGen = func() (string, error) { return "654321", nil }
	ctx := context.Background()

	_, err := svc.Start(ctx, nigeriaStart())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Confirm(ctx, "U1", "111111")
		require.True(t, HasCode(err, ErrorVerificationMismatch), "attempt %d: %v", i, err)
	}
	assert.Equal(t, 2, store.records[0].Attempts)

	_, err = svc.Confirm(ctx, "U1", "654321")
	require.True(t, HasCode(err, ErrorVerificationMismatch), "budget exhausted: %v", err)
	assert.False(t, store.records[0].Verified)
}

func TestVerificationConcurrentConfirmsShareBudget(t *testing.T) {
	store := &stubVerificationStore{}
	svc, _ := newTestVerificationService(store, nil)
	svc.codeGen = func() (string, error) { return "123456", nil }
	ctx := context.Background()
	_, err := svc.Start(ctx, nigeriaStart())
	require.NoError(t, err)

	const guesses = 40
	var (
		wg               sync.WaitGroup
		mu               sync.Mutex
		compared, locked int
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Confirm(ctx, "U1", "000000")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && strings.Contains(err.Error(), "does not match"):
				compared++
			case err != nil && strings.Contains(err.Error(), "too many attempts"):
				locked++
			default:
				t.Errorf("unexpected confirm result: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxAttempts, compared, "only the attempt budget may reach the hash compare")
	assert.Equal(t, guesses-DefaultMaxAttempts, locked)
	assert.Equal(t, DefaultMaxAttempts, store.records[0].Attempts)

	_, err = svc.Confirm(ctx, "U1", "123456")
	assert.True(t, HasCode(err, ErrorVerificationMismatch), "correct code after lockout: %v", err)
}

func TestVerificationExpiry(t *testing.T) {
	store := &stubVerificationStore{}
	svc, clock := newTestVerificationService(store, nil)
	svc.codeGen = func() (string, error) { return "222222", nil }
	ctx := context.Background()

	_, err := svc.Start(ctx, nigeriaStart())
	require.NoError(t, err)
	*clock = clock.Add(DefaultCodeTTL + time.Second)

	_, err = svc.Confirm(ctx, "U1", "222222")
	assert.True(t, HasCode(err, ErrorVerificationMismatch), "got %v", err)
}

func TestVerificationConfirmWithoutRecord(t *testing.T) {
	svc, _ := newTestVerificationService(&stubVerificationStore{}, nil)
	_, err := svc.Confirm(context.Background(), "U1", "123456")
	assert.True(t, HasCode(err, ErrorNotFound), "got %v", err)
}

func TestVerificationStoreAndSenderFailures(t *testing.T) {
	store := &stubVerificationStore{addErr: errors.New("disk full")}
	svc, _ := newTestVerificationService(store, nil)
	_, err := svc.Start(context.Background(), nigeriaStart())
	assert.True(t, HasCode(err, ErrorStoreUnavailable), "got %v", err)

	failing := CodeSenderFunc(func(context.Context, *Verification, string) error { return errors.New("sms gateway down") })
	svc, _ = newTestVerificationService(&stubVerificationStore{}, failing)
	_, err = svc.Start(context.Background(), nigeriaStart())
	assert.True(t, HasCode(err, ErrorBadGateway), "got %v", err)
}
