// Package otp issues and verifies the 4-digit one-time passcodes that gate
// financial mutations. Codes live in a short-lived keyed store shared by all
// API instances.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

const (
	CodeLength = 4
	DefaultTTL = 5 * time.Minute
)

// Store keeps at most one live code per user.
type Store interface {
	// GetOrCreate returns the live code for userID, storing code with ttl
	// when there is none.
	GetOrCreate(ctx context.Context, userID int64, code string, ttl time.Duration) (string, error)
	// Consume deletes the entry and reports true only when code matches the
	// live one. A mismatch leaves the entry in place.
	Consume(ctx context.Context, userID int64, code string) (bool, error)
}

// Service implements the engine's OTP gate.
type Service struct {
	store      Store
	ttl        time.Duration
	staticCode string
}

// NewService creates the OTP service. A non-empty staticCode is accepted for
// every user without touching the store.
func NewService(store Store, ttl time.Duration, staticCode string) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl, staticCode: staticCode}
}

// Issue returns the user's live code or creates a new one.
func (s *Service) Issue(ctx context.Context, userID int64) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	live, err := s.store.GetOrCreate(ctx, userID, code, s.ttl)
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	return live, nil
}

// Verify reports whether code is accepted for userID. An accepted dynamic
// code cannot be used again.
func (s *Service) Verify(ctx context.Context, userID int64, code string) (bool, error) {
	if !wellFormed(code) {
		observability.IncrementOTPVerification("malformed")
		return false, nil
	}
	if s.staticCode != "" && code == s.staticCode {
		observability.IncrementOTPVerification("static")
		return true, nil
	}
	ok, err := s.store.Consume(ctx, userID, code)
	if err != nil {
		observability.IncrementOTPVerification("error")
		zap.L().Warn("otp store unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		observability.IncrementOTPVerification("rejected")
		return false, nil
	}
	observability.IncrementOTPVerification("accepted")
	return true, nil
}

func wellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
