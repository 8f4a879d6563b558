package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	otpDigits    = 6
	otpTTL       = 5 * time.Minute
)

// OTPManager stores and verifies one-time email verification codes in Redis.
// Codes expire after five minutes and are consumed on successful verification.
type OTPManager struct {
	rdb *redis.Client
}

// NewOTPManager creates an OTP manager backed by the given Redis client.
func NewOTPManager(rdb *redis.Client) *OTPManager {
	return &OTPManager{rdb: rdb}
}

// Generate returns a random numeric code of otpDigits digits.
func (m *OTPManager) Generate() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// Store saves a code for the given email, replacing any previous one.
func (m *OTPManager) Store(ctx context.Context, email, code string) error {
	if err := m.rdb.Set(ctx, otpKeyPrefix+email, code, otpTTL).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Verify checks the code for the given email and deletes it on success.
func (m *OTPManager) Verify(ctx context.Context, email, code string) (bool, error) {
	key := otpKeyPrefix + email

	stored, err := m.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}

	if stored != code {
		return false, nil
	}

	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}

// Delete removes any stored code for the given email.
func (m *OTPManager) Delete(ctx context.Context, email string) error {
	if err := m.rdb.Del(ctx, otpKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
