package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is returned when registering with an already used email.
	ErrEmailExists = errors.New("email already registered")
	// ErrUsernameExists is returned when registering with a taken username.
	ErrUsernameExists = errors.New("username already taken")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotVerified is returned on login before the email is verified.
	ErrNotVerified = errors.New("email not verified")
	// ErrInactive is returned on login for a deactivated account.
	ErrInactive = errors.New("account inactive")
	// ErrAlreadyVerified is returned when requesting an OTP for a verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrUserNotFound is returned when the email is not registered.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidOTP is returned for a wrong or expired verification code.
	ErrInvalidOTP = errors.New("invalid or expired otp")
)

// Mailer delivers verification codes. Implementations live in internal/mail.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Service provides authentication operations.
type Service struct {
	users     store.UserStore
	jwtConfig *JWTConfig
	otp       *OTPManager
	mailer    Mailer
	log       *zerolog.Logger
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, jwtConfig *JWTConfig, otp *OTPManager, mailer Mailer, logger *zerolog.Logger) *Service {
	return &Service{
		users:     users,
		jwtConfig: jwtConfig,
		otp:       otp,
		mailer:    mailer,
		log:       logger,
	}
}

// Register creates a new user with hashed password and sends a verification
// code to their email. Mail delivery failures are logged, not returned: the
// user can re-request a code via SendOTP.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < 3 || len(username) > 50 {
		return nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, ErrInvalidPassword
	}

	if existing, err := s.users.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}
	if existing, err := s.users.GetUserByUsername(ctx, username); err == nil && existing != nil {
		return nil, ErrUsernameExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, hashedPassword)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.issueOTP(ctx, user.Email); err != nil {
		s.log.Warn().Err(err).Str("email", user.Email).Msg("failed to send verification code")
	}

	return user, nil
}

// Login validates credentials and returns a JWT token.
// Only verified, active accounts can log in.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	if !user.IsVerified {
		return "", ErrNotVerified
	}
	if !user.IsActive {
		return "", ErrInactive
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// SendOTP generates, stores and emails a fresh verification code.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return ErrUserNotFound
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	return s.issueOTP(ctx, user.Email)
}

// VerifyOTP consumes a verification code, marks the user verified and
// returns a JWT token so the client can proceed without a separate login.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	ok, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return "", fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return "", ErrInvalidOTP
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrUserNotFound
	}

	if err := s.users.MarkUserVerified(ctx, user.ID); err != nil {
		return "", fmt.Errorf("mark verified: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) issueOTP(ctx context.Context, email string) error {
	code, err := s.otp.Generate()
	if err != nil {
		return err
	}
	if err := s.otp.Store(ctx, email, code); err != nil {
		return err
	}
	return s.mailer.SendOTP(ctx, email, code)
}
