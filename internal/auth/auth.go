// Package auth implements the profile login gate. A Provider decides who a
// request belongs to; the server is wired with NoopProvider when
// authentication is disabled and ProfileProvider otherwise.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"repaytrack/internal/config"
	apperrors "repaytrack/internal/errors"
	"repaytrack/internal/logger"
	"repaytrack/internal/models"
	"repaytrack/internal/storage"
)

const issuer = "repaytrack-api"

// Session is the result of a successful login.
type Session struct {
	ProfileID uint
	// Token is empty when authentication is disabled.
	Token     string
	ExpiresAt time.Time
}

// Provider authenticates profiles.
type Provider interface {
	// Login checks the password of a profile and makes it current.
	Login(ctx context.Context, profileID uint, password string) (*Session, error)
	// Logout clears the current profile.
	Logout(ctx context.Context) error
	// Authenticate resolves a bearer token to a profile id.
	Authenticate(ctx context.Context, token string) (uint, error)
	// Current returns the logged-in profile, nil when nobody is.
	Current(ctx context.Context) (*uint, error)
	// Enabled reports whether requests must carry a token.
	Enabled() bool
}

// New returns the provider selected by cfg.AuthMode.
func New(cfg *config.Config, profiles storage.ProfileStorer) (Provider, error) {
	switch cfg.AuthMode {
	case config.AuthNone, "":
		return NoopProvider{}, nil
	case config.AuthProfile:
		return NewProfileProvider(profiles, []byte(cfg.JWTSecret), cfg.JWTExpirationDur), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// HashPassword returns the bcrypt hash stored for a profile.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NoopProvider attributes every request to the default profile.
type NoopProvider struct{}

// Login implements Provider.
func (NoopProvider) Login(_ context.Context, _ uint, _ string) (*Session, error) {
	return &Session{ProfileID: models.DefaultProfileID}, nil
}

// Logout implements Provider.
func (NoopProvider) Logout(_ context.Context) error { return nil }

// Authenticate implements Provider.
func (NoopProvider) Authenticate(_ context.Context, _ string) (uint, error) {
	return models.DefaultProfileID, nil
}

// Current implements Provider.
func (NoopProvider) Current(_ context.Context) (*uint, error) {
	id := models.DefaultProfileID
	return &id, nil
}

// Enabled implements Provider.
func (NoopProvider) Enabled() bool { return false }

// Claims are the JWT claims of a session token.
type Claims struct {
	ProfileID uint `json:"profile_id"`
	jwt.RegisteredClaims
}

// ProfileProvider checks bcrypt password hashes and issues HS256 tokens.
type ProfileProvider struct {
	profiles storage.ProfileStorer
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewProfileProvider creates a provider signing tokens with secret that
// expire after ttl.
func NewProfileProvider(profiles storage.ProfileStorer, secret []byte, ttl time.Duration) *ProfileProvider {
	return &ProfileProvider{
		profiles: profiles,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login implements Provider. An unknown profile and a wrong password are
// reported the same way.
func (p *ProfileProvider) Login(ctx context.Context, profileID uint, password string) (*Session, error) {
	profile, err := p.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		logger.Get().Infow("failed login attempt", "profile_id", profileID)
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := p.profiles.SetCurrentProfileID(ctx, profile.ID); err != nil {
		return nil, err
	}

	token, expiresAt, err := p.issue(profile.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &Session{ProfileID: profile.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout implements Provider.
func (p *ProfileProvider) Logout(ctx context.Context) error {
	return p.profiles.ClearCurrentProfile(ctx)
}

// Authenticate implements Provider.
func (p *ProfileProvider) Authenticate(ctx context.Context, token string) (uint, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return 0, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token")
	}

	// Tokens outlive profiles that were removed from the data file by hand.
	profile, err := p.profiles.GetProfile(ctx, claims.ProfileID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token")
	}
	return claims.ProfileID, nil
}

// Current implements Provider.
func (p *ProfileProvider) Current(ctx context.Context) (*uint, error) {
	return p.profiles.CurrentProfileID(ctx)
}

// Enabled implements Provider.
func (p *ProfileProvider) Enabled() bool { return true }

func (p *ProfileProvider) issue(profileID uint) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)
	claims := &Claims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(profileID), 10),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// IsAuthError reports whether err should be answered with 401.
func IsAuthError(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && (appErr.Code == apperrors.ErrUnauthorized.Code || appErr.Code == apperrors.ErrInvalidCredentials.Code)
}
