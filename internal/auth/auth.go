// Package auth implements account signup, login, and stateless session
// tokens. Credentials live in the remote store only; the local cache never
// holds password material.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/remote"
)

// MinPasswordLen is the shortest password Signup accepts.
const MinPasswordLen = 8

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned by ParseToken for expired, malformed, or
	// mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakPassword is returned by Signup for passwords below MinPasswordLen.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
)

// Credentials stores and looks up login credentials.
type Credentials interface {
	GetByEmail(ctx context.Context, email string) (*remote.Credential, error)
	Create(ctx context.Context, cred *remote.Credential) error
}

// Profiles is the slice of the profile service signup and login need.
type Profiles interface {
	Create(ctx context.Context, p *model.Profile) (*model.Profile, error)
	Refresh(ctx context.Context, id string) (*model.Profile, error)
	GetLocal(ctx context.Context, id string) (*model.Profile, error)
	GetLocalByEmail(ctx context.Context, email string) (*model.Profile, error)
}

// Claims is the JWT payload: the registered claims plus the user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Service implements signup, login, and token verification.
type Service struct {
	creds    Credentials
	profiles Profiles
	secret   []byte
	tokenTTL time.Duration
	log      *slog.Logger
}

// NewService creates an auth Service. secret signs session tokens with HS256;
// tokenTTL bounds their validity.
func NewService(creds Credentials, profiles Profiles, secret []byte, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		creds:    creds,
		profiles: profiles,
		secret:   secret,
		tokenTTL: tokenTTL,
		log:      logger,
	}
}

// Signup registers a new account: it stores a bcrypt credential remotely,
// creates the matching profile, and returns the profile with a fresh session
// token. Returns [remote.ErrEmailTaken] when the email is already registered.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*model.Profile, string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", fmt.Errorf("%w: malformed email", model.ErrInvalid)
	}
	if len(password) < MinPasswordLen {
		return nil, "", ErrWeakPassword
	}
	if name == "" {
		name = "User"
	}

	// The profile mirror is a full remote snapshot, so a cached profile with
	// this email means the address is taken. Catches the duplicate without a
	// network round trip; the remote credential write below stays the
	// authoritative check.
	if cached, err := s.profiles.GetLocalByEmail(ctx, email); err == nil && cached != nil {
		return nil, "", remote.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	userID := uuid.NewString()
	err = s.creds.Create(ctx, &remote.Credential{
		Email:        email,
		UserID:       userID,
		PasswordHash: string(hash),
		CreatedAt:    model.NowMillis(),
	})
	if err != nil {
		return nil, "", err
	}

	profile, err := s.profiles.Create(ctx, &model.Profile{
		ID:    userID,
		Email: email,
		Name:  name,
	})
	if err != nil {
		// The credential exists but the profile write failed. Login still
		// works; the profile is re-created lazily on the next login.
		s.log.Error("creating profile after signup", "user_id", userID, "error", err)
		return nil, "", fmt.Errorf("creating profile: %w", err)
	}

	token, err := s.issueToken(userID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("account created", "user_id", userID)
	return profile, token, nil
}

// Login verifies the email/password pair and returns the user's profile with
// a fresh session token. The profile is pulled from the remote store so a new
// device starts with current data; if the remote copy is missing it is
// re-created from the credential.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Profile, string, error) {
	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("looking up credential: %w", err)
	}
	if cred == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	profile, err := s.profiles.Refresh(ctx, cred.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("refreshing profile: %w", err)
	}
	if profile == nil {
		profile, err = s.profiles.Create(ctx, &model.Profile{
			ID:    cred.UserID,
			Email: cred.Email,
			Name:  "User",
		})
		if err != nil {
			return nil, "", fmt.Errorf("restoring profile: %w", err)
		}
	}

	token, err := s.issueToken(cred.UserID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("login", "user_id", cred.UserID)
	return profile, token, nil
}

// ParseToken verifies a session token and returns the user ID it carries.
func (s *Service) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: userID,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
