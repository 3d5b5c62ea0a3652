package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/oauth"
)

const (
	oauthStatePrefix = "oauth:state:"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleProvider is the part of the OAuth client the service needs.
type GoogleProvider interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.GoogleUser, error)
}

type RegisterInput struct {
	Name     string `json:"name"     validate:"required,min=2,max=255"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by every sign-in path.
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type AuthService struct {
	users  *repositories.UserRepository
	kv     cache.Store
	google GoogleProvider
}

func NewAuthService(db *gorm.DB, kv cache.Store, google GoogleProvider) *AuthService {
	return &AuthService{
		users:  repositories.NewUserRepository(db),
		kv:     kv,
		google: google,
	}
}

func issue(u models.User) (*AuthResult, error) {
	tok, err := auth.GenerateToken(u.ID, u.Role, u.Email)
	if err != nil {
		return nil, internal("Failed to issue token", err)
	}
	return &AuthResult{Token: tok, User: u}, nil
}

// Register creates a credentials account with role USER.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	_, err := s.users.FindActiveByEmail(ctx, email)
	if err == nil {
		return nil, conflict("Email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal("Failed to register", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, internal("Failed to register", err)
	}
	u := models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: hash,
		Provider: models.ProviderCredentials,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("Email already registered")
		}
		return nil, internal("Failed to register", err)
	}
	logger.WithCtx(ctx).Info("auth: registered", "user_id", u.ID)
	return issue(u)
}

// Login checks credentials. Every failure reads the same to the client.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.users.FindActiveByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, internal("Failed to sign in", err)
	}
	if err := auth.CheckPassword(u.Password, in.Password); err != nil {
		return nil, unauthorized("Invalid email or password")
	}
	return issue(u)
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.IsDeleted) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal("Failed to load user", err)
	}
	return &u, nil
}

// EnsureActive rejects tokens of deleted accounts. It is plugged into the
// auth middleware.
func (s *AuthService) EnsureActive(ctx context.Context, userID uint) error {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.IsDeleted) {
		return unauthorized("Account is disabled")
	}
	return err
}

// GoogleAuthURL starts the OAuth flow with a single-use state.
func (s *AuthService) GoogleAuthURL(ctx context.Context) (string, error) {
	if s.google == nil || !s.google.Configured() {
		return "", invalidState("Google sign-in is not configured")
	}
	state := uuid.NewString()
	if err := s.kv.Set(ctx, oauthStatePrefix+state, true, oauthStateTTL); err != nil {
		return "", internal("Failed to start Google sign-in", err)
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback completes the flow and signs the user in, creating the
// account on first use.
func (s *AuthService) GoogleCallback(ctx context.Context, state, code string) (*AuthResult, error) {
	if s.google == nil || !s.google.Configured() {
		return nil, invalidState("Google sign-in is not configured")
	}
	if state == "" || code == "" {
		return nil, invalidArg("Missing state or code")
	}
	var ok bool
	found, err := s.kv.Pull(ctx, oauthStatePrefix+state, &ok)
	if err != nil {
		return nil, internal("Failed to complete Google sign-in", err)
	}
	if !found {
		return nil, invalidArg("Invalid or expired state")
	}

	gu, err := s.google.Exchange(ctx, code)
	if err != nil {
		logger.WithCtx(ctx).Warn("auth: google exchange failed", "error", err)
		return nil, unauthorized("Google sign-in failed")
	}
	if !gu.EmailVerified {
		return nil, unauthorized("Google account email is not verified")
	}

	u, err := s.users.FindActiveByEmail(ctx, gu.Email)
	switch {
	case err == nil:
		return issue(u)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, internal("Failed to complete Google sign-in", err)
	}

	name := gu.Name
	if name == "" {
		name = strings.SplitN(gu.Email, "@", 2)[0]
	}
	u = models.User{
		Name:     name,
		Email:    gu.Email,
		Provider: models.ProviderGoogle,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal("Failed to complete Google sign-in", err)
		}
		// Lost the race to another sign-up for the same email.
		if u, err = s.users.FindActiveByEmail(ctx, gu.Email); err != nil {
			return nil, internal("Failed to complete Google sign-in", err)
		}
		return issue(u)
	}
	logger.WithCtx(ctx).Info("auth: google account created", "user_id", u.ID)
	return issue(u)
}
