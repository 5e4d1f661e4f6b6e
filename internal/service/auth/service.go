package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
	"github.com/wayneindustries/resourcemgmt/pkg/config"
	"github.com/wayneindustries/resourcemgmt/pkg/crypto"
	jwtpkg "github.com/wayneindustries/resourcemgmt/pkg/jwt"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with an address already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthenticated is returned for missing, malformed, expired or revoked tokens.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidResetToken is returned for unknown, used or expired reset tokens.
	ErrInvalidResetToken = errors.New("reset token is invalid or has expired")
)

// AccessRecorder writes access log entries.
type AccessRecorder interface {
	Record(ctx context.Context, entry domain.AccessLog)
}

// ResetNotifier delivers password reset tokens to account owners.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// Service handles authentication workflows.
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	resets   repository.PasswordResetRepository
	profiles repository.ProfileRepository
	audit    AccessRecorder
	notifier ResetNotifier
	logger   *slog.Logger
	cfg      config.APIConfig
	tokens   jwtpkg.Signer
	now      func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, sessions repository.SessionRepository, resets repository.PasswordResetRepository, profiles repository.ProfileRepository, audit AccessRecorder, notifier ResetNotifier, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		users:    users,
		sessions: sessions,
		resets:   resets,
		profiles: profiles,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		tokens:   jwtpkg.NewSigner(cfg.JWTSecret),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Principal identifies the caller behind an access token.
type Principal struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// SignupInput carries registration fields.
type SignupInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"max=120"`
}

// AccountInput describes an account created on behalf of someone else.
type AccountInput struct {
	SignupInput
	Role   string
	IsDemo bool
}

// Signup registers a new employee account and signs it in.
func (s Service) Signup(ctx context.Context, input SignupInput) (*domain.Profile, TokenPair, error) {
	profile, err := s.CreateAccount(ctx, AccountInput{SignupInput: input, Role: domain.RoleEmployee})
	if err != nil {
		return nil, TokenPair{}, err
	}
	tokens, err := s.openSession(ctx, profile.ID, profile.Role)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", profile.ID)
	return profile, tokens, nil
}

// CreateAccount validates input and stores a user with profile and default settings.
func (s Service) CreateAccount(ctx context.Context, input AccountInput) (*domain.Profile, error) {
	input.Email = validate.Email(input.Email)
	input.FullName = validate.Text(input.FullName)
	if err := validate.Struct(input.SignupInput); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = domain.RoleEmployee
	}
	if err := validate.Var("role", input.Role, "role"); err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	fullName := input.FullName
	if fullName == "" {
		fullName = strings.SplitN(input.Email, "@", 2)[0]
	}
	profile := &domain.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  fullName,
		Role:      input.Role,
		IsDemo:    input.IsDemo,
		CreatedAt: now,
	}
	settings := domain.DefaultSettings(user.ID)
	if err := s.users.CreateAccount(ctx, user, profile, &settings); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return profile, nil
}

// Login authenticates a user and returns tokens bound to a new session.
func (s Service) Login(ctx context.Context, email, password string) (*domain.Profile, TokenPair, error) {
	email = validate.Email(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordLogin(ctx, nil, email, domain.OutcomeDenied)
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordLogin(ctx, &user.ID, email, domain.OutcomeDenied)
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if crypto.NeedsRehash(user.PasswordHash) {
		if hash, err := crypto.HashPassword(password); err == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
				s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
			}
		}
	}
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("load profile: %w", err)
	}
	tokens, err := s.openSession(ctx, user.ID, profile.Role)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.recordLogin(ctx, &user.ID, email, domain.OutcomeGranted)
	s.logger.Info("user logged in", "user_id", user.ID)
	return profile, tokens, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same session.
func (s Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, jwtpkg.TypeRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthenticated
	}
	if _, err := s.activeSession(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	profile, err := s.profiles.GetProfile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}
	return s.issueTokens(claims.UserID, claims.SessionID, profile.Role)
}

// Logout revokes a session so its tokens stop working.
func (s Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.RevokeSession(ctx, sessionID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthenticated
		}
		return err
	}
	s.logger.Info("session revoked", "session_id", sessionID)
	return nil
}

// Authorize validates a bearer token and returns the caller with a current role.
func (s Service) Authorize(ctx context.Context, token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(trimmed, jwtpkg.TypeAccess)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	if _, err := s.activeSession(ctx, claims); err != nil {
		return Principal{}, err
	}
	profile, err := s.profiles.GetProfile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	return Principal{UserID: profile.ID, Email: profile.Email, Role: profile.Role, SessionID: claims.SessionID}, nil
}

// RequestPasswordReset issues a reset token when the account exists. It reports success
// either way so callers cannot discover which addresses are registered.
func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = validate.Email(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("password reset lookup failed", "error", err)
		}
		return nil
	}
	token, err := crypto.RandomToken(32)
	if err != nil {
		s.logger.Error("password reset token generation failed", "error", err)
		return nil
	}
	now := s.now()
	reset := &domain.PasswordReset{
		TokenHash: crypto.HashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.PasswordResetTTL),
		CreatedAt: now,
	}
	if err := s.resets.CreatePasswordReset(ctx, reset); err != nil {
		s.logger.Error("password reset store failed", "user_id", user.ID, "error", err)
		return nil
	}
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, user.Email, token, reset.ExpiresAt); err != nil {
			s.logger.Error("password reset delivery failed", "user_id", user.ID, "error", err)
			return nil
		}
	}
	s.audit.Record(ctx, domain.AccessLog{UserID: &user.ID, Action: "password_reset_requested", Outcome: domain.OutcomeGranted})
	return nil
}

// ResetPassword sets a new password using a reset token and signs out every session.
func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validate.Var("password", newPassword, "required,password"); err != nil {
		return err
	}
	hash := crypto.HashToken(strings.TrimSpace(token))
	reset, err := s.resets.GetPasswordReset(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	now := s.now()
	if reset.UsedAt != nil || !now.Before(reset.ExpiresAt) {
		return ErrInvalidResetToken
	}
	passwordHash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.resets.CompletePasswordReset(ctx, hash, passwordHash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	s.audit.Record(ctx, domain.AccessLog{UserID: &reset.UserID, Action: "password_reset", Outcome: domain.OutcomeGranted})
	s.logger.Info("password reset completed", "user_id", reset.UserID)
	return nil
}

// ChangePassword replaces the password of a signed-in user after checking the current one.
func (s Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := crypto.ComparePassword(user.PasswordHash, current); err != nil {
		s.audit.Record(ctx, domain.AccessLog{UserID: &user.ID, Action: "password_change", Outcome: domain.OutcomeDenied})
		return ErrInvalidCredentials
	}
	if err := validate.Var("new_password", next, "required,password"); err != nil {
		return err
	}
	hash, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, domain.AccessLog{UserID: &user.ID, Action: "password_change", Outcome: domain.OutcomeGranted})
	return nil
}

func (s Service) activeSession(ctx context.Context, claims *jwtpkg.Claims) (*domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if session.UserID != claims.UserID || !session.Active(s.now()) {
		return nil, ErrUnauthenticated
	}
	return session, nil
}

func (s Service) openSession(ctx context.Context, userID, role string) (TokenPair, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}
	return s.issueTokens(userID, session.ID, role)
}

func (s Service) issueTokens(userID, sessionID, role string) (TokenPair, error) {
	sub := jwtpkg.Subject{UserID: userID, SessionID: sessionID, Role: role}
	access, err := s.tokens.Issue(sub, jwtpkg.TypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(sub, jwtpkg.TypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (s Service) recordLogin(ctx context.Context, userID *string, email, outcome string) {
	details, _ := json.Marshal(map[string]string{"email": email})
	s.audit.Record(ctx, domain.AccessLog{UserID: userID, Action: "login", Outcome: outcome, Details: details})
}
