package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shiftreport/internal/domain"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/ocr"
	"shiftreport/internal/pdf"
	"shiftreport/internal/store"
	"shiftreport/internal/validation"
)

type Engine struct {
	Store     store.Gateway
	Validator *validation.Validator
	Tokens    auth.Tokens
	Renderer  *pdf.Renderer
	OCR       *ocr.Service
	Location  *time.Location
	Logger    *zap.Logger
	Now       func() time.Time
}

func New(gw store.Gateway, v *validation.Validator, tokens auth.Tokens, renderer *pdf.Renderer, o *ocr.Service, loc *time.Location, logger *zap.Logger) Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		Store:     gw,
		Validator: v,
		Tokens:    tokens,
		Renderer:  renderer,
		OCR:       o,
		Location:  loc,
		Logger:    logger,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e Engine) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// Session is the result of a successful signup or login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

// UserCreateOptions are parameters for creating an account.
type UserCreateOptions struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// CreateUser registers an account without logging in. Used by signup and by
// administrators provisioning staff.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	email := strings.TrimSpace(opts.Email)
	if err := auth.CheckSignup(e.Validator, email, opts.Password, opts.FullName); err != nil {
		return domain.User{}, err
	}
	role := opts.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if role != domain.RoleEmployee && role != domain.RoleAdmin {
		return domain.User{}, auth.InputError{Field: "role", Message: "role must be employee or admin"}
	}
	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := e.Store.CreateUser(ctx, store.NewUser{
		Email:        email,
		FullName:     strings.TrimSpace(opts.FullName),
		Role:         role,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		return domain.User{}, auth.ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SignUp creates an employee account and logs it in.
func (e Engine) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	u, err := e.CreateUser(ctx, UserCreateOptions{Email: email, Password: password, FullName: fullName, Role: domain.RoleEmployee})
	if err != nil {
		return Session{}, err
	}
	e.record(ctx, u.ID, domain.ActionSignup, "user", u.ID)
	e.logger().Info("user signed up", zap.String("user_id", u.ID))
	return e.startSession(ctx, u)
}

// Login checks credentials. Unknown emails and wrong passwords fail the same way.
func (e Engine) Login(ctx context.Context, email, password string) (Session, error) {
	u, hash, err := e.Store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := auth.CheckPassword(hash, password); err != nil {
		e.logger().Info("login rejected", zap.String("user_id", u.ID))
		return Session{}, err
	}
	e.record(ctx, u.ID, domain.ActionLogin, "user", u.ID)
	return e.startSession(ctx, u)
}

func (e Engine) startSession(ctx context.Context, u domain.User) (Session, error) {
	token, exp, err := e.Tokens.Issue(auth.PrincipalFor(u))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	if err := e.Store.SetSession(ctx, u.ID); err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Logout records the logout and clears any stored session.
func (e Engine) Logout(ctx context.Context, p auth.Principal) error {
	e.record(ctx, p.UserID, domain.ActionLogout, "user", p.UserID)
	return e.Store.ClearSession(ctx)
}

// Authenticate resolves a bearer token to a principal of an existing user.
func (e Engine) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	p, err := e.Tokens.Parse(token)
	if err != nil {
		return auth.Principal{}, err
	}
	u, err := e.Store.GetUser(ctx, p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.PrincipalFor(u), nil
}

// Me returns the caller's account.
func (e Engine) Me(ctx context.Context, p auth.Principal) (domain.User, error) {
	return e.Store.GetUser(ctx, p.UserID)
}

func (e Engine) ListUsers(ctx context.Context, p auth.Principal) ([]domain.User, error) {
	if err := p.RequireAdmin("user.read"); err != nil {
		return nil, err
	}
	return e.Store.ListUsers(ctx)
}

func (e Engine) ListActivity(ctx context.Context, p auth.Principal, limit int) ([]domain.ActivityLog, error) {
	if err := p.RequireAdmin("activity.read"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return e.Store.ListActivity(ctx, limit)
}

// record writes an audit entry. Failures are logged, not returned.
func (e Engine) record(ctx context.Context, userID, action, resourceType, resourceID string) {
	if userID == "" {
		return
	}
	err := e.Store.LogActivity(ctx, domain.ActivityLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		e.logger().Warn("activity log write failed", zap.String("action", action), zap.Error(err))
	}
}

// nameLookup maps owner ids to display names for exports.
func (e Engine) nameLookup(ctx context.Context) (func(string) string, error) {
	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return func(id string) string { return names[id] }, nil
}
