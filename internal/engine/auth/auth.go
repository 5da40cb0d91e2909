package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shiftreport/internal/domain"
	"shiftreport/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
	ErrEmailTaken         = errors.New("このメールアドレスは既に登録されています")
	ErrInvalidToken       = errors.New("invalid token")
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// InputError reports a rejected signup or login field.
type InputError struct {
	Field   string
	Message string
}

func (e InputError) Error() string {
	return e.Field + ": " + e.Message
}

// CheckSignup validates the account fields accepted at signup. A nil v uses
// validation.Default.
func CheckSignup(v *validation.Validator, email, password, fullName string) error {
	if v == nil {
		var err error
		if v, err = validation.Default(); err != nil {
			return err
		}
	}
	if field, msg := v.CheckAccount(email, password, fullName); field != "" {
		return InputError{Field: field, Message: msg}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// RequireAdmin returns ForbiddenError unless p is an admin.
func (p Principal) RequireAdmin(permission string) error {
	if !p.IsAdmin() {
		return ForbiddenError{Permission: permission}
	}
	return nil
}

// PrincipalFor builds the principal of a stored user.
func PrincipalFor(u domain.User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, Name: u.DisplayName(), Role: u.Role}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

type claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue returns a signed token for p and its expiry.
func (t Tokens) Issue(p Principal) (string, time.Time, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := t.now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:  p.Role,
		Email: p.Email,
		Name:  p.Name,
	})
	signed, err := token.SignedString([]byte(t.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies token and returns its principal.
func (t Tokens) Parse(token string) (Principal, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	role := c.Role
	if role != domain.RoleAdmin {
		role = domain.RoleEmployee
	}
	return Principal{UserID: c.Subject, Email: c.Email, Name: c.Name, Role: role}, nil
}
