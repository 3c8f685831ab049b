// Package auth issues and verifies bearer tokens for staff accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Joshypeace/PharmaStore/internal/config"
	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// Roles.
const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore looks up and creates accounts.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (core.User, error)
	UserByID(ctx context.Context, id int64) (core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
}

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Role   string `json:"role"`
}

// Service authenticates users.
type Service struct {
	users  UserStore
	secret []byte
	issuer string
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewService creates a Service signing with cfg.JWTSecret.
func NewService(users UserStore, cfg config.AuthConfig) *Service {
	return &Service{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Login checks the password and returns a signed token. Unknown email and
// wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, core.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", core.User{}, &core.ValidationError{Field: "email", Message: "please provide email and password"}
	}

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		logging.FromContext(ctx).Info("login failed", "email", email)
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", core.User{}, err
	}
	return token, u, nil
}

// IssueToken signs an HS256 token for u.
func (s *Service) IssueToken(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: u.ID,
		Role:   u.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies token and returns the actor it names. The account
// must still exist.
func (s *Service) Authenticate(ctx context.Context, token string) (core.Actor, error) {
	if token == "" {
		return core.Actor{}, ErrInvalidToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return core.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	u, err := s.users.UserByID(ctx, claims.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Actor{}, fmt.Errorf("%w: user %d no longer exists", ErrInvalidToken, claims.UserID)
	}
	if err != nil {
		return core.Actor{}, fmt.Errorf("load user: %w", err)
	}
	return u.Actor(), nil
}

// CurrentUser loads the account behind an authenticated actor.
func (s *Service) CurrentUser(ctx context.Context, a core.Actor) (core.User, error) {
	return s.users.UserByID(ctx, a.ID)
}

// HashPassword returns a bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// EnsureAdmin creates an admin account for email unless one exists.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.users.UserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("check admin: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	u, err := s.users.CreateUser(ctx, core.User{
		Name:         "Admin",
		Email:        email,
		Role:         RoleAdmin,
		PasswordHash: hash,
	})
	if errors.Is(err, core.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}

	logging.FromContext(ctx).Info("admin user created", "user_id", u.ID, "email", u.Email)
	return true, nil
}
