package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role gates routes and actions.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleStaff Role = "Staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStaff }

// Claims represents the session JWT payload.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionConfig configures token signing and the session cookie.
type SessionConfig struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Session is an issued token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
}

// Sessions issues, verifies and revokes session tokens.
type Sessions struct {
	cfg      SessionConfig
	denylist Denylist
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessions builds a session manager. denylist may be nil, in which case
// logout only clears the cookie.
func NewSessions(cfg SessionConfig, denylist Denylist, logger *slog.Logger) *Sessions {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "soultouch_session_token"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{cfg: cfg, denylist: denylist, logger: logger, now: time.Now}
}

// Issue signs a session token for the user.
func (s *Sessions) Issue(userID string, role Role) (Session, error) {
	if userID == "" || !role.Valid() {
		return Session{}, errors.New("auth: user and role required")
	}
	now := s.now()
	exp := now.Add(s.cfg.TTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SigningKey))
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: exp,
		Principal: Principal{UserID: userID, Role: role, TokenID: claims.ID, ExpiresAt: exp},
	}, nil
}

// Parse validates a token and returns the caller it identifies.
func (s *Sessions) Parse(ctx context.Context, tokenStr string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.SigningKey), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if s.cfg.Issuer != "" && claims.Issuer != s.cfg.Issuer {
		return Principal{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Principal{}, errors.New("incomplete claims")
	}
	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.Revoked(ctx, claims.ID)
		if err != nil {
			// Fail open while the denylist is unreachable.
			s.logger.WarnContext(ctx, "session denylist unavailable", "error", err)
		} else if revoked {
			return Principal{}, errors.New("session revoked")
		}
	}
	p := Principal{UserID: claims.Subject, Role: claims.Role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// Revoke denylists the caller's token until it would have expired anyway.
func (s *Sessions) Revoke(ctx context.Context, p Principal) error {
	if s.denylist == nil || p.TokenID == "" {
		return nil
	}
	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.denylist.Revoke(ctx, p.TokenID, ttl)
}
