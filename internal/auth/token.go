package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 2 * time.Hour

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Config carries the process-wide signing configuration. It is immutable
// after construction so verification stays a pure function of
// (token, config, clock).
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// CommunityClaim is the denormalized community snapshot embedded in a token.
type CommunityClaim struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
	Slug string `json:"slug"`
}

// UserClaim is the identity snapshot embedded in a token.
type UserClaim struct {
	UID       string          `json:"uid"`
	Nickname  string          `json:"nickname"`
	SteamID   string          `json:"steam_id"`
	Community *CommunityClaim `json:"community"`
	Active    bool            `json:"active"`
}

// Claims is the decoded payload of a session token. It is a point-in-time
// snapshot taken at issuance; mission-creator status is deliberately not
// embedded and is re-derived against the mission's creator uid at check
// time, which keeps tokens from growing with every authored mission.
type Claims struct {
	User        UserClaim `json:"user"`
	Permissions []string  `json:"permissions"`
	jwt.RegisteredClaims
}

// CommunityUID returns the uid of the caller's community snapshot, or ""
// when the caller carries no community.
func (c *Claims) CommunityUID() string {
	if c == nil || c.User.Community == nil {
		return ""
	}
	return c.User.Community.UID
}

// TokenService issues and verifies session tokens (HS256).
type TokenService struct {
	cfg Config
	now func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService validates the configuration and constructs the service.
func NewTokenService(cfg Config, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("auth: issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("auth: audience is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	svc := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs a token carrying the given identity snapshot and permission
// list. It is a pure function of its arguments, the configuration, and the
// clock.
func (s *TokenService) Issue(user UserClaim, permissions []string) (string, time.Time, error) {
	if strings.TrimSpace(user.UID) == "" {
		return "", time.Time{}, errors.New("auth: user uid is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TTL)
	claims := Claims{
		User:        user,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, issuer, audience, and expiry. It fails
// closed: any validation problem yields (nil, false), never a partial
// claims object. Callers treat absence as an anonymous request.
func (s *TokenService) Verify(token string) (*Claims, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, false
	}
	if strings.TrimSpace(claims.User.UID) == "" || claims.User.UID != claims.Subject {
		return nil, false
	}
	return claims, true
}

// TokenFingerprint returns a short stable digest of a token, safe to log
// where the raw token is not.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
