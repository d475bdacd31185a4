package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"touris/api/internal/config"
	"touris/api/internal/ids"
	"touris/api/internal/models"
)

var (
	// ErrTokenExpired means the signature checked out but exp is in the past.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type AccessClaims struct {
	UserID string               `json:"userId"`
	Email  string               `json:"email"`
	Role   models.UserRole      `json:"role"`
	Kind   models.PrincipalKind `json:"userType"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID string               `json:"userId"`
	Email  string               `json:"email"`
	Kind   models.PrincipalKind `json:"userType"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

func TokenConfigFrom(cfg config.SecurityConfig) TokenConfig {
	return TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	}
}

// TokenIssuer signs and verifies the access/refresh pair. Access and refresh
// tokens use separate keys so a leaked access key cannot mint refresh tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.cfg.AccessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.cfg.RefreshTTL }

func (t *TokenIssuer) IssueAccess(userID, email string, role models.UserRole, kind models.PrincipalKind) (Token, error) {
	now := t.now()
	exp := now.Add(t.cfg.AccessTTL)
	claims := AccessClaims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		Kind:             kind,
		RegisteredClaims: t.registered(userID, now, exp),
	}
	return t.sign(claims, t.cfg.AccessSecret, exp)
}

func (t *TokenIssuer) IssueRefresh(userID, email string, kind models.PrincipalKind) (Token, error) {
	now := t.now()
	exp := now.Add(t.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID:           userID,
		Email:            email,
		Kind:             kind,
		RegisteredClaims: t.registered(userID, now, exp),
	}
	return t.sign(claims, t.cfg.RefreshSecret, exp)
}

func (t *TokenIssuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(raw, claims, t.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" || !claims.Kind.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (t *TokenIssuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.parse(raw, claims, t.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" || !claims.Kind.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (t *TokenIssuer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		ID:        ids.New(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if t.cfg.Issuer != "" {
		rc.Issuer = t.cfg.Issuer
	}
	if t.cfg.Audience != "" {
		rc.Audience = jwt.ClaimStrings{t.cfg.Audience}
	}
	return rc
}

func (t *TokenIssuer) sign(claims jwt.Claims, secret string, exp time.Time) (Token, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign jwt: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

func (t *TokenIssuer) parse(raw string, claims jwt.Claims, secret string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
