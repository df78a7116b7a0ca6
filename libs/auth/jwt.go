package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const RoleAdmin = "admin"

// Claims identify an operator acting on one tenant.
type Claims struct {
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func SignHS256(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// IssueAdminToken signs an admin token for tenant valid for ttl.
func IssueAdminToken(tenantID, tenantSlug, secret string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return SignHS256(Claims{
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		Role:       RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantSlug,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}, secret)
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" || claims.TenantSlug == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
