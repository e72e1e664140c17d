package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authentication sources carried in the "src" claim. A session token is the
// ordinary login channel; an elevated grant is an explicitly issued admin
// escalation and always wins over the session's role.
const (
	SourceStandard = "standard"
	SourceElevated = "elevated"
)

// Claims are the registered JWT claims plus the fields the access layer
// needs to decide without a database round trip.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Source string `json:"src"`
}

// IssueSession signs a standard session token for a principal. The role may
// be empty: a principal fresh from signup can hold a session before its
// role row lands.
func IssueSession(secret, userID, role, issuer string, ttl time.Duration) (string, error) {
	return issue(secret, userID, role, issuer, SourceStandard, ttl)
}

// IssueElevatedGrant signs an admin-override grant. The grant asserts the
// admin role regardless of what the principal's role row says.
func IssueElevatedGrant(secret, userID, issuer string, ttl time.Duration) (string, error) {
	return issue(secret, userID, "admin", issuer, SourceElevated, ttl)
}

func issue(secret, userID, role, issuer, source string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token: empty signing secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Role:   role,
		Source: source,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse validates a token from either channel and returns its claims.
func Parse(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("token: invalid claims")
	}
	return claims, nil
}
