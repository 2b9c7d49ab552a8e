package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultHMACIssuer = "mediaforge-dev"

type devClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// HMACVerifier accepts HS256 tokens signed with a shared secret. Local
// development and tests only.
type HMACVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

func NewHMACVerifier(secret, issuer string) (*HMACVerifier, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, fmt.Errorf("AUTH_HMAC_SECRET must be at least 16 characters")
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = defaultHMACIssuer
	}
	return &HMACVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, unauthenticated("missing credential")
	}
	claims := &devClaims{}
	_, err := v.parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, unauthenticated("invalid token: %v", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, unauthenticated("missing sub")
	}
	return &Identity{UID: claims.Subject, Email: claims.Email, Provider: "hmac"}, nil
}

// Issue mints a token this verifier accepts.
func (v *HMACVerifier) Issue(uid, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := devClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
