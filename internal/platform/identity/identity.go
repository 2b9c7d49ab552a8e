package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Provider      string
}

type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

var ErrUnauthenticated = errors.New("unauthenticated")

func unauthenticated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, fmt.Sprintf(format, args...))
}

// Config selects a verifier. Mode is "firebase" or "hmac".
type Config struct {
	Mode              string
	FirebaseProjectID string
	FirebaseJWKSURL   string
	HMACSecret        string
	HMACIssuer        string
}

func New(cfg Config) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "firebase":
		v, err := NewFirebaseVerifier(FirebaseConfig{
			ProjectID: cfg.FirebaseProjectID,
			JWKSURL:   cfg.FirebaseJWKSURL,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case "hmac", "dev":
		v, err := NewHMACVerifier(cfg.HMACSecret, cfg.HMACIssuer)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
	}
}
