package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultFirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type FirebaseConfig struct {
	ProjectID  string
	JWKSURL    string
	HTTPClient *http.Client
	Leeway     time.Duration
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Firebase      struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
	jwt.RegisteredClaims
}

// FirebaseVerifier checks Firebase Auth ID tokens: RS256 signed by Google's
// securetoken keys, issued for the configured project.
type FirebaseVerifier struct {
	projectID string
	parser    *jwt.Parser
	keys      *keyCache
}

func NewFirebaseVerifier(cfg FirebaseConfig) (*FirebaseVerifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		cfg.JWKSURL = defaultFirebaseJWKSURL
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &FirebaseVerifier{
		projectID: cfg.ProjectID,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithIssuer("https://securetoken.google.com/"+cfg.ProjectID),
			jwt.WithAudience(cfg.ProjectID),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(cfg.Leeway),
		),
		keys: newKeyCache(cfg.HTTPClient, cfg.JWKSURL),
	}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, unauthenticated("missing credential")
	}
	claims := &firebaseClaims{}
	_, err := v.parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return v.keys.get(ctx, kid)
	})
	if err != nil {
		return nil, unauthenticated("invalid id token: %v", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, unauthenticated("missing sub")
	}
	return &Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Provider:      claims.Firebase.SignInProvider,
	}, nil
}

type jwkSet struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

type keyCache struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	// minRefresh bounds how often an unknown kid can force a fetch
	// while the cached set is still fresh.
	minRefresh time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeyCache(httpClient *http.Client, url string) *keyCache {
	return &keyCache{
		httpClient: httpClient,
		url:        url,
		ttl:        6 * time.Hour,
		minRefresh: time.Minute,
		keys:       map[string]*rsa.PublicKey{},
	}
}

func (c *keyCache) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key := c.keys[kid]
	fetched := c.fetchedAt
	c.mu.RUnlock()
	stale := time.Since(fetched) > c.ttl
	if key != nil && !stale {
		return key, nil
	}
	if key == nil && !stale && time.Since(fetched) < c.minRefresh {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	if err := c.refresh(ctx); err != nil {
		if key != nil {
			return key, nil
		}
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if key = c.keys[kid]; key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

func (c *keyCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}
	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}
	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kty != "RSA" || strings.TrimSpace(k.Kid) == "" {
			continue
		}
		pub, err := rsaFromModExp(k.N, k.E)
		if err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return errors.New("jwks contained no usable keys")
	}
	c.mu.Lock()
	c.keys = next
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
