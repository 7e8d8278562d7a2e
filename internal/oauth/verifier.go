// Package oauth verifies ID tokens issued by external identity providers
// against the provider's published JSON Web Key Set.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultKeysTTL    = time.Hour
	defaultMinRefetch = time.Minute
)

var (
	ErrNotConfigured = errors.New("identity provider not configured")
	ErrUnknownKey    = errors.New("signing key not found in provider key set")
)

// Provider describes where to fetch keys and what to accept
type Provider struct {
	Name      string
	JWKSURL   string
	Issuers   []string
	Audiences []string
}

// Google is the Sign in with Google provider for the given OAuth client ids
func Google(clientIDs []string) Provider {
	return Provider{
		Name:      "google",
		JWKSURL:   "https://www.googleapis.com/oauth2/v3/certs",
		Issuers:   []string{"accounts.google.com", "https://accounts.google.com"},
		Audiences: clientIDs,
	}
}

// Apple is the Sign in with Apple provider for the given service/bundle id
func Apple(clientID string) Provider {
	var aud []string
	if clientID != "" {
		aud = []string{clientID}
	}
	return Provider{
		Name:      "apple",
		JWKSURL:   "https://appleid.apple.com/auth/keys",
		Issuers:   []string{"https://appleid.apple.com"},
		Audiences: aud,
	}
}

// Claims are the verified identity attributes the account bridge needs
type Claims struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type idTokenClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	jwt.RegisteredClaims
}

// flexBool accepts true or "true"; Apple sends the string form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// Verifier checks RS256 ID tokens for one provider. Keys are cached for
// keysTTL and refetched early when a token names an unknown kid, at most
// once per minRefetch.
type Verifier struct {
	provider   Provider
	httpClient *http.Client
	keysTTL    time.Duration
	minRefetch time.Duration
	now        func() time.Time

	fetchMu     sync.Mutex
	lastAttempt time.Time

	mu        sync.RWMutex
	keys      jose.JSONWebKeySet
	fetchedAt time.Time
}

// NewVerifier constructs a Verifier. A nil client gets a 10s timeout client.
func NewVerifier(provider Provider, client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{
		provider:   provider,
		httpClient: client,
		keysTTL:    defaultKeysTTL,
		minRefetch: defaultMinRefetch,
		now:        time.Now,
	}
}

// Verify validates signature, issuer, audience and expiry of rawIDToken
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	if len(v.provider.Audiences) == 0 {
		return nil, fmt.Errorf("%s: %w", v.provider.Name, ErrNotConfigured)
	}

	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(rawIDToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify %s id token: %w", v.provider.Name, err)
	}

	if !slices.Contains(v.provider.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("verify %s id token: unexpected issuer %q", v.provider.Name, claims.Issuer)
	}
	if !slices.ContainsFunc(claims.Audience, func(aud string) bool {
		return slices.Contains(v.provider.Audiences, aud)
	}) {
		return nil, fmt.Errorf("verify %s id token: audience not accepted", v.provider.Name)
	}

	return &Claims{
		Provider:      v.provider.Name,
		Subject:       claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
	}, nil
}

func (v *Verifier) key(ctx context.Context, kid string) (interface{}, error) {
	if k, ok := v.cachedKey(kid); ok {
		return k, nil
	}

	v.fetchMu.Lock()
	defer v.fetchMu.Unlock()
	// another caller may have refreshed while this one waited
	if k, ok := v.cachedKey(kid); ok {
		return k, nil
	}
	// a fresh set that lacks kid is only refetched after minRefetch
	if v.fresh() && v.now().Sub(v.lastAttempt) < v.minRefetch {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}

	v.lastAttempt = v.now()
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.cachedKey(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
}

func (v *Verifier) fresh() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.fetchedAt.IsZero() && v.now().Sub(v.fetchedAt) <= v.keysTTL
}

func (v *Verifier) cachedKey(kid string) (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.fetchedAt.IsZero() || v.now().Sub(v.fetchedAt) > v.keysTTL {
		return nil, false
	}
	for _, k := range v.keys.Key(kid) {
		if k.Use == "" || k.Use == "sig" {
			return k.Key, true
		}
	}
	return nil, false
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.provider.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read jwks: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fetch jwks: status=%d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	v.mu.Lock()
	v.keys = set
	v.fetchedAt = v.now()
	v.mu.Unlock()
	return nil
}
