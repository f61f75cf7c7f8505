package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	keySetCacheKey    = "jwks"
	defaultKeyTTL     = time.Hour
	defaultMinRefresh = time.Minute
	clockLeeway       = 30 * time.Second
)

var asymmetricMethods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512"}

// Identity is a verified caller.
type Identity struct {
	Subject string
	Claims  jwt.MapClaims
}

// Claim returns a claim by name. "sub" always resolves to the subject.
func (i *Identity) Claim(name string) (interface{}, bool) {
	if i == nil {
		return nil, false
	}
	if name == "sub" {
		return i.Subject, i.Subject != ""
	}
	v, ok := i.Claims[name]
	return v, ok
}

// Verifier turns a raw credential into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (*Identity, error)
}

// Identify verifies the credential bound to ctx. An absent credential yields
// a nil identity and no error; callers decide whether anonymity is allowed.
func Identify(ctx context.Context, v Verifier) (*Identity, error) {
	cred := CredentialFromContext(ctx)
	if !cred.Present {
		return nil, nil
	}
	return v.Verify(ctx, cred)
}

// JWKSVerifier validates asymmetrically signed tokens against a remote key
// set. The key set is cached and refetched when a token names an unknown key.
type JWKSVerifier struct {
	url        string
	issuer     string
	audience   string
	client     *http.Client
	keys       *cache.Cache
	keyTTL     time.Duration
	minRefresh time.Duration

	mu        sync.Mutex
	lastFetch time.Time

	logger *zap.Logger
}

// JWKSOption configures a JWKSVerifier.
type JWKSOption func(*JWKSVerifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(iss string) JWKSOption {
	return func(v *JWKSVerifier) { v.issuer = iss }
}

// WithAudience requires the aud claim to contain aud.
func WithAudience(aud string) JWKSOption {
	return func(v *JWKSVerifier) { v.audience = aud }
}

// WithHTTPClient overrides the client used to fetch the key set.
func WithHTTPClient(c *http.Client) JWKSOption {
	return func(v *JWKSVerifier) { v.client = c }
}

// WithKeyTTL sets how long a fetched key set is trusted.
func WithKeyTTL(d time.Duration) JWKSOption {
	return func(v *JWKSVerifier) {
		if d > 0 {
			v.keyTTL = d
		}
	}
}

// WithMinRefresh bounds how often an unknown kid may trigger a refetch.
func WithMinRefresh(d time.Duration) JWKSOption {
	return func(v *JWKSVerifier) { v.minRefresh = d }
}

// NewJWKSVerifier creates a verifier for the key set served at url.
func NewJWKSVerifier(url string, opts ...JWKSOption) *JWKSVerifier {
	v := &JWKSVerifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		keyTTL:     defaultKeyTTL,
		minRefresh: defaultMinRefresh,
		logger:     logger.Get(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.keys = cache.New(v.keyTTL, 2*v.keyTTL)
	return v
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(ctx context.Context, cred Credential) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(asymmetricMethods)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return verifyToken(cred, func(t *jwt.Token) (interface{}, error) {
		return v.key(ctx, t)
	}, opts...)
}

func (v *JWKSVerifier) key(ctx context.Context, t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)

	set, err := v.keySet(ctx, false)
	if err != nil {
		return nil, err
	}
	if k := lookupKey(set, kid); k != nil {
		return k, nil
	}

	// Unknown kid: the issuer may have rotated its keys.
	set, err = v.keySet(ctx, true)
	if err != nil {
		return nil, err
	}
	if k := lookupKey(set, kid); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("no signing key for kid %q", kid)
}

func (v *JWKSVerifier) keySet(ctx context.Context, refresh bool) (*jose.JSONWebKeySet, error) {
	if !refresh {
		if x, found := v.keys.Get(keySetCacheKey); found {
			return x.(*jose.JSONWebKeySet), nil
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if x, found := v.keys.Get(keySetCacheKey); found {
		// Another request fetched while we waited, or a refetch happened too recently.
		if !refresh || time.Since(v.lastFetch) < v.minRefresh {
			return x.(*jose.JSONWebKeySet), nil
		}
	}

	set, err := v.fetch(ctx)
	if err != nil {
		v.logger.Error("Failed to fetch JWKS", zap.String("url", v.url), zap.Error(err))
		return nil, apperrors.NewUpstream("jwks endpoint", err)
	}
	v.keys.Set(keySetCacheKey, set, cache.DefaultExpiration)
	v.lastFetch = time.Now()
	v.logger.Debug("JWKS refreshed", zap.Int("keys", len(set.Keys)))
	return set, nil
}

func (v *JWKSVerifier) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set endpoint returned %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("key set is empty")
	}
	return &set, nil
}

func lookupKey(set *jose.JSONWebKeySet, kid string) interface{} {
	if kid == "" {
		if len(set.Keys) == 1 {
			return set.Keys[0].Key
		}
		return nil
	}
	keys := set.Key(kid)
	if len(keys) == 0 {
		return nil
	}
	return keys[0].Key
}

// SecretVerifier validates HS256 tokens signed with a shared secret. It is
// meant for local development where no key endpoint exists.
type SecretVerifier struct {
	secret []byte
}

// NewSecretVerifier creates a shared-secret verifier.
func NewSecretVerifier(secret string) *SecretVerifier {
	return &SecretVerifier{secret: []byte(secret)}
}

// Verify implements Verifier.
func (v *SecretVerifier) Verify(_ context.Context, cred Credential) (*Identity, error) {
	return verifyToken(cred, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
}

func verifyToken(cred Credential, keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) (*Identity, error) {
	raw, err := bearerToken(cred.Raw)
	if err != nil {
		return nil, apperrors.NewUnauthenticated("malformed credential", err)
	}

	opts = append(opts, jwt.WithExpirationRequired(), jwt.WithLeeway(clockLeeway))
	token, err := jwt.Parse(raw, keyFunc, opts...)
	if err != nil {
		var upstream *apperrors.ErrUpstream
		if errors.As(err, &upstream) {
			return nil, upstream
		}
		return nil, apperrors.NewUnauthenticated("invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.NewUnauthenticated("invalid token claims", nil)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, apperrors.NewUnauthenticated("token has no subject", err)
	}
	return &Identity{Subject: sub, Claims: claims}, nil
}

func bearerToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return "", errors.New("empty bearer token")
	}
	return raw, nil
}
