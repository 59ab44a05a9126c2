package publish

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
)

// ErrNoCredentials indicates no auth strategy produced a usable token.
// The pipeline treats this as fatal: without a publisher there is nothing
// to run.
var ErrNoCredentials = errors.New("no usable publishing credentials")

// TokenStrategy is one way of obtaining an access token. Strategies are
// tried in order; the first success wins.
type TokenStrategy interface {
	Name() string
	Token(ctx context.Context) (string, error)
}

// Authenticate tries each strategy in sequence and returns the first token
// obtained. All failures are logged; only the total failure is an error.
func Authenticate(ctx context.Context, strategies ...TokenStrategy) (string, error) {
	for _, s := range strategies {
		token, err := s.Token(ctx)
		if err != nil {
			lgr.Printf("[DEBUG] auth strategy %s failed: %v", s.Name(), err)
			continue
		}
		lgr.Printf("[INFO] authentication method: %s", s.Name())
		return token, nil
	}
	return "", ErrNoCredentials
}

// ServiceAccountStrategy exchanges a base64-encoded service account key,
// supplied via environment, for an access token
type ServiceAccountStrategy struct {
	EnvVar   string
	Scope    string
	TokenURL string // override for tests, defaults to the key's token_uri
	Client   *http.Client
}

// Name returns the strategy name
func (s *ServiceAccountStrategy) Name() string { return "service account" }

// serviceAccountKey is the subset of the key file we need
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Token decodes the key, signs a JWT assertion and exchanges it for an
// access token
func (s *ServiceAccountStrategy) Token(ctx context.Context) (string, error) {
	encoded := os.Getenv(s.EnvVar)
	if encoded == "" {
		return "", fmt.Errorf("%s is not set", s.EnvVar)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode service account key: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return "", fmt.Errorf("service account key missing client_email or private_key")
	}

	tokenURL := s.TokenURL
	if tokenURL == "" {
		tokenURL = key.TokenURI
	}
	if tokenURL == "" {
		return "", fmt.Errorf("service account key missing token_uri")
	}

	assertion, err := signJWT(key, s.Scope, tokenURL, time.Now())
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return result.AccessToken, nil
}

// signJWT builds and signs the RS256 assertion for the jwt-bearer grant
func signJWT(key serviceAccountKey, scope, audience string, now time.Time) (string, error) {
	block, _ := pem.Decode([]byte(key.PrivateKey))
	if block == nil {
		return "", fmt.Errorf("private key is not PEM encoded")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// older keys use PKCS1
		if parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
			return "", fmt.Errorf("parse private key: %w", err)
		}
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key is not RSA")
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]interface{}{
		"iss":   key.ClientEmail,
		"scope": scope,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// CachedTokenStrategy reads a previously saved access token from a file
type CachedTokenStrategy struct {
	Path string
}

// Name returns the strategy name
func (s *CachedTokenStrategy) Name() string { return "cached token" }

// Token loads the cached token and rejects it when expired
func (s *CachedTokenStrategy) Token(_ context.Context) (string, error) {
	if s.Path == "" {
		return "", fmt.Errorf("no token file configured")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	var cached struct {
		AccessToken string    `json:"access_token"`
		Expiry      time.Time `json:"expiry"`
	}
	if err := json.Unmarshal(data, &cached); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if cached.AccessToken == "" {
		return "", fmt.Errorf("token file has no access_token")
	}
	if !cached.Expiry.IsZero() && time.Now().After(cached.Expiry) {
		return "", fmt.Errorf("cached token expired at %s", cached.Expiry)
	}
	return cached.AccessToken, nil
}

// StaticTokenStrategy takes a ready-made access token from environment,
// mainly for local runs and testing
type StaticTokenStrategy struct {
	EnvVar string
}

// Name returns the strategy name
func (s *StaticTokenStrategy) Name() string { return "static token" }

// Token returns the env-supplied token
func (s *StaticTokenStrategy) Token(_ context.Context) (string, error) {
	token := os.Getenv(s.EnvVar)
	if token == "" {
		return "", fmt.Errorf("%s is not set", s.EnvVar)
	}
	return token, nil
}
