// Package ghauth builds authenticated GitHub clients, either from a static
// token or as a GitHub App installation.
package ghauth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"deplostatus/internal/githubapi"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const (
	// GitHub rejects app JWTs valid for more than 10 minutes; issue them
	// backdated to absorb clock drift.
	jwtLifetime = 9 * time.Minute
	jwtBackdate = 60 * time.Second

	tokenRequestTimeout = 30 * time.Second
)

// ErrNoInstallation is returned when an App provider is asked for a client
// without an installation id (the delivery did not come through the App).
var ErrNoInstallation = errors.New("delivery has no app installation")

// Provider hands out GitHub clients for webhook deliveries
type Provider interface {
	Client(ctx context.Context, installationID int64) (*github.Client, error)
}

// StaticProvider uses one token for every delivery
type StaticProvider struct {
	client *github.Client
}

// NewStaticProvider creates a provider authenticating with token
func NewStaticProvider(token, apiURL string) (*StaticProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client, err := githubapi.NewGitHubClient(oauth2.NewClient(context.Background(), ts), apiURL)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{client: client}, nil
}

// Client returns the shared client; the installation id is ignored
func (p *StaticProvider) Client(ctx context.Context, installationID int64) (*github.Client, error) {
	return p.client, nil
}

// AppProvider authenticates as a GitHub App installation. Installation
// tokens are cached per installation and refreshed shortly before expiry.
type AppProvider struct {
	AppID  int64
	Key    *rsa.PrivateKey
	APIURL string
	Now    func() time.Time

	mu      sync.Mutex
	clients map[int64]*github.Client
}

// NewAppProvider creates a provider for the given app id and PEM key
func NewAppProvider(appID int64, privateKeyPEM []byte, apiURL string) (*AppProvider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	return &AppProvider{
		AppID:   appID,
		Key:     key,
		APIURL:  apiURL,
		Now:     time.Now,
		clients: make(map[int64]*github.Client),
	}, nil
}

// NewAppProviderFromFile reads the PEM key from disk
func NewAppProviderFromFile(appID int64, keyPath, apiURL string) (*AppProvider, error) {
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app private key: %w", err)
	}
	return NewAppProvider(appID, pem, apiURL)
}

// Client returns the cached client for an installation, creating it on
// first use
func (p *AppProvider) Client(ctx context.Context, installationID int64) (*github.Client, error) {
	if installationID == 0 {
		return nil, ErrNoInstallation
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[installationID]; ok {
		return client, nil
	}

	src := oauth2.ReuseTokenSource(nil, &installationTokenSource{
		provider:       p,
		installationID: installationID,
	})
	client, err := githubapi.NewGitHubClient(oauth2.NewClient(context.Background(), src), p.APIURL)
	if err != nil {
		return nil, err
	}

	p.clients[installationID] = client
	return client, nil
}

// JWT signs a short-lived token identifying the app itself
func (p *AppProvider) JWT() (string, error) {
	now := p.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(p.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

// appClient authenticates as the app (not an installation)
func (p *AppProvider) appClient() (*github.Client, error) {
	signed, err := p.JWT()
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: signed})
	return githubapi.NewGitHubClient(&http.Client{
		Transport: &oauth2.Transport{Source: ts},
		Timeout:   tokenRequestTimeout,
	}, p.APIURL)
}

type installationTokenSource struct {
	provider       *AppProvider
	installationID int64
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	client, err := s.provider.appClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), tokenRequestTimeout)
	defer cancel()

	tok, _, err := client.Apps.CreateInstallationToken(ctx, s.installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token for %d: %w", s.installationID, err)
	}

	return &oauth2.Token{
		AccessToken: tok.GetToken(),
		Expiry:      tok.GetExpiresAt().Time,
	}, nil
}
