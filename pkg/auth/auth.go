// Package auth acquires Google OAuth sessions for the Drive adapter using
// the installed-application flow, persisting refresh tokens between runs.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes cover reading receipts, duplicating templates and uploading
// finished artifacts.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
}

// Provider hands out authenticated HTTP clients, running the browser
// consent flow once and refreshing silently afterwards.
type Provider struct {
	config *oauth2.Config
	store  *TokenStore
	logger *slog.Logger

	source oauth2.TokenSource
}

// NewProvider loads installed-app credentials from credentialsFile and
// stores tokens at tokenPath.
func NewProvider(credentialsFile, tokenPath string, logger *slog.Logger) (*Provider, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("auth: read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: parse credentials: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		config: cfg,
		store:  NewTokenStore(tokenPath),
		logger: logger,
	}, nil
}

// Client returns an HTTP client that attaches and refreshes the session
// token. The first call may open a browser consent flow.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	if p.source == nil {
		tok, err := p.token(ctx)
		if err != nil {
			return nil, err
		}
		p.source = &persistingSource{
			base:  p.config.TokenSource(ctx, tok),
			store: p.store,
			last:  tok.AccessToken,
		}
	}
	return oauth2.NewClient(ctx, p.source), nil
}

func (p *Provider) token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if tok != nil && (tok.RefreshToken != "" || tok.Valid()) {
		return tok, nil
	}

	tok, err = p.consentFlow(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// consentFlow runs the loopback redirect flow: it listens on an ephemeral
// localhost port, prints the consent URL and waits for the redirect.
func (p *Provider) consentFlow(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("auth: listen for redirect: %w", err)
	}
	defer ln.Close()

	cfg := *p.config
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	p.logger.Info("open the consent page in a browser", "url", url)
	fmt.Fprintf(os.Stderr, "\nVisit to authorize:\n\n  %s\n\n", url)

	type result struct {
		code string
		err  error
	}
	resultCh := make(chan result, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			resultCh <- result{err: fmt.Errorf("auth: state mismatch")}
			return
		}
		if msg := q.Get("error"); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			resultCh <- result{err: fmt.Errorf("auth: consent denied: %s", msg)}
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab.")
		resultCh <- result{code: q.Get("code")}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("auth: exchange code: %w", err)
		}
		return tok, nil
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("auth: consent timed out")
	}
}

// persistingSource saves tokens whenever the access token rotates, so a
// new refresh token survives restarts.
type persistingSource struct {
	base  oauth2.TokenSource
	store *TokenStore
	last  string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

func randomState() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("auth: random state: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
