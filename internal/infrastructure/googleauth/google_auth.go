package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mail-chat-bridge/internal/config"
	"mail-chat-bridge/internal/infrastructure/transport"
)

// Scopes needed to read messages and send replies.
var Scopes = []string{gmail.GmailReadonlyScope, gmail.GmailSendScope}

const (
	loopbackAddr = "127.0.0.1:8085"
	callbackPath = "/auth/google/callback"
)

// GoogleAuth wraps oauth2 configuration and the token file location.
type GoogleAuth struct {
	config    *oauth2.Config
	tokenPath string
}

// NewGoogleAuth reads the OAuth client file named by cfg.CredentialsPath.
func NewGoogleAuth(cfg *config.Config) (*GoogleAuth, error) {
	b, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	log.Printf("[auth] using credentials: %s", cfg.CredentialsPath)
	return &GoogleAuth{config: oc, tokenPath: cfg.GmailTokenPath}, nil
}

// AuthURL generates Google OAuth consent URL.
func (ga *GoogleAuth) AuthURL(state string) string {
	return ga.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ObtainTokenInteractive starts a temporary loopback HTTP server, prints the
// consent URL, captures the auth code and saves the token.
func (ga *GoogleAuth) ObtainTokenInteractive(ctx context.Context) error {
	ln, err := net.Listen("tcp", loopbackAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", loopbackAddr, err)
	}
	defer ln.Close()
	ga.config.RedirectURL = "http://" + loopbackAddr + callbackPath

	state, err := newState()
	if err != nil {
		return err
	}
	log.Printf("[auth] Open this URL to authorize:\n%s", ga.AuthURL(state))

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "code missing", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization received. You can close this tab.")
		select {
		case codeCh <- code:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timeout")
	}

	_, err = ga.Exchange(ctx, code)
	return err
}

// Exchange exchanges code to token and persists it.
func (ga *GoogleAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := ga.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := SaveToken(ga.tokenPath, tok); err != nil {
		return nil, err
	}
	log.Printf("[auth] token saved to %s", ga.tokenPath)
	return tok, nil
}

// SaveToken writes token to path.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// TokenFromFile retrieves a token from a local file.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return &tok, nil
}

// BuildGmailService loads token and credentials then builds the Gmail API service.
// Refreshed tokens are kept in memory only.
func BuildGmailService(ctx context.Context, cfg *config.Config) (*gmail.Service, error) {
	ga, err := NewGoogleAuth(cfg)
	if err != nil {
		return nil, err
	}
	tok, err := TokenFromFile(cfg.GmailTokenPath)
	if err != nil {
		return nil, fmt.Errorf("load gmail token (run `auth gmail` first): %w", err)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, transport.Wrap(nil, "gmail", cfg.HTTPLogBodies))
	client := ga.config.Client(ctx, tok)
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return "st-" + hex.EncodeToString(b), nil
}
