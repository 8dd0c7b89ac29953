package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/run"
	"golang.org/x/oauth2"
)

const (
	stravaScope  = "read,activity:read_all"
	loginTimeout = 5 * time.Minute
)

var (
	ErrNoRefreshToken = errors.New("no refresh token configured; run with --login")
	ErrAuthTimeout    = errors.New("authorization timed out")
)

type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

func oauthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.OAuthBaseURL + "/authorize",
			TokenURL:  cfg.OAuthBaseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://localhost:" + strconv.Itoa(cfg.RedirectPort),
		// Strava wants the scopes comma separated in a single parameter.
		Scopes: []string{stravaScope},
	}
}

type oauthCredentials struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	refresh  string
	onRotate func(refreshToken string) error
}

// NewOAuthCredentials builds a provider from a stored refresh token. The
// access token is cached until it expires. onRotate is called whenever the
// server hands back a different refresh token so it can be persisted.
func NewOAuthCredentials(ctx context.Context, cfg Config, httpClient *http.Client, onRotate func(string) error) (CredentialProvider, error) {
	if !cfg.HasClient() {
		return nil, ErrNotConfigured
	}
	if !cfg.HasRefreshToken() {
		return nil, ErrNoRefreshToken
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	base := oauthConfig(cfg).TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return &oauthCredentials{
		source:   oauth2.ReuseTokenSource(nil, base),
		refresh:  cfg.RefreshToken,
		onRotate: onRotate,
	}, nil
}

func (o *oauthCredentials) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	token, err := o.source.Token()
	if err != nil {
		return "", authFailure(err)
	}
	if token.RefreshToken != "" && token.RefreshToken != o.refresh {
		o.refresh = token.RefreshToken
		logger.Info("refresh token rotated")
		if o.onRotate != nil {
			if err := o.onRotate(token.RefreshToken); err != nil {
				logger.Warn("persist refresh token failed", "err", err)
			}
		}
	}
	return token.AccessToken, nil
}

func authFailure(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil {
		return &FetchError{
			Kind:    FetchUnauthorized,
			Status:  retrieve.Response.StatusCode,
			Message: "token refresh rejected; run with --login to authorize again",
			Err:     err,
		}
	}
	return &FetchError{Kind: FetchFailed, Message: "token refresh failed", Err: err}
}

// Login runs the authorization code flow against a one-shot local callback
// server and returns the configuration with the new refresh token set.
// Missing client credentials are prompted for on in.
func Login(ctx context.Context, cfg Config, in io.Reader, out io.Writer) (Config, error) {
	reader := bufio.NewReader(in)
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		fmt.Fprintln(out, "\n=== sportfrei setup ===")
	}
	if cfg.ClientID == "" {
		value, err := promptForInput(reader, out, "Client ID")
		if err != nil {
			return cfg, err
		}
		cfg.ClientID = value
	}
	if cfg.ClientSecret == "" {
		value, err := promptForInput(reader, out, "Client Secret")
		if err != nil {
			return cfg, err
		}
		cfg.ClientSecret = value
	}

	oauth := oauthConfig(cfg)
	state := uuid.NewString()
	authURL := oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))

	listener, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(cfg.RedirectPort))
	if err != nil {
		return cfg, fmt.Errorf("start callback listener: %w", err)
	}

	fmt.Fprintln(out, "Open the following URL in your browser and authorize sportfrei:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Waiting for authorization...")
	if err := openURL(authURL); err != nil {
		logger.Debug("browser open failed", "err", err)
	}

	code, err := awaitAuthorizationCode(ctx, listener, state, loginTimeout)
	if err != nil {
		return cfg, err
	}
	fmt.Fprintln(out, "Authorization received, exchanging for token...")
	token, err := oauth.Exchange(ctx, code)
	if err != nil {
		return cfg, fmt.Errorf("exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return cfg, errors.New("token response did not include a refresh token")
	}
	cfg.RefreshToken = token.RefreshToken
	logger.Info("login complete")
	return cfg, nil
}

// awaitAuthorizationCode serves the OAuth redirect on listener until a
// request with the expected state and a code arrives, the timeout elapses,
// or ctx is cancelled.
func awaitAuthorizationCode(ctx context.Context, listener net.Listener, state string, timeout time.Duration) (string, error) {
	codes := make(chan string, 1)
	server := &http.Server{
		Handler:           callbackHandler(state, codes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var code string
	var g run.Group
	g.Add(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	g.Add(func() error {
		select {
		case code = <-codes:
			return nil
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return ErrAuthTimeout
			}
			return waitCtx.Err()
		}
	}, func(error) {
		cancel()
	})

	if err := g.Run(); err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrAuthTimeout
	}
	return code, nil
}

func callbackHandler(state string, codes chan<- string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		w.Header().Set("content-type", "text/html")
		if errParam := query.Get("error"); errParam != "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<html><body><h1>Error</h1><p>Authorization denied: %s</p></body></html>", html.EscapeString(errParam))
			return
		}
		code := query.Get("code")
		if code == "" || query.Get("state") != state {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>"))
			return
		}
		_, _ = w.Write([]byte("<html><body><h1>Authorized!</h1><p>You can close this window and return to the terminal.</p></body></html>"))
		select {
		case codes <- code:
		default:
		}
	})
}

func promptForInput(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	for {
		fmt.Fprintf(out, "%s: ", prompt)
		line, err := reader.ReadString('\n')
		value := strings.TrimSpace(line)
		if value != "" {
			return value, nil
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
		}
		fmt.Fprintln(out, "  This field is required.")
	}
}
