package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/naveenspark/watchlist/pkg/domain"
)

// TokenSource yields the credential attached to each request. An empty token
// means the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// LoginResponse is the payload returned by a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        domain.User `json:"user"`
}

// SignupRequest is the payload for creating an account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the underlying *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger logs one debug line per request.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive limit disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// Client is the watchlist API client. It is the only component that talks to
// the backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// New creates a new API client. tokens may be nil for anonymous use.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchWatchlist returns the current user's watchlist in server order.
func (c *Client) FetchWatchlist(ctx context.Context) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := c.get(ctx, "/api/movies", &movies); err != nil {
		return nil, fmt.Errorf("client.FetchWatchlist: %w", err)
	}
	if movies == nil {
		movies = []domain.Movie{}
	}
	return movies, nil
}

// AddMovie asks the backend to resolve title against its catalog and store
// the match. A title with no catalog match fails with ErrNotFound.
func (c *Client) AddMovie(ctx context.Context, title string) (*domain.Movie, error) {
	var created domain.Movie
	if err := c.post(ctx, "/api/movies", map[string]string{"title": title}, &created); err != nil {
		return nil, fmt.Errorf("client.AddMovie: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("client.AddMovie: %w", &Error{Kind: KindServerError, Message: "response has no id"})
	}
	return &created, nil
}

// SetWatched updates the watched flag of a movie and returns the stored entry.
func (c *Client) SetWatched(ctx context.Context, id string, watched bool) (*domain.Movie, error) {
	params := url.Values{}
	params.Set("watched", strconv.FormatBool(watched))

	var updated domain.Movie
	path := "/api/movies/" + url.PathEscape(id) + "?" + params.Encode()
	if err := c.doRequest(ctx, http.MethodPut, path, map[string]bool{"watched": watched}, &updated); err != nil {
		return nil, fmt.Errorf("client.SetWatched: %w", err)
	}
	if updated.ID == "" {
		return nil, fmt.Errorf("client.SetWatched: %w", &Error{Kind: KindServerError, Message: "response has no id"})
	}
	return &updated, nil
}

// RemoveMovie deletes a movie. Deleting an id that no longer exists fails with
// ErrNotFound.
func (c *Client) RemoveMovie(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/movies/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("client.RemoveMovie: %w", err)
	}
	return nil
}

// Login exchanges a username/password pair for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp LoginResponse
	if err := c.post(ctx, "/api/auth/login", form, &resp); err != nil {
		if KindOf(err) == KindUnauthorized {
			err = reclassify(err, KindInvalidCredentials)
		}
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("client.Login: %w", &Error{Kind: KindServerError, Message: "response has no access token"})
	}
	return &resp, nil
}

// Signup creates an account. The caller logs in separately afterwards.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	if err := c.post(ctx, "/api/auth/signup", req, nil); err != nil {
		if IsStatus(err, http.StatusBadRequest) && strings.Contains(strings.ToLower(err.Error()), "already registered") {
			err = reclassify(err, KindConflict)
		}
		return fmt.Errorf("client.Signup: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

// doRequest sends one request. body is form-encoded when it is url.Values and
// JSON-encoded otherwise.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	var contentType string
	switch b := body.(type) {
	case nil:
	case url.Values:
		reqBody = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return &Error{Kind: KindRejected, Message: "marshal body", Err: err}
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: KindRejected, Message: "create request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindUnavailable, Message: "rate limit wait", Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "err", err)
		return &Error{Kind: KindUnavailable, Message: "no response", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &Error{Kind: classify(resp.StatusCode), StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return &Error{Kind: classify(resp.StatusCode), StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindServerError, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
		}
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body. Both
// {"detail": "..."} and {"error": "..."} shapes are understood; anything else
// is returned as trimmed text.
func errorMessage(body []byte) string {
	var apiErr struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if len(apiErr.Detail) > 0 {
			var s string
			if json.Unmarshal(apiErr.Detail, &s) == nil {
				return s
			}
			return string(apiErr.Detail)
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// reclassify returns a copy of the *Error in err with a new Kind.
func reclassify(err error, kind Kind) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Kind = kind
	return &cp
}
