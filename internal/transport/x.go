package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"golang.org/x/oauth2"

	"github.com/roach88/threadpost/internal/content"
)

const (
	// DefaultBaseURL is the X API host.
	DefaultBaseURL = "https://api.x.com"

	// DefaultTokenURL is the OAuth 2.0 token endpoint used to refresh user tokens.
	DefaultTokenURL = "https://api.x.com/2/oauth2/token"

	// DefaultTimeout bounds a single publish call.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// XConfig configures an XClient.
type XConfig struct {
	BaseURL string
	Handle  string
	Timeout time.Duration

	// AccessToken alone is used as a static bearer token. When RefreshToken
	// is set the client refreshes against TokenURL with the client credentials.
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// XOption configures an XClient.
type XOption func(*xOptions)

type xOptions struct {
	httpClient *http.Client
}

// WithHTTPClient sets the base HTTP client. OAuth token refresh goes through
// the same client.
func WithHTTPClient(c *http.Client) XOption {
	return func(o *xOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// XClient publishes posts through the X API v2.
type XClient struct {
	baseURL  string
	handle   string
	timeout  time.Duration
	http     *http.Client
	executor failsafe.Executor[*apiResponse]
}

type apiResponse struct {
	status int
	body   []byte
}

type createPostRequest struct {
	Text  string      `json:"text"`
	Reply *replyParam `json:"reply,omitempty"`
}

type replyParam struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type apiErrorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewXClient builds an authenticated client. ctx is used for token refreshes
// for the lifetime of the client.
func NewXClient(ctx context.Context, cfg XConfig, opts ...XOption) (*XClient, error) {
	o := xOptions{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}

	ts, err := tokenSource(context.WithValue(ctx, oauth2.HTTPClient, o.httpClient), cfg)
	if err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, o.httpClient), ts)
	client.Timeout = cfg.Timeout + time.Second

	return &XClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		handle:   strings.TrimPrefix(cfg.Handle, "@"),
		timeout:  cfg.Timeout,
		http:     client,
		executor: failsafe.With[*apiResponse](timeout.NewBuilder[*apiResponse](cfg.Timeout).Build()),
	}, nil
}

func tokenSource(ctx context.Context, cfg XConfig) (oauth2.TokenSource, error) {
	if cfg.RefreshToken != "" {
		if cfg.ClientID == "" {
			return nil, errors.New("x client id is required to refresh tokens")
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		return oc.TokenSource(ctx, &oauth2.Token{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		}), nil
	}
	if cfg.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}), nil
	}
	return nil, errors.New("x access token or refresh token is required")
}

// Submit publishes text, as a reply to replyTo when it is non-empty.
func (c *XClient) Submit(ctx context.Context, text, replyTo string) (content.Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return content.Receipt{}, ErrEmptyText
	}

	payload := createPostRequest{Text: text}
	if replyTo != "" {
		payload.Reply = &replyParam{InReplyToTweetID: replyTo}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return content.Receipt{}, fmt.Errorf("encode post: %w", err)
	}

	resp, err := c.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[*apiResponse]) (*apiResponse, error) {
		return c.do(exec.Context(), body)
	})
	if err != nil {
		return content.Receipt{}, fmt.Errorf("publish request: %w", err)
	}

	if resp.status != http.StatusCreated && resp.status != http.StatusOK {
		return content.Receipt{}, &Error{StatusCode: resp.status, Message: errorMessage(resp.status, resp.body)}
	}

	var out createPostResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return content.Receipt{}, fmt.Errorf("decode post response: %w", err)
	}
	if out.Data.ID == "" {
		return content.Receipt{}, &Error{StatusCode: resp.status, Message: "response carries no post id"}
	}
	return content.Receipt{ExternalID: out.Data.ID, ExternalURL: c.PostURL(out.Data.ID)}, nil
}

// do sends one request and reads the whole response under ctx.
func (c *XClient) do(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &apiResponse{status: resp.StatusCode, body: raw}, nil
}

// PostURL is the public link for a published post.
func (c *XClient) PostURL(id string) string {
	if c.handle == "" {
		return "https://x.com/i/web/status/" + id
	}
	return "https://x.com/" + c.handle + "/status/" + id
}

func errorMessage(status int, body []byte) string {
	var eb apiErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Detail != "" {
			return eb.Detail
		}
		msgs := make([]string, 0, len(eb.Errors))
		for _, e := range eb.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if eb.Title != "" {
			return eb.Title
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	return http.StatusText(status)
}
