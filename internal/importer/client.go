package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
)

// DefaultMaxItems caps the comments taken from one post.
const DefaultMaxItems = 7

// ErrNotConfigured is returned when no comments endpoint is configured.
var ErrNotConfigured = errors.New("instagram import is not configured")

// leveledSlog adapts slog to retryablehttp, demoting its errors to warnings
// since they precede a retry.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Info(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

// InstagramClient fetches post comments from a comments endpoint serving
// GET {base_url}/{shortcode}/comments.
type InstagramClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

var _ ports.CommentSource = (*InstagramClient)(nil)

// ClientOption configures an InstagramClient.
type ClientOption func(*retryablehttp.Client)

// WithRetries sets the retry budget and wait bounds.
func WithRetries(max int, waitMin, waitMax time.Duration) ClientOption {
	return func(c *retryablehttp.Client) {
		c.RetryMax = max
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *retryablehttp.Client) {
		c.HTTPClient.Transport = transport
	}
}

// NewInstagramClient creates a client that retries connection errors and
// 5xx responses.
func NewInstagramClient(cfg config.ImporterConfig, logger *slog.Logger, opts ...ClientOption) *InstagramClient {
	if logger == nil {
		logger = slog.Default()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger.With("subsystem", "importer")})
	for _, opt := range opts {
		opt(retryClient)
	}

	client := retryClient.StandardClient()
	client.Timeout = cfg.Timeout
	if client.Timeout <= 0 {
		client.Timeout = 30 * time.Second
	}

	return &InstagramClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  client,
	}
}

func (c *InstagramClient) Name() string { return domain.SourceInstagram }

type commentsResponse struct {
	Comments []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		Username string `json:"username"`
	} `json:"comments"`
}

// FetchComments returns up to limit comment texts of the post, in the order
// the endpoint returns them.
func (c *InstagramClient) FetchComments(ctx context.Context, postURL string, limit int) ([]string, error) {
	shortcode, err := ParseShortcode(postURL)
	if err != nil {
		return nil, err
	}
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	endpoint := fmt.Sprintf("%s/%s/comments?limit=%s", c.baseURL, url.PathEscape(shortcode), strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read comments: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch comments: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed commentsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}

	texts := make([]string, 0, limit)
	for _, cm := range parsed.Comments {
		if strings.TrimSpace(cm.Text) == "" {
			continue
		}
		texts = append(texts, cm.Text)
		if len(texts) >= limit {
			break
		}
	}
	return texts, nil
}
