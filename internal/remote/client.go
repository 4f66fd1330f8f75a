// Package remote drives proof jobs on a Bonsai-style remote proving service:
// image and input upload, session creation, status polling, receipt
// download and the optional SNARK compression stage.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/constants"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/retry"
)

// maxArtifactBytes caps a downloaded receipt.
const maxArtifactBytes = 256 << 20

// maxErrorBodyBytes caps how much of an error response is kept for messages.
const maxErrorBodyBytes = 512

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service is the remote proving API used by JobClient and SnarkStage.
type Service interface {
	// UploadImage uploads image under imageID. It reports whether the
	// service already had the image, in which case nothing is sent.
	UploadImage(ctx context.Context, imageID string, image []byte) (bool, error)
	// UploadInput stores input and returns its handle.
	UploadInput(ctx context.Context, input []byte) (string, error)
	// CreateSession starts a proving session and returns its id.
	CreateSession(ctx context.Context, imageID, inputID string, assumptions []string, executeOnly bool) (string, error)
	// SessionStatus fetches the state of a proving session.
	SessionStatus(ctx context.Context, sessionID string) (*Session, error)
	// CreateSnark starts a compression session for a succeeded proving session.
	CreateSnark(ctx context.Context, sessionID string) (string, error)
	// SnarkStatus fetches the state of a compression session.
	SnarkStatus(ctx context.Context, snarkID string) (*Session, error)
	// Download fetches an artifact by URL.
	Download(ctx context.Context, artifactURL string) ([]byte, error)
}

// Session is the service's view of a proving or compression session.
type Session struct {
	ID     string
	Status constants.SessionStatus
	// ArtifactURL is the receipt URL of a succeeded session, or the
	// compressed receipt URL of a succeeded compression session.
	ArtifactURL string
	// Error is the service's message for a failed session.
	Error string
	// State is an optional free-form progress description.
	State string
	// Elapsed is the service-reported run time, when present.
	Elapsed time.Duration
}

// wire formats

type uploadURLResponse struct {
	URL string `json:"url"`
}

type inputUploadResponse struct {
	UUID string `json:"uuid"`
	URL  string `json:"url"`
}

type createSessionRequest struct {
	Img         string   `json:"img"`
	Input       string   `json:"input"`
	Assumptions []string `json:"assumptions"`
	ExecuteOnly bool     `json:"execute_only"`
}

type createSnarkRequest struct {
	SessionID string `json:"session_id"`
}

type createResponse struct {
	UUID string `json:"uuid"`
}

type sessionStatusResponse struct {
	Status      string   `json:"status"`
	ReceiptURL  *string  `json:"receipt_url,omitempty"`
	ErrorMsg    *string  `json:"error_msg,omitempty"`
	State       *string  `json:"state,omitempty"`
	ElapsedTime *float64 `json:"elapsed_time,omitempty"`
}

type snarkStatusResponse struct {
	Status   string  `json:"status"`
	Output   *string `json:"output,omitempty"`
	ErrorMsg *string `json:"error_msg,omitempty"`
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Unwrap returns ErrRemoteTransport so errors.Is() matches the sentinel.
func (e *StatusError) Unwrap() error {
	return zkerrors.ErrRemoteTransport
}

// Retryable reports whether the failure is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Client is an HTTP client for the remote proving service.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	version    string
	httpClient HTTPClient
	retry      retry.Config
	logger     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig sets the transport retry policy.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithVersion sets the x-risc0-version header value.
func WithVersion(version string) ClientOption {
	return func(c *Client) {
		c.version = version
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, zkerrors.ErrRemoteNotConfigured
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", zkerrors.ErrConfigInvalidRemote, baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		apiKey:     apiKey,
		version:    constants.DefaultRisc0Version,
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		retry:      retry.DefaultConfig(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "remote_client").Logger()
	return c, nil
}

var _ Service = (*Client)(nil)

// UploadImage implements Service.
func (c *Client) UploadImage(ctx context.Context, imageID string, image []byte) (bool, error) {
	endpoint := c.endpoint("images", "upload", imageID)

	var res uploadURLResponse
	status, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &res, http.StatusNoContent)
	if err != nil {
		return false, fmt.Errorf("query image %s: %w", imageID, err)
	}
	if status == http.StatusNoContent {
		c.logger.Debug().Str("image_id", imageID).Msg("image already uploaded")
		return true, nil
	}
	if res.URL == "" {
		return false, fmt.Errorf("%w: image upload url missing", zkerrors.ErrMalformedServiceResponse)
	}
	if err := c.put(ctx, res.URL, image); err != nil {
		return false, fmt.Errorf("upload image %s: %w", imageID, err)
	}
	return false, nil
}

// UploadInput implements Service.
func (c *Client) UploadInput(ctx context.Context, input []byte) (string, error) {
	var res inputUploadResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.endpoint("inputs", "upload"), nil, &res); err != nil {
		return "", fmt.Errorf("request input upload: %w", err)
	}
	if res.UUID == "" || res.URL == "" {
		return "", fmt.Errorf("%w: input upload uuid or url missing", zkerrors.ErrMalformedServiceResponse)
	}
	if err := c.put(ctx, res.URL, input); err != nil {
		return "", fmt.Errorf("upload input: %w", err)
	}
	return res.UUID, nil
}

// CreateSession implements Service.
func (c *Client) CreateSession(ctx context.Context, imageID, inputID string, assumptions []string, executeOnly bool) (string, error) {
	if assumptions == nil {
		assumptions = []string{}
	}
	req := createSessionRequest{
		Img:         imageID,
		Input:       inputID,
		Assumptions: assumptions,
		ExecuteOnly: executeOnly,
	}
	var res createResponse
	if _, err := c.doJSON(ctx, http.MethodPost, c.endpoint("sessions", "create"), req, &res); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if res.UUID == "" {
		return "", fmt.Errorf("%w: session uuid missing", zkerrors.ErrMalformedServiceResponse)
	}
	return res.UUID, nil
}

// SessionStatus implements Service.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (*Session, error) {
	var res sessionStatusResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.endpoint("sessions", "status", sessionID), nil, &res); err != nil {
		return nil, fmt.Errorf("session %s status: %w", sessionID, err)
	}
	if res.Status == "" {
		return nil, fmt.Errorf("%w: session %s status missing", zkerrors.ErrMalformedServiceResponse, sessionID)
	}
	s := &Session{
		ID:          sessionID,
		Status:      constants.SessionStatus(res.Status),
		ArtifactURL: deref(res.ReceiptURL),
		Error:       deref(res.ErrorMsg),
		State:       deref(res.State),
	}
	if res.ElapsedTime != nil {
		s.Elapsed = time.Duration(*res.ElapsedTime * float64(time.Second))
	}
	return s, nil
}

// CreateSnark implements Service.
func (c *Client) CreateSnark(ctx context.Context, sessionID string) (string, error) {
	var res createResponse
	if _, err := c.doJSON(ctx, http.MethodPost, c.endpoint("snark", "create"), createSnarkRequest{SessionID: sessionID}, &res); err != nil {
		return "", fmt.Errorf("create snark for %s: %w", sessionID, err)
	}
	if res.UUID == "" {
		return "", fmt.Errorf("%w: snark uuid missing", zkerrors.ErrMalformedServiceResponse)
	}
	return res.UUID, nil
}

// SnarkStatus implements Service.
func (c *Client) SnarkStatus(ctx context.Context, snarkID string) (*Session, error) {
	var res snarkStatusResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.endpoint("snark", "status", snarkID), nil, &res); err != nil {
		return nil, fmt.Errorf("snark %s status: %w", snarkID, err)
	}
	if res.Status == "" {
		return nil, fmt.Errorf("%w: snark %s status missing", zkerrors.ErrMalformedServiceResponse, snarkID)
	}
	return &Session{
		ID:          snarkID,
		Status:      constants.SessionStatus(res.Status),
		ArtifactURL: deref(res.Output),
		Error:       deref(res.ErrorMsg),
	}, nil
}

// Download implements Service.
func (c *Client) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	target, err := c.resolve(artifactURL)
	if err != nil {
		return nil, err
	}
	data, err := retry.Do(ctx, c.retry, shouldRetry, func(ctx context.Context) ([]byte, error) {
		resp, err := c.send(ctx, http.MethodGet, target, nil, "")
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body

		if err := checkStatus(resp, http.MethodGet, target); err != nil {
			return nil, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read artifact: %w", zkerrors.ErrRemoteTransport, err)
		}
		if len(body) > maxArtifactBytes {
			return nil, fmt.Errorf("%w: artifact exceeds %d bytes", zkerrors.ErrMalformedServiceResponse, maxArtifactBytes)
		}
		return body, nil
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	return data, nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + strings.Join(escaped, "/")
}

// resolve turns a service-provided URL into an absolute one. Relative URLs
// are taken relative to the API base.
func (c *Client) resolve(ref string) (string, error) {
	u, err := c.baseURL.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: bad url %q: %w", zkerrors.ErrMalformedServiceResponse, ref, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url scheme %q", zkerrors.ErrMalformedServiceResponse, u.Scheme)
	}
	return u.String(), nil
}

// sameOrigin reports whether target lives under the API base, which is
// the only place credentials are sent.
func (c *Client) sameOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == c.baseURL.Scheme && u.Host == c.baseURL.Host &&
		strings.HasPrefix(u.Path, c.baseURL.Path)
}

func (c *Client) put(ctx context.Context, ref string, data []byte) error {
	target, err := c.resolve(ref)
	if err != nil {
		return err
	}
	_, err = retry.Do(ctx, c.retry, shouldRetry, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, http.MethodPut, target, data, "application/octet-stream")
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body
		_, _ = io.Copy(io.Discard, resp.Body)
		return struct{}{}, checkStatus(resp, http.MethodPut, target)
	}, c.logger)
	return err
}

// doJSON performs one JSON exchange with retry and decodes a 2xx body into
// out. Statuses listed in empty are accepted without a body. It returns the
// final HTTP status.
func (c *Client) doJSON(ctx context.Context, method, target string, in, out any, empty ...int) (int, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
	}

	retryable := shouldRetry
	if method == http.MethodPost {
		// a POST that reached the service may have taken effect
		retryable = shouldRetryPost
	}

	return retry.Do(ctx, c.retry, retryable, func(ctx context.Context) (int, error) {
		resp, err := c.send(ctx, method, target, payload, "application/json")
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body

		if err := checkStatus(resp, method, target); err != nil {
			return resp.StatusCode, err
		}
		for _, code := range empty {
			if resp.StatusCode == code {
				_, _ = io.Copy(io.Discard, resp.Body)
				return code, nil
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %w", zkerrors.ErrMalformedServiceResponse, method, target, err)
		}
		return resp.StatusCode, nil
	}, c.logger)
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", zkerrors.ErrRemoteTransport, err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.sameOrigin(target) {
		req.Header.Set(constants.HeaderAPIKey, c.apiKey)
		req.Header.Set(constants.HeaderRisc0Version, c.version)
	}

	c.logger.Debug().Str("method", method).Str("url", target).Msg("remote request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %w", zkerrors.ErrRemoteTransport, method, target, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, method, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{
		Method: method,
		URL:    target,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// shouldRetry accepts network failures, 5xx and 429.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return errors.Is(err, zkerrors.ErrRemoteTransport)
}

// shouldRetryPost accepts only answers that prove the request was not processed.
func shouldRetryPost(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
