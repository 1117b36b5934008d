// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/widgetsync/internal/model"
)

// Configuration constants.
const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries applies to idempotent GET requests only.
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// ConversationTitle is the title given to conversations created here.
	ConversationTitle = "Website Chat"

	userAgent = "widgetsync/1.0"
)

var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// Error variables for common backend failures.
var (
	// ErrNotConfigured indicates the base URL or agent id is missing.
	ErrNotConfigured = errors.New("api client not configured")

	// ErrUnauthorized indicates the server rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired indicates re-authentication failed or was rejected.
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the agent or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse indicates a 2xx response missing required fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a non-2xx response that maps to no sentinel.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger

	mu        sync.Mutex
	session   Session
	lead      *Lead
	onSession func(Session, *Lead)

	// renewMu serialises re-registration so concurrent 401s renew once.
	renewMu sync.Mutex
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: sharedHTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: DefaultMaxRetries,
		logger:     logger,
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRateLimit bounds outgoing requests per second.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return c
}

// WithMaxRetries sets the attempt count for GET requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n > 0 {
		c.maxRetries = n
	}
	return c
}

// WithSession installs previously persisted credentials.
func (c *Client) WithSession(s Session, lead *Lead) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.lead = lead
	return c
}

// OnSessionChange registers a callback invoked after tokens change.
func (c *Client) OnSessionChange(fn func(Session, *Lead)) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSession = fn
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Session returns the current credentials.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Lead returns the registered lead, or nil.
func (c *Client) Lead() *Lead {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lead == nil {
		return nil
	}
	l := *c.lead
	return &l
}

// TokenFingerprint identifies the access token in logs without exposing it.
func (c *Client) TokenFingerprint() string {
	return fingerprint(c.Session().AccessToken)
}

func fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// FetchAgent returns the agent's public profile. No token is needed.
func (c *Client) FetchAgent(ctx context.Context, agentID string) (*Agent, error) {
	if agentID == "" {
		return nil, ErrNotConfigured
	}
	var out agentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/agent/"+url.PathEscape(agentID), nil, &out, false); err != nil {
		return nil, fmt.Errorf("fetch agent: %w", err)
	}
	if out.Agent.ID == "" {
		out.Agent.ID = ID(agentID)
	}
	return &out.Agent, nil
}

// RegisterLead registers the visitor and stores the issued tokens.
func (c *Client) RegisterLead(ctx context.Context, lead Lead) (Session, error) {
	if lead.AgentID == "" {
		return Session{}, ErrNotConfigured
	}
	var out registerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/lead/register", lead, &out, false); err != nil {
		return Session{}, fmt.Errorf("register lead: %w", err)
	}
	sess := out.tokenBody.session()
	if out.Tokens != nil {
		if nested := out.Tokens.session(); nested.Valid() {
			sess = nested
		}
	}
	if !sess.Valid() {
		return Session{}, fmt.Errorf("register lead: %w: no access token", ErrMalformedResponse)
	}

	c.mu.Lock()
	c.session = sess
	c.lead = &lead
	notify := c.onSession
	c.mu.Unlock()
	if notify != nil {
		notify(sess, &lead)
	}
	c.logger.Info("lead registered", zap.String("token", fingerprint(sess.AccessToken)))
	return sess, nil
}

// CreateConversation opens a new conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, agentID string) (string, error) {
	var out createConversationResponse
	req := createConversationRequest{AgentID: agentID, Title: ConversationTitle}
	if err := c.doAuthed(ctx, http.MethodPost, "/v1/conversation", req, &out); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	if out.Conversation.ID == "" {
		return "", fmt.Errorf("create conversation: %w: no conversation id", ErrMalformedResponse)
	}
	return string(out.Conversation.ID), nil
}

// SendUserMessage posts text to the conversation. The reply arrives later
// over the push channel or through polling.
func (c *Client) SendUserMessage(ctx context.Context, conversationID, text string) (SendResult, error) {
	if conversationID == "" {
		return SendResult{}, ErrNotConfigured
	}
	var out sendResponse
	path := "/v1/conversation/" + url.PathEscape(conversationID) + "/chat"
	if err := c.doAuthed(ctx, http.MethodPost, path, sendRequest{Message: text}, &out); err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}
	return SendResult{MessageID: string(out.MessageID), TaskID: string(out.TaskID)}, nil
}

// FetchMessages returns one page of history, oldest first.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, page, perPage int) ([]*model.Message, error) {
	if conversationID == "" {
		return nil, ErrNotConfigured
	}
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	path := "/v1/conversation/" + url.PathEscape(conversationID) + "/messages?" + q.Encode()

	var out messagesResponse
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	msgs := make([]*model.Message, 0, len(out.Messages))
	for _, w := range out.Messages {
		msgs = append(msgs, w.ToModel())
	}
	return msgs, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// doAuthed performs a bearer-token request, renewing the session once on
// a 401.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out any) error {
	err := c.do(ctx, method, path, body, out, true)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	rejected := c.Session().AccessToken
	if rerr := c.renew(ctx, rejected); rerr != nil {
		c.logger.Error("session renewal failed", zap.Error(rerr))
		return fmt.Errorf("%w: %v", ErrSessionExpired, rerr)
	}
	err = c.do(ctx, method, path, body, out, true)
	if errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}

// renew re-registers the stored lead unless another caller already
// replaced the rejected token.
func (c *Client) renew(ctx context.Context, rejected string) error {
	c.renewMu.Lock()
	defer c.renewMu.Unlock()

	if cur := c.Session().AccessToken; cur != "" && cur != rejected {
		return nil
	}
	lead := c.Lead()
	if lead == nil {
		return errors.New("no lead registration to renew")
	}
	_, err := c.RegisterLead(ctx, *lead)
	return err
}

// do performs one logical request. GETs are retried with backoff on 5xx
// and rate limiting.
func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxRetries
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}
		lastErr = c.doOnce(ctx, method, path, payload, out, auth)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any, auth bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if auth {
		if token := c.Session().AccessToken; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-2xx response into an error.
func handleErrorResponse(status int, body []byte) error {
	var parsed errorBody
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg = parsed.text()
	} else {
		msg = strings.TrimSpace(string(body))
	}

	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return &APIError{Status: status, Message: msg}
	}
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
