package qa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent = "spigell/hh-interviewer"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond

	sessionsPath = "/interview/sessions"
	historyPath  = "/interview/history"
)

// ClientConfig tunes the HTTP client.
type ClientConfig struct {
	BaseURL string
	Token   string
	// Timeout bounds every single remote call, retries included.
	Timeout time.Duration
	// MaxRetries applies only to idempotent calls and session completion.
	MaxRetries int
	Backoff    time.Duration
}

// Client is the HTTP implementation of Service.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

var _ Service = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		token:      strings.TrimSpace(cfg.Token),
		logger:     logger,
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
		APIURL:     base,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}

	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}

	return c, nil
}

func (c *Client) sessionURL(sessionID string, parts ...string) string {
	u := fmt.Sprintf("%s%s/%s", c.APIURL, sessionsPath, url.PathEscape(sessionID))
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, errors.New("job description is required")
	}

	var session Session
	if err := c.call(ctx, http.MethodPost, c.APIURL+sessionsPath, req, &session, false); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	return &session, nil
}

func (c *Client) CurrentQuestion(ctx context.Context, sessionID string) (*Question, error) {
	var question Question
	if err := c.call(ctx, http.MethodGet, c.sessionURL(sessionID, "question"), nil, &question, true); err != nil {
		return nil, fmt.Errorf("get current question: %w", err)
	}
	return &question, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (*SubmitResult, error) {
	body := map[string]string{
		"questionId": questionID,
		"answer":     answer,
	}

	var result SubmitResult
	if err := c.call(ctx, http.MethodPost, c.sessionURL(sessionID, "answers"), body, &result, false); err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	if result.Feedback.QuestionID == "" {
		result.Feedback.QuestionID = questionID
	}
	result.Feedback.Score = ClampScore(result.Feedback.Score)

	return &result, nil
}

func (c *Client) GenerateFollowUp(ctx context.Context, sessionID, questionID, answer string) (string, error) {
	body := map[string]string{
		"questionId": questionID,
		"answer":     answer,
	}

	var result struct {
		FollowUpQuestion string `mapstructure:"followUpQuestion"`
	}
	if err := c.call(ctx, http.MethodPost, c.sessionURL(sessionID, "follow-up"), body, &result, false); err != nil {
		return "", fmt.Errorf("generate follow-up: %w", err)
	}

	return strings.TrimSpace(result.FollowUpQuestion), nil
}

func (c *Client) SampleAnswer(ctx context.Context, sessionID, questionID string) (string, error) {
	u := c.sessionURL(sessionID, "sample-answer") + "?" + url.Values{"questionId": {questionID}}.Encode()

	var result struct {
		SampleAnswer string `mapstructure:"sampleAnswer"`
	}
	if err := c.call(ctx, http.MethodGet, u, nil, &result, true); err != nil {
		return "", fmt.Errorf("get sample answer: %w", err)
	}

	return strings.TrimSpace(result.SampleAnswer), nil
}

func (c *Client) CompleteSession(ctx context.Context, sessionID string) (*Summary, error) {
	var summary Summary
	if err := c.call(ctx, http.MethodPost, c.sessionURL(sessionID, "complete"), struct{}{}, &summary, true); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	summary.AverageScore = ClampScore(summary.AverageScore)
	return &summary, nil
}

func (c *Client) History(ctx context.Context) (*History, error) {
	var history History
	if err := c.call(ctx, http.MethodGet, c.APIURL+historyPath, nil, &history, true); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &history, nil
}
