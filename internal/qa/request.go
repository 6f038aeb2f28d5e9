package qa

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// APIError is returned when the service answers with a failed envelope or a bad status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.StatusCode == 0 || e.StatusCode == http.StatusOK {
		return e.Message
	}
	return fmt.Sprintf("bad status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether a retry could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// call performs one remote call under the client timeout, retrying only when retryable is set.
func (c *Client) call(ctx context.Context, method, url string, payload, target any, retryable bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempts := 1
	if retryable {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := utils.LinearBackoff(attempt-1, c.backoff)
			c.logger.Debug("retrying remote call",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, wait); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}

		lastErr = c.do(ctx, method, url, body, target)
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(ctx, lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, url string, body []byte, target any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &decodeError{err: err}
	}

	req = c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var respBody io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return &decodeError{err: err}
		}
		defer gz.Close()
		respBody = gz
	}

	data, err := io.ReadAll(respBody)
	if err != nil {
		return err
	}

	var envelope Envelope[any]
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return &APIError{StatusCode: resp.StatusCode, Message: string(data)}
			}
			return &decodeError{err: err}
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "remote call was not successful"
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if target == nil || envelope.Data == nil {
		return nil
	}

	if err := decodeData(envelope.Data, target); err != nil {
		return &decodeError{err: err}
	}

	return nil
}

func decodeData(data, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:     target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(data)
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
