// Package recognizer streams speech recognition results from a websocket
// speech-to-text service. The service owns the microphone; the client only
// chooses the language and reads transcripts.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/capture"
	"github.com/spigell/hh-interviewer/internal/language"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 2 * time.Second
	resultBuffer            = 16
)

// Frame types exchanged with the service.
const (
	frameStart   = "start"
	frameStop    = "stop"
	framePartial = "partial"
	frameFinal   = "final"
	frameError   = "error"
)

type startFrame struct {
	Type           string   `json:"type"`
	Language       string   `json:"language"`
	Alternates     []string `json:"alternates,omitempty"`
	InterimResults bool     `json:"interimResults"`
}

type controlFrame struct {
	Type string `json:"type"`
}

type resultFrame struct {
	Type       string  `json:"type"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

type Config struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
}

// Websocket implements capture.Recognizer. Each Start opens a new connection.
type Websocket struct {
	url    string
	token  string
	dialer websocket.Dialer
	logger *zap.Logger
}

var _ capture.Recognizer = (*Websocket)(nil)

func New(cfg Config, logger *zap.Logger) (*Websocket, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, errors.New("recognizer url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("recognizer url must use ws or wss, got %q", u.Scheme)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	return &Websocket{
		url:    u.String(),
		token:  strings.TrimSpace(cfg.Token),
		dialer: websocket.Dialer{HandshakeTimeout: timeout},
		logger: logger,
	}, nil
}

// Start dials the service and sends the start frame. The returned channel is
// closed when the service ends the stream or ctx is cancelled.
func (w *Websocket) Start(ctx context.Context, lang language.Tag, alternates []language.Tag) (<-chan capture.Result, error) {
	headers := http.Header{}
	if w.token != "" {
		headers.Set("Authorization", "Bearer "+w.token)
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, headers)
	if err != nil {
		if resp != nil {
			w.logger.Debug("recognizer handshake failed", zap.Int("status", resp.StatusCode))
		}
		return nil, fmt.Errorf("connect recognizer: %w", err)
	}

	start := startFrame{Type: frameStart, Language: string(lang), InterimResults: true}
	for _, alt := range alternates {
		start.Alternates = append(start.Alternates, string(alt))
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(start); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send start frame: %w", err)
	}

	w.logger.Debug("recognizer started", zap.String("lang", string(lang)), zap.Strings("alternates", start.Alternates))

	out := make(chan capture.Result, resultBuffer)
	done := make(chan struct{})

	go w.read(ctx, conn, out, done)
	go w.stopOnCancel(ctx, conn, done)

	return out, nil
}

func (w *Websocket) read(ctx context.Context, conn *websocket.Conn, out chan<- capture.Result, done chan<- struct{}) {
	defer close(out)
	defer close(done)

	for {
		var frame resultFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			w.send(ctx, out, capture.Result{Err: fmt.Errorf("read recognizer frame: %w", err)})
			return
		}

		var result capture.Result
		switch frame.Type {
		case framePartial, frameFinal:
			result = capture.Result{
				Transcript: frame.Transcript,
				Final:      frame.Type == frameFinal,
				Confidence: frame.Confidence,
			}
		case frameError:
			msg := strings.TrimSpace(frame.Error)
			if msg == "" {
				msg = "unknown error"
			}
			w.send(ctx, out, capture.Result{Err: fmt.Errorf("recognizer: %s", msg)})
			return
		default:
			w.logger.Debug("ignoring recognizer frame", zap.String("type", frame.Type))
			continue
		}

		if !w.send(ctx, out, result) {
			return
		}
	}
}

func (w *Websocket) send(ctx context.Context, out chan<- capture.Result, r capture.Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// stopOnCancel is the only writer after the start frame.
func (w *Websocket) stopOnCancel(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteJSON(controlFrame{Type: frameStop})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.logger.Debug("recognizer stopped")
	case <-done:
	}
	_ = conn.Close()
}
