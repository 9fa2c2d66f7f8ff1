// Package transport implements the bidirectional event-stream connection to
// the conversation server over a websocket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"lingchat/internal/domain"
	"lingchat/internal/ports"
)

// Config controls stream connection settings.
type Config struct {
	BaseURL    string
	StreamPath string
}

// Transport dials per-session stream connections.
type Transport struct {
	cfg Config
}

func NewTransport(cfg Config) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:5000"
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = "/stream"
	}
	return &Transport{cfg: cfg}
}

func (t *Transport) Dial(ctx context.Context, sessionID string) (ports.SpeechStream, error) {
	wsURL, err := buildStreamURL(t.cfg, sessionID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	s := &stream{
		conn:     conn,
		events:   make(chan domain.StreamEvent, 64),
		outbound: make(chan envelope, 32),
		done:     make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

// envelope is the wire frame: one JSON object per event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundData struct {
	SessionID  string `json:"session_id"`
	Chunk      []byte `json:"chunk,omitempty"`
	AutoSubmit *bool  `json:"auto_submit,omitempty"`
	Text       string `json:"text,omitempty"`
}

type inboundData struct {
	Text       string `json:"text"`
	AutoSubmit bool   `json:"auto_submit"`
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
}

type stream struct {
	conn *websocket.Conn

	events   chan domain.StreamEvent
	outbound chan envelope
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	sendMu     sync.RWMutex
	sendClosed bool
}

func (s *stream) StartSpeak(sessionID string) error {
	return s.send("start_speak", outboundData{SessionID: sessionID})
}

// SendChunk forwards one audio chunk. Zero-length chunks are dropped; chunk
// order is preserved by the single outbound queue.
func (s *stream) SendChunk(sessionID string, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	copied := append([]byte(nil), chunk...)
	return s.send("audio_chunk", outboundData{SessionID: sessionID, Chunk: copied})
}

func (s *stream) EndSpeak(sessionID string, autoSubmit bool) error {
	return s.send("end_speak", outboundData{SessionID: sessionID, AutoSubmit: &autoSubmit})
}

func (s *stream) ConfirmTranscript(sessionID string, text string) error {
	return s.send("confirm_transcript", outboundData{SessionID: sessionID, Text: text})
}

func (s *stream) Events() <-chan domain.StreamEvent {
	return s.events
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.outbound)
		s.sendMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *stream) send(event string, data outboundData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("stream is already closed")
	}

	select {
	case s.outbound <- envelope{Event: event, Data: payload}:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	}
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

	for env := range s.outbound {
		if err := s.conn.WriteJSON(env); err != nil {
			s.setErr(fmt.Errorf("failed to send %s: %w", env.Event, err))
			return
		}
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, closeMsg)
}

func (s *stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read stream event: %w", err))
			s.emit(domain.StreamEvent{Type: domain.StreamDisconnect})
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			slog.Debug("skipping malformed stream frame", "error", err)
			continue
		}

		event, ok := parseEvent(env)
		if !ok {
			slog.Debug("skipping unknown stream event", "event", env.Event)
			continue
		}
		s.emit(event)
	}
}

func (s *stream) emit(event domain.StreamEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
	}
}

func parseEvent(env envelope) (domain.StreamEvent, bool) {
	var data inboundData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return domain.StreamEvent{}, false
		}
	}

	event := domain.StreamEvent{
		Text:      data.Text,
		SessionID: data.SessionID,
		Message:   data.Message,
	}

	switch env.Event {
	case "partial_transcript":
		event.Type = domain.StreamPartialTranscript
	case "final_transcript":
		// Legacy event: finalized text that always auto-submits.
		event.Type = domain.StreamFinalTranscript
		event.AutoSubmit = true
	case "transcript_ready":
		event.Type = domain.StreamTranscriptReady
		event.AutoSubmit = data.AutoSubmit
	case "transcript_confirmed":
		event.Type = domain.StreamTranscriptConfirmed
	case "session_ready":
		event.Type = domain.StreamSessionReady
	case "connect_error":
		event.Type = domain.StreamConnectError
	default:
		return domain.StreamEvent{}, false
	}
	return event, true
}

func buildStreamURL(cfg Config, sessionID string) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	streamURL, err := url.Parse(base + cfg.StreamPath)
	if err != nil {
		return "", fmt.Errorf("invalid stream base URL: %w", err)
	}

	query := streamURL.Query()
	query.Set("session_id", sessionID)
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
