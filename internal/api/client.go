// Package api provides the REST client for the conversation server.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lingchat/internal/domain"
)

// StatusError reports a non-2xx response. The detail is the response body
// text when present, the HTTP status line otherwise.
type StatusError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Status
}

// Client talks to the conversation server's REST endpoints. Timeouts are the
// caller's responsibility via context.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type chatResponse struct {
	Status   string `json:"status"`
	Response string `json:"response"`
	Message  string `json:"message"`
	Audio    string `json:"audio"`
}

// Chat executes one conversation turn.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	body, err := c.postJSON(ctx, "/api/chat", req)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.ChatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}

	reply := parsed.Response
	if reply == "" {
		reply = parsed.Message
	}

	return domain.ChatResponse{
		Reply: reply,
		Audio: decodeAudioDataURL(parsed.Audio),
	}, nil
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

type endSessionResponse struct {
	Status   string           `json:"status"`
	Feedback *domain.Feedback `json:"feedback"`
}

// EndSession requests end-of-session feedback for the given session.
func (c *Client) EndSession(ctx context.Context, sessionID string) (*domain.Feedback, error) {
	body, err := c.postJSON(ctx, "/api/end-session", endSessionRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	var parsed endSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode feedback response: %w", err)
	}
	if parsed.Feedback == nil {
		return nil, fmt.Errorf("feedback missing from response")
	}
	return parsed.Feedback, nil
}

type lookupRequest struct {
	Word string `json:"word"`
}

type lookupResponse struct {
	Success bool                    `json:"success"`
	Word    string                  `json:"word"`
	Entry   *domain.DictionaryEntry `json:"entry"`
	Error   string                  `json:"error"`
}

// LookupWord resolves a word against the server dictionary. A not-found
// answer arrives as a non-2xx status with a parseable body; that is a lookup
// result, not a transport failure.
func (c *Client) LookupWord(ctx context.Context, word string) (domain.LookupResult, error) {
	body, err := c.postJSON(ctx, "/api/dictionary/lookup", lookupRequest{Word: word})
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Detail == "" {
			return domain.LookupResult{}, err
		}
		body = []byte(statusErr.Detail)
	}

	var parsed lookupResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
		if err != nil {
			return domain.LookupResult{}, err
		}
		return domain.LookupResult{}, fmt.Errorf("decode lookup response: %w", jsonErr)
	}

	return domain.LookupResult{
		Success: parsed.Success && parsed.Entry != nil && parsed.Entry.Found,
		Entry:   parsed.Entry,
		Message: parsed.Error,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}

// decodeAudioDataURL extracts WAV bytes from a data:audio/...;base64 URL.
// Malformed audio is dropped rather than failing the chat turn.
func decodeAudioDataURL(dataURL string) []byte {
	if dataURL == "" {
		return nil
	}
	_, encoded, found := strings.Cut(dataURL, "base64,")
	if !found {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	return decoded
}
