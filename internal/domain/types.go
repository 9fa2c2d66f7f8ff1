package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Assistant messages start as placeholders
// and are resolved in place exactly once when the chat request settles.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Text          string    `json:"text"`
	IsPlaceholder bool      `json:"isPlaceholder"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMessage creates a resolved message with a fresh identifier.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlaceholder creates an assistant message awaiting its response.
func NewPlaceholder(text string) Message {
	m := NewMessage(RoleAssistant, text)
	m.IsPlaceholder = true
	return m
}

// Correction is one sentence-level feedback item. The corrected sentence may
// embed [[…]] spans marking vocabulary the UI renders as lookup triggers.
type Correction struct {
	OriginalSentence  string  `json:"original_sentence"`
	CorrectedSentence string  `json:"corrected_sentence"`
	Explanation       string  `json:"explanation"`
	Note              string  `json:"note,omitempty"`
	HighlightRanges   [][]int `json:"highlight_ranges,omitempty"`
}

// VocabCard is one vocabulary item the feedback generator picked out of the
// session, enriched from the dictionary where possible.
type VocabCard struct {
	OriginalText    string `json:"original_text"`
	MandarinText    string `json:"mandarin_text"`
	Pinyin          string `json:"pinyin"`
	ExampleSentence string `json:"example_sentence"`
	DifficultyLevel string `json:"difficulty_level"`
	Type            string `json:"type"`
	Source          string `json:"source"`
	ContextNote     string `json:"context_note,omitempty"`
}

// Feedback is the end-of-session review returned by the server.
type Feedback struct {
	Vocabulary  []VocabCard  `json:"vocabulary"`
	Corrections []Correction `json:"corrections"`
	Summary     string       `json:"summary"`
}

// PendingTranscript is a finalized transcript staged for manual review.
type PendingTranscript struct {
	Text         string `json:"text"`
	OriginalText string `json:"originalText"`
}

// DictionaryEntry is one resolved dictionary record.
type DictionaryEntry struct {
	Found       bool     `json:"found"`
	Simplified  string   `json:"simplified"`
	Traditional string   `json:"traditional"`
	Pinyin      string   `json:"pinyin"`
	Definitions []string `json:"definitions"`
}

// LookupState tracks the progress of the single active dictionary query.
type LookupState string

const (
	LookupLoading  LookupState = "loading"
	LookupFound    LookupState = "found"
	LookupNotFound LookupState = "not_found"
)

// Anchor is the on-screen bounding box of the tapped word, used to place the
// lookup popover before the network result arrives.
type Anchor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DictionaryQuery is the at-most-one active lookup.
type DictionaryQuery struct {
	Word    string           `json:"word"`
	State   LookupState      `json:"state"`
	Entry   *DictionaryEntry `json:"entry,omitempty"`
	Message string           `json:"message,omitempty"`
	Anchor  *Anchor          `json:"anchor,omitempty"`
}

// SessionState models the recorder lifecycle within a session.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateRecording    SessionState = "recording"
	SessionStateAwaitingEdit SessionState = "awaiting_edit"
	SessionStateEnding       SessionState = "ending"
	SessionStateError        SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonBooted             SessionStateReason = "booted"
	SessionReasonRestored           SessionStateReason = "restored"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingStopped   SessionStateReason = "recording_stopped"
	SessionReasonTranscriptPending  SessionStateReason = "transcript_pending"
	SessionReasonTranscriptResolved SessionStateReason = "transcript_resolved"
	SessionReasonFeedbackRequested  SessionStateReason = "feedback_requested"
	SessionReasonFeedbackReady      SessionStateReason = "feedback_ready"
	SessionReasonFeedbackFailed     SessionStateReason = "feedback_failed"
	SessionReasonSessionRotated     SessionStateReason = "session_rotated"
)

// ErrorCode identifies the origin of a surfaced error.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeMicrophone ErrorCode = "microphone"
	ErrorCodeStream     ErrorCode = "stream"
	ErrorCodeChat       ErrorCode = "chat"
	ErrorCodeDictionary ErrorCode = "dictionary"
	ErrorCodeFeedback   ErrorCode = "feedback"
	ErrorCodeExport     ErrorCode = "export"
	ErrorCodeStore      ErrorCode = "store"
)

// Status summarizes the current session for the UI.
type Status struct {
	SessionID  string       `json:"sessionId"`
	State      SessionState `json:"state"`
	Recording  bool         `json:"recording"`
	Ended      bool         `json:"ended"`
	AutoSubmit bool         `json:"autoSubmit"`
	Message    string       `json:"message,omitempty"`
}

// StreamEventType names the inbound real-time channel events.
type StreamEventType string

const (
	StreamPartialTranscript   StreamEventType = "partial_transcript"
	StreamFinalTranscript     StreamEventType = "final_transcript"
	StreamTranscriptReady     StreamEventType = "transcript_ready"
	StreamTranscriptConfirmed StreamEventType = "transcript_confirmed"
	StreamSessionReady        StreamEventType = "session_ready"
	StreamConnectError        StreamEventType = "connect_error"
	StreamDisconnect          StreamEventType = "disconnect"
)

// StreamEvent is one inbound event from the real-time channel.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	Text       string          `json:"text,omitempty"`
	AutoSubmit bool            `json:"autoSubmit,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// ChatRequest is the payload of POST /api/chat.
type ChatRequest struct {
	Text         string `json:"text"`
	SessionID    string `json:"session_id"`
	IsEdited     bool   `json:"is_edited"`
	OriginalText string `json:"original_text,omitempty"`
}

// ChatResponse is the resolved result of a chat turn. Audio holds decoded
// WAV bytes when the server attached spoken output.
type ChatResponse struct {
	Reply string
	Audio []byte
}

// LookupResult is the outcome of a dictionary lookup request.
type LookupResult struct {
	Success bool
	Entry   *DictionaryEntry
	Message string
}

// ConversationExport is the downloadable conversation document. Field names
// are load-bearing for downstream tooling.
type ConversationExport struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// FeedbackExport is the downloadable feedback document.
type FeedbackExport struct {
	SessionID  string    `json:"session_id"`
	ExportedAt time.Time `json:"exported_at"`
	Feedback   *Feedback `json:"feedback"`
}

// Snapshot is the locally cached session state restored on startup. It is a
// convenience cache, not a durability guarantee.
type Snapshot struct {
	SessionID  string    `json:"sessionId"`
	Messages   []Message `json:"messages"`
	AutoSubmit bool      `json:"autoSubmit"`
	SavedAt    time.Time `json:"savedAt"`
}
