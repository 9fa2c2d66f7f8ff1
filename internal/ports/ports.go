package ports

import (
	"context"
	"io"

	"lingchat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Player is the single exclusive audio playback slot. Play stops whatever is
// currently playing before starting the new clip.
type Player interface {
	Play(ctx context.Context, wav []byte) error
	Stop()
}

// SpeechStream is an active bidirectional event-stream connection scoped to
// one session identifier. Outbound calls preserve invocation order.
type SpeechStream interface {
	StartSpeak(sessionID string) error
	SendChunk(sessionID string, chunk []byte) error
	EndSpeak(sessionID string, autoSubmit bool) error
	ConfirmTranscript(sessionID string, text string) error
	Events() <-chan domain.StreamEvent
	Close() error
}

// SpeechTransport dials event-stream connections. A connection is torn down
// and re-dialed on session rotation, never reused across sessions.
type SpeechTransport interface {
	Dial(ctx context.Context, sessionID string) (SpeechStream, error)
}

// ChatAPI is the REST surface of the conversation server.
type ChatAPI interface {
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
	EndSession(ctx context.Context, sessionID string) (*domain.Feedback, error)
	LookupWord(ctx context.Context, word string) (domain.LookupResult, error)
}

// SnapshotStore caches the current session locally so a restart can restore
// the conversation. All methods are best-effort.
type SnapshotStore interface {
	Save(snapshot domain.Snapshot) error
	Load() (domain.Snapshot, bool, error)
	Clear() error
	Close() error
}

// Exporter writes an exported document to a user-chosen destination.
type Exporter interface {
	SaveDocument(ctx context.Context, suggestedName string, data []byte) error
}

// EventSink pushes coordinator state changes to the UI. Implementations must
// not call back into the coordinator.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	ConversationChanged(messages []domain.Message)
	PartialTranscript(text string)
	PendingTranscript(pending *domain.PendingTranscript)
	DictionaryChanged(query *domain.DictionaryQuery)
	FeedbackReady(feedback *domain.Feedback)
	SessionError(code domain.ErrorCode, detail string)
}
