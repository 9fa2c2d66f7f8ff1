package usecase

import (
	"context"

	"lingchat/internal/domain"
	"lingchat/internal/ports"
)

// session is the state owned by one session identifier. All fields are
// guarded by the coordinator mutex; async completions re-enter through
// Coordinator.apply, which drops work for a superseded session.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	// stream stays nil until the dial for this session completes.
	stream ports.SpeechStream

	messages []domain.Message
	feedback *domain.Feedback
	ended    bool
	ending   bool

	live    string
	pending *domain.PendingTranscript

	lookup       *domain.DictionaryQuery
	lookupGen    int
	lookupCancel context.CancelFunc

	recording *activeRecording
}

func newSession(parent context.Context, id string) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{id: id, ctx: ctx, cancel: cancel}
}

// resolveMessage replaces a placeholder's text in place, located by identity
// so that concurrent sends resolve independently.
func (s *session) resolveMessage(id string, text string) bool {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Text = text
			s.messages[i].IsPlaceholder = false
			return true
		}
	}
	return false
}

// activeRecording tracks one microphone capture. pumpDone is closed on every
// exit path, including aborted starts, so teardown can always wait on it.
type activeRecording struct {
	audio    ports.AudioSession
	pumpDone chan struct{}
}
