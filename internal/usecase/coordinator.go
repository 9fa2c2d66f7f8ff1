// Package usecase implements the client-side coordination core: it reconciles
// the real-time transcript stream, the chat request cycle, dictionary
// lookups, audio capture/playback, and session rotation into one
// mutex-guarded state machine.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingchat/internal/domain"
	"lingchat/internal/ports"
)

var (
	ErrNotStarted          = errors.New("coordinator is not started")
	ErrRecordingActive     = errors.New("recording already in progress")
	ErrStreamNotReady      = errors.New("event stream is not connected")
	ErrNoPendingTranscript = errors.New("no transcript awaiting confirmation")
	ErrEmptyTranscript     = errors.New("transcript is empty")
	ErrNoFeedback          = errors.New("no feedback available for this session")
)

const (
	placeholderText       = "…"
	sendFailedText        = "Sorry, I couldn't answer just now. Please try again."
	lookupNotFoundText    = "not found"
	lookupUnavailableText = "service unavailable"
	disconnectText        = "event stream disconnected"
)

// Config controls coordinator behavior.
type Config struct {
	Audio         ports.AudioConfig
	ChunkInterval time.Duration

	ChatTimeout       time.Duration
	EndSessionTimeout time.Duration
	LookupTimeout     time.Duration

	// CompactUI disables popover anchoring; compact layouts render the
	// dictionary inline instead.
	CompactUI bool

	// AutoSubmit is the initial preference; a restored snapshot overrides it.
	AutoSubmit bool
}

// Coordinator owns the current session and every in-flight operation scoped
// to it.
type Coordinator struct {
	api       ports.ChatAPI
	transport ports.SpeechTransport
	audio     ports.AudioCapture
	player    ports.Player
	store     ports.SnapshotStore
	exporter  ports.Exporter
	events    ports.EventSink
	cfg       Config

	baseCtx context.Context

	mu         sync.Mutex
	sess       *session
	autoSubmit bool

	// persistMu serializes cache writes; persistSeq lets a queued writer
	// skip a snapshot a later mutation has already superseded.
	persistMu  sync.Mutex
	persistSeq uint64
}

func NewCoordinator(
	api ports.ChatAPI,
	transport ports.SpeechTransport,
	audio ports.AudioCapture,
	player ports.Player,
	store ports.SnapshotStore,
	exporter ports.Exporter,
	events ports.EventSink,
	cfg Config,
) *Coordinator {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	return &Coordinator{
		api:        api,
		transport:  transport,
		audio:      audio,
		player:     player,
		store:      store,
		exporter:   exporter,
		events:     events,
		cfg:        cfg,
		autoSubmit: cfg.AutoSubmit,
	}
}

// Start boots the first session, restoring the locally cached conversation
// when one exists. ctx bounds the lifetime of every session.
func (c *Coordinator) Start(ctx context.Context) error {
	c.baseCtx = ctx

	id := uuid.NewString()
	reason := domain.SessionReasonBooted
	var messages []domain.Message

	if c.store != nil {
		snapshot, found, err := c.store.Load()
		switch {
		case err != nil:
			slog.Warn("session cache restore failed", "error", err)
		case found && snapshot.SessionID != "":
			id = snapshot.SessionID
			messages = snapshot.Messages
			c.autoSubmit = snapshot.AutoSubmit
			reason = domain.SessionReasonRestored
		}
	}

	sess := newSession(ctx, id)
	sess.messages = messages

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	c.connect(sess)
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
	c.events.ConversationChanged(slices.Clone(messages))
	return nil
}

// NewSession rotates to a fresh session identifier, discarding every piece of
// prior-session state and re-scoping the transport so late events from the
// old session cannot be misattributed.
func (c *Coordinator) NewSession() (string, error) {
	c.mu.Lock()
	old := c.sess
	if old == nil {
		c.mu.Unlock()
		return "", ErrNotStarted
	}
	next := newSession(c.baseCtx, uuid.NewString())
	c.sess = next
	c.mu.Unlock()

	c.teardown(old)

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			slog.Warn("session cache clear failed", "error", err)
		}
	}

	c.events.PartialTranscript("")
	c.events.PendingTranscript(nil)
	c.events.DictionaryChanged(nil)
	c.events.FeedbackReady(nil)
	c.events.ConversationChanged(nil)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonSessionRotated)

	c.connect(next)
	return next.id, nil
}

// EndSession requests end-of-session feedback. The session stays usable on
// failure; the user may retry.
func (c *Coordinator) EndSession() error {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if sess.ending {
		c.mu.Unlock()
		return nil
	}
	sess.ending = true
	c.events.SessionStateChanged(domain.SessionStateEnding, domain.SessionReasonFeedbackRequested)
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(sess.ctx, timeoutOrDefault(c.cfg.EndSessionTimeout))
		defer cancel()

		feedback, err := c.api.EndSession(ctx, sess.id)
		c.apply(sess, func() {
			sess.ending = false
			if err != nil {
				c.events.SessionError(domain.ErrorCodeFeedback, err.Error())
				c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonFeedbackFailed)
				return
			}
			sess.feedback = feedback
			sess.ended = true
			c.events.FeedbackReady(feedback)
			c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonFeedbackReady)
		})
	}()
	return nil
}

// SetAutoSubmit updates the persisted auto-submit preference.
func (c *Coordinator) SetAutoSubmit(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSubmit = enabled
	if c.sess != nil {
		c.persistLocked(c.sess)
	}
}

// AutoSubmit reports the current auto-submit preference.
func (c *Coordinator) AutoSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSubmit
}

// Status summarizes the current session for the UI.
func (c *Coordinator) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}

	state := domain.SessionStateIdle
	switch {
	case c.sess.recording != nil:
		state = domain.SessionStateRecording
	case c.sess.ending:
		state = domain.SessionStateEnding
	case c.sess.pending != nil:
		state = domain.SessionStateAwaitingEdit
	}

	return domain.Status{
		SessionID:  c.sess.id,
		State:      state,
		Recording:  c.sess.recording != nil,
		Ended:      c.sess.ended,
		AutoSubmit: c.autoSubmit,
	}
}

// Conversation returns a copy of the current message list.
func (c *Coordinator) Conversation() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return slices.Clone(c.sess.messages)
}

// Feedback returns the retrieved feedback, or nil before endSession succeeds.
func (c *Coordinator) Feedback() *domain.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.feedback
}

// Shutdown releases the current session's resources.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess != nil {
		c.teardown(sess)
	}
}

// apply runs fn under the coordinator lock only while sess is still current.
// Every async completion funnels through here; work belonging to a
// superseded session is dropped.
func (c *Coordinator) apply(sess *session, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess {
		return false
	}
	fn()
	return true
}

// connect dials the event stream for sess and starts its reader. A dial that
// loses the race against session rotation closes its own connection.
func (c *Coordinator) connect(sess *session) {
	go func() {
		stream, err := c.transport.Dial(sess.ctx, sess.id)
		if err != nil {
			c.apply(sess, func() {
				c.events.SessionError(domain.ErrorCodeStream, err.Error())
			})
			return
		}

		attached := c.apply(sess, func() {
			sess.stream = stream
		})
		if !attached {
			_ = stream.Close()
			return
		}
		go c.consumeStream(sess, stream)
	}()
}

// consumeStream applies inbound events in arrival order. There is no
// reordering buffer; a single reader per session is the ordering guarantee.
func (c *Coordinator) consumeStream(sess *session, stream ports.SpeechStream) {
	for event := range stream.Events() {
		ev := event
		c.apply(sess, func() {
			c.handleStreamEvent(sess, ev)
		})
	}
}

func (c *Coordinator) teardown(old *session) {
	old.cancel()

	c.mu.Lock()
	rec := old.recording
	old.recording = nil
	if old.lookupCancel != nil {
		old.lookupCancel()
		old.lookupCancel = nil
	}
	stream := old.stream
	c.mu.Unlock()

	if rec != nil {
		if rec.audio != nil {
			_ = rec.audio.Stop()
		}
		<-rec.pumpDone
	}
	if stream != nil {
		_ = stream.Close()
	}
	c.player.Stop()
}

func (c *Coordinator) notifyConversationLocked(sess *session) {
	c.events.ConversationChanged(slices.Clone(sess.messages))
}

// persistLocked snapshots the session to the local cache off the lock.
// Writes are serialized so the restored state is always the newest snapshot.
func (c *Coordinator) persistLocked(sess *session) {
	if c.store == nil {
		return
	}
	c.persistSeq++
	seq := c.persistSeq
	snapshot := domain.Snapshot{
		SessionID:  sess.id,
		Messages:   slices.Clone(sess.messages),
		AutoSubmit: c.autoSubmit,
	}
	go func() {
		c.persistMu.Lock()
		defer c.persistMu.Unlock()

		c.mu.Lock()
		stale := seq != c.persistSeq
		c.mu.Unlock()
		if stale {
			return
		}

		if err := c.store.Save(snapshot); err != nil {
			slog.Warn("session cache write failed", "error", err)
		}
	}()
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
