package usecase

import (
	"strings"

	"lingchat/internal/domain"
)

// handleStreamEvent reconciles one inbound real-time event. Callers hold the
// coordinator lock and have already verified sess is current.
func (c *Coordinator) handleStreamEvent(sess *session, event domain.StreamEvent) {
	switch event.Type {
	case domain.StreamPartialTranscript:
		sess.live = event.Text
		c.events.PartialTranscript(event.Text)

	case domain.StreamFinalTranscript, domain.StreamTranscriptReady:
		c.handleFinalTranscript(sess, event.Text, event.AutoSubmit)

	case domain.StreamTranscriptConfirmed, domain.StreamSessionReady:
		// Acknowledgements; nothing to reconcile.

	case domain.StreamConnectError:
		c.events.SessionError(domain.ErrorCodeStream, event.Message)

	case domain.StreamDisconnect:
		c.events.SessionError(domain.ErrorCodeStream, disconnectText)
	}
}

// handleFinalTranscript clears the live transcript, then either auto-submits
// the finalized text or stages it for manual review. Empty finals are
// discarded silently.
func (c *Coordinator) handleFinalTranscript(sess *session, text string, autoSubmit bool) {
	sess.live = ""
	c.events.PartialTranscript("")

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if autoSubmit || c.autoSubmit {
		c.sendLocked(sess, text, false, "")
		return
	}

	sess.pending = &domain.PendingTranscript{Text: text, OriginalText: text}
	c.events.PendingTranscript(sess.pending)
	c.events.SessionStateChanged(domain.SessionStateAwaitingEdit, domain.SessionReasonTranscriptPending)
}

// ConfirmTranscript submits the reviewed transcript. The edited flag is
// derived by trimmed comparison against the staged original, and the
// confirmation is reported back over the stream for server-side logging.
func (c *Coordinator) ConfirmTranscript(finalText string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return ErrNotStarted
	}
	pending := sess.pending
	if pending == nil {
		return ErrNoPendingTranscript
	}

	trimmed := strings.TrimSpace(finalText)
	if trimmed == "" {
		return ErrEmptyTranscript
	}

	isEdited := trimmed != strings.TrimSpace(pending.OriginalText)
	if sess.stream != nil {
		// Telemetry only; a failed confirmation must not block the send.
		_ = sess.stream.ConfirmTranscript(sess.id, trimmed)
	}

	sess.pending = nil
	c.events.PendingTranscript(nil)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonTranscriptResolved)

	c.sendLocked(sess, trimmed, isEdited, pending.OriginalText)
	return nil
}

// CancelTranscript discards the staged transcript without sending anything.
func (c *Coordinator) CancelTranscript() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return ErrNotStarted
	}
	if sess.pending == nil {
		return nil
	}

	sess.pending = nil
	c.events.PendingTranscript(nil)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonTranscriptResolved)
	return nil
}
