package usecase

import (
	"context"
	"log/slog"
	"strings"

	"lingchat/internal/domain"
)

// Send submits one typed chat turn.
func (c *Coordinator) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return ErrNotStarted
	}
	c.sendLocked(sess, text, false, "")
	return nil
}

// sendLocked executes the request/response cycle for one chat turn. Empty
// input is a no-op: no message, no request. The user message and its
// placeholder are appended atomically, so the ordering guarantee (user turn
// strictly before its placeholder) holds for every send. Callers hold the
// coordinator lock.
func (c *Coordinator) sendLocked(sess *session, text string, isEdited bool, originalText string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	user := domain.NewMessage(domain.RoleUser, text)
	placeholder := domain.NewPlaceholder(placeholderText)
	sess.messages = append(sess.messages, user, placeholder)
	c.notifyConversationLocked(sess)
	c.persistLocked(sess)

	req := domain.ChatRequest{
		Text:         text,
		SessionID:    sess.id,
		IsEdited:     isEdited,
		OriginalText: originalText,
	}
	go c.resolveChat(sess, placeholder.ID, req)
}

// resolveChat settles one placeholder exactly once. Resolution is keyed by
// placeholder identity, never by position, so concurrent sends may complete
// out of order without corrupting each other.
func (c *Coordinator) resolveChat(sess *session, placeholderID string, req domain.ChatRequest) {
	ctx, cancel := context.WithTimeout(sess.ctx, timeoutOrDefault(c.cfg.ChatTimeout))
	defer cancel()

	resp, err := c.api.Chat(ctx, req)
	if err != nil {
		c.apply(sess, func() {
			sess.resolveMessage(placeholderID, sendFailedText)
			c.notifyConversationLocked(sess)
			c.persistLocked(sess)
			c.events.SessionError(domain.ErrorCodeChat, err.Error())
		})
		return
	}

	var audio []byte
	c.apply(sess, func() {
		sess.resolveMessage(placeholderID, resp.Reply)
		c.notifyConversationLocked(sess)
		c.persistLocked(sess)
		audio = resp.Audio
	})

	// Playback is bound to the session context: a rotation that slips in
	// here kills the clip rather than letting stale audio play.
	if len(audio) > 0 {
		if playErr := c.player.Play(sess.ctx, audio); playErr != nil {
			slog.Debug("response playback failed", "error", playErr)
		}
	}
}
