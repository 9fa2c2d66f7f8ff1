package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"lingchat/internal/domain"
)

// ErrNoExporter reports that no save destination is wired (headless use).
var ErrNoExporter = errors.New("no exporter configured")

// ExportConversation serializes the current conversation. Field names and
// nesting are preserved exactly for downstream tooling.
func (c *Coordinator) ExportConversation() ([]byte, error) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	doc := domain.ConversationExport{
		SessionID: sess.id,
		Messages:  slices.Clone(sess.messages),
	}
	c.mu.Unlock()

	if doc.Messages == nil {
		doc.Messages = []domain.Message{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ExportFeedback serializes the retrieved session feedback.
func (c *Coordinator) ExportFeedback() ([]byte, error) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if sess.feedback == nil {
		c.mu.Unlock()
		return nil, ErrNoFeedback
	}
	doc := domain.FeedbackExport{
		SessionID:  sess.id,
		ExportedAt: time.Now().UTC(),
		Feedback:   sess.feedback,
	}
	c.mu.Unlock()

	return json.MarshalIndent(doc, "", "  ")
}

// SaveConversation writes the conversation export to a user-chosen file.
func (c *Coordinator) SaveConversation(ctx context.Context) error {
	data, err := c.ExportConversation()
	if err != nil {
		return err
	}
	return c.saveDocument(ctx, "conversation", data)
}

// SaveFeedback writes the feedback export to a user-chosen file.
func (c *Coordinator) SaveFeedback(ctx context.Context) error {
	data, err := c.ExportFeedback()
	if err != nil {
		return err
	}
	return c.saveDocument(ctx, "feedback", data)
}

func (c *Coordinator) saveDocument(ctx context.Context, kind string, data []byte) error {
	if c.exporter == nil {
		return ErrNoExporter
	}

	c.mu.Lock()
	sessionID := ""
	if c.sess != nil {
		sessionID = c.sess.id
	}
	c.mu.Unlock()

	name := fmt.Sprintf("%s-%s.json", kind, shortID(sessionID))
	if err := c.exporter.SaveDocument(ctx, name, data); err != nil {
		c.mu.Lock()
		c.events.SessionError(domain.ErrorCodeExport, err.Error())
		c.mu.Unlock()
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "session"
	}
	return id
}
