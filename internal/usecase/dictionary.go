package usecase

import (
	"context"
	"errors"
	"strings"

	"lingchat/internal/domain"
)

// Lookup resolves a tapped word against the server dictionary. Starting a
// new lookup aborts any in-flight one; an aborted request's late response is
// discarded, never applied. In non-compact layouts the anchor is stored
// immediately so the popover frame can render a loading skeleton in place.
func (c *Coordinator) Lookup(word string, anchor *domain.Anchor) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil
	}

	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}

	if sess.lookupCancel != nil {
		sess.lookupCancel()
	}
	sess.lookupGen++
	generation := sess.lookupGen

	ctx, cancel := context.WithTimeout(sess.ctx, timeoutOrDefault(c.cfg.LookupTimeout))
	sess.lookupCancel = cancel

	query := &domain.DictionaryQuery{Word: word, State: domain.LookupLoading}
	if !c.cfg.CompactUI {
		query.Anchor = anchor
	}
	sess.lookup = query
	c.events.DictionaryChanged(query)
	c.mu.Unlock()

	go func() {
		result, err := c.api.LookupWord(ctx, word)
		c.apply(sess, func() {
			if generation != sess.lookupGen {
				// Superseded by a newer lookup or by close; drop silently.
				return
			}

			// Still current, so the stored cancel is ours; release its timer.
			cancel()
			sess.lookupCancel = nil

			resolved := &domain.DictionaryQuery{Word: word, Anchor: query.Anchor}
			switch {
			case errors.Is(err, context.Canceled):
				return
			case err != nil:
				resolved.State = domain.LookupNotFound
				resolved.Message = lookupUnavailableText
			case result.Success:
				resolved.State = domain.LookupFound
				resolved.Entry = result.Entry
			default:
				resolved.State = domain.LookupNotFound
				resolved.Message = result.Message
				if resolved.Message == "" {
					resolved.Message = lookupNotFoundText
				}
			}

			sess.lookup = resolved
			c.events.DictionaryChanged(resolved)
		})
	}()
	return nil
}

// CloseLookup aborts any in-flight lookup and clears result and anchor.
func (c *Coordinator) CloseLookup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return
	}

	if sess.lookupCancel != nil {
		sess.lookupCancel()
		sess.lookupCancel = nil
	}
	sess.lookupGen++
	if sess.lookup != nil {
		sess.lookup = nil
		c.events.DictionaryChanged(nil)
	}
}
