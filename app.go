package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"lingchat/internal/bootstrap"
	"lingchat/internal/config"
	"lingchat/internal/domain"
	"lingchat/internal/ports"
	"lingchat/internal/usecase"
)

const (
	eventSession      = "lingchat:session"
	eventConversation = "lingchat:conversation"
	eventPartial      = "lingchat:partial"
	eventPending      = "lingchat:pending"
	eventDictionary   = "lingchat:dictionary"
	eventFeedback     = "lingchat:feedback"
	eventError        = "lingchat:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	coordinator *usecase.Coordinator
	store       ports.SnapshotStore
	cfg         config.Config
	bootErr     error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &dialogExporter{ctx: ctx})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.coordinator = services.Coordinator
	a.store = services.Store

	if err := a.coordinator.Start(ctx); err != nil {
		a.bootErr = err
		a.coordinator = nil
		a.SessionError(domain.ErrorCodeStartup, err.Error())
	}
}

func (a *App) shutdown(ctx context.Context) {
	if a.coordinator != nil {
		a.coordinator.Shutdown()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// StartRecording begins microphone capture for the current session.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.coordinator.StartRecording(); err != nil {
		if errors.Is(err, usecase.ErrRecordingActive) {
			return a.coordinator.Status(), nil
		}
		return domain.Status{}, err
	}
	return a.coordinator.Status(), nil
}

// StopRecording finishes capture and signals the server to finalize the
// transcript.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.coordinator.StopRecording(); err != nil {
		return domain.Status{}, err
	}
	return a.coordinator.Status(), nil
}

// ConfirmTranscript submits a reviewed transcript, possibly edited.
func (a *App) ConfirmTranscript(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.ConfirmTranscript(text)
}

// CancelTranscript discards the transcript awaiting review.
func (a *App) CancelTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.CancelTranscript()
}

// SendMessage submits typed text to the conversation.
func (a *App) SendMessage(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.Send(text)
}

// LookupWord starts a dictionary lookup for a tapped word.
func (a *App) LookupWord(word string, anchor *domain.Anchor) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.Lookup(word, anchor)
}

// CloseDictionary dismisses the lookup popover and cancels any in-flight
// request behind it.
func (a *App) CloseDictionary() {
	if a.coordinator == nil {
		return
	}
	a.coordinator.CloseLookup()
}

// EndSession asks the server for end-of-session feedback.
func (a *App) EndSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.EndSession()
}

// NewSession rotates to a fresh session and returns its identifier.
func (a *App) NewSession() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.coordinator.NewSession()
}

// SetAutoSubmit toggles automatic submission of finalized transcripts.
func (a *App) SetAutoSubmit(enabled bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.coordinator.SetAutoSubmit(enabled)
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.coordinator == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.coordinator.Status()
}

// GetConversation returns the current message list.
func (a *App) GetConversation() []domain.Message {
	if a.coordinator == nil {
		return nil
	}
	return a.coordinator.Conversation()
}

// GetFeedback returns session feedback once endSession has succeeded.
func (a *App) GetFeedback() *domain.Feedback {
	if a.coordinator == nil {
		return nil
	}
	return a.coordinator.Feedback()
}

// SplitSentence breaks feedback text into plain and highlighted spans for
// rendering.
func (a *App) SplitSentence(text string) []domain.Segment {
	return domain.SplitAnchors(text)
}

// ExportConversation returns the conversation as a JSON document.
func (a *App) ExportConversation() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	data, err := a.coordinator.ExportConversation()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ExportFeedback returns the session feedback as a JSON document.
func (a *App) ExportFeedback() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	data, err := a.coordinator.ExportFeedback()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveConversation exports the conversation through a save dialog.
func (a *App) SaveConversation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.SaveConversation(a.ctx)
}

// SaveFeedback exports the session feedback through a save dialog.
func (a *App) SaveFeedback() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.SaveFeedback(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"server":           a.cfg.Server.BaseURL,
		"streamPath":       a.cfg.Server.StreamPath,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"cachePath":        a.cfg.Session.CachePath,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.coordinator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// ConversationChanged emits the full message list after every mutation.
func (a *App) ConversationChanged(messages []domain.Message) {
	if a.ctx == nil {
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	runtime.EventsEmit(a.ctx, eventConversation, messages)
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// PendingTranscript emits the transcript staged for manual review, or nil
// when it is cleared.
func (a *App) PendingTranscript(pending *domain.PendingTranscript) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPending, pending)
}

// DictionaryChanged emits the active lookup state, or nil when dismissed.
func (a *App) DictionaryChanged(query *domain.DictionaryQuery) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDictionary, query)
}

// FeedbackReady emits retrieved session feedback, or nil when cleared.
func (a *App) FeedbackReady(feedback *domain.Feedback) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFeedback, feedback)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonBooted:
		return "Ready"
	case domain.SessionReasonRestored:
		return "Previous conversation restored"
	case domain.SessionReasonRecordingStarted:
		return "Listening..."
	case domain.SessionReasonRecordingStopped:
		return "Recording stopped"
	case domain.SessionReasonTranscriptPending:
		return "Review your transcript before sending"
	case domain.SessionReasonTranscriptResolved:
		return "Transcript sent"
	case domain.SessionReasonFeedbackRequested:
		return "Preparing session feedback..."
	case domain.SessionReasonFeedbackReady:
		return "Session feedback ready"
	case domain.SessionReasonFeedbackFailed:
		return "Feedback unavailable"
	case domain.SessionReasonSessionRotated:
		return "New session started"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeMicrophone:
		return "Microphone unavailable"
	case domain.ErrorCodeStream:
		return "Connection to the speech service lost"
	case domain.ErrorCodeChat:
		return "Message could not be sent"
	case domain.ErrorCodeDictionary:
		return "Dictionary lookup failed"
	case domain.ErrorCodeFeedback:
		return "Feedback request failed"
	case domain.ErrorCodeExport:
		return "Export failed"
	case domain.ErrorCodeStore:
		return "Local cache error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type dialogExporter struct {
	ctx context.Context
}

func (e *dialogExporter) SaveDocument(ctx context.Context, suggestedName string, data []byte) error {
	path, err := runtime.SaveFileDialog(e.ctx, runtime.SaveDialogOptions{
		DefaultFilename: suggestedName,
		Title:           "Save export",
		Filters: []runtime.FileFilter{
			{DisplayName: "JSON documents", Pattern: "*.json"},
		},
	})
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
