package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"lingchat/internal/domain"
)

func TestExportConversationRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(Config{}, 1)
	env.api.chatFn = func(_ context.Context, _ domain.ChatRequest) (domain.ChatResponse, error) {
		return domain.ChatResponse{Reply: "你好！"}, nil
	}
	env.start(t)

	if err := env.c.Send("你好"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitFor(t, func() bool {
		msgs := env.c.Conversation()
		return len(msgs) == 2 && !msgs[1].IsPlaceholder
	}, "resolution")

	data, err := env.c.ExportConversation()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var doc struct {
		SessionID string `json:"session_id"`
		Messages  []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.SessionID != env.c.Status().SessionID {
		t.Fatalf("unexpected session id: %q", doc.SessionID)
	}
	if len(doc.Messages) != 2 {
		t.Fatalf("unexpected message count: %d", len(doc.Messages))
	}
	if doc.Messages[0].Role != "user" || doc.Messages[0].Text != "你好" {
		t.Fatalf("unexpected first message: %+v", doc.Messages[0])
	}
	if doc.Messages[1].Role != "assistant" || doc.Messages[1].Text != "你好！" {
		t.Fatalf("unexpected second message: %+v", doc.Messages[1])
	}
}

func TestExportEmptyConversationYieldsEmptyArray(t *testing.T) {
	t.Parallel()

	env := newTestEnv(Config{}, 1)
	env.start(t)

	data, err := env.c.ExportConversation()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(string(data), `"messages": []`) {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestExportFeedbackRequiresFeedback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(Config{}, 1)
	env.start(t)

	if _, err := env.c.ExportFeedback(); !errors.Is(err, ErrNoFeedback) {
		t.Fatalf("expected ErrNoFeedback, got %v", err)
	}

	env.api.endFn = func(_ context.Context, _ string) (*domain.Feedback, error) {
		return &domain.Feedback{
			Corrections: []domain.Correction{{
				OriginalSentence:  "我去学校昨天",
				CorrectedSentence: "我[[昨天]]去学校",
				Explanation:       "Time words come before the verb.",
				Note:              "Word order only.",
			}},
			Vocabulary: []domain.VocabCard{{
				OriginalText:    "yesterday",
				MandarinText:    "昨天",
				Pinyin:          "zuó tiān",
				ExampleSentence: "我昨天去学校",
				DifficultyLevel: "HSK1",
				Type:            "word",
				Source:          "dictionary",
			}},
			Summary: "Watch time-word placement.",
		}, nil
	}
	if err := env.c.EndSession(); err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	waitFor(t, func() bool { return env.c.Feedback() != nil }, "feedback")

	data, err := env.c.ExportFeedback()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var doc struct {
		SessionID  string `json:"session_id"`
		ExportedAt string `json:"exported_at"`
		Feedback   struct {
			Corrections []struct {
				OriginalSentence  string `json:"original_sentence"`
				CorrectedSentence string `json:"corrected_sentence"`
				Explanation       string `json:"explanation"`
				Note              string `json:"note"`
			} `json:"corrections"`
			Vocabulary []struct {
				MandarinText string `json:"mandarin_text"`
				Pinyin       string `json:"pinyin"`
			} `json:"vocabulary"`
			Summary string `json:"summary"`
		} `json:"feedback"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.ExportedAt == "" {
		t.Fatalf("expected exported_at timestamp")
	}
	if len(doc.Feedback.Corrections) != 1 {
		t.Fatalf("unexpected corrections: %+v", doc.Feedback)
	}
	if doc.Feedback.Corrections[0].CorrectedSentence != "我[[昨天]]去学校" {
		t.Fatalf("unexpected corrected sentence: %q", doc.Feedback.Corrections[0].CorrectedSentence)
	}
	if doc.Feedback.Corrections[0].Note != "Word order only." {
		t.Fatalf("unexpected note: %q", doc.Feedback.Corrections[0].Note)
	}
	if len(doc.Feedback.Vocabulary) != 1 || doc.Feedback.Vocabulary[0].MandarinText != "昨天" {
		t.Fatalf("unexpected vocabulary: %+v", doc.Feedback.Vocabulary)
	}
	if doc.Feedback.Summary != "Watch time-word placement." {
		t.Fatalf("unexpected summary: %q", doc.Feedback.Summary)
	}
}

func TestSaveConversationUsesExporter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(Config{}, 1)
	env.start(t)

	if err := env.c.Send("hi"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := env.c.SaveConversation(context.Background()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	env.exporter.mu.Lock()
	defer env.exporter.mu.Unlock()
	if len(env.exporter.names) != 1 {
		t.Fatalf("expected one saved document")
	}
	name := env.exporter.names[0]
	if !strings.HasPrefix(name, "conversation-") || !strings.HasSuffix(name, ".json") {
		t.Fatalf("unexpected document name: %q", name)
	}
}

func TestSaveFailureSurfacesExportError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(Config{}, 1)
	env.exporter.err = errors.New("disk full")
	env.start(t)

	if err := env.c.SaveConversation(context.Background()); err == nil {
		t.Fatalf("expected save failure")
	}

	errs := env.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeExport {
		t.Fatalf("expected export error event, got %+v", errs)
	}
}
