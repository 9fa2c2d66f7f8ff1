package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"lingchat/internal/domain"
	"lingchat/internal/ports"
)

// waitFor polls cond until it holds or the deadline passes. The coordinator
// settles async work through goroutines, so tests observe effects rather
// than synchronizing with internals.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

type fakeChatAPI struct {
	mu       sync.Mutex
	requests []domain.ChatRequest

	chatFn   func(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
	endFn    func(ctx context.Context, sessionID string) (*domain.Feedback, error)
	lookupFn func(ctx context.Context, word string) (domain.LookupResult, error)
}

func (f *fakeChatAPI) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.chatFn
	f.mu.Unlock()
	if fn == nil {
		return domain.ChatResponse{Reply: "re: " + req.Text}, nil
	}
	return fn(ctx, req)
}

func (f *fakeChatAPI) EndSession(ctx context.Context, sessionID string) (*domain.Feedback, error) {
	if f.endFn == nil {
		return &domain.Feedback{}, nil
	}
	return f.endFn(ctx, sessionID)
}

func (f *fakeChatAPI) LookupWord(ctx context.Context, word string) (domain.LookupResult, error) {
	if f.lookupFn == nil {
		return domain.LookupResult{Success: false, Message: "not found"}, nil
	}
	return f.lookupFn(ctx, word)
}

func (f *fakeChatAPI) snapshotRequests() []domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeTransport struct {
	mu       sync.Mutex
	streams  []*fakeStream
	dialErr  error
	dials    int
	dialedTo []string
}

func (f *fakeTransport) Dial(_ context.Context, sessionID string) (ports.SpeechStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	if f.dials >= len(f.streams) {
		return nil, errors.New("no stream configured")
	}
	stream := f.streams[f.dials]
	f.dials++
	f.dialedTo = append(f.dialedTo, sessionID)
	return stream, nil
}

func (f *fakeTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeTransport) dialedSession(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.dialedTo) {
		return ""
	}
	return f.dialedTo[i]
}

// fakeStream records every outbound call into a single ordered op log so
// tests can assert relative ordering. Close marks the stream closed but
// leaves the event channel open; tests that rotate sessions keep feeding
// stale events through it.
type fakeStream struct {
	mu  sync.Mutex
	ops []string

	events chan domain.StreamEvent

	startErr error
	chunkErr error
	endErr   error

	closeCalls int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.StreamEvent, 16)}
}

func (f *fakeStream) StartSpeak(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "start_speak")
	return f.startErr
}

func (f *fakeStream) SendChunk(sessionID string, chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunkErr != nil {
		return f.chunkErr
	}
	f.ops = append(f.ops, "chunk:"+string(chunk))
	return nil
}

func (f *fakeStream) EndSpeak(sessionID string, autoSubmit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("end_speak:%t", autoSubmit))
	return f.endErr
}

func (f *fakeStream) ConfirmTranscript(sessionID string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "confirm:"+text)
	return nil
}

func (f *fakeStream) Events() <-chan domain.StreamEvent { return f.events }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeStream) snapshotOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakeStream) closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls > 0
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession yields its configured chunks, then either reports EOF or
// blocks until Stop when hold is set.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	hold      bool
	released  chan struct{}
	once      sync.Once
	stopCalls int
}

func newHeldAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, hold: true, released: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	hold := f.hold
	f.mu.Unlock()

	if hold {
		<-f.released
	}
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.released != nil {
		f.once.Do(func() { close(f.released) })
	}
	return nil
}

func (f *fakeAudioSession) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls > 0
}

type fakePlayer struct {
	mu    sync.Mutex
	plays [][]byte
	stops int
}

func (f *fakePlayer) Play(_ context.Context, wav []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, wav)
	return nil
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakePlayer) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

type fakeSnapshotStore struct {
	mu       sync.Mutex
	snapshot domain.Snapshot
	found    bool
	loadErr  error
	saves    []domain.Snapshot
	clears   int

	// saveGate, when set, blocks Save until the channel is closed.
	saveGate chan struct{}
}

func (f *fakeSnapshotStore) Save(snapshot domain.Snapshot) error {
	f.mu.Lock()
	gate := f.saveGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, snapshot)
	return nil
}

func (f *fakeSnapshotStore) Load() (domain.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, f.found, f.loadErr
}

func (f *fakeSnapshotStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeSnapshotStore) Close() error { return nil }

func (f *fakeSnapshotStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeSnapshotStore) lastSave() (domain.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return domain.Snapshot{}, false
	}
	return f.saves[len(f.saves)-1], true
}

type fakeExporter struct {
	mu    sync.Mutex
	names []string
	docs  [][]byte
	err   error
}

func (f *fakeExporter) SaveDocument(_ context.Context, suggestedName string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, suggestedName)
	f.docs = append(f.docs, append([]byte(nil), data...))
	return nil
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	states        []stateEvent
	conversations [][]domain.Message
	partials      []string
	pendings      []*domain.PendingTranscript
	lookups       []*domain.DictionaryQuery
	feedbacks     []*domain.Feedback
	errors        []errEvent
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) ConversationChanged(messages []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, messages)
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) PendingTranscript(pending *domain.PendingTranscript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendings = append(f.pendings, pending)
}

func (f *fakeEventSink) DictionaryChanged(query *domain.DictionaryQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, query)
}

func (f *fakeEventSink) FeedbackReady(feedback *domain.Feedback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, feedback)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotPartials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.partials))
	copy(out, f.partials)
	return out
}

func (f *fakeEventSink) snapshotLookups() []*domain.DictionaryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.DictionaryQuery, len(f.lookups))
	copy(out, f.lookups)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) lastState() stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return stateEvent{}
	}
	return f.states[len(f.states)-1]
}

func (f *fakeEventSink) hasPartial(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.partials {
		if p == text {
			return true
		}
	}
	return false
}

// testEnv bundles a coordinator with its fakes. One stream is configured by
// default; tests that rotate sessions add more up front.
type testEnv struct {
	api       *fakeChatAPI
	transport *fakeTransport
	capture   *fakeAudioCapture
	player    *fakePlayer
	store     *fakeSnapshotStore
	exporter  *fakeExporter
	events    *fakeEventSink
	streams   []*fakeStream

	c *Coordinator
}

func newTestEnv(cfg Config, streamCount int) *testEnv {
	env := &testEnv{
		api:      &fakeChatAPI{},
		capture:  &fakeAudioCapture{},
		player:   &fakePlayer{},
		store:    &fakeSnapshotStore{},
		exporter: &fakeExporter{},
		events:   &fakeEventSink{},
	}
	for i := 0; i < streamCount; i++ {
		env.streams = append(env.streams, newFakeStream())
	}
	env.transport = &fakeTransport{streams: env.streams}

	env.c = NewCoordinator(env.api, env.transport, env.capture, env.player, env.store, env.exporter, env.events, cfg)
	return env
}

// start boots the coordinator and waits until the stream for the current
// session is attached.
func (env *testEnv) start(t *testing.T) {
	t.Helper()
	if err := env.c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	env.waitAttached(t)
}

func (env *testEnv) waitAttached(t *testing.T) {
	t.Helper()
	waitFor(t, func() bool {
		env.c.mu.Lock()
		defer env.c.mu.Unlock()
		return env.c.sess != nil && env.c.sess.stream != nil
	}, "stream attach")
}

// push delivers an inbound stream event to the given stream.
func (env *testEnv) push(i int, event domain.StreamEvent) {
	env.streams[i].events <- event
}
