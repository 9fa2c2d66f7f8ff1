package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// FFplayPlayer is the single playback slot for response audio. Starting a new
// clip always stops the one currently playing.
type FFplayPlayer struct {
	command string

	mu      sync.Mutex
	current *playback
}

func NewFFplayPlayer(command string) *FFplayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFplayPlayer{command: command}
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Play starts playing the given WAV clip and returns once playback has begun.
func (p *FFplayPlayer) Play(ctx context.Context, wav []byte) error {
	if len(wav) == 0 {
		return errors.New("no audio to play")
	}

	p.Stop()

	playCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(playCtx, p.command,
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create playback stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	current := &playback{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(current.done)
		if _, err := stdin.Write(wav); err != nil {
			slog.Debug("playback write interrupted", "error", err)
		}
		_ = stdin.Close()
		if err := cmd.Wait(); err != nil && playCtx.Err() == nil {
			slog.Debug("playback exited abnormally", "error", err)
		}
		cancel()
	}()

	p.mu.Lock()
	p.current = current
	p.mu.Unlock()
	return nil
}

// Stop interrupts any active playback and waits for the slot to free up.
func (p *FFplayPlayer) Stop() {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current == nil {
		return
	}
	current.cancel()
	<-current.done
}
