package usecase

import (
	"errors"
	"fmt"
	"io"

	"lingchat/internal/domain"
	"lingchat/internal/ports"
)

// StartRecording acquires the microphone and begins streaming chunked audio.
// Stale live/pending transcript state from a previous utterance is cleared
// eagerly so a late final event cannot resurrect it, and any playing response
// audio is stopped before capture begins.
func (c *Coordinator) StartRecording() error {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if sess.recording != nil {
		c.mu.Unlock()
		return ErrRecordingActive
	}
	stream := sess.stream
	if stream == nil {
		c.mu.Unlock()
		return ErrStreamNotReady
	}

	rec := &activeRecording{pumpDone: make(chan struct{})}
	sess.recording = rec

	sess.live = ""
	c.events.PartialTranscript("")
	if sess.pending != nil {
		sess.pending = nil
		c.events.PendingTranscript(nil)
	}
	c.mu.Unlock()

	c.player.Stop()

	audioSession, err := c.audio.Start(sess.ctx, c.cfg.Audio)
	if err != nil {
		close(rec.pumpDone)
		c.apply(sess, func() {
			sess.recording = nil
			c.events.SessionError(domain.ErrorCodeMicrophone, err.Error())
		})
		return err
	}

	// The recording-started signal must precede the first chunk.
	if err := stream.StartSpeak(sess.id); err != nil {
		_ = audioSession.Stop()
		close(rec.pumpDone)
		c.apply(sess, func() {
			sess.recording = nil
			c.events.SessionError(domain.ErrorCodeStream, err.Error())
		})
		return err
	}

	attached := c.apply(sess, func() {
		rec.audio = audioSession
		c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	})
	if !attached {
		_ = audioSession.Stop()
		close(rec.pumpDone)
		return nil
	}

	go c.pumpChunks(sess, rec, audioSession, stream)
	return nil
}

// StopRecording releases the device and signals end-of-speech with the
// current auto-submit preference. Idempotent: without an active recording it
// still emits the end-of-speech signal.
func (c *Coordinator) StopRecording() error {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	rec := sess.recording
	sess.recording = nil
	stream := sess.stream
	autoSubmit := c.autoSubmit
	c.mu.Unlock()

	if rec != nil {
		if rec.audio != nil {
			_ = rec.audio.Stop()
		}
		<-rec.pumpDone
	}

	if stream == nil {
		return ErrStreamNotReady
	}
	if err := stream.EndSpeak(sess.id, autoSubmit); err != nil {
		c.apply(sess, func() {
			c.events.SessionError(domain.ErrorCodeStream, err.Error())
		})
		return err
	}

	c.apply(sess, func() {
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingStopped)
	})
	return nil
}

// pumpChunks forwards fixed-cadence audio chunks in capture order. One chunk
// holds ChunkInterval worth of PCM, so realtime capture yields the cadence.
func (c *Coordinator) pumpChunks(sess *session, rec *activeRecording, audio ports.AudioSession, stream ports.SpeechStream) {
	defer close(rec.pumpDone)

	buf := make([]byte, c.chunkBytes())
	filled := 0
	for {
		n, err := audio.Read(buf[filled:])
		filled += n
		if filled == len(buf) {
			if sendErr := stream.SendChunk(sess.id, buf[:filled]); sendErr != nil {
				c.apply(sess, func() {
					c.events.SessionError(domain.ErrorCodeStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				})
				return
			}
			filled = 0
		}
		if err != nil {
			if filled > 0 {
				_ = stream.SendChunk(sess.id, buf[:filled])
			}
			if !errors.Is(err, io.EOF) {
				c.apply(sess, func() {
					c.events.SessionError(domain.ErrorCodeMicrophone, fmt.Sprintf("audio capture error: %v", err))
				})
			}
			return
		}
	}
}

func (c *Coordinator) chunkBytes() int {
	sampleRate := c.cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := c.cfg.Audio.Channels
	if channels <= 0 {
		channels = 1
	}

	// 16-bit PCM.
	perSecond := sampleRate * channels * 2
	chunk := int(float64(perSecond) * c.cfg.ChunkInterval.Seconds())
	if chunk < 256 {
		chunk = perSecond
	}
	return chunk
}
