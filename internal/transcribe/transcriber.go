// Package transcribe wraps external speech-to-text backends behind one
// contract: whole-file text, timestamped segments, and clip-by-range
// transcription.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/media"
	"github.com/scribeq/scribeq/internal/resolve"
)

// Transcriber is the speech-to-text contract the queue depends on.
type Transcriber interface {
	// Transcribe returns the full text of an audio file.
	Transcribe(ctx context.Context, path string) (string, error)

	// TranscribeWithTimestamps returns the text split into timed segments.
	TranscribeWithTimestamps(ctx context.Context, path string) ([]domain.Segment, error)

	// TranscribeSegment transcribes only the [start, end) window, in seconds.
	TranscribeSegment(ctx context.Context, path string, start, end float64) (string, error)

	// Cancel aborts the in-flight transcription, if any.
	Cancel()
}

// canceller tracks the cancel function of the active call so Cancel can
// abort it from another goroutine.
type canceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// begin derives a cancellable context for one call. The returned done
// func must be deferred; it clears the stored cancel function.
func (c *canceller) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}
}

func (c *canceller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// transcribeClip validates the window against the probed duration, cuts
// the clip, and runs fn on it. The clip file is removed afterwards.
func transcribeClip(ctx context.Context, prober media.Prober, clipper media.Clipper, src string, start, end float64, fn func(context.Context, string) (string, error)) (string, error) {
	if clipper == nil {
		return "", errors.New("clip extraction needs ffmpeg in PATH")
	}
	if prober == nil {
		return "", errors.New("clip extraction needs ffprobe in PATH")
	}

	info, err := prober.Probe(ctx, src)
	if err != nil {
		return "", fmt.Errorf("failed to probe %s: %w", src, err)
	}
	if err := resolve.ValidateTimeRange(start, end, info.Duration); err != nil {
		return "", err
	}

	clip, err := clipper.ExtractClip(ctx, src, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to extract clip: %w", err)
	}
	defer os.Remove(clip)

	return fn(ctx, clip)
}
