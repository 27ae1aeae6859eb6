package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Clipper cuts a time range out of a media file.
type Clipper interface {
	ExtractClip(ctx context.Context, src string, start, end float64) (string, error)
}

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	BinaryPath string
}

func NewFFmpeg() (*FFmpeg, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %w", err)
	}
	return &FFmpeg{BinaryPath: path}, nil
}

// ExtractClip writes [start,end) of src as a mono 16 kHz wav in the temp
// dir and returns its path. The caller removes the file when done.
func (f *FFmpeg) ExtractClip(ctx context.Context, src string, start, end float64) (string, error) {
	out, err := os.CreateTemp("", "scribeq-clip-*.wav")
	if err != nil {
		return "", err
	}
	out.Close()

	// -ss/-to after -i seeks by decoding, slower but frame-accurate
	cmd := exec.CommandContext(ctx, f.BinaryPath,
		"-y",
		"-i", src,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		out.Name(),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out.Name())

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("ffmpeg clip failed: %s", msg)
	}

	return out.Name(), nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
