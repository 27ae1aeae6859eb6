package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/scribeq/scribeq/internal/media"
)

var (
	ErrFileMissing       = errors.New("file does not exist")
	ErrEmptyOrTruncated  = errors.New("file is empty or too small to be real audio")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorrupted         = errors.New("audio file is corrupted or incomplete")
)

const (
	// MinPlausibleSize catches HTML error pages saved in place of media.
	MinPlausibleSize = 1024

	// minDuration rejects header-only files that technically decode.
	minDuration = 0.1
)

// Validator rejects files that would waste a transcription run. It runs
// right after every download and again on every cache hit, since cached
// files can be deleted or truncated out-of-band.
type Validator struct {
	prober media.Prober
}

func New(prober media.Prober) *Validator {
	return &Validator{prober: prober}
}

// Check verifies path points at a non-trivial, decodable audio asset.
func (v *Validator) Check(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}

	if fi.Size() < MinPlausibleSize {
		return fmt.Errorf("%w: %d bytes", ErrEmptyOrTruncated, fi.Size())
	}

	// Without a prober (no ffprobe on this machine) size checks are all
	// we can offer; a broken file then fails at transcription instead.
	if v.prober == nil {
		return nil
	}

	info, err := v.prober.Probe(ctx, path)
	if err != nil {
		return classifyProbeError(err)
	}

	if !info.HasAudio {
		return fmt.Errorf("%w: no audio stream found", ErrUnsupportedFormat)
	}

	if info.Duration <= minDuration {
		return fmt.Errorf("%w: decoded duration is %.2fs", ErrCorrupted, info.Duration)
	}

	return nil
}

// classifyProbeError splits decode failures into "wrong format" versus
// "broken file" so the user knows whether retrying can help.
func classifyProbeError(err error) error {
	msg := strings.ToLower(err.Error())

	for _, hint := range []string{"unknown format", "invalid argument", "codec", "unsupported", "no decoder"} {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrCorrupted, err)
}
