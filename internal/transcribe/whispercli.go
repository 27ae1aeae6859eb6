package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/media"
)

// WhisperCLI runs a local whisper.cpp binary and reads its JSON output
// file.
type WhisperCLI struct {
	canceller

	binary   string
	model    string
	language string
	prober   media.Prober
	clipper  media.Clipper
	log      *logger.Logger
}

func NewWhisperCLI(binary, model, language string, prober media.Prober, clipper media.Clipper, log *logger.Logger) (*WhisperCLI, error) {
	if binary == "" {
		binary = "whisper-cli"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("whisper binary %q not found in PATH: %w", binary, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WhisperCLI{
		binary:   path,
		model:    model,
		language: language,
		prober:   prober,
		clipper:  clipper,
		log:      log,
	}, nil
}

func (w *WhisperCLI) Transcribe(ctx context.Context, path string) (string, error) {
	segments, err := w.TranscribeWithTimestamps(ctx, path)
	if err != nil {
		return "", err
	}
	return domain.JoinSegments(segments), nil
}

func (w *WhisperCLI) TranscribeWithTimestamps(ctx context.Context, path string) ([]domain.Segment, error) {
	out, err := w.run(ctx, path)
	if err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(out.Transcription))
	for _, entry := range out.Transcription {
		segments = append(segments, domain.Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  strings.TrimSpace(entry.Text),
		})
	}
	return segments, nil
}

func (w *WhisperCLI) TranscribeSegment(ctx context.Context, path string, start, end float64) (string, error) {
	return transcribeClip(ctx, w.prober, w.clipper, path, start, end, w.Transcribe)
}

// whisperOutput mirrors the file written by whisper.cpp's -oj flag.
// Offsets are milliseconds from the start of the input.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCLI) run(ctx context.Context, path string) (*whisperOutput, error) {
	ctx, done := w.begin(ctx)
	defer done()

	outDir, err := os.MkdirTemp("", "scribeq-whisper-")
	if err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	prefix := filepath.Join(outDir, "result")

	args := []string{"-f", path, "-oj", "-of", prefix, "-np"}
	if w.model != "" {
		args = append(args, "-m", w.model)
	}
	if w.language != "" {
		args = append(args, "-l", w.language)
	}

	w.log.Debug("running %s %s", w.binary, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, w.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("whisper run failed: %s", msg)
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper produced no output: %w", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}
	return &out, nil
}
