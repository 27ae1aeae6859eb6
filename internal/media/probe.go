package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info is the subset of probe output the validator and gateway care about.
type Info struct {
	Duration   float64
	FormatName string
	HasAudio   bool
}

// Prober inspects a media file. The production implementation shells out
// to ffprobe; tests substitute their own.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FFProbe runs the ffprobe binary and parses its JSON output.
type FFProbe struct {
	BinaryPath string
}

func NewFFProbe() (*FFProbe, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe binary not found in PATH: %w", err)
	}
	return &FFProbe{BinaryPath: path}, nil
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, p.BinaryPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// ffprobe writes the decode failure reason to stderr
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Info{}, fmt.Errorf("ffprobe: %s", msg)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := Info{FormatName: out.Format.FormatName}

	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	for _, s := range out.Streams {
		if s.CodecType == "audio" {
			info.HasAudio = true
			break
		}
	}

	return info, nil
}
