package sink

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/platform"
)

// Clipboard pipes text into an external clipboard command.
type Clipboard struct {
	argv []string
	log  *logger.Logger
}

// NewClipboard builds a clipboard sink. An explicit command overrides
// autodetection; otherwise the first known clipboard tool on PATH wins.
func NewClipboard(command string, log *logger.Logger) (*Clipboard, error) {
	if log == nil {
		log = logger.Nop()
	}

	if command != "" {
		argv := strings.Fields(command)
		path, err := exec.LookPath(argv[0])
		if err != nil {
			return nil, fmt.Errorf("clipboard command %q not found: %w", argv[0], err)
		}
		argv[0] = path
		return &Clipboard{argv: argv, log: log}, nil
	}

	argv, err := platform.FindClipboard()
	if err != nil {
		return nil, err
	}
	return &Clipboard{argv: argv, log: log}, nil
}

func (c *Clipboard) Write(ctx context.Context, name, text string) error {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("clipboard command failed: %s", msg)
	}

	c.log.Info("copied %q to clipboard (%d bytes)", name, len(text))
	return nil
}
